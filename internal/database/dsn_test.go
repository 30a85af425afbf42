package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "accountd", Name: "accounts"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=accountd dbname=accounts sslmode=disable", dsn)

	dsn, err = buildPostgresDSN(Config{
		User:     "accountd",
		Password: "hunter2",
		Name:     "accounts",
		Host:     "db.internal",
		Port:     5433,
		Options:  map[string]string{"sslmode": "require", "application_name": "accountd"},
	})
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=5433 user=accountd dbname=accounts password=hunter2 application_name=accountd sslmode=require", dsn)

	_, err = buildPostgresDSN(Config{Name: "accounts"})
	require.Error(t, err)
}

func TestBuildPostgresDSNOverride(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://u:p@h/db"})
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@h/db", dsn)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "accountd", Name: "accounts"})
	require.NoError(t, err)
	require.Equal(t, "accountd@tcp(127.0.0.1:3306)/accounts?charset=utf8mb4&loc=Local&parseTime=True", dsn)

	dsn, err = buildMySQLDSN(Config{User: "accountd", Password: "hunter2", Name: "accounts", Host: "db", Port: 3307})
	require.NoError(t, err)
	require.Equal(t, "accountd:hunter2@tcp(db:3307)/accounts?charset=utf8mb4&loc=Local&parseTime=True", dsn)

	_, err = buildMySQLDSN(Config{User: "accountd"})
	require.Error(t, err)
}
