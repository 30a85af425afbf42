package database

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/accountd/pkg/errors"
)

func TestTranslateNil(t *testing.T) {
	require.NoError(t, Translate(nil, nil))
}

func TestTranslateFirstMatchWins(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	matchers := []ErrorMatcher{
		{Match: func(error) bool { return true }, Translate: func(error) error { return first }},
		{Match: func(error) bool { return true }, Translate: func(error) error { return second }},
	}

	require.ErrorIs(t, Translate(errors.New("raw"), matchers), first)
}

func TestTranslatePassesDomainErrorsThrough(t *testing.T) {
	domain := apperrors.NewAccountNotFound(3)
	translated := Translate(domain, nil)
	require.Same(t, domain, translated)
}

func TestTranslateWrapsUnmatched(t *testing.T) {
	raw := errors.New("driver: catastrophic failure 0x7f")
	err := Translate(raw, nil)

	require.ErrorIs(t, err, apperrors.ErrStorage)
	require.ErrorIs(t, err, raw) // retained internally for logging

	appErr := apperrors.FromError(err)
	require.Equal(t, apperrors.ErrStorage.Message, appErr.Message)
}

func TestIsUniqueViolationVendors(t *testing.T) {
	pg := &pgconn.PgError{Code: "23505", ConstraintName: "uniq_accounts_email"}
	require.True(t, IsUniqueViolation(pg, ""))
	require.True(t, IsUniqueViolation(pg, "uniq_accounts_email"))
	require.False(t, IsUniqueViolation(pg, "uniq_other"))

	my := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.com' for key 'uniq_accounts_email'"}
	require.True(t, IsUniqueViolation(my, "uniq_accounts_email"))

	// The translated sentinel carries no constraint name; it must satisfy
	// named matchers too.
	require.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey, ""))
	require.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey, "uniq_accounts_email"))

	sqliteStyle := errors.New("UNIQUE constraint failed: accounts.email")
	require.True(t, IsUniqueViolation(sqliteStyle, "accounts.email"))
	require.False(t, IsUniqueViolation(sqliteStyle, "accounts.change_token"))

	require.False(t, IsUniqueViolation(errors.New("syntax error"), ""))
	require.False(t, IsUniqueViolation(nil, ""))
}

func TestIsCheckViolationVendors(t *testing.T) {
	pg := &pgconn.PgError{Code: "23514", ConstraintName: "chk_accounts_nickname"}
	require.True(t, IsCheckViolation(pg, "chk_accounts_nickname"))
	require.False(t, IsCheckViolation(pg, "chk_accounts_email"))

	my := &mysql.MySQLError{Number: 3819, Message: "Check constraint 'chk_accounts_email' is violated."}
	require.True(t, IsCheckViolation(my, "chk_accounts_email"))

	sqliteStyle := errors.New("CHECK constraint failed: chk_accounts_nickname")
	require.True(t, IsCheckViolation(sqliteStyle, "chk_accounts_nickname"))

	require.True(t, IsCheckViolation(gorm.ErrCheckConstraintViolated, "chk_accounts_nickname"))

	require.False(t, IsCheckViolation(errors.New("unique constraint"), ""))
}

func TestTranslateDuplicatedKeySentinel(t *testing.T) {
	matchers := []ErrorMatcher{
		MatchUnique(func(error) error { return apperrors.NewDuplicateEmail("a@b.com") },
			"uniq_accounts_email", "accounts.email"),
	}

	err := Translate(gorm.ErrDuplicatedKey, matchers)
	require.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
}
