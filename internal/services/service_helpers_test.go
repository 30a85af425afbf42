package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/models"
)

// testEnv wires the full service stack over a named in-memory database with
// a controllable clock.
type testEnv struct {
	t *testing.T

	db          *database.Database
	handle      *gorm.DB
	accounts    *AccountService
	credentials *CredentialService
	changes     *ChangeService
	directory   *DirectoryService

	current time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)

	handle, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(handle))

	sqlDB, err := handle.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	env := &testEnv{
		t:       t,
		handle:  handle,
		db:      database.NewFromHandle(handle),
		current: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	env.accounts, err = NewAccountService(env.db)
	require.NoError(t, err)
	env.credentials, err = NewCredentialService(env.db)
	require.NoError(t, err)
	env.changes, err = NewChangeService(env.db, env.credentials,
		WithChangeClock(func() time.Time { return env.current }),
	)
	require.NoError(t, err)
	env.directory, err = NewDirectoryService(env.db, env.accounts, env.credentials, env.changes)
	require.NoError(t, err)

	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.current = e.current.Add(d)
}

func (e *testEnv) create(nickname, email, password string) *models.Account {
	e.t.Helper()

	account, err := e.directory.Create(context.Background(), CreateAccountInput{
		Nickname: nickname,
		Email:    email,
		Password: password,
	})
	require.NoError(e.t, err)
	return account
}

// createVerified provisions an account and redeems its initial verification
// change so follow-up changes can be staged.
func (e *testEnv) createVerified(nickname, email, password string) *models.Account {
	e.t.Helper()

	account := e.create(nickname, email, password)
	require.NotNil(e.t, account.ChangeToken)
	require.NoError(e.t, e.directory.Validate(context.Background(), *account.ChangeToken))

	reloaded, err := e.directory.Get(context.Background(), account.ID)
	require.NoError(e.t, err)
	return reloaded
}

func (e *testEnv) reload(id int64) *models.Account {
	e.t.Helper()

	var account models.Account
	require.NoError(e.t, e.handle.Where("id = ?", id).Take(&account).Error)
	return &account
}

func (e *testEnv) reloadCredential(id int64) *models.Credential {
	e.t.Helper()

	var credential models.Credential
	require.NoError(e.t, e.handle.Where("id = ?", id).Take(&credential).Error)
	return &credential
}
