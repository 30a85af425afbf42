package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/models"
	apperrors "github.com/charlesng35/accountd/pkg/errors"
)

// AccountView is a partial projection of an account row. Only requested
// fields are populated; everything else stays nil so callers can tell
// "absent" from "zero". Nullable columns (credential reference, change token
// and expiry) come back nil both when unrequested and when null.
type AccountView struct {
	ID              int64
	Nickname        *string
	Email           *string
	Verified        *bool
	CredentialID    *int64
	ChangeToken     *string
	ChangeExpiresAt *time.Time
	TokenVersion    *int
}

// AccountService provides keyed single-statement access to account rows.
type AccountService struct {
	db *database.Database
}

// NewAccountService constructs an AccountService instance.
func NewAccountService(db *database.Database) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	return &AccountService{db: db}, nil
}

// Get loads the requested fields of one account. Requesting no fields still
// verifies the row exists.
func (s *AccountService) Get(ctx context.Context, scope *gorm.DB, id int64, fields ...AccountField) (*AccountView, error) {
	var row models.Account

	matchers := []database.ErrorMatcher{
		database.MatchNotFound(func(error) error { return apperrors.NewAccountNotFound(id) }),
	}

	err := s.db.Exec(ctx, scope, matchers, func(db *gorm.DB) error {
		return db.Model(&models.Account{}).
			Select(accountColumns(fields)).
			Where("id = ?", id).
			Take(&row).Error
	})
	if err != nil {
		return nil, err
	}

	view := &AccountView{ID: row.ID}
	for _, f := range fields {
		switch f {
		case AccountFieldNickname:
			view.Nickname = &row.Nickname
		case AccountFieldEmail:
			view.Email = &row.Email
		case AccountFieldVerified:
			view.Verified = &row.Verified
		case AccountFieldCredentialID:
			view.CredentialID = row.CredentialID
		case AccountFieldChangeToken:
			view.ChangeToken = row.ChangeToken
		case AccountFieldChangeExpiresAt:
			view.ChangeExpiresAt = row.ChangeExpiresAt
		case AccountFieldTokenVersion:
			view.TokenVersion = &row.TokenVersion
		}
	}
	return view, nil
}

// SetNickname updates the nickname column. A malformed value surfaces as the
// invalid-nickname domain error via the check-constraint matcher.
func (s *AccountService) SetNickname(ctx context.Context, scope *gorm.DB, id int64, value string) error {
	matchers := []database.ErrorMatcher{
		database.MatchCheck(func(error) error { return apperrors.NewInvalidNickname(value) }, "chk_accounts_nickname"),
	}

	return s.db.Exec(ctx, scope, matchers, func(db *gorm.DB) error {
		res := db.Model(&models.Account{}).Where("id = ?", id).Update("nickname", value)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NewAccountNotFound(id)
		}
		return nil
	})
}
