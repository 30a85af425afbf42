package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/models"
	apperrors "github.com/charlesng35/accountd/pkg/errors"
)

// CredentialView is a partial projection of a credential row, populated the
// same way as AccountView.
type CredentialView struct {
	ID              int64
	PasswordHash    *string
	NewEmail        *string
	NewPasswordHash *string
}

// CredentialService provides keyed single-statement access to credential rows.
type CredentialService struct {
	db *database.Database
}

// NewCredentialService constructs a CredentialService instance.
func NewCredentialService(db *database.Database) (*CredentialService, error) {
	if db == nil {
		return nil, errors.New("credential service: db is required")
	}
	return &CredentialService{db: db}, nil
}

// Get loads the requested fields of one credential.
func (s *CredentialService) Get(ctx context.Context, scope *gorm.DB, id int64, fields ...CredentialField) (*CredentialView, error) {
	var row models.Credential

	matchers := []database.ErrorMatcher{
		database.MatchNotFound(func(error) error { return apperrors.NewCredentialNotFound(id) }),
	}

	err := s.db.Exec(ctx, scope, matchers, func(db *gorm.DB) error {
		return db.Model(&models.Credential{}).
			Select(credentialColumns(fields)).
			Where("id = ?", id).
			Take(&row).Error
	})
	if err != nil {
		return nil, err
	}

	view := &CredentialView{ID: row.ID}
	for _, f := range fields {
		switch f {
		case CredentialFieldPasswordHash:
			view.PasswordHash = &row.PasswordHash
		case CredentialFieldNewEmail:
			view.NewEmail = row.NewEmail
		case CredentialFieldNewPasswordHash:
			view.NewPasswordHash = row.NewPasswordHash
		}
	}
	return view, nil
}

// StageEmail records a not-yet-committed replacement email on the credential.
func (s *CredentialService) StageEmail(ctx context.Context, scope *gorm.DB, id int64, email string) error {
	return s.updateColumn(ctx, scope, id, "new_email", email)
}

// StagePassword records a not-yet-committed replacement password hash.
func (s *CredentialService) StagePassword(ctx context.Context, scope *gorm.DB, id int64, hash string) error {
	return s.updateColumn(ctx, scope, id, "new_password_hash", hash)
}

// SetPasswordHash replaces the authoritative password hash.
func (s *CredentialService) SetPasswordHash(ctx context.Context, scope *gorm.DB, id int64, hash string) error {
	return s.updateColumn(ctx, scope, id, "password_hash", hash)
}

func (s *CredentialService) updateColumn(ctx context.Context, scope *gorm.DB, id int64, column string, value any) error {
	return s.db.Exec(ctx, scope, nil, func(db *gorm.DB) error {
		res := db.Model(&models.Credential{}).Where("id = ?", id).Update(column, value)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NewCredentialNotFound(id)
		}
		return nil
	})
}
