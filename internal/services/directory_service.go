package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/models"
	"github.com/charlesng35/accountd/pkg/crypto"
	apperrors "github.com/charlesng35/accountd/pkg/errors"
	"github.com/charlesng35/accountd/pkg/logger"
	"github.com/charlesng35/accountd/pkg/mail"
	"github.com/charlesng35/accountd/pkg/metrics"
)

// DirectoryOption customises the DirectoryService.
type DirectoryOption func(*DirectoryService)

// WithDirectoryMailer wires an outbound mailer for change-token links.
func WithDirectoryMailer(m mail.Mailer, baseURL string) DirectoryOption {
	return func(s *DirectoryService) {
		s.mailer = m
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// CreateAccountInput describes the fields accepted when creating an account.
type CreateAccountInput struct {
	Nickname string
	Email    string
	Password string
}

// DirectoryService creates accounts with their initial credential and looks
// them up by id, email, or change token. It composes the change state machine
// and the record services inside its transactions.
type DirectoryService struct {
	db          *database.Database
	accounts    *AccountService
	credentials *CredentialService
	changes     *ChangeService

	mailer  mail.Mailer
	baseURL string
	log     *zap.Logger
}

// NewDirectoryService constructs a DirectoryService instance.
func NewDirectoryService(
	db *database.Database,
	accounts *AccountService,
	credentials *CredentialService,
	changes *ChangeService,
	opts ...DirectoryOption,
) (*DirectoryService, error) {
	if db == nil {
		return nil, errors.New("directory service: db is required")
	}
	if accounts == nil || credentials == nil || changes == nil {
		return nil, errors.New("directory service: record and change services are required")
	}

	service := &DirectoryService{
		db:          db,
		accounts:    accounts,
		credentials: credentials,
		changes:     changes,
		log:         logger.WithModule("directory"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Create provisions an account together with its credential in a single
// transaction. The new account starts unverified with a never-expiring
// verification change already pending.
func (s *DirectoryService) Create(ctx context.Context, input CreateAccountInput) (*models.Account, error) {
	nickname := strings.TrimSpace(input.Nickname)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if nickname == "" {
		return nil, apperrors.NewBadRequest("nickname is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("directory service: hash password: %w", err)
	}

	account := &models.Account{
		Nickname: nickname,
		Email:    email,
		Verified: false,
	}

	var token string
	err = s.db.WithTransaction(ctx, nil, func(tx *gorm.DB) error {
		credential := &models.Credential{PasswordHash: hashed}
		if err := s.db.Exec(ctx, tx, nil, func(db *gorm.DB) error {
			return db.Create(credential).Error
		}); err != nil {
			return err
		}

		account.CredentialID = &credential.ID
		matchers := []database.ErrorMatcher{
			database.MatchCheck(func(error) error { return apperrors.NewInvalidNickname(nickname) }, "chk_accounts_nickname"),
			database.MatchCheck(func(error) error { return apperrors.NewInvalidEmail(email) }, "chk_accounts_email"),
			database.MatchUnique(func(error) error { return apperrors.NewDuplicateEmail(email) },
				"uniq_accounts_email", "accounts.email"),
		}
		if err := s.db.Exec(ctx, tx, matchers, func(db *gorm.DB) error {
			return db.Create(account).Error
		}); err != nil {
			return err
		}

		// First-time verification never expires.
		token, err = s.changes.New(ctx, tx, account.ID, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.AccountsCreated.Inc()
	metrics.ChangesIssued.WithLabelValues(ChangeVerifyAccount.String()).Inc()

	s.sendChangeLink(ctx, email, "Confirm your account", token)

	changeToken := token
	account.ChangeToken = &changeToken
	expiry := NeverExpires
	account.ChangeExpiresAt = &expiry
	return account, nil
}

// Get loads one account by id.
func (s *DirectoryService) Get(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account

	matchers := []database.ErrorMatcher{
		database.MatchNotFound(func(error) error { return apperrors.NewAccountNotFound(id) }),
	}
	err := s.db.Exec(ctx, nil, matchers, func(db *gorm.DB) error {
		return db.Where("id = ?", id).Take(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByEmail loads one account by its authoritative email address.
func (s *DirectoryService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var account models.Account
	matchers := []database.ErrorMatcher{
		database.MatchNotFound(func(err error) error { return apperrors.ErrAccountNotFound }),
	}
	err := s.db.Exec(ctx, nil, matchers, func(db *gorm.DB) error {
		return db.Where("email = ?", email).Take(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByChangeToken loads the account owning a pending change token.
func (s *DirectoryService) GetByChangeToken(ctx context.Context, token string) (*models.Account, error) {
	var account models.Account

	matchers := []database.ErrorMatcher{
		database.MatchNotFound(func(error) error { return apperrors.NewInvalidChangeToken() }),
	}
	err := s.db.Exec(ctx, nil, matchers, func(db *gorm.DB) error {
		return db.Where("change_token = ?", token).Take(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Authenticate verifies an email/password pair for login. Every failure mode
// collapses into the uninformative invalid-credentials error so callers
// cannot probe which part was wrong.
func (s *DirectoryService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	account, err := s.GetByEmail(ctx, email)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, apperrors.ErrAccountNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if account.CredentialID == nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	cred, err := s.credentials.Get(ctx, nil, *account.CredentialID, CredentialFieldPasswordHash)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, apperrors.ErrCredentialNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !crypto.VerifyPassword(*cred.PasswordHash, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return account, nil
}

// RequestEmailChange opens a bounded pending change that will move the
// account to the new email once its token is redeemed.
func (s *DirectoryService) RequestEmailChange(ctx context.Context, id int64, newEmail string) (string, error) {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if newEmail == "" {
		return "", apperrors.NewBadRequest("email is required")
	}

	var token string
	err := s.db.WithTransaction(ctx, nil, func(tx *gorm.DB) error {
		credentialID, err := s.credentialIDFor(ctx, tx, id)
		if err != nil {
			return err
		}

		token, err = s.changes.New(ctx, tx, id, false)
		if err != nil {
			return err
		}
		return s.credentials.StageEmail(ctx, tx, credentialID, newEmail)
	})
	if err != nil {
		return "", err
	}

	metrics.ChangesIssued.WithLabelValues(ChangeNewEmail.String()).Inc()
	s.sendChangeLink(ctx, newEmail, "Confirm your new email address", token)
	return token, nil
}

// RequestPasswordChange opens a bounded pending change that will replace the
// account's password hash once its token is redeemed.
func (s *DirectoryService) RequestPasswordChange(ctx context.Context, id int64, newPassword string) (string, error) {
	if strings.TrimSpace(newPassword) == "" {
		return "", apperrors.NewBadRequest("password is required")
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return "", fmt.Errorf("directory service: hash password: %w", err)
	}

	var token string
	err = s.db.WithTransaction(ctx, nil, func(tx *gorm.DB) error {
		credentialID, err := s.credentialIDFor(ctx, tx, id)
		if err != nil {
			return err
		}

		token, err = s.changes.New(ctx, tx, id, false)
		if err != nil {
			return err
		}
		return s.credentials.StagePassword(ctx, tx, credentialID, hashed)
	})
	if err != nil {
		return "", err
	}

	metrics.ChangesIssued.WithLabelValues(ChangeNewPassword.String()).Inc()
	return token, nil
}

// Validate redeems a change token. No extra invariant exists at this layer;
// it delegates to the state machine.
func (s *DirectoryService) Validate(ctx context.Context, token string) error {
	return s.changes.Validate(ctx, token)
}

// Delete removes an account and its credential in one transaction.
func (s *DirectoryService) Delete(ctx context.Context, id int64) error {
	return s.db.WithTransaction(ctx, nil, func(tx *gorm.DB) error {
		view, err := s.accounts.Get(ctx, tx, id, AccountFieldCredentialID)
		if err != nil {
			return err
		}

		if err := s.db.Exec(ctx, tx, nil, func(db *gorm.DB) error {
			return db.Delete(&models.Account{}, id).Error
		}); err != nil {
			return err
		}

		if view.CredentialID == nil {
			return nil
		}
		return s.db.Exec(ctx, tx, nil, func(db *gorm.DB) error {
			return db.Delete(&models.Credential{}, *view.CredentialID).Error
		})
	})
}

func (s *DirectoryService) credentialIDFor(ctx context.Context, tx *gorm.DB, id int64) (int64, error) {
	view, err := s.accounts.Get(ctx, tx, id, AccountFieldCredentialID)
	if err != nil {
		return 0, err
	}
	if view.CredentialID == nil {
		return 0, apperrors.NewCredentialNotFound(0).WithMessage(
			fmt.Sprintf("Account %d has no default-login credential", id))
	}
	return *view.CredentialID, nil
}

// sendChangeLink dispatches the token link when a mailer is configured.
// Delivery is best effort for a disabled relay but real failures surface in
// the log only; the change itself is already durable.
func (s *DirectoryService) sendChangeLink(ctx context.Context, email, subject, token string) {
	if s.mailer == nil {
		return
	}

	link := token
	if s.baseURL != "" {
		link = fmt.Sprintf("%s?token=%s", s.baseURL, token)
	}

	msg := mail.Message{
		To:      []string{email},
		Subject: subject,
		Body:    fmt.Sprintf("Please confirm by visiting the link below:\n%s\n", link),
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("change link delivery failed", zap.String("email", email), zap.Error(err))
	}
}
