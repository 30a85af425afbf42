package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/models"
	"github.com/charlesng35/accountd/pkg/crypto"
	apperrors "github.com/charlesng35/accountd/pkg/errors"
	"github.com/charlesng35/accountd/pkg/metrics"
)

// PendingChange identifies which sensitive attribute of an account is
// mid-transition. It is derived from column state at read time, never stored.
type PendingChange int

const (
	ChangeNone PendingChange = iota
	ChangeVerifyAccount
	ChangeNewEmail
	ChangeNewPassword
)

func (p PendingChange) String() string {
	switch p {
	case ChangeVerifyAccount:
		return "verify_account"
	case ChangeNewEmail:
		return "new_email"
	case ChangeNewPassword:
		return "new_password"
	default:
		return "none"
	}
}

// NeverExpires is the expiry recorded for changes that must stay redeemable
// indefinitely (first-time verification). A far-future timestamp rather than
// a null keeps the token/expiry both-set-or-both-null invariant intact, and
// makes the expiry comparison uniform: the sentinel is simply never in the
// past.
var NeverExpires = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

const (
	defaultChangeTTL         = 14 * 24 * time.Hour
	defaultChangeTokenLength = 32
)

// derivePending computes the pending-change kind from denormalised column
// state. Verification unconditionally beats staged changes: an account that
// is somehow unverified while a change is staged must re-verify first.
func derivePending(verified bool, newEmail, newPasswordHash *string) PendingChange {
	switch {
	case !verified:
		return ChangeVerifyAccount
	case newEmail != nil:
		return ChangeNewEmail
	case newPasswordHash != nil:
		return ChangeNewPassword
	default:
		return ChangeNone
	}
}

// ChangeOption customises the ChangeService.
type ChangeOption func(*ChangeService)

// WithChangeClock injects a custom time source.
func WithChangeClock(clock func() time.Time) ChangeOption {
	return func(s *ChangeService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithChangeTTL overrides the lifetime of bounded changes.
func WithChangeTTL(d time.Duration) ChangeOption {
	return func(s *ChangeService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithChangeTokenLength adjusts the number of random bytes in issued tokens.
func WithChangeTokenLength(n int) ChangeOption {
	return func(s *ChangeService) {
		if n > 0 {
			s.tokenLength = n
		}
	}
}

// ChangeService owns the single-pending-change state machine: it issues
// change tokens, derives the current state, enforces lazy expiry, and commits
// redeemed changes.
type ChangeService struct {
	db          *database.Database
	credentials *CredentialService
	ttl         time.Duration
	tokenLength int
	now         func() time.Time
}

// NewChangeService constructs a ChangeService with the provided dependencies.
func NewChangeService(db *database.Database, credentials *CredentialService, opts ...ChangeOption) (*ChangeService, error) {
	if db == nil {
		return nil, errors.New("change service: db is required")
	}
	if credentials == nil {
		return nil, errors.New("change service: credential service is required")
	}

	service := &ChangeService{
		db:          db,
		credentials: credentials,
		ttl:         defaultChangeTTL,
		tokenLength: defaultChangeTokenLength,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// State reports the pending change for the account. Discovering an expired
// token resets it (token, expiry, and any staged value are cleared) and None
// is returned; this read is the only expiry-enforcement point, there is no
// background sweep.
func (s *ChangeService) State(ctx context.Context, scope *gorm.DB, id int64) (PendingChange, error) {
	state := ChangeNone

	err := s.db.WithTransaction(ctx, scope, func(tx *gorm.DB) error {
		acct, err := s.loadAccount(ctx, tx, id)
		if err != nil {
			return err
		}

		if acct.ChangeToken == nil {
			state = ChangeNone
			return nil
		}

		kind, err := s.derive(ctx, tx, acct)
		if err != nil {
			return err
		}

		if acct.ChangeExpiresAt != nil && acct.ChangeExpiresAt.Before(s.now()) {
			if err := s.reset(ctx, tx, acct, kind); err != nil {
				return err
			}
			metrics.ChangesExpired.WithLabelValues(kind.String()).Inc()
			state = ChangeNone
			return nil
		}

		state = kind
		return nil
	})
	if err != nil {
		return ChangeNone, err
	}
	return state, nil
}

// New issues a fresh change token for the account. The caller must be in
// state None; expiry is either the never-expires sentinel or now + TTL.
func (s *ChangeService) New(ctx context.Context, scope *gorm.DB, id int64, unbounded bool) (string, error) {
	var token string

	err := s.db.WithTransaction(ctx, scope, func(tx *gorm.DB) error {
		state, err := s.State(ctx, tx, id)
		if err != nil {
			return err
		}
		if state != ChangeNone {
			return apperrors.NewChangeInProgress(id)
		}

		token, err = crypto.GenerateToken(s.tokenLength)
		if err != nil {
			return fmt.Errorf("change service: generate token: %w", err)
		}

		expiry := NeverExpires
		if !unbounded {
			expiry = s.now().Add(s.ttl)
		}

		// The account was just observed inside this transaction, but it may
		// have vanished between check and write when called standalone.
		return s.db.Exec(ctx, tx, nil, func(db *gorm.DB) error {
			res := db.Model(&models.Account{}).Where("id = ?", id).Updates(map[string]any{
				"change_token":      token,
				"change_expires_at": expiry,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperrors.NewAccountNotFound(id)
			}
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Validate redeems a change token: it applies the commit matching the
// derived state, then clears the token and expiry. Everything happens in one
// transaction, so a failed commit leaves the change redeemable. Expiry is
// deliberately ignored here; a token still present is being redeemed, and
// only State enforces expiry.
func (s *ChangeService) Validate(ctx context.Context, token string) error {
	return s.db.WithTransaction(ctx, nil, func(tx *gorm.DB) error {
		var acct models.Account

		matchers := []database.ErrorMatcher{
			database.MatchNotFound(func(error) error { return apperrors.NewInvalidChangeToken() }),
		}
		err := s.db.Exec(ctx, tx, matchers, func(db *gorm.DB) error {
			return db.Where("change_token = ?", token).Take(&acct).Error
		})
		if err != nil {
			return err
		}

		kind, err := s.derive(ctx, tx, &acct)
		if err != nil {
			return err
		}

		if err := s.commit(ctx, tx, &acct, kind); err != nil {
			return err
		}

		if err := s.clearToken(ctx, tx, acct.ID); err != nil {
			return err
		}

		metrics.ChangesCommitted.WithLabelValues(kind.String()).Inc()
		return nil
	})
}

func (s *ChangeService) commit(ctx context.Context, tx *gorm.DB, acct *models.Account, kind PendingChange) error {
	switch kind {
	case ChangeVerifyAccount:
		return s.db.Exec(ctx, tx, nil, func(db *gorm.DB) error {
			return db.Model(&models.Account{}).Where("id = ?", acct.ID).
				Update("verified", true).Error
		})

	case ChangeNewEmail:
		cred, err := s.credentials.Get(ctx, tx, *acct.CredentialID, CredentialFieldNewEmail)
		if err != nil {
			return err
		}
		if cred.NewEmail == nil {
			return nil
		}

		matchers := []database.ErrorMatcher{
			database.MatchCheck(func(error) error { return apperrors.NewInvalidEmail(*cred.NewEmail) }, "chk_accounts_email"),
			database.MatchUnique(func(error) error { return apperrors.NewDuplicateEmail(*cred.NewEmail) },
				"uniq_accounts_email", "accounts.email"),
		}
		err = s.db.Exec(ctx, tx, matchers, func(db *gorm.DB) error {
			return db.Model(&models.Account{}).Where("id = ?", acct.ID).
				Update("email", *cred.NewEmail).Error
		})
		if err != nil {
			return err
		}
		return s.clearStaged(ctx, tx, cred.ID, "new_email")

	case ChangeNewPassword:
		cred, err := s.credentials.Get(ctx, tx, *acct.CredentialID, CredentialFieldNewPasswordHash)
		if err != nil {
			return err
		}
		if cred.NewPasswordHash == nil {
			return nil
		}

		if err := s.credentials.SetPasswordHash(ctx, tx, cred.ID, *cred.NewPasswordHash); err != nil {
			return err
		}
		if err := s.clearStaged(ctx, tx, cred.ID, "new_password_hash"); err != nil {
			return err
		}
		// Committing a new password invalidates every session token issued
		// under the old one.
		return s.db.Exec(ctx, tx, nil, func(db *gorm.DB) error {
			return db.Model(&models.Account{}).Where("id = ?", acct.ID).
				Update("token_version", gorm.Expr("token_version + 1")).Error
		})

	default:
		// Token present with nothing staged: the commit is a no-op, the
		// token is still consumed.
		return nil
	}
}

// reset discards a pending change: token and expiry are cleared along with
// the staged value belonging to the given kind. Already-committed state is
// untouched.
func (s *ChangeService) reset(ctx context.Context, tx *gorm.DB, acct *models.Account, kind PendingChange) error {
	if err := s.clearToken(ctx, tx, acct.ID); err != nil {
		return err
	}

	if acct.CredentialID == nil {
		return nil
	}

	switch kind {
	case ChangeNewEmail:
		return s.clearStaged(ctx, tx, *acct.CredentialID, "new_email")
	case ChangeNewPassword:
		return s.clearStaged(ctx, tx, *acct.CredentialID, "new_password_hash")
	default:
		// Verification stages no side data.
		return nil
	}
}

func (s *ChangeService) clearToken(ctx context.Context, tx *gorm.DB, id int64) error {
	return s.db.Exec(ctx, tx, nil, func(db *gorm.DB) error {
		return db.Model(&models.Account{}).Where("id = ?", id).Updates(map[string]any{
			"change_token":      nil,
			"change_expires_at": nil,
		}).Error
	})
}

func (s *ChangeService) clearStaged(ctx context.Context, tx *gorm.DB, credentialID int64, column string) error {
	return s.db.Exec(ctx, tx, nil, func(db *gorm.DB) error {
		return db.Model(&models.Credential{}).Where("id = ?", credentialID).
			Update(column, nil).Error
	})
}

// derive computes the pending kind for the account from its verified flag and
// the staged columns of its credential.
func (s *ChangeService) derive(ctx context.Context, tx *gorm.DB, acct *models.Account) (PendingChange, error) {
	if !acct.Verified {
		return ChangeVerifyAccount, nil
	}
	if acct.CredentialID == nil {
		return ChangeNone, nil
	}

	cred, err := s.credentials.Get(ctx, tx, *acct.CredentialID,
		CredentialFieldNewEmail, CredentialFieldNewPasswordHash)
	if err != nil {
		return ChangeNone, err
	}

	return derivePending(acct.Verified, cred.NewEmail, cred.NewPasswordHash), nil
}

func (s *ChangeService) loadAccount(ctx context.Context, tx *gorm.DB, id int64) (*models.Account, error) {
	var acct models.Account

	matchers := []database.ErrorMatcher{
		database.MatchNotFound(func(error) error { return apperrors.NewAccountNotFound(id) }),
	}
	err := s.db.Exec(ctx, tx, matchers, func(db *gorm.DB) error {
		return db.Model(&models.Account{}).
			Select("id", "verified", "credential_id", "change_token", "change_expires_at").
			Where("id = ?", id).
			Take(&acct).Error
	})
	if err != nil {
		return nil, err
	}
	return &acct, nil
}
