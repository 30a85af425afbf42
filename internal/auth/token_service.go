package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/charlesng35/accountd/internal/models"
	"github.com/charlesng35/accountd/internal/services"
	apperrors "github.com/charlesng35/accountd/pkg/errors"
)

// DefaultSessionTokenTTL defines the fallback validity period for session tokens.
const DefaultSessionTokenTTL = 15 * time.Minute

// TokenConfig bundles the configuration required to build a TokenService.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Clock  func() time.Time
}

// SessionClaims represents the custom claims embedded in issued session tokens.
type SessionClaims struct {
	// Version snapshots the account's token_version at mint time; tokens
	// whose version lags the account row are rejected.
	Version int `json:"ver"`
	jwt.RegisteredClaims
}

// AccountLookup resolves an account by id during verification. The directory
// service satisfies it.
type AccountLookup interface {
	Get(ctx context.Context, id int64) (*models.Account, error)
}

// TokenService mints and verifies bearer session tokens for accounts.
type TokenService struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
	directory AccountLookup
}

// NewTokenService constructs a TokenService instance.
func NewTokenService(cfg TokenConfig, directory AccountLookup) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token service: secret must be provided")
	}
	if directory == nil {
		return nil, errors.New("token service: account lookup is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		ttl:       ttl,
		now:       now,
		directory: directory,
	}, nil
}

// Mint issues a signed session token for the account.
func (s *TokenService) Mint(account *models.Account) (string, error) {
	if account == nil {
		return "", errors.New("token service: account is required")
	}

	now := s.now()
	claims := &SessionClaims{
		Version: account.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(account.ID, 10),
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token service: sign: %w", err)
	}
	return signed, nil
}

// Verify parses a session token and resolves the account id it names. A
// token minted before the account's token_version was bumped is rejected.
func (s *TokenService) Verify(ctx context.Context, tokenString string) (int64, error) {
	if tokenString == "" {
		return 0, apperrors.ErrUnauthorized
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims SessionClaims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return 0, apperrors.ErrUnauthorized.WithInternal(err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return 0, apperrors.ErrUnauthorized
	}

	accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, apperrors.ErrUnauthorized.WithInternal(err)
	}

	account, err := s.directory.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrAccountNotFound) {
			return 0, apperrors.ErrUnauthorized
		}
		return 0, err
	}

	if claims.Version != account.TokenVersion {
		return 0, apperrors.ErrUnauthorized
	}

	return accountID, nil
}

var _ AccountLookup = (*services.DirectoryService)(nil)
