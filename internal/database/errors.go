package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/accountd/pkg/errors"
	"github.com/charlesng35/accountd/pkg/logger"
)

// ErrorMatcher pairs a predicate over the raw storage error with the domain
// error it should become. Matchers are evaluated in order, first match wins.
type ErrorMatcher struct {
	Match     func(err error) bool
	Translate func(err error) error
}

// Translate maps a raw storage error onto a domain error via the matcher
// list. Domain errors already raised inside a scope pass through untouched;
// anything left unmatched is logged with full detail and surfaced as the
// opaque storage error.
func Translate(err error, matchers []ErrorMatcher) error {
	if err == nil {
		return nil
	}

	for _, m := range matchers {
		if m.Match != nil && m.Match(err) {
			return m.Translate(err)
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	logger.WithModule("database").Error("unmatched storage error: " + err.Error())
	return apperrors.ErrStorage.WithInternal(err)
}

// MatchNotFound builds a matcher for gorm's empty-result error.
func MatchNotFound(translate func(err error) error) ErrorMatcher {
	return ErrorMatcher{
		Match:     func(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) },
		Translate: translate,
	}
}

// MatchUnique builds a matcher for a unique-constraint violation. Vendors
// disagree on how the violated constraint is named (postgres reports the
// index name, sqlite the column path), so any of the given fragments
// identifies it; no fragments matches every unique violation.
func MatchUnique(translate func(err error) error, fragments ...string) ErrorMatcher {
	return ErrorMatcher{
		Match:     func(err error) bool { return matchAny(fragments, err, IsUniqueViolation) },
		Translate: translate,
	}
}

// MatchCheck builds a matcher for a check-constraint violation identified by
// any of the given name fragments.
func MatchCheck(translate func(err error) error, fragments ...string) ErrorMatcher {
	return ErrorMatcher{
		Match:     func(err error) bool { return matchAny(fragments, err, IsCheckViolation) },
		Translate: translate,
	}
}

func matchAny(fragments []string, err error, pred func(error, string) bool) bool {
	if len(fragments) == 0 {
		return pred(err, "")
	}
	for _, fragment := range fragments {
		if pred(err, fragment) {
			return true
		}
	}
	return false
}

// IsUniqueViolation detects database uniqueness constraint violations across
// vendors. An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}

	// gorm's driver-level translation replaces the vendor error with this
	// bare sentinel and drops the constraint name, so it matches regardless
	// of the requested fragment.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return constraint == "" || pgErr.ConstraintName == constraint
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return constraint == "" || strings.Contains(myErr.Message, constraint)
	}

	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "unique") && !strings.Contains(lower, "duplicate") {
		return false
	}
	return constraint == "" || strings.Contains(err.Error(), constraint)
}

// IsCheckViolation detects check constraint violations across vendors. An
// empty constraint matches any check violation.
func IsCheckViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23514" {
		return constraint == "" || pgErr.ConstraintName == constraint
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 3819 {
		return constraint == "" || strings.Contains(myErr.Message, constraint)
	}

	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "check constraint") {
		return false
	}
	return constraint == "" || strings.Contains(err.Error(), constraint)
}
