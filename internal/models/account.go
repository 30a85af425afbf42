package models

import "time"

// Account is the primary identity entity. ChangeToken and ChangeExpiresAt are
// either both set (a change is pending) or both null; "never expires" is the
// far-future sentinel rather than a null expiry so the pairing invariant
// stays checkable.
type Account struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Nickname string `gorm:"size:64;not null;check:chk_accounts_nickname,length(nickname) >= 3" json:"nickname"`
	Email    string `gorm:"size:255;not null;uniqueIndex:uniq_accounts_email;check:chk_accounts_email,email LIKE '%_@_%'" json:"email"`
	Verified bool   `gorm:"not null;default:false" json:"verified"`

	CredentialID *int64      `gorm:"uniqueIndex" json:"-"`
	Credential   *Credential `gorm:"foreignKey:CredentialID" json:"-"`

	ChangeToken     *string    `gorm:"size:128;uniqueIndex:uniq_accounts_change_token" json:"-"`
	ChangeExpiresAt *time.Time `json:"-"`

	// TokenVersion is embedded in issued session tokens; bumping it
	// invalidates every token minted before the bump.
	TokenVersion int `gorm:"not null;default:1" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
