package models

import "time"

// Credential holds the default-login secret material for exactly one account.
// NewEmail logically belongs to the account but lives here for schema
// compatibility with the original deployment; it and NewPasswordHash are
// non-null only while a corresponding change is pending.
type Credential struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	PasswordHash string `gorm:"size:255;not null"`

	NewEmail        *string `gorm:"size:255"`
	NewPasswordHash *string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
