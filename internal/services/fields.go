package services

// AccountField names a projectable column of the accounts table.
type AccountField string

const (
	AccountFieldNickname        AccountField = "nickname"
	AccountFieldEmail           AccountField = "email"
	AccountFieldVerified        AccountField = "verified"
	AccountFieldCredentialID    AccountField = "credential_id"
	AccountFieldChangeToken     AccountField = "change_token"
	AccountFieldChangeExpiresAt AccountField = "change_expires_at"
	AccountFieldTokenVersion    AccountField = "token_version"
)

// CredentialField names a projectable column of the credentials table.
type CredentialField string

const (
	CredentialFieldPasswordHash    CredentialField = "password_hash"
	CredentialFieldNewEmail        CredentialField = "new_email"
	CredentialFieldNewPasswordHash CredentialField = "new_password_hash"
)

// The id column is always selected so that a projection with zero requested
// fields still validates row existence.
func accountColumns(fields []AccountField) []string {
	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, "id")
	for _, f := range fields {
		cols = append(cols, string(f))
	}
	return cols
}

func credentialColumns(fields []CredentialField) []string {
	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, "id")
	for _, f := range fields {
		cols = append(cols, string(f))
	}
	return cols
}
