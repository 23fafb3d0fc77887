package model

import "time"

// VerificationCode is the pending proof that someone controls a student
// email. Only the bcrypt hash of the code is stored.
type VerificationCode struct {
	Email      string
	CodeHash   string
	ExpiresAt  time.Time
	Attempts   int
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

// Verified reports whether the email was confirmed.
func (v *VerificationCode) Verified() bool { return v.VerifiedAt != nil }

// PasswordReset is an emailed reset link. The link carries the user id and
// a random secret; only the secret's hash is stored.
type PasswordReset struct {
	ID         string
	UserID     string
	SecretHash string
	ExpiresAt  time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time
}

// Usable reports whether the reset can still be completed at now.
func (p *PasswordReset) Usable(now time.Time) bool {
	return p.UsedAt == nil && now.Before(p.ExpiresAt)
}
