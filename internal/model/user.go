package model

import "time"

// User is a registered account.
//
// The primary identity is a student email with a password. A Google account
// can be linked later (GoogleID/GoogleEmail) and then used to sign in; the
// Google email does not have to be a student address.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"emailVerification"`
	Active        bool      `json:"status"`
	GoogleID      string    `json:"-"`
	GoogleEmail   string    `json:"googleEmail,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// AuthUser is the session view of a user handed to clients.
type AuthUser struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	EmailVerification bool   `json:"emailVerification"`
	Status            bool   `json:"status"`
}

// AuthUser projects the persisted user onto the session view.
func (u *User) AuthUser() AuthUser {
	return AuthUser{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		EmailVerification: u.EmailVerified,
		Status:            u.Active,
	}
}

// Session is what GET /api/auth/me returns.
type Session struct {
	User      AuthUser  `json:"user"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}
