// Package auth issues and checks access tokens, hashes secrets, talks to
// Google for OAuth and holds the account policies (student email domains,
// OAuth error classification).
//
// SESSION MODEL:
// A session is a signed JWT in the HttpOnly "token" cookie:
//
//	{"sub": userID, "jti": sessionID, "iss": "course-review", "exp": ...}
//
// The session id is a fresh UUID per sign-in so clients can tell two
// sessions of the same user apart. Lifetime depends on the sign-in choice:
// SESSION_TTL without "remember me", REMEMBER_TTL with it.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "course-review"

// ErrTokenExpired is returned by Validate for a well-formed but expired token.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and verifies access tokens with an HMAC secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService rejects secrets shorter than 16 characters.
// Generate one with: openssl rand -hex 32
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Token is a signed access token and what it encodes.
type Token struct {
	Value     string
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// Issue signs a token for userID that lives for ttl, with a new session id.
func (s *TokenService) Issue(userID string, ttl time.Duration) (*Token, error) {
	if userID == "" {
		return nil, errors.New("auth: cannot issue a token without a user")
	}
	now := s.now()
	t := &Token{
		UserID:    userID,
		SessionID: uuid.NewString(),
		ExpiresAt: now.Add(ttl).Truncate(time.Second),
	}
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        t.SessionID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(t.ExpiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: signing token: %w", err)
	}
	t.Value = signed
	return t, nil
}

// Validate verifies the signature, issuer, algorithm and expiry of tokenStr.
//
// jwt.WithValidMethods pins HS256 so a token claiming "alg": "none" (or an
// RSA algorithm keyed with our secret) is rejected before the key is used.
func (s *TokenService) Validate(tokenStr string) (*Token, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("auth: token has no subject or session id")
	}
	return &Token{
		Value:     tokenStr,
		UserID:    claims.Subject,
		SessionID: claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
