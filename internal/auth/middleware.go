package auth

import (
	"context"
	"net/http"
)

// CookieName is the HttpOnly cookie carrying the access token.
const CookieName = "token"

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. With a plain string key any
// package that knows the string can read or shadow the value. Only this
// package can create a contextKey, so only this package reads these values.
type contextKey string

const tokenKey contextKey = "token"

// RequireAuth enforces authentication on protected routes.
//
// It reads the JWT from the "token" cookie, validates it, and stores the
// decoded token (user id + session id) in the request context. A missing,
// expired or forged token ends the chain with 401.
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, err := tokenFromRequest(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), tok)))
		})
	}
}

// OptionalAuth attaches the identity when a valid token is present but never
// blocks the request. Public listings use it so a signed-in user can see
// their own favorites marked.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok, err := tokenFromRequest(r, tokens); err == nil {
				r = r.WithContext(WithToken(r.Context(), tok))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithToken stores a validated token in ctx. Handler tests use it to fake
// an authenticated request without signing a cookie.
func WithToken(ctx context.Context, tok *Token) context.Context {
	return context.WithValue(ctx, tokenKey, tok)
}

// UserIDFromContext returns ("", false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey).(*Token)
	if !ok || tok.UserID == "" {
		return "", false
	}
	return tok.UserID, true
}

// SessionFromContext returns the token of the current session, if any.
func SessionFromContext(ctx context.Context) (*Token, bool) {
	tok, ok := ctx.Value(tokenKey).(*Token)
	return tok, ok && tok != nil
}

func tokenFromRequest(r *http.Request, tokens *TokenService) (*Token, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}
	return tokens.Validate(cookie.Value)
}
