package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/auth"
)

func newTestOAuthService(t *testing.T) (*OAuthService, *authFixture) {
	t.Helper()
	f := newTestAuthService(t, AuthConfig{})
	google := &fakeGoogle{users: map[string]*auth.GoogleUser{
		"code-chan":  {Subject: "g-1", Email: "chan@gmail.com", EmailVerified: true},
		"code-other": {Subject: "g-2", Email: "other@gmail.com", EmailVerified: true},
	}}
	return NewOAuthService(f.users, google, f.svc, testLogger()), f
}

func TestLinkGoogle(t *testing.T) {
	svc, f := newTestOAuthService(t)
	res := f.register(t, "chan@ln.hk", "chan")
	ctx := context.Background()

	u, err := svc.LinkGoogle(ctx, res.User.ID, "code-chan")
	if err != nil {
		t.Fatalf("LinkGoogle() error = %v", err)
	}
	if u.GoogleID != "g-1" || u.GoogleEmail != "chan@gmail.com" {
		t.Errorf("linked = %q/%q", u.GoogleID, u.GoogleEmail)
	}

	// Linking the same account again is fine.
	if _, err := svc.LinkGoogle(ctx, res.User.ID, "code-chan"); err != nil {
		t.Errorf("relink error = %v", err)
	}

	other := f.register(t, "wong@ln.hk", "wong")
	_, err = svc.LinkGoogle(ctx, other.User.ID, "code-chan")
	if !errors.Is(err, ErrGoogleAlreadyLinked) || !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("LinkGoogle(taken) error = %v, want ErrGoogleAlreadyLinked", err)
	}
}

func TestLinkGoogle_BadCode(t *testing.T) {
	svc, f := newTestOAuthService(t)
	res := f.register(t, "chan@ln.hk", "chan")

	_, err := svc.LinkGoogle(context.Background(), res.User.ID, "nope")
	if !errors.Is(err, ErrGoogleExchange) {
		t.Errorf("error = %v, want ErrGoogleExchange", err)
	}
	if errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("exchange failure %v must not look like an expired session", err)
	}
}

func TestLoginWithGoogle(t *testing.T) {
	svc, f := newTestOAuthService(t)
	res := f.register(t, "chan@ln.hk", "chan")
	ctx := context.Background()

	_, err := svc.LoginWithGoogle(ctx, "code-chan")
	if !errors.Is(err, ErrGoogleNotLinked) {
		t.Fatalf("LoginWithGoogle(unlinked) error = %v, want ErrGoogleNotLinked", err)
	}

	if _, err := svc.LinkGoogle(ctx, res.User.ID, "code-chan"); err != nil {
		t.Fatal(err)
	}
	got, err := svc.LoginWithGoogle(ctx, "code-chan")
	if err != nil {
		t.Fatalf("LoginWithGoogle() error = %v", err)
	}
	if got.User.ID != res.User.ID {
		t.Errorf("signed in as %s, want %s", got.User.ID, res.User.ID)
	}
	if time.Until(got.Token.ExpiresAt) < 24*time.Hour {
		t.Errorf("OAuth session lifetime = %v, want the remember-me TTL", time.Until(got.Token.ExpiresAt))
	}
}
