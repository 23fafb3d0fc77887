package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsStudentEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"chan@ln.hk", true},
		{"wong@ln.edu.hk", true},
		{"lee@life.ln.edu.hk", true},
		{"  Chan@LN.HK ", true},
		{"chan@gmail.com", false},
		{"chan@ln.hk.evil.com", false},
		{"chan@notln.hk", false},
		{"@ln.hk", false},
		{"chan wong@ln.hk", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStudentEmail(tt.email))
		})
	}
}

func TestClassifyOAuthError(t *testing.T) {
	tests := []struct {
		code, desc string
		want       OAuthErrorKind
	}{
		{"", "", OAuthUnknown},
		{"user_already_exists", "", OAuthAlreadyLinked},
		{"", "This Google account is already linked", OAuthAlreadyLinked},
		{"general_unauthorized_scope", "", OAuthNeedsRelogin},
		{"", "Missing scope: account", OAuthNeedsRelogin},
		{"access_denied", "user cancelled", OAuthDenied},
		{"401", "", OAuthSessionExpired},
		{"", "Unauthorized", OAuthSessionExpired},
		{"not_linked", "", OAuthNotLinked},
		{"server_error", "boom", OAuthUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyOAuthError(tt.code, tt.desc))
		})
	}
}

func TestRedirectFor(t *testing.T) {
	assert.Equal(t, Redirect{Path: "/settings?error=already_linked", Delay: 3 * time.Second},
		RedirectFor(OAuthAlreadyLinked, FlowLink))
	assert.Equal(t, Redirect{Path: "/login"}, RedirectFor(OAuthDenied, FlowLogin))
	assert.Equal(t, Redirect{Path: "/settings"}, RedirectFor(OAuthDenied, FlowLink))
	assert.Equal(t, "/login?error=oauth_failed", RedirectFor(OAuthUnknown, FlowLogin).Path)
	assert.Equal(t, "oauth.error.needs_relogin", OAuthNeedsRelogin.MessageKey())
}
