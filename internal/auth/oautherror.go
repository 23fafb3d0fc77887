package auth

import (
	"strings"
	"time"
)

// OAuthErrorKind is the user-facing category of a failed OAuth round trip.
type OAuthErrorKind int

const (
	OAuthUnknown OAuthErrorKind = iota
	OAuthSessionExpired
	OAuthAlreadyLinked
	OAuthNeedsRelogin
	OAuthDenied
	OAuthNotLinked
)

func (k OAuthErrorKind) String() string {
	switch k {
	case OAuthSessionExpired:
		return "session_expired"
	case OAuthAlreadyLinked:
		return "already_linked"
	case OAuthNeedsRelogin:
		return "needs_relogin"
	case OAuthDenied:
		return "denied"
	case OAuthNotLinked:
		return "not_linked"
	default:
		return "oauth_failed"
	}
}

// MessageKey is the translation key of the toast shown for k.
func (k OAuthErrorKind) MessageKey() string {
	return "oauth.error." + k.String()
}

// ClassifyOAuthError maps the error and error_description query parameters
// that the provider put on a callback to a kind. Matching
// is case-insensitive and checks the most specific signals first.
func ClassifyOAuthError(code, description string) OAuthErrorKind {
	text := strings.ToLower(code + " " + description)
	switch {
	case strings.TrimSpace(text) == "":
		return OAuthUnknown
	case strings.Contains(text, "already_exists"), strings.Contains(text, "already linked"):
		return OAuthAlreadyLinked
	case strings.Contains(text, "not_linked"):
		return OAuthNotLinked
	case strings.Contains(text, "general_unauthorized_scope"), strings.Contains(text, "missing scope"):
		return OAuthNeedsRelogin
	case strings.Contains(text, "access_denied"):
		return OAuthDenied
	case strings.Contains(text, "401"), strings.Contains(text, "unauthorized"):
		return OAuthSessionExpired
	default:
		return OAuthUnknown
	}
}

// Redirect is where the browser goes after a failed callback, and how long
// the error page stays up before it does.
type Redirect struct {
	Path  string
	Delay time.Duration
}

// RedirectFor returns the destination for kind. Linking starts from the
// settings page, signing in from the login page, so unclassified and denied
// errors return to where the flow began.
func RedirectFor(kind OAuthErrorKind, flow OAuthFlow) Redirect {
	origin := "/settings"
	if flow == FlowLogin {
		origin = "/login"
	}
	switch kind {
	case OAuthSessionExpired:
		return Redirect{Path: "/login?error=session_expired", Delay: 2 * time.Second}
	case OAuthNeedsRelogin:
		return Redirect{Path: "/login?error=needs_relogin", Delay: 2 * time.Second}
	case OAuthAlreadyLinked:
		return Redirect{Path: "/settings?error=already_linked", Delay: 3 * time.Second}
	case OAuthNotLinked:
		return Redirect{Path: "/login?error=not_linked", Delay: 3 * time.Second}
	case OAuthDenied:
		return Redirect{Path: origin}
	default:
		return Redirect{Path: origin + "?error=oauth_failed", Delay: 3 * time.Second}
	}
}
