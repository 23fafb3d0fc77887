package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/auth"
	"github.com/sakif/course-review/internal/i18n"
	"github.com/sakif/course-review/internal/service"
)

const stateCookie = "oauth_state"

// Where the browser lands after a successful callback. The client reads the
// query flag to finish its own bookkeeping (see session.CompleteOAuth).
const (
	linkSuccessPath  = "/settings?oauth=linked"
	loginSuccessPath = "/?oauth=login"
)

// AuthURLer builds the provider consent URL.
type AuthURLer interface {
	AuthURL(state string, flow auth.OAuthFlow) string
}

// OAuthHandler runs the two Google flows.
//
// LINK VS LOGIN:
// Linking attaches a Google identity to the account that is already signed
// in; it starts from the settings page and returns to /oauth/callback.
// Login signs in with an identity that was linked before; it starts from the
// login page and returns to /oauth/login-callback. Google never creates
// accounts, every account starts with a student email.
//
// FAILURES:
// Every failure is classified once into an auth.OAuthErrorKind. Errors
// Google reports in the query string go through auth.ClassifyOAuthError;
// errors from our own services are matched with errors.Is (see oauthKind).
// The kind decides where the browser goes and how long the message stays up
// (sent as a Refresh header).
type OAuthHandler struct {
	provider AuthURLer
	oauth    *service.OAuthService
	texts    *i18n.Loader
	cookies  CookieConfig
	logger   *slog.Logger
}

func NewOAuthHandler(provider AuthURLer, oauth *service.OAuthService, texts *i18n.Loader, cookies CookieConfig, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{provider: provider, oauth: oauth, texts: texts, cookies: cookies, logger: logger}
}

// start stores a random state in a short-lived cookie and sends the browser
// to Google. The callback only proceeds when Google echoes the same state,
// which proves the flow was started here (CSRF protection).
func (h *OAuthHandler) start(w http.ResponseWriter, r *http.Request, flow auth.OAuthFlow) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/oauth",
		MaxAge:   600, // 10 minutes to approve
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthURL(state, flow), http.StatusTemporaryRedirect)
}

// HTTP: GET /oauth/google/link
// Auth: Required
func (h *OAuthHandler) HandleLinkStart(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, auth.FlowLink)
}

// HTTP: GET /oauth/google/login
func (h *OAuthHandler) HandleLoginStart(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, auth.FlowLogin)
}

// callbackCode checks state and provider errors and returns the code. On
// failure it has already answered the request.
func (h *OAuthHandler) callbackCode(w http.ResponseWriter, r *http.Request, flow auth.OAuthFlow) (string, bool) {
	q := r.URL.Query()

	ck, err := r.Cookie(stateCookie)
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/oauth", MaxAge: -1})
	if err != nil || ck.Value == "" || q.Get("state") != ck.Value {
		h.logger.Warn("oauth callback: state mismatch", slog.String("flow", string(flow)))
		h.fail(w, r, flow, auth.OAuthUnknown)
		return "", false
	}

	if code := q.Get("error"); code != "" {
		kind := auth.ClassifyOAuthError(code, q.Get("error_description"))
		h.logger.Info("oauth callback: provider error",
			slog.String("flow", string(flow)),
			slog.String("error", code),
			slog.String("kind", kind.String()),
		)
		h.fail(w, r, flow, kind)
		return "", false
	}

	code := q.Get("code")
	if code == "" {
		h.fail(w, r, flow, auth.OAuthUnknown)
		return "", false
	}
	return code, true
}

// HandleLinkCallback finishes linking.
//
// HTTP: GET /oauth/callback?code=...&state=...
//
// FLOW:
//  1. State and provider error checks
//  2. Signed-in user required, otherwise the session expired mid-flow
//  3. Exchange the code and attach the Google identity
//  4. Back to the settings page
func (h *OAuthHandler) HandleLinkCallback(w http.ResponseWriter, r *http.Request) {
	code, ok := h.callbackCode(w, r, auth.FlowLink)
	if !ok {
		return
	}
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.fail(w, r, auth.FlowLink, auth.OAuthSessionExpired)
		return
	}
	if _, err := h.oauth.LinkGoogle(r.Context(), userID, code); err != nil {
		h.failWith(w, r, auth.FlowLink, err)
		return
	}
	http.Redirect(w, r, linkSuccessPath, http.StatusSeeOther)
}

// HandleLoginCallback finishes signing in. OAuth sessions are always
// persistent.
//
// HTTP: GET /oauth/login-callback?code=...&state=...
func (h *OAuthHandler) HandleLoginCallback(w http.ResponseWriter, r *http.Request) {
	code, ok := h.callbackCode(w, r, auth.FlowLogin)
	if !ok {
		return
	}
	res, err := h.oauth.LoginWithGoogle(r.Context(), code)
	if err != nil {
		h.failWith(w, r, auth.FlowLogin, err)
		return
	}
	h.cookies.setSession(w, res.Token, true)
	http.Redirect(w, r, loginSuccessPath, http.StatusSeeOther)
}

// oauthKind maps an OAuthService error to its kind. A failed code exchange
// falls through to OAuthUnknown.
func oauthKind(err error) auth.OAuthErrorKind {
	switch {
	case errors.Is(err, service.ErrGoogleAlreadyLinked):
		return auth.OAuthAlreadyLinked
	case errors.Is(err, service.ErrGoogleNotLinked):
		return auth.OAuthNotLinked
	case errors.Is(err, apperror.ErrUnauthorized):
		// The signed-in user vanished or was disabled mid-flow.
		return auth.OAuthSessionExpired
	default:
		return auth.OAuthUnknown
	}
}

func (h *OAuthHandler) failWith(w http.ResponseWriter, r *http.Request, flow auth.OAuthFlow, err error) {
	kind := oauthKind(err)
	h.logger.Warn("oauth callback failed",
		slog.String("flow", string(flow)),
		slog.String("kind", kind.String()),
		slog.String("error", err.Error()),
	)
	h.fail(w, r, flow, kind)
}

// fail sends the browser to the destination for kind. Kinds with a delay
// get a short message page that refreshes to the destination.
func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request, flow auth.OAuthFlow, kind auth.OAuthErrorKind) {
	dest := auth.RedirectFor(kind, flow)
	if dest.Delay <= 0 {
		http.Redirect(w, r, dest.Path, http.StatusSeeOther)
		return
	}
	msg := h.texts.T(i18n.FromContext(r.Context()), kind.MessageKey())
	w.Header().Set("Refresh", fmt.Sprintf("%d; url=%s", int(dest.Delay.Seconds()), dest.Path))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-OAuth-Error", kind.String())
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "%s\n\n%s\n", msg, dest.Path)
}
