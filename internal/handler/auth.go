package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/auth"
	"github.com/sakif/course-review/internal/service"
)

// AuthHandler serves the account endpoints under /api/auth.
//
// HANDLER RESPONSIBILITIES:
//   - register / login / logout   → issue or clear the session cookie
//   - me, me/name, me/password    → the signed-in user's profile
//   - username-availability       → live check for the registration form
//   - verification, verify        → student email codes
//   - password-reset/*            → emailed reset links
//
// SESSION COOKIE:
// The JWT lives in an HttpOnly cookie. A remember-me login gets a
// persistent cookie that expires with the token; otherwise the cookie has no
// expiry and the browser drops it when it closes.
type AuthHandler struct {
	accounts *service.AuthService
	validate *Validator
	cookies  CookieConfig
	logger   *slog.Logger
}

// CookieConfig controls the attributes of the cookies the API sets.
type CookieConfig struct {
	// Secure should be true whenever the site is served over HTTPS.
	Secure bool
}

func NewAuthHandler(accounts *service.AuthService, validate *Validator, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, validate: validate, cookies: cookies, logger: logger}
}

func (c CookieConfig) setSession(w http.ResponseWriter, tok *auth.Token, persistent bool) {
	ck := &http.Cookie{
		Name:     auth.CookieName,
		Value:    tok.Value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if persistent {
		ck.Expires = tok.ExpiresAt
		ck.MaxAge = int(time.Until(tok.ExpiresAt).Seconds())
	}
	http.SetCookie(w, ck)
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ============================================================================
// Request bodies
// ============================================================================

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name"     validate:"required"`
}

type loginRequest struct {
	Email      string `json:"email"       validate:"required,email"`
	Password   string `json:"password"    validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

type nameRequest struct {
	Name string `json:"name" validate:"required"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,nefield=CurrentPassword"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code"  validate:"required,len=6,numeric"`
}

type completeResetRequest struct {
	UserID   string `json:"user_id"  validate:"required"`
	Secret   string `json:"secret"   validate:"required,hexadecimal"`
	Password string `json:"password" validate:"required"`
}

// ============================================================================
// Registration and sign-in
// ============================================================================

// HandleRegister creates a student account and signs it in with a
// persistent (remember-me) session.
//
// HTTP: POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.validate.bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.accounts.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cookies.setSession(w, res.Token, true)
	writeJSON(w, http.StatusCreated, res.Session())
}

// HandleLogin checks the password and sets the session cookie.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.validate.bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.accounts.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cookies.setSession(w, res.Token, req.RememberMe)
	writeJSON(w, http.StatusOK, res.Session())
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/auth/logout
//
// WHY POST AND NOT GET?
// Logout changes state. A GET could be triggered by a prefetch or an <img>
// on another site.
//
// Tokens are stateless, so "logout" means deleting the cookie. The token
// stays valid until it expires, but the browser no longer sends it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.clearSession(w)
	writeMessage(w, http.StatusOK, "logged out")
}

// HandleMe returns the current session.
//
// HTTP: GET /api/auth/me
// Auth: Required
//
// The client calls this on every page load to reconcile its local hint
// with the real session, so a deleted or disabled account also clears the
// cookie here.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	tok, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}
	user, err := h.accounts.CurrentUser(r.Context(), tok.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.cookies.clearSession(w)
		}
		writeError(w, err)
		return
	}
	res := service.AuthResult{User: user, Token: tok}
	writeJSON(w, http.StatusOK, res.Session())
}

// ============================================================================
// Profile
// ============================================================================

// HTTP: PUT /api/auth/me/name
func (h *AuthHandler) HandleUpdateName(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req nameRequest
	if err := h.validate.bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.accounts.UpdateName(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.AuthUser())
}

// HTTP: PUT /api/auth/me/password
func (h *AuthHandler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req passwordRequest
	if err := h.validate.bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.accounts.UpdatePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "password updated")
}

// HTTP: GET /api/auth/username-availability?name=...
func (h *AuthHandler) HandleNameAvailability(w http.ResponseWriter, r *http.Request) {
	available, err := h.accounts.NameAvailable(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// ============================================================================
// Student email verification
// ============================================================================

// HTTP: POST /api/auth/verification
func (h *AuthHandler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := h.validate.bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.accounts.SendVerificationCode(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusAccepted, "verification code sent")
}

// HTTP: POST /api/auth/verification/verify
func (h *AuthHandler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := h.validate.bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.accounts.VerifyCode(r.Context(), req.Email, req.Code); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "email verified")
}

// ============================================================================
// Password reset
// ============================================================================

// HandleRequestReset always answers 202 for well-formed emails, whether or
// not an account exists.
//
// HTTP: POST /api/auth/password-reset
func (h *AuthHandler) HandleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := h.validate.bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusAccepted, "if the account exists, a reset link was sent")
}

// HTTP: GET /api/auth/password-reset/validate?userId=...&secret=...
func (h *AuthHandler) HandleValidateReset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	valid, err := h.accounts.ValidatePasswordReset(r.Context(), q.Get("userId"), q.Get("secret"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// HTTP: POST /api/auth/password-reset/complete
func (h *AuthHandler) HandleCompleteReset(w http.ResponseWriter, r *http.Request) {
	var req completeResetRequest
	if err := h.validate.bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.accounts.CompletePasswordReset(r.Context(), req.UserID, req.Secret, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "password updated")
}
