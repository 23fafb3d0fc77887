// Package session decides who the current user is. It reconciles the
// identity API's view of the session with the local hints a browser keeps
// (remember-me choice, per-tab markers, OAuth progress markers) and exposes
// login, registration, logout and refresh.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/course-review/internal/auth"
	"github.com/sakif/course-review/internal/events"
	"github.com/sakif/course-review/internal/identity"
	"github.com/sakif/course-review/internal/model"
)

// ErrStudentEmailRequired is returned by Register for addresses outside the
// student domains.
var ErrStudentEmailRequired = errors.New("session: a student email address is required")

// Notice message keys.
const (
	KeyLoginSuccess    = "auth.loginSuccess"
	KeyRegisterSuccess = "auth.registerSuccess"
	KeyLogoutSuccess   = "auth.logoutSuccess"
)

// IdentityAPI is the part of the identity API the reconciler uses.
type IdentityAPI interface {
	Login(ctx context.Context, email, password string, rememberMe bool) (*model.Session, error)
	CreateAccount(ctx context.Context, email, password, name string) (*model.Session, error)
	Logout(ctx context.Context) error
	GetCurrentUser(ctx context.Context) (*model.Session, error)
	HasLocalSession() bool
}

// Options tunes the reconciler. Zero fields use the defaults.
type Options struct {
	// MaxAttempts bounds session fetches when a local session exists.
	MaxAttempts int
	// RetryDelay is the linear backoff step: attempt n waits n*RetryDelay.
	RetryDelay time.Duration
	// MarkerCleanupDelay is how long the OAuth link markers outlive a
	// successful refresh.
	MarkerCleanupDelay time.Duration
	// RecentOAuthWindow is how long after an OAuth sign-in the remember-me
	// check stays bypassed.
	RecentOAuthWindow time.Duration
	// Path returns the current location path.
	Path func() string
	Now  func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
	if o.MarkerCleanupDelay <= 0 {
		o.MarkerCleanupDelay = 10 * time.Second
	}
	if o.RecentOAuthWindow <= 0 {
		o.RecentOAuthWindow = 2 * time.Minute
	}
	if o.Path == nil {
		o.Path = func() string { return "/" }
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Reconciler owns the current user. It is safe for concurrent use.
type Reconciler struct {
	api    IdentityAPI
	local  Storage
	tab    Storage
	bus    *events.Bus
	logger *slog.Logger
	opts   Options

	// One in-flight check and one in-flight refresh at a time; concurrent
	// callers wait for and share the running call's result.
	flights singleflight.Group

	mu        sync.RWMutex
	state     State
	user      *model.AuthUser
	sessionID string
	cleanup   *time.Timer
}

func NewReconciler(api IdentityAPI, local, tab Storage, bus *events.Bus, logger *slog.Logger, opts Options) *Reconciler {
	return &Reconciler{
		api:    api,
		local:  local,
		tab:    tab,
		bus:    bus,
		logger: logger,
		opts:   opts.withDefaults(),
	}
}

func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// User returns a copy of the current user, or nil when signed out.
func (r *Reconciler) User() *model.AuthUser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.user == nil {
		return nil
	}
	u := *r.user
	return &u
}

func (r *Reconciler) SessionID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessionID
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

func (r *Reconciler) setAuthenticated(s *model.Session) *model.AuthUser {
	u := s.User
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateAuthenticated
	r.user = &u
	r.sessionID = s.SessionID
	cp := u
	return &cp
}

func (r *Reconciler) setUnauthenticated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateUnauthenticated
	r.user = nil
	r.sessionID = ""
}

// ============================================================================
// Background reconciliation
// ============================================================================

// CheckUser works out who is signed in and returns the user, or nil.
// Errors are never returned: a session that cannot be confirmed counts as
// signed out.
//
// With a local session cookie the API is asked up to MaxAttempts times,
// stopping early on an unauthorized answer. Without one a single attempt is
// still made because cookie detection is not reliable.
func (r *Reconciler) CheckUser(ctx context.Context) *model.AuthUser {
	return r.shared(ctx, "checkUser", r.checkUser)
}

// shared runs fn once for all concurrent callers of key. The shared call is
// detached from the caller's cancellation so one caller giving up does not
// cut the others short; each caller still stops waiting when its own ctx
// ends. The API client's timeout bounds the shared call.
func (r *Reconciler) shared(ctx context.Context, key string, fn func(context.Context) *model.AuthUser) *model.AuthUser {
	detached := context.WithoutCancel(ctx)
	ch := r.flights.DoChan(key, func() (any, error) {
		return fn(detached), nil
	})
	select {
	case res := <-ch:
		u, _ := res.Val.(*model.AuthUser)
		return u
	case <-ctx.Done():
		return nil
	}
}

func (r *Reconciler) checkUser(ctx context.Context) *model.AuthUser {
	r.setState(StateChecking)

	attempts := 1
	if r.api.HasLocalSession() {
		attempts = r.opts.MaxAttempts
	}
	s, err := r.fetchSession(ctx, attempts)
	if err != nil {
		r.logger.Debug("session check: treating as signed out", slog.String("error", err.Error()))
		r.setUnauthenticated()
		return nil
	}

	if r.mustEndSession() {
		r.logger.Info("session check: remember-me declined and browser restarted, signing out",
			slog.String("userID", s.User.ID))
		r.endSession(ctx)
		return nil
	}

	u := r.setAuthenticated(s)
	if _, ok := r.local.Get(KeyNeedSessionRefresh); ok {
		r.bus.Publish(events.Event{Topic: events.ForceUserUpdate, UserID: u.ID})
		r.scheduleMarkerCleanup()
	}
	return u
}

// RefreshUser re-reads the session user. Without force a known user is
// returned as is. A successful refresh publishes ForceUserUpdate and clears
// the OAuth link markers after MarkerCleanupDelay.
func (r *Reconciler) RefreshUser(ctx context.Context, force bool) *model.AuthUser {
	if !force {
		if u := r.User(); u != nil {
			return u
		}
	}
	return r.shared(ctx, "refreshUser", r.refresh)
}

func (r *Reconciler) refresh(ctx context.Context) *model.AuthUser {
	s, err := r.fetchSession(ctx, r.opts.MaxAttempts)
	if err != nil {
		r.logger.Warn("session refresh failed", slog.String("error", err.Error()))
		r.setUnauthenticated()
		return nil
	}
	u := r.setAuthenticated(s)
	r.bus.Publish(events.Event{Topic: events.ForceUserUpdate, UserID: u.ID})
	r.scheduleMarkerCleanup()
	return u
}

func (r *Reconciler) fetchSession(ctx context.Context, attempts int) (*model.Session, error) {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var s *model.Session
		if s, err = r.api.GetCurrentUser(ctx); err == nil {
			return s, nil
		}
		if identity.IsUnauthorized(err) {
			return nil, err
		}
		if attempt < attempts {
			r.logger.Debug("session fetch failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			if err := sleep(ctx, time.Duration(attempt)*r.opts.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OAuthEvidence lists the signs that an OAuth round trip is in progress or
// just finished. Any of them suspends the remember-me check, because the
// per-tab marker is lost while the browser visits the provider.
type OAuthEvidence struct {
	LinkSuccess  bool // durable googleLinkSuccess marker
	OAuthSession bool // per-tab oauthSession marker
	OAuthPath    bool // currently on an /oauth/ route
	RecentLogin  bool // oauthLoginComplete within RecentOAuthWindow
}

func (e OAuthEvidence) Any() bool {
	return e.LinkSuccess || e.OAuthSession || e.OAuthPath || e.RecentLogin
}

func (r *Reconciler) Evidence() OAuthEvidence {
	var e OAuthEvidence
	_, e.LinkSuccess = r.local.Get(KeyGoogleLinkSuccess)
	_, e.OAuthSession = r.tab.Get(KeyOAuthSession)
	e.OAuthPath = strings.HasPrefix(r.opts.Path(), "/oauth/")
	if v, ok := r.tab.Get(KeyOAuthLoginComplete); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			age := r.opts.Now().Sub(time.UnixMilli(ms))
			e.RecentLogin = age >= 0 && age <= r.opts.RecentOAuthWindow
		}
	}
	return e
}

// mustEndSession applies the remember-me policy: a user who declined to be
// remembered and whose tab marker is gone has restarted the browser.
func (r *Reconciler) mustEndSession() bool {
	if v, ok := r.local.Get(KeyRememberMe); !ok || v != "false" {
		return false
	}
	if _, ok := r.tab.Get(KeySessionOnly); ok {
		return false
	}
	if e := r.Evidence(); e.Any() {
		r.logger.Debug("remember-me check bypassed for OAuth",
			slog.Bool("linkSuccess", e.LinkSuccess),
			slog.Bool("oauthSession", e.OAuthSession),
			slog.Bool("oauthPath", e.OAuthPath),
			slog.Bool("recentLogin", e.RecentLogin),
		)
		return false
	}
	return true
}

func (r *Reconciler) endSession(ctx context.Context) {
	if err := r.api.Logout(ctx); err != nil {
		r.logger.Warn("ending session: logout call failed", slog.String("error", err.Error()))
	}
	r.clearMarkers()
	r.setUnauthenticated()
}

func (r *Reconciler) scheduleMarkerCleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cleanup != nil {
		r.cleanup.Stop()
	}
	r.cleanup = time.AfterFunc(r.opts.MarkerCleanupDelay, func() {
		r.local.Delete(KeyGoogleLinkSuccess)
		r.local.Delete(KeyNeedSessionRefresh)
	})
}

func (r *Reconciler) clearMarkers() {
	r.mu.Lock()
	if r.cleanup != nil {
		r.cleanup.Stop()
		r.cleanup = nil
	}
	r.mu.Unlock()

	for _, k := range []string{KeyRememberMe, KeyGoogleLinkSuccess, KeyNeedSessionRefresh, KeyOAuthRedirectContext} {
		r.local.Delete(k)
	}
	for _, k := range []string{KeySessionOnly, KeyOAuthSession, KeyOAuthLoginComplete} {
		r.tab.Delete(k)
	}
}

// Close stops the pending marker cleanup, if any.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cleanup != nil {
		r.cleanup.Stop()
		r.cleanup = nil
	}
}

// ============================================================================
// User actions
// ============================================================================
//
// Unlike the background checks these return their errors so the caller can
// show them.

// Login signs in and records the remember-me choice.
func (r *Reconciler) Login(ctx context.Context, email, password string, rememberMe bool) (*model.AuthUser, error) {
	s, err := r.api.Login(ctx, email, password, rememberMe)
	if err != nil {
		return nil, err
	}
	r.rememberChoice(email, rememberMe)
	u := r.setAuthenticated(s)
	r.bus.Notify(events.LevelSuccess, KeyLoginSuccess)
	return u, nil
}

// Register creates a student account and signs it in. New accounts are
// remembered, matching the persistent cookie the server sets.
func (r *Reconciler) Register(ctx context.Context, email, password, name string) (*model.AuthUser, error) {
	if !auth.IsStudentEmail(email) {
		return nil, ErrStudentEmailRequired
	}
	s, err := r.api.CreateAccount(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	r.rememberChoice(email, true)
	u := r.setAuthenticated(s)
	r.bus.Notify(events.LevelSuccess, KeyRegisterSuccess)
	return u, nil
}

// Logout signs out. Local state is cleared even when the API call fails.
func (r *Reconciler) Logout(ctx context.Context) error {
	err := r.api.Logout(ctx)
	r.clearMarkers()
	r.setUnauthenticated()
	if err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	r.bus.Notify(events.LevelSuccess, KeyLogoutSuccess)
	return nil
}

func (r *Reconciler) rememberChoice(email string, remember bool) {
	if remember {
		r.local.Set(KeyRememberMe, "true")
		r.local.Set(KeySavedEmail, email)
		r.tab.Delete(KeySessionOnly)
		return
	}
	r.local.Set(KeyRememberMe, "false")
	r.local.Delete(KeySavedEmail)
	r.tab.Set(KeySessionOnly, "true")
}

// BeginOAuth remembers where to return after the provider round trip.
func (r *Reconciler) BeginOAuth(returnTo string) {
	r.local.Set(KeyOAuthRedirectContext, returnTo)
}

// TakeRedirectContext returns and forgets the path stored by BeginOAuth.
func (r *Reconciler) TakeRedirectContext() (string, bool) {
	v, ok := r.local.Get(KeyOAuthRedirectContext)
	if ok {
		r.local.Delete(KeyOAuthRedirectContext)
	}
	return v, ok
}

// CompleteOAuth records the finished flow and force-refreshes the user.
func (r *Reconciler) CompleteOAuth(ctx context.Context, flow auth.OAuthFlow) *model.AuthUser {
	switch flow {
	case auth.FlowLink:
		r.local.Set(KeyGoogleLinkSuccess, "true")
		r.local.Set(KeyNeedSessionRefresh, "true")
	case auth.FlowLogin:
		r.tab.Set(KeyOAuthSession, "true")
		r.tab.Set(KeyOAuthLoginComplete, strconv.FormatInt(r.opts.Now().UnixMilli(), 10))
	}
	return r.RefreshUser(ctx, true)
}
