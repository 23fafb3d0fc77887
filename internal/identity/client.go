// Package identity is the HTTP client of the identity, course and review
// API. It keeps the session cookie in its own jar, so a Client is one
// signed-in (or anonymous) browser.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sakif/course-review/internal/catalog"
	"github.com/sakif/course-review/internal/i18n"
	"github.com/sakif/course-review/internal/model"
)

// SessionCookie is the cookie that carries the access token.
const SessionCookie = "token"

const defaultTimeout = 15 * time.Second

type Client struct {
	http   *resty.Client
	jar    http.CookieJar
	base   *url.URL
	logger *slog.Logger
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("identity: invalid base URL %q", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("identity: creating cookie jar: %w", err)
	}
	rc := resty.New().
		SetBaseURL(base.String()).
		SetCookieJar(jar).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json")

	return &Client{http: rc, jar: jar, base: base, logger: logger}, nil
}

// call sends one request and decodes a 2xx JSON body into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any, configure ...func(*resty.Request)) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	for _, fn := range configure {
		fn(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	if resp.IsError() {
		e := errorFromResponse(resp.StatusCode(), resp.Body())
		c.logger.Debug("api call failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", e.Status),
			slog.String("kind", e.Kind.String()),
		)
		return e
	}
	return nil
}

func pathParam(name, value string) func(*resty.Request) {
	return func(r *resty.Request) { r.SetPathParam(name, value) }
}

func query(v url.Values) func(*resty.Request) {
	return func(r *resty.Request) { r.SetQueryParamsFromValues(v) }
}

// HasLocalSession reports whether the jar holds a session cookie. It does
// not prove the session is still valid.
func (c *Client) HasLocalSession() bool {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == SessionCookie && ck.Value != "" {
			return true
		}
	}
	return false
}

// SessionToken returns the session cookie value, or "" when there is none.
func (c *Client) SessionToken() string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == SessionCookie {
			return ck.Value
		}
	}
	return ""
}

// RestoreSession puts a token saved by SessionToken back into the jar.
func (c *Client) RestoreSession(token string) {
	if token == "" {
		return
	}
	c.jar.SetCookies(c.base, []*http.Cookie{{Name: SessionCookie, Value: token, Path: "/"}})
}

// ============================================================================
// Account
// ============================================================================

func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*model.Session, error) {
	var s model.Session
	body := map[string]any{"email": email, "password": password, "remember_me": rememberMe}
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) CreateAccount(ctx context.Context, email, password, name string) (*model.Session, error) {
	var s model.Session
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.call(ctx, http.MethodPost, "/api/auth/register", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// GetCurrentUser returns the session behind the cookie. A missing or expired
// session is a KindUnauthorized error.
func (c *Client) GetCurrentUser(ctx context.Context) (*model.Session, error) {
	var s model.Session
	if err := c.call(ctx, http.MethodGet, "/api/auth/me", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) UpdateUserName(ctx context.Context, name string) (*model.AuthUser, error) {
	var u model.AuthUser
	if err := c.call(ctx, http.MethodPut, "/api/auth/me/name", map[string]string{"name": name}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdatePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"current_password": current, "new_password": next}
	return c.call(ctx, http.MethodPut, "/api/auth/me/password", body, nil)
}

func (c *Client) CheckUsernameAvailability(ctx context.Context, name string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	err := c.call(ctx, http.MethodGet, "/api/auth/username-availability", nil, &out,
		query(url.Values{"name": {name}}))
	return out.Available, err
}

func (c *Client) SendStudentVerificationCode(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, "/api/auth/verification", map[string]string{"email": email}, nil)
}

func (c *Client) VerifyStudentCode(ctx context.Context, email, code string) error {
	body := map[string]string{"email": email, "code": code}
	return c.call(ctx, http.MethodPost, "/api/auth/verification/verify", body, nil)
}

func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, "/api/auth/password-reset", map[string]string{"email": email}, nil)
}

func (c *Client) ValidatePasswordResetToken(ctx context.Context, userID, secret string) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	err := c.call(ctx, http.MethodGet, "/api/auth/password-reset/validate", nil, &out,
		query(url.Values{"userId": {userID}, "secret": {secret}}))
	return out.Valid, err
}

func (c *Client) CompleteCustomPasswordReset(ctx context.Context, userID, secret, password string) error {
	body := map[string]string{"user_id": userID, "secret": secret, "password": password}
	return c.call(ctx, http.MethodPost, "/api/auth/password-reset/complete", body, nil)
}

// SetLanguage stores the UI language in the language cookie.
func (c *Client) SetLanguage(ctx context.Context, lang string) error {
	return c.call(ctx, http.MethodPut, "/api/language", map[string]string{"language": lang}, nil)
}

// GetTranslations fetches the flattened dictionary for lang. Its signature
// matches i18n.Source so a client-side i18n.Loader can use it directly.
func (c *Client) GetTranslations(ctx context.Context, lang string) (i18n.Dictionary, error) {
	var out i18n.Dictionary
	err := c.call(ctx, http.MethodGet, "/api/i18n/{lang}", nil, &out, pathParam("lang", lang))
	return out, err
}

// ============================================================================
// Courses and reviews
// ============================================================================

func (c *Client) GetAllCourses(ctx context.Context) ([]model.Course, error) {
	var out []model.Course
	err := c.call(ctx, http.MethodGet, "/api/courses", nil, &out)
	return out, err
}

func (c *Client) GetCourseTeachingRecords(ctx context.Context, courseCode string) ([]model.TeachingRecord, error) {
	var out []model.TeachingRecord
	err := c.call(ctx, http.MethodGet, "/api/courses/{code}/teaching-records", nil, &out,
		pathParam("code", courseCode))
	return out, err
}

func (c *Client) ListTerms(ctx context.Context) ([]model.Term, error) {
	var out []model.Term
	err := c.call(ctx, http.MethodGet, "/api/terms", nil, &out)
	return out, err
}

func (c *Client) GetTermByCode(ctx context.Context, code string) (*model.Term, error) {
	var t model.Term
	if err := c.call(ctx, http.MethodGet, "/api/terms/{code}", nil, &t, pathParam("code", code)); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) GetReviewByID(ctx context.Context, id string) (*model.Review, error) {
	var r model.Review
	if err := c.call(ctx, http.MethodGet, "/api/reviews/{id}", nil, &r, pathParam("id", id)); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) CreateReview(ctx context.Context, p model.ReviewPayload) (*model.Review, error) {
	var r model.Review
	if err := c.call(ctx, http.MethodPost, "/api/reviews", p, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) UpdateReview(ctx context.Context, id string, p model.ReviewPayload) (*model.Review, error) {
	var r model.Review
	if err := c.call(ctx, http.MethodPut, "/api/reviews/{id}", p, &r, pathParam("id", id)); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) DeleteReview(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/reviews/{id}", nil, nil, pathParam("id", id))
}

// GetUserReviews lists the reviews written by the signed-in user.
func (c *Client) GetUserReviews(ctx context.Context) ([]model.Review, error) {
	var out []model.Review
	err := c.call(ctx, http.MethodGet, "/api/me/reviews", nil, &out)
	return out, err
}

func (c *Client) ListCourses(ctx context.Context, q catalog.CourseQuery) (*catalog.Page[model.CourseListing], error) {
	var p catalog.Page[model.CourseListing]
	if err := c.call(ctx, http.MethodGet, "/api/listings/courses", nil, &p, query(q.Values())); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ListInstructors(ctx context.Context, q catalog.InstructorQuery) (*catalog.Page[model.InstructorListing], error) {
	var p catalog.Page[model.InstructorListing]
	if err := c.call(ctx, http.MethodGet, "/api/listings/instructors", nil, &p, query(q.Values())); err != nil {
		return nil, err
	}
	return &p, nil
}

// ============================================================================
// Favorites
// ============================================================================

func (c *Client) ListFavorites(ctx context.Context) ([]model.Favorite, error) {
	var out []model.Favorite
	err := c.call(ctx, http.MethodGet, "/api/me/favorites", nil, &out)
	return out, err
}

func (c *Client) AddFavorite(ctx context.Context, kind model.FavoriteKind, key string) error {
	body := map[string]string{"type": string(kind), "key": key}
	return c.call(ctx, http.MethodPost, "/api/me/favorites", body, nil)
}

func (c *Client) RemoveFavorite(ctx context.Context, kind model.FavoriteKind, key string) error {
	return c.call(ctx, http.MethodDelete, "/api/me/favorites/{type}/{key}", nil, nil,
		pathParam("type", string(kind)), pathParam("key", key))
}
