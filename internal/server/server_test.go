package server_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/course-review/internal/auth"
	"github.com/sakif/course-review/internal/catalog"
	"github.com/sakif/course-review/internal/config"
	"github.com/sakif/course-review/internal/identity"
	"github.com/sakif/course-review/internal/mail"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/server"
)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

type stubGoogle struct{}

func (stubGoogle) AuthURL(state string, _ auth.OAuthFlow) string {
	return "https://accounts.example/auth?state=" + state
}

func (stubGoogle) Exchange(context.Context, string, auth.OAuthFlow) (*auth.GoogleUser, error) {
	return nil, errors.New("oauth2: invalid_grant")
}

func testConfig(jwtSecret string) *config.Config {
	return &config.Config{
		Port:        8080,
		DBPath:      ":memory:",
		BaseURL:     "http://reviews.test",
		JWTSecret:   jwtSecret,
		SessionTTL:  time.Hour,
		RememberTTL: 24 * time.Hour,
	}
}

func newTestServer(t *testing.T, cfg *config.Config, deps server.Deps) (*server.Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := server.New(context.Background(), cfg, deps, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.DB().Close() })

	ctx := context.Background()
	db := s.DB()
	require.NoError(t, db.UpsertCourse(ctx, model.Course{Code: "BUS1001", TitleEN: "Business Fundamentals", Department: "Business", Language: "English"}))
	require.NoError(t, db.UpsertTerm(ctx, model.Term{Code: "2023-24 Term 1", Name: "2023-24 Term 1"}))
	require.NoError(t, db.UpsertInstructor(ctx, model.Instructor{Name: "Dr. LEE"}))
	require.NoError(t, db.AddTeachingRecord(ctx, model.TeachingRecord{
		CourseCode: "BUS1001", TermCode: "2023-24 Term 1", InstructorName: "Dr. LEE", SessionType: "Lecture",
	}))

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestServer_StudentJourney(t *testing.T) {
	_, ts := newTestServer(t, testConfig("server-test-secret-0123456789"), server.Deps{Mailer: &outbox{}})
	ctx := context.Background()

	client, err := identity.New(ts.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = client.GetCurrentUser(ctx)
	assert.True(t, identity.IsUnauthorized(err), "anonymous /me: %v", err)

	session, err := client.CreateAccount(ctx, "chan@ln.hk", "correct-horse", "chan")
	require.NoError(t, err)
	assert.Equal(t, "chan", session.User.Name)
	assert.True(t, client.HasLocalSession())

	me, err := client.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, me.User.ID)

	payload := model.ReviewPayload{
		CourseCode:        "BUS1001",
		TermCode:          "2023-24 Term 1",
		Workload:          model.MustScore(3),
		Difficulty:        model.NotApplicable(),
		Usefulness:        model.MustScore(4),
		FinalGrade:        "B+",
		Comments:          "Clear lectures and fair exams throughout the term.",
		InstructorDetails: `[{"instructor_name":"Dr. LEE","session_type":"Lecture","teaching":4,"grading":null,"comments":"Explains every concept with real examples."}]`,
		ReviewLanguage:    "en",
		IsAnon:            true,
	}
	created, err := client.CreateReview(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, created.UserID)

	mine, err := client.GetUserReviews(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	page, err := client.ListCourses(ctx, catalog.CourseQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Items[0].Stats.ReviewCount)
	assert.InDelta(t, 4.0, page.Items[0].Stats.AvgUsefulness, 0.001)

	require.NoError(t, client.AddFavorite(ctx, model.FavoriteCourse, "BUS1001"))
	favs, err := client.ListFavorites(ctx)
	require.NoError(t, err)
	assert.Len(t, favs, 1)

	require.NoError(t, client.Logout(ctx))
	assert.False(t, client.HasLocalSession())

	anon, err := client.GetReviewByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, anon.Username, "anonymous review seen by a signed-out reader")
}

func TestServer_Routes(t *testing.T) {
	get := func(t *testing.T, ts *httptest.Server, path string) *http.Response {
		t.Helper()
		client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("auth disabled keeps the catalog public", func(t *testing.T) {
		_, ts := newTestServer(t, testConfig(""), server.Deps{})

		assert.Equal(t, http.StatusOK, get(t, ts, "/healthz").StatusCode)
		assert.Equal(t, http.StatusOK, get(t, ts, "/api/courses").StatusCode)
		assert.Equal(t, http.StatusNotFound, get(t, ts, "/api/auth/me").StatusCode)
		assert.Equal(t, http.StatusNotFound, get(t, ts, "/oauth/google/login").StatusCode)
	})

	t.Run("protected routes need a session", func(t *testing.T) {
		_, ts := newTestServer(t, testConfig("server-test-secret-0123456789"), server.Deps{})

		assert.Equal(t, http.StatusUnauthorized, get(t, ts, "/api/me/reviews").StatusCode)
		assert.Equal(t, http.StatusUnauthorized, get(t, ts, "/oauth/google/link").StatusCode)
		assert.Equal(t, http.StatusNotFound, get(t, ts, "/oauth/google/login").StatusCode, "no Google credentials")
	})

	t.Run("Google login starts with a state cookie", func(t *testing.T) {
		_, ts := newTestServer(t, testConfig("server-test-secret-0123456789"), server.Deps{Google: stubGoogle{}})

		resp := get(t, ts, "/oauth/google/login")
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
		assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "https://accounts.example/auth?state="))
	})

	t.Run("negotiated language reaches the OAuth error page", func(t *testing.T) {
		_, ts := newTestServer(t, testConfig("server-test-secret-0123456789"), server.Deps{Google: stubGoogle{}})

		resp := get(t, ts, "/oauth/login-callback?state=x&code=y&lang=zh-TW")
		assert.Equal(t, "oauth_failed", resp.Header.Get("X-OAuth-Error"))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Google 登入失敗")
	})
}
