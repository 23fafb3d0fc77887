package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/course-review/internal/auth"
	"github.com/sakif/course-review/internal/cache"
	"github.com/sakif/course-review/internal/handler"
	"github.com/sakif/course-review/internal/mail"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository/sqlite"
	"github.com/sakif/course-review/internal/service"
)

// recordingMailer keeps sent messages for inspection.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// testEnv holds real services over an in-memory database.
type testEnv struct {
	db       *sqlite.DB
	tokens   *auth.TokenService
	mailer   *recordingMailer
	accounts *service.AuthService
	validate *handler.Validator
	logger   *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	mailer := &recordingMailer{}
	accounts := service.NewAuthService(db, db, tokens, auth.NewPasswordServiceForTest(4), mailer, service.AuthConfig{
		SessionTTL:  time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
		BaseURL:     "http://reviews.test",
	}, logger)

	return &testEnv{
		db:       db,
		tokens:   tokens,
		mailer:   mailer,
		accounts: accounts,
		validate: handler.NewValidator(),
		logger:   logger,
	}
}

// seedCatalog adds BUS1001, taught by Dr. LEE (Lecture) in 2023-24 Term 1.
func (e *testEnv) seedCatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.db.UpsertCourse(ctx, model.Course{Code: "BUS1001", TitleEN: "Business Fundamentals", TitleTC: "商業基礎", Department: "Business", Language: "English"}))
	require.NoError(t, e.db.UpsertCourse(ctx, model.Course{Code: "ACC2001", TitleEN: "Accounting", TitleTC: "會計", Department: "Business", Language: "English"}))
	require.NoError(t, e.db.UpsertTerm(ctx, model.Term{Code: "2023-24 Term 1", Name: "2023-24 Term 1"}))
	require.NoError(t, e.db.UpsertInstructor(ctx, model.Instructor{Name: "Dr. LEE", Title: "Lecturer"}))
	require.NoError(t, e.db.AddTeachingRecord(ctx, model.TeachingRecord{
		CourseCode: "BUS1001", TermCode: "2023-24 Term 1", InstructorName: "Dr. LEE", SessionType: "Lecture",
	}))
}

// signup registers a student and returns the issued session.
func (e *testEnv) signup(t *testing.T, email, name string) *service.AuthResult {
	t.Helper()
	res, err := e.accounts.Register(context.Background(), email, "correct-horse", name)
	require.NoError(t, err)
	return res
}

func (e *testEnv) reviews() *handler.ReviewHandler {
	svc := service.NewReviewService(e.db, e.db, e.db, cache.NopCatalogCache{}, e.logger)
	return handler.NewReviewHandler(svc, e.logger)
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// asUser attaches a validated session, as RequireAuth would.
func asUser(r *http.Request, tok *auth.Token) *http.Request {
	return r.WithContext(auth.WithToken(r.Context(), tok))
}

// withParams sets chi URL parameters, as the router would.
func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

const validReview = `{
	"course_code": "BUS1001",
	"term_code": "2023-24 Term 1",
	"course_workload": 3,
	"course_difficulties": -1,
	"course_usefulness": 4.5,
	"course_final_grade": "B+",
	"course_comments": "Clear lectures and fair exams throughout the term.",
	"has_service_learning": false,
	"instructor_details": "[{\"instructor_name\":\"Dr. LEE\",\"session_type\":\"Lecture\",\"teaching\":4,\"grading\":null,\"comments\":\"Explains every concept with real examples.\"}]",
	"review_language": "en",
	"is_anon": true
}`
