package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/auth"
	"github.com/sakif/course-review/internal/cache"
	"github.com/sakif/course-review/internal/mail"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository/sqlite"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. Auth tests run
// against it so they stay fast and show exactly what the store does.
type fakeUserRepo struct {
	users  map[string]*model.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User) error {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperror.Conflict("user", "email already registered")
		}
		if strings.EqualFold(existing.Name, u.Name) {
			return apperror.Conflict("user", "name already taken")
		}
	}
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	copied := *u
	f.users[u.ID] = &copied
	return nil
}

func (f *fakeUserRepo) get(match func(*model.User) bool, what string) (*model.User, error) {
	for _, u := range f.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", what)
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return f.get(func(u *model.User) bool { return u.ID == id }, id)
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return f.get(func(u *model.User) bool { return u.Email == email }, email)
}

func (f *fakeUserRepo) GetUserByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	return f.get(func(u *model.User) bool { return googleID != "" && u.GoogleID == googleID }, googleID)
}

func (f *fakeUserRepo) NameTaken(_ context.Context, name, exceptID string) (bool, error) {
	for _, u := range f.users {
		if u.ID != exceptID && strings.EqualFold(u.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) update(id string, fn func(*model.User)) error {
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	fn(u)
	return nil
}

func (f *fakeUserRepo) UpdateUserName(_ context.Context, id, name string) error {
	return f.update(id, func(u *model.User) { u.Name = name })
}

func (f *fakeUserRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return f.update(id, func(u *model.User) { u.PasswordHash = hash })
}

func (f *fakeUserRepo) SetEmailVerified(_ context.Context, id string) error {
	return f.update(id, func(u *model.User) { u.EmailVerified = true })
}

func (f *fakeUserRepo) LinkGoogle(_ context.Context, id, googleID, googleEmail string) error {
	for _, u := range f.users {
		if u.ID != id && u.GoogleID == googleID {
			return apperror.Conflict("user", "google account already linked")
		}
	}
	return f.update(id, func(u *model.User) { u.GoogleID, u.GoogleEmail = googleID, googleEmail })
}

// fakeTokenRepo keeps verification codes and password resets in maps.
type fakeTokenRepo struct {
	codes  map[string]*model.VerificationCode
	resets []*model.PasswordReset
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{codes: make(map[string]*model.VerificationCode)}
}

func (f *fakeTokenRepo) SaveVerificationCode(_ context.Context, v *model.VerificationCode) error {
	copied := *v
	f.codes[v.Email] = &copied
	return nil
}

func (f *fakeTokenRepo) GetVerificationCode(_ context.Context, email string) (*model.VerificationCode, error) {
	v, ok := f.codes[email]
	if !ok {
		return nil, apperror.NotFound("verification code", email)
	}
	copied := *v
	return &copied, nil
}

func (f *fakeTokenRepo) IncrementVerificationAttempts(_ context.Context, email string) error {
	if v, ok := f.codes[email]; ok {
		v.Attempts++
	}
	return nil
}

func (f *fakeTokenRepo) MarkEmailVerified(_ context.Context, email string, at time.Time) error {
	if v, ok := f.codes[email]; ok {
		v.VerifiedAt = &at
	}
	return nil
}

func (f *fakeTokenRepo) CreatePasswordReset(_ context.Context, p *model.PasswordReset) error {
	p.ID = fmt.Sprintf("reset-%d", len(f.resets)+1)
	p.CreatedAt = time.Now()
	copied := *p
	f.resets = append(f.resets, &copied)
	return nil
}

func (f *fakeTokenRepo) LatestPasswordReset(_ context.Context, userID string) (*model.PasswordReset, error) {
	for i := len(f.resets) - 1; i >= 0; i-- {
		if f.resets[i].UserID == userID {
			copied := *f.resets[i]
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("password reset", userID)
}

func (f *fakeTokenRepo) MarkPasswordResetUsed(_ context.Context, id string, at time.Time) error {
	for _, r := range f.resets {
		if r.ID == id {
			r.UsedAt = &at
			return nil
		}
	}
	return apperror.NotFound("password reset", id)
}

// fakeMailer records every message instead of sending it.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last(t *testing.T) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no email was sent")
	}
	return m.sent[len(m.sent)-1]
}

var (
	codePattern   = regexp.MustCompile(`\b\d{6}\b`)
	secretPattern = regexp.MustCompile(`secret=([0-9a-f]{64})`)
)

// fakeGoogle maps authorization codes to Google users.
type fakeGoogle struct {
	users map[string]*auth.GoogleUser
}

func (g *fakeGoogle) Exchange(_ context.Context, code string, _ auth.OAuthFlow) (*auth.GoogleUser, error) {
	u, ok := g.users[code]
	if !ok {
		return nil, fmt.Errorf("oauth2: invalid_grant")
	}
	return u, nil
}

// countingCache is a NopCatalogCache that counts invalidations.
type countingCache struct {
	cache.NopCatalogCache
	invalidations int
}

func (c *countingCache) Invalidate(context.Context) error {
	c.invalidations++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type authFixture struct {
	svc    *AuthService
	users  *fakeUserRepo
	codes  *fakeTokenRepo
	mailer *fakeMailer
	now    time.Time
}

// newTestAuthService wires an AuthService with fakes and a pinned clock.
// bcrypt runs at its minimum cost so the tests stay fast.
func newTestAuthService(t *testing.T, cfg AuthConfig) *authFixture {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.RememberTTL == 0 {
		cfg.RememberTTL = 30 * 24 * time.Hour
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://reviews.test"
	}
	f := &authFixture{
		users:  newFakeUserRepo(),
		codes:  newFakeTokenRepo(),
		mailer: &fakeMailer{},
		now:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewAuthService(f.users, f.codes, ts, auth.NewPasswordServiceForTest(4), f.mailer, cfg, testLogger())
	f.svc.now = func() time.Time { return f.now }
	return f
}

// register creates an active account and fails the test on error.
func (f *authFixture) register(t *testing.T, email, name string) *AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), email, "correct-horse", name)
	if err != nil {
		t.Fatalf("Register(%s) error = %v", email, err)
	}
	return res
}

// newTestStore opens an in-memory database with one course, one term and
// two instructors teaching it.
func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}
	must(db.UpsertCourse(ctx, model.Course{Code: "BUS1001", TitleEN: "Business Fundamentals", Department: "Business", Language: "English"}))
	must(db.UpsertCourse(ctx, model.Course{Code: "CDS2001", TitleEN: "Data Structures", Department: "Data Science", Language: "English"}))
	must(db.UpsertTerm(ctx, model.Term{Code: "2023-24 Term 1", Name: "2023-24 Term 1"}))
	must(db.UpsertTerm(ctx, model.Term{Code: "2023-24 Term 2", Name: "2023-24 Term 2"}))
	must(db.UpsertInstructor(ctx, model.Instructor{Name: "Dr. LEE", Title: "Lecturer", Department: "Business"}))
	must(db.UpsertInstructor(ctx, model.Instructor{Name: "Dr. WONG", Title: "Professor", Department: "Data Science"}))
	must(db.AddTeachingRecord(ctx, model.TeachingRecord{CourseCode: "BUS1001", TermCode: "2023-24 Term 1", InstructorName: "Dr. LEE", SessionType: "Lecture"}))
	must(db.AddTeachingRecord(ctx, model.TeachingRecord{CourseCode: "BUS1001", TermCode: "2023-24 Term 1", InstructorName: "Dr. WONG", SessionType: "Tutorial"}))
	must(db.AddTeachingRecord(ctx, model.TeachingRecord{CourseCode: "CDS2001", TermCode: "2023-24 Term 2", InstructorName: "Dr. WONG", SessionType: "Lecture"}))
	return db
}

// createStoreUser inserts an account straight into the store.
func createStoreUser(t *testing.T, db *sqlite.DB, email, name string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Name: name, PasswordHash: "x", Active: true}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

// validPayload passes every review rule for BUS1001 with Dr. LEE's lecture.
func validPayload() model.ReviewPayload {
	return model.ReviewPayload{
		CourseCode:        "BUS1001",
		TermCode:          "2023-24 Term 1",
		Workload:          model.MustScore(3),
		Difficulty:        model.NotApplicable(),
		Usefulness:        model.MustScore(4.5),
		FinalGrade:        "B+",
		Comments:          "Clear lectures and fair exams throughout the term.",
		InstructorDetails: `[{"instructor_name":"Dr. LEE","session_type":"Lecture","teaching":4,"grading":null,"comments":"Explains every concept with real examples."}]`,
		ReviewLanguage:    "en",
	}
}
