package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/course-review/internal/config"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/server"
	"github.com/sakif/course-review/internal/session"
)

const bus1001Draft = `
course: BUS1001
term: 2023-24 Term 1
anonymous: true
workload: 3
difficulty: na
usefulness: 4.5
grade: B+
comments: Clear lectures and fair exams throughout the term.
phrases: [course.overall.recommend]
instructors:
  - name: Dr. LEE
    session: Lecture
    teaching: 4
    grading: na
    comments: Explains every concept with real examples.
    requirements: [midterm]
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Port:        8080,
		DBPath:      ":memory:",
		BaseURL:     "http://reviews.test",
		JWTSecret:   "reviewctl-test-secret-0123456789",
		SessionTTL:  time.Hour,
		RememberTTL: 24 * time.Hour,
	}
	s, err := server.New(context.Background(), cfg, server.Deps{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
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
	return ts
}

func stubPassword(t *testing.T, password string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(password), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

// cli runs reviewctl against ts with one profile file, like a user running
// commands one after another.
func cli(t *testing.T, ts *httptest.Server, profilePath string) func(args ...string) (string, error) {
	return func(args ...string) (string, error) {
		var out bytes.Buffer
		args = append([]string{"-server", ts.URL, "-profile", profilePath}, args...)
		err := run(context.Background(), args, &out, io.Discard)
		return out.String(), err
	}
}

func TestRun_StudentJourney(t *testing.T) {
	ts := newTestServer(t)
	dir := t.TempDir()
	profilePath := filepath.Join(dir, "profile.yaml")
	reviewctl := cli(t, ts, profilePath)
	stubPassword(t, "correct-horse")

	out, err := reviewctl("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "not signed in")

	out, err = reviewctl("register", "-email", "chan@ln.hk", "-name", "chan")
	require.NoError(t, err, out)
	assert.Contains(t, out, "signed in as chan <chan@ln.hk>")

	// The session survives into the next run through the profile.
	out, err = reviewctl("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "chan <chan@ln.hk>")

	draft := filepath.Join(dir, "bus1001.yaml")
	require.NoError(t, os.WriteFile(draft, []byte(bus1001Draft), 0o600))

	out, err = reviewctl("review", "-file", draft, "-preview")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"course_code": "BUS1001"`)
	assert.Contains(t, out, "Would recommend")
	assert.NotContains(t, out, "not ready to submit")

	out, err = reviewctl("reviews")
	require.NoError(t, err)
	assert.NotContains(t, out, "BUS1001", "preview must not submit")

	out, err = reviewctl("review", "-file", draft)
	require.NoError(t, err, out)
	assert.Regexp(t, `review \S+ saved`, out)

	out, err = reviewctl("reviews")
	require.NoError(t, err)
	assert.Regexp(t, `BUS1001\s+2023-24 Term 1\s+B\+`, out)

	out, err = reviewctl("courses", "-query", "sort=reviews&order=desc")
	require.NoError(t, err)
	assert.Regexp(t, `BUS1001\s+Business Fundamentals\s+1\s+3\.0`, out)
	assert.Contains(t, out, "page 1 of 1, 1 courses")

	out, err = reviewctl("review", "-file", draft)
	require.Error(t, err, "one review per course and term")

	_, err = reviewctl("favorite", "-key", "BUS1001")
	require.NoError(t, err)
	out, err = reviewctl("favorites")
	require.NoError(t, err)
	assert.Contains(t, out, "course\tBUS1001")

	_, err = reviewctl("logout")
	require.NoError(t, err)
	out, err = reviewctl("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "not signed in")

	// Registration remembered the email, so login needs no -email.
	out, err = reviewctl("login")
	require.NoError(t, err, out)
	assert.Contains(t, out, "signed in as chan")
}

func TestRun_ReviewNeedsSignIn(t *testing.T) {
	ts := newTestServer(t)
	dir := t.TempDir()
	draft := filepath.Join(dir, "bus1001.yaml")
	require.NoError(t, os.WriteFile(draft, []byte(bus1001Draft), 0o600))

	_, err := cli(t, ts, filepath.Join(dir, "profile.yaml"))("review", "-file", draft)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}

func TestRun_ProfileIsPerServer(t *testing.T) {
	ts := newTestServer(t)
	profilePath := filepath.Join(t.TempDir(), "profile.yaml")
	stubPassword(t, "correct-horse")

	_, err := cli(t, ts, profilePath)("register", "-email", "chan@ln.hk", "-name", "chan")
	require.NoError(t, err)

	p, err := loadProfile(profilePath)
	require.NoError(t, err)
	assert.Equal(t, ts.URL, p.Server)
	assert.NotEmpty(t, p.Session)
	assert.Equal(t, "true", p.Local[session.KeyRememberMe])

	p.forServer("http://elsewhere.test")
	assert.Empty(t, p.Session)
	assert.Empty(t, p.Local)
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), nil, &out, io.Discard)
	assert.ErrorIs(t, err, errHelp)
	assert.Contains(t, out.String(), "Usage: reviewctl")

	err = run(context.Background(), []string{"-lang", "fr", "whoami"}, &out, io.Discard)
	assert.ErrorContains(t, err, `unsupported language "fr"`)
}
