package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository/sqlite"
	"github.com/sakif/course-review/internal/review"
)

func newTestReviewService(t *testing.T) (*ReviewService, *sqlite.DB, *countingCache) {
	t.Helper()
	db := newTestStore(t)
	c := &countingCache{}
	svc := NewReviewService(db, db, db, c, testLogger())
	svc.now = func() time.Time { return time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC) }
	return svc, db, c
}

func TestReviewCreate(t *testing.T) {
	svc, db, c := newTestReviewService(t)
	u := createStoreUser(t, db, "chan@ln.hk", "chan")

	p := validPayload()
	p.UserID = "someone-else"
	p.Username = "spoofed"
	p.SubmittedAt = "1999-01-01T00:00:00Z"

	r, err := svc.Create(context.Background(), u.ID, p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if r.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if r.UserID != u.ID || r.Username != "chan" {
		t.Errorf("author = %q/%q, want the session user", r.UserID, r.Username)
	}
	if r.SubmittedAt != "2024-01-10T08:00:00Z" {
		t.Errorf("SubmittedAt = %q, want server time", r.SubmittedAt)
	}
	if c.invalidations != 1 {
		t.Errorf("cache invalidations = %d, want 1", c.invalidations)
	}

	_, err = svc.Create(context.Background(), u.ID, validPayload())
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second Create() error = %v, want ErrConflict", err)
	}
}

func TestReviewCreate_TrimsComments(t *testing.T) {
	svc, db, _ := newTestReviewService(t)
	u := createStoreUser(t, db, "chan@ln.hk", "chan")

	p := validPayload()
	p.Comments = "  Clear lectures and fair exams throughout the term.\n"
	p.InstructorDetails = `[{"instructor_name":"Dr. LEE","session_type":"Lecture","teaching":4,"grading":null,"comments":"  Explains every concept with real examples.\n "}]`

	r, err := svc.Create(context.Background(), u.ID, p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if r.Comments != "Clear lectures and fair exams throughout the term." {
		t.Errorf("Comments = %q, want trimmed", r.Comments)
	}
	evals, err := model.ParseInstructorDetails(r.InstructorDetails)
	if err != nil {
		t.Fatalf("ParseInstructorDetails() error = %v", err)
	}
	if len(evals) != 1 || evals[0].Comments != "Explains every concept with real examples." {
		t.Errorf("instructor comments = %+v, want trimmed", evals)
	}
}

func TestReviewCreate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.ReviewPayload)
		wantKey string
	}{
		{
			name:    "short course comment",
			mutate:  func(p *model.ReviewPayload) { p.Comments = "too short" },
			wantKey: review.KeyCourseCommentsWordCount,
		},
		{
			name:    "unrated workload",
			mutate:  func(p *model.ReviewPayload) { p.Workload = model.Unrated() },
			wantKey: review.KeyFillAllFields,
		},
		{
			name: "instructor not teaching that term",
			mutate: func(p *model.ReviewPayload) {
				p.InstructorDetails = `[{"instructor_name":"Dr. WONG","session_type":"Lecture","teaching":3,"comments":"Explains every concept with real examples."}]`
			},
			wantKey: review.KeyInvalidInstructor,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, c := newTestReviewService(t)
			u := createStoreUser(t, db, "chan@ln.hk", "chan")
			p := validPayload()
			tt.mutate(&p)

			_, err := svc.Create(context.Background(), u.ID, p)
			var ve *review.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Create() error = %v, want *review.ValidationError", err)
			}
			if ve.MessageKey != tt.wantKey {
				t.Errorf("MessageKey = %q, want %q", ve.MessageKey, tt.wantKey)
			}
			if c.invalidations != 0 {
				t.Error("cache invalidated for a rejected review")
			}
		})
	}
}

func TestReviewCreate_UnknownCourseOrTerm(t *testing.T) {
	svc, db, _ := newTestReviewService(t)
	u := createStoreUser(t, db, "chan@ln.hk", "chan")

	p := validPayload()
	p.TermCode = "2099-00 Term 9"
	if _, err := svc.Create(context.Background(), u.ID, p); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("unknown term error = %v, want ErrValidation", err)
	}
	p = validPayload()
	p.CourseCode = "XYZ9999"
	if _, err := svc.Create(context.Background(), u.ID, p); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("unknown course error = %v, want ErrValidation", err)
	}
}

func TestReviewUpdateAndDelete_OwnerOnly(t *testing.T) {
	svc, db, c := newTestReviewService(t)
	owner := createStoreUser(t, db, "chan@ln.hk", "chan")
	other := createStoreUser(t, db, "wong@ln.hk", "wong")
	ctx := context.Background()

	r, err := svc.Create(ctx, owner.ID, validPayload())
	if err != nil {
		t.Fatal(err)
	}

	p := validPayload()
	p.FinalGrade = "A"
	if _, err := svc.Update(ctx, other.ID, r.ID, p); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Update by other error = %v, want ErrForbidden", err)
	}
	updated, err := svc.Update(ctx, owner.ID, r.ID, p)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.FinalGrade != "A" || updated.ID != r.ID {
		t.Errorf("updated = %+v", updated)
	}

	moved := validPayload()
	moved.CourseCode = "CDS2001"
	if _, err := svc.Update(ctx, owner.ID, r.ID, moved); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update changing course error = %v, want ErrValidation", err)
	}

	if err := svc.Delete(ctx, other.ID, r.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Delete by other error = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(ctx, owner.ID, r.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, owner.ID, r.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
	if c.invalidations != 3 {
		t.Errorf("cache invalidations = %d, want 3", c.invalidations)
	}
}

func TestReviewAnonymity(t *testing.T) {
	svc, db, _ := newTestReviewService(t)
	owner := createStoreUser(t, db, "chan@ln.hk", "chan")
	ctx := context.Background()

	p := validPayload()
	p.IsAnon = true
	r, err := svc.Create(ctx, owner.ID, p)
	if err != nil {
		t.Fatal(err)
	}

	mine, err := svc.Get(ctx, owner.ID, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if mine.Username != "chan" {
		t.Errorf("owner sees Username = %q, want chan", mine.Username)
	}

	theirs, err := svc.Get(ctx, "", r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if theirs.Username != "" || theirs.UserID != "" {
		t.Errorf("visitor sees author %q/%q of an anonymous review", theirs.UserID, theirs.Username)
	}

	list, err := svc.ListByCourse(ctx, "", "BUS1001")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Username != "" {
		t.Errorf("ListByCourse() = %+v, want one anonymized review", list)
	}

	own, err := svc.ListByUser(ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 1 || own[0].Username != "chan" {
		t.Errorf("ListByUser() = %+v, want the author's own review", own)
	}

	if _, err := svc.ListByCourse(ctx, "", "NOPE0000"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ListByCourse(unknown) error = %v, want ErrNotFound", err)
	}
}
