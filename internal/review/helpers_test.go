package review

import (
	"context"
	"fmt"
	"sync"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/model"
)

const (
	tenWords  = "This course was really useful for my business studies overall"
	fourWords = "Not enough words here"
)

var leeLecture = model.NewInstructorKey("Dr. Lee", "Lecture")

func bus1001Records() []model.TeachingRecord {
	return []model.TeachingRecord{
		{CourseCode: "BUS1001", TermCode: "2023-24 Term 1", InstructorName: "Dr. Lee", SessionType: "Lecture"},
		{CourseCode: "BUS1001", TermCode: "2023-24 Term 1", InstructorName: "Ms. Chan", SessionType: "Tutorial"},
		{CourseCode: "BUS1001", TermCode: "2023-24 Term 2", InstructorName: "Dr. Wong", SessionType: "Lecture"},
	}
}

// validDraft returns a draft that passes every rule.
func validDraft() *Draft {
	d := &Draft{}
	d.SelectCourse("BUS1001")
	d.SelectTerm("2023-24 Term 1")
	d.ToggleInstructor(leeLecture)
	d.Workload = model.MustScore(3)
	d.Difficulty = model.MustScore(2.5)
	d.Usefulness = model.MustScore(4)
	d.Grade = "A-"
	d.CourseComments = tenWords
	_ = d.SetInstructorScore(leeLecture, AspectTeaching, model.MustScore(4))
	_ = d.SetInstructorComments(leeLecture, tenWords)
	return d
}

// ============================================================================
// fakeCourseAPI
// ============================================================================

type fakeCourseAPI struct {
	mu      sync.Mutex
	records map[string][]model.TeachingRecord
	reviews map[string]*model.Review

	// gates block GetCourseTeachingRecords for a course until closed or the
	// context is cancelled. started receives the course code on entry.
	gates   map[string]chan struct{}
	started chan string

	recordCalls int
	created     []model.ReviewPayload
	updated     map[string]model.ReviewPayload
	createErr   error
}

func newFakeCourseAPI() *fakeCourseAPI {
	return &fakeCourseAPI{
		records: map[string][]model.TeachingRecord{"BUS1001": bus1001Records()},
		reviews: make(map[string]*model.Review),
		gates:   make(map[string]chan struct{}),
		updated: make(map[string]model.ReviewPayload),
	}
}

func (f *fakeCourseAPI) GetCourseTeachingRecords(ctx context.Context, courseCode string) ([]model.TeachingRecord, error) {
	f.mu.Lock()
	f.recordCalls++
	gate := f.gates[courseCode]
	recs := f.records[courseCode]
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- courseCode
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return recs, nil
}

func (f *fakeCourseAPI) GetReviewByID(_ context.Context, id string) (*model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[id]
	if !ok {
		return nil, apperror.NotFound("review", id)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeCourseAPI) CreateReview(_ context.Context, p model.ReviewPayload) (*model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, p)
	r := &model.Review{ID: fmt.Sprintf("r%d", len(f.created)), ReviewPayload: p}
	f.reviews[r.ID] = r
	return r, nil
}

func (f *fakeCourseAPI) UpdateReview(_ context.Context, id string, p model.ReviewPayload) (*model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reviews[id]; !ok {
		return nil, apperror.NotFound("review", id)
	}
	f.updated[id] = p
	r := &model.Review{ID: id, ReviewPayload: p}
	f.reviews[id] = r
	return r, nil
}
