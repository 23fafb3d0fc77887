package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/events"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/phrase"
)

var (
	// ErrStale is returned by a fetch whose selection was superseded before
	// the response arrived. Its result was discarded.
	ErrStale = errors.New("review: selection changed")
	// ErrSubmitting is returned when Submit is called while a submit runs.
	ErrSubmitting = errors.New("review: submit already in progress")
	// ErrUnknownInstructor is returned when toggling a pair the course does
	// not offer in the selected term.
	ErrUnknownInstructor = errors.New("review: instructor not offered in this term")
)

// Notice message keys published by the form.
const (
	KeySubmitted    = "review.submitted"
	KeyUpdated      = "review.updated"
	KeySubmitFailed = "review.submitFailed"
)

// CourseAPI is the part of the course data API the form needs.
type CourseAPI interface {
	GetCourseTeachingRecords(ctx context.Context, courseCode string) ([]model.TeachingRecord, error)
	GetReviewByID(ctx context.Context, id string) (*model.Review, error)
	CreateReview(ctx context.Context, p model.ReviewPayload) (*model.Review, error)
	UpdateReview(ctx context.Context, id string, p model.ReviewPayload) (*model.Review, error)
}

// Form drives a Draft against the course API. All methods are safe for
// concurrent use.
type Form struct {
	api    CourseAPI
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	draft      Draft
	records    []model.TeachingRecord
	gen        uint64
	cancel     context.CancelFunc
	submitting bool
}

func NewForm(api CourseAPI, bus *events.Bus, logger *slog.Logger) *Form {
	return &Form{
		api:    api,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// Draft returns a copy of the current draft.
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.Clone()
}

// Update applies fn to the draft. Changing the course inside fn drops the
// loaded teaching records; use SelectCourse to load new ones.
func (f *Form) Update(fn func(d *Draft) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	course := f.draft.courseCode
	if err := fn(&f.draft); err != nil {
		return err
	}
	if f.draft.courseCode != course {
		f.supersede()
		f.records = nil
	}
	return nil
}

// supersede invalidates any in-flight fetch. Callers hold f.mu.
func (f *Form) supersede() uint64 {
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	return f.gen
}

// SelectCourse selects code and loads its teaching records. A newer
// selection cancels this fetch and its response is dropped with ErrStale.
func (f *Form) SelectCourse(ctx context.Context, code string) error {
	f.mu.Lock()
	f.draft.SelectCourse(code)
	gen := f.supersede()
	f.records = nil
	fetchCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()

	records, err := f.api.GetCourseTeachingRecords(fetchCtx, code)

	f.mu.Lock()
	defer f.mu.Unlock()
	cancel()
	if gen != f.gen {
		f.logger.Debug("dropping stale teaching records", slog.String("course", code))
		return ErrStale
	}
	f.cancel = nil
	if err != nil {
		return fmt.Errorf("loading teaching records for %s: %w", code, err)
	}
	f.records = records
	return nil
}

// Terms returns the terms the selected course was taught in, in record
// order.
func (f *Form) Terms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var terms []string
	for _, r := range f.records {
		if !slices.Contains(terms, r.TermCode) {
			terms = append(terms, r.TermCode)
		}
	}
	return terms
}

// Instructors returns the (instructor, session type) pairs offered in the
// selected term.
func (f *Form) Instructors() []model.InstructorKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offered()
}

func (f *Form) offered() []model.InstructorKey {
	var keys []model.InstructorKey
	for _, r := range f.records {
		if r.TermCode == f.draft.termCode && !slices.Contains(keys, r.Key()) {
			keys = append(keys, r.Key())
		}
	}
	return keys
}

func (f *Form) SelectTerm(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.SelectTerm(code)
}

// ToggleInstructor toggles a pair offered in the selected term.
func (f *Form) ToggleInstructor(key model.InstructorKey) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.draft.IsSelected(key) && !slices.Contains(f.offered(), key) {
		return false, fmt.Errorf("%w: %s", ErrUnknownInstructor, key)
	}
	return f.draft.ToggleInstructor(key), nil
}

// TogglePhrase adds or removes a canned phrase in the course comments, or in
// the comments for key when the phrase is about teaching.
func (f *Form) TogglePhrase(id string, key model.InstructorKey, lang string) error {
	ph, ok := phrase.Lookup(id)
	if !ok {
		return fmt.Errorf("review: unknown phrase %q", id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if ph.Target == phrase.TargetCourse {
		f.draft.CourseComments = phrase.Toggle(f.draft.CourseComments, ph, lang)
		return nil
	}
	e, err := f.draft.evaluation(key)
	if err != nil {
		return err
	}
	e.Comments = phrase.Toggle(e.Comments, ph, lang)
	return nil
}

// LoadForEdit fetches review id and replaces the draft with it. Only the
// author may edit a review.
func (f *Form) LoadForEdit(ctx context.Context, id string, user model.AuthUser) error {
	r, err := f.api.GetReviewByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading review %s: %w", id, err)
	}
	if r.UserID != user.ID {
		return apperror.Forbidden("you can only edit your own reviews")
	}
	records, err := f.api.GetCourseTeachingRecords(ctx, r.CourseCode)
	if err != nil {
		return fmt.Errorf("loading teaching records for %s: %w", r.CourseCode, err)
	}

	var d Draft
	if err := d.Hydrate(*r); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.supersede()
	f.draft = d
	f.records = records
	return nil
}

// Submit validates the draft, re-checks the selected instructors against
// fresh teaching records and creates or updates the review. On any failure
// the draft is unchanged and an error notice is published.
func (f *Form) Submit(ctx context.Context, user model.AuthUser) (*model.Review, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmitting
	}
	if err := Validate(&f.draft); err != nil {
		f.mu.Unlock()
		f.notifyFailure(err)
		return nil, err
	}
	d := f.draft.Clone()
	f.submitting = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	saved, err := f.submit(ctx, &d, user)
	if err != nil {
		f.logger.Warn("review submit failed",
			slog.String("course", d.courseCode),
			slog.String("term", d.termCode),
			slog.String("error", err.Error()),
		)
		f.notifyFailure(err)
		return nil, err
	}

	f.bus.Publish(events.Event{Topic: events.UserStatsUpdated, UserID: user.ID})
	if d.IsEdit() {
		f.bus.Notify(events.LevelSuccess, KeyUpdated)
	} else {
		f.bus.Notify(events.LevelSuccess, KeySubmitted)
	}
	return saved, nil
}

func (f *Form) submit(ctx context.Context, d *Draft, user model.AuthUser) (*model.Review, error) {
	records, err := f.api.GetCourseTeachingRecords(ctx, d.courseCode)
	if err != nil {
		return nil, fmt.Errorf("re-checking teaching records: %w", err)
	}
	if err := CheckInstructors(records, d.courseCode, d.termCode, d.SelectedInstructors()); err != nil {
		return nil, err
	}
	p, err := BuildPayload(d, user, f.now())
	if err != nil {
		return nil, err
	}
	if d.IsEdit() {
		return f.api.UpdateReview(ctx, d.EditReviewID, p)
	}
	return f.api.CreateReview(ctx, p)
}

func (f *Form) notifyFailure(err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		f.bus.Notify(events.LevelError, ve.MessageKey)
		return
	}
	f.bus.Notify(events.LevelError, KeySubmitFailed)
}
