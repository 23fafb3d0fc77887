// Package review holds the review submission and edit form: the draft state
// with its selection cascade, validation, payload building, preview and the
// Form controller that talks to the course API.
package review

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sakif/course-review/internal/model"
)

// ErrNotSelected is returned when an instructor action targets a pair that
// is not selected.
var ErrNotSelected = errors.New("review: instructor not selected")

// Aspect names a rated field of the draft.
type Aspect string

const (
	AspectWorkload   Aspect = "workload"
	AspectDifficulty Aspect = "difficulty"
	AspectUsefulness Aspect = "usefulness"
	AspectTeaching   Aspect = "teaching"
	AspectGrading    Aspect = "grading"
)

// Requirement is a course-requirement flag of an instructor evaluation.
type Requirement string

const (
	RequirementMidterm              Requirement = "midterm"
	RequirementQuiz                 Requirement = "quiz"
	RequirementGroupProject         Requirement = "group_project"
	RequirementIndividualAssignment Requirement = "individual_assignment"
	RequirementPresentation         Requirement = "presentation"
	RequirementReading              Requirement = "reading"
	RequirementAttendance           Requirement = "attendance"
)

// Requirements lists the flags in display order.
var Requirements = []Requirement{
	RequirementMidterm, RequirementQuiz, RequirementGroupProject,
	RequirementIndividualAssignment, RequirementPresentation,
	RequirementReading, RequirementAttendance,
}

func requirementField(e *model.InstructorEvaluation, r Requirement) *bool {
	switch r {
	case RequirementMidterm:
		return &e.HasMidterm
	case RequirementQuiz:
		return &e.HasQuiz
	case RequirementGroupProject:
		return &e.HasGroupProject
	case RequirementIndividualAssignment:
		return &e.HasIndividualAssignment
	case RequirementPresentation:
		return &e.HasPresentation
	case RequirementReading:
		return &e.HasReading
	case RequirementAttendance:
		return &e.HasAttendanceRequirement
	}
	return nil
}

// Draft is the complete state of a review being written.
//
// Course, term and instructor selection are only reachable through the
// selection actions. The evaluations are the selection: there is exactly one
// evaluation per selected (instructor, session type) key, kept in the order
// the instructors were ticked.
type Draft struct {
	EditReviewID string

	courseCode  string
	termCode    string
	evaluations []model.InstructorEvaluation

	Workload   model.Rating
	Difficulty model.Rating
	Usefulness model.Rating
	Grade      string

	CourseComments string

	HasServiceLearning         bool
	ServiceLearningType        model.ServiceLearningType
	ServiceLearningDescription string

	Anonymous bool
	Language  string
}

func (d *Draft) CourseCode() string { return d.courseCode }
func (d *Draft) TermCode() string   { return d.termCode }

// IsEdit reports whether the draft edits an existing review.
func (d *Draft) IsEdit() bool { return d.EditReviewID != "" }

// SelectCourse changes the course. A different course clears the term and
// every instructor evaluation.
func (d *Draft) SelectCourse(code string) {
	if code == d.courseCode {
		return
	}
	d.courseCode = code
	d.termCode = ""
	d.evaluations = nil
}

// SelectTerm changes the term. A different term clears every instructor
// evaluation.
func (d *Draft) SelectTerm(code string) {
	if code == d.termCode {
		return
	}
	d.termCode = code
	d.evaluations = nil
}

func (d *Draft) index(key model.InstructorKey) int {
	return slices.IndexFunc(d.evaluations, func(e model.InstructorEvaluation) bool {
		return e.Key() == key
	})
}

// ToggleInstructor selects key with a blank evaluation, or deselects it and
// drops its evaluation. It reports whether key is selected afterwards.
func (d *Draft) ToggleInstructor(key model.InstructorKey) bool {
	if i := d.index(key); i >= 0 {
		d.evaluations = slices.Delete(d.evaluations, i, i+1)
		return false
	}
	name, session := key.Split()
	d.evaluations = append(d.evaluations, model.InstructorEvaluation{
		InstructorName: name,
		SessionType:    session,
	})
	return true
}

func (d *Draft) IsSelected(key model.InstructorKey) bool {
	return d.index(key) >= 0
}

// SelectedInstructors returns the selected keys in selection order.
func (d *Draft) SelectedInstructors() []model.InstructorKey {
	keys := make([]model.InstructorKey, len(d.evaluations))
	for i, e := range d.evaluations {
		keys[i] = e.Key()
	}
	return keys
}

// Evaluations returns a copy of the instructor evaluations.
func (d *Draft) Evaluations() []model.InstructorEvaluation {
	return slices.Clone(d.evaluations)
}

func (d *Draft) Evaluation(key model.InstructorKey) (model.InstructorEvaluation, bool) {
	if i := d.index(key); i >= 0 {
		return d.evaluations[i], true
	}
	return model.InstructorEvaluation{}, false
}

func (d *Draft) evaluation(key model.InstructorKey) (*model.InstructorEvaluation, error) {
	i := d.index(key)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotSelected, key)
	}
	return &d.evaluations[i], nil
}

// SetRating sets a course-level rating.
func (d *Draft) SetRating(a Aspect, r model.Rating) error {
	switch a {
	case AspectWorkload:
		d.Workload = r
	case AspectDifficulty:
		d.Difficulty = r
	case AspectUsefulness:
		d.Usefulness = r
	default:
		return fmt.Errorf("review: %q is not a course rating", a)
	}
	return nil
}

// SetInstructorScore sets the teaching or grading score of a selected pair.
func (d *Draft) SetInstructorScore(key model.InstructorKey, a Aspect, r model.Rating) error {
	e, err := d.evaluation(key)
	if err != nil {
		return err
	}
	switch a {
	case AspectTeaching:
		e.TeachingScore = r
	case AspectGrading:
		e.GradingScore = r
	default:
		return fmt.Errorf("review: %q is not an instructor rating", a)
	}
	return nil
}

func (d *Draft) SetInstructorComments(key model.InstructorKey, comments string) error {
	e, err := d.evaluation(key)
	if err != nil {
		return err
	}
	e.Comments = comments
	return nil
}

func (d *Draft) SetRequirement(key model.InstructorKey, r Requirement, on bool) error {
	e, err := d.evaluation(key)
	if err != nil {
		return err
	}
	f := requirementField(e, r)
	if f == nil {
		return fmt.Errorf("review: unknown requirement %q", r)
	}
	*f = on
	return nil
}

// SetServiceLearning turns service learning on or off. Turning it off keeps
// the type and description so they come back if it is turned on again; they
// are never submitted while off.
func (d *Draft) SetServiceLearning(on bool, t model.ServiceLearningType, description string) {
	d.HasServiceLearning = on
	if on {
		d.ServiceLearningType = t
		d.ServiceLearningDescription = description
	}
}

// Hydrate replaces the whole draft with the contents of an existing review in
// one step. On error the draft is left as it was.
func (d *Draft) Hydrate(r model.Review) error {
	evals, err := r.Evaluations()
	if err != nil {
		return fmt.Errorf("review: loading %s: %w", r.ID, err)
	}
	next := Draft{
		EditReviewID: r.ID,
		courseCode:   r.CourseCode,
		termCode:     r.TermCode,
		evaluations:  evals,
		Workload:     r.Workload,
		Difficulty:   r.Difficulty,
		Usefulness:   r.Usefulness,
		Grade:        r.FinalGrade,

		CourseComments:     r.Comments,
		HasServiceLearning: r.HasServiceLearning,
		Anonymous:          r.IsAnon,
		Language:           r.ReviewLanguage,
	}
	if r.HasServiceLearning && r.ServiceLearningDescription != nil {
		next.ServiceLearningType, next.ServiceLearningDescription = model.DecodeServiceLearning(*r.ServiceLearningDescription)
	} else if r.HasServiceLearning {
		next.ServiceLearningType = model.ServiceLearningCompulsory
	}
	*d = next
	return nil
}

// Clone returns a deep copy of the draft.
func (d *Draft) Clone() Draft {
	c := *d
	c.evaluations = slices.Clone(d.evaluations)
	return c
}
