package review

import (
	"fmt"
	"strings"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/model"
)

// Message keys shown for a failed validation. Everything that is not a word
// count or instructor validity problem shares KeyFillAllFields.
const (
	KeyFillAllFields               = "review.fillAllFields"
	KeyCourseCommentsWordCount     = "review.courseCommentsWordCount"
	KeyInstructorCommentsWordCount = "review.instructorCommentsWordCount"
	KeyServiceLearningWordCount    = "review.serviceLearningWordCount"
	KeyInvalidInstructor           = "review.invalidInstructor"
)

// Rule numbers, in the order they are checked.
const (
	RuleSelection = iota + 1
	RuleCourseRatings
	RuleGrade
	RuleCourseComments
	RuleInstructors
	RuleServiceLearning
	RuleTeachingRecords
)

// ValidationError is the first rule a draft failed.
type ValidationError struct {
	Rule       int
	Field      string
	MessageKey string
	Detail     string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("review: %s: %s (%s)", e.Field, e.MessageKey, e.Detail)
	}
	return fmt.Sprintf("review: %s: %s", e.Field, e.MessageKey)
}

// Unwrap lets callers treat every rule failure as apperror.ErrValidation.
func (e *ValidationError) Unwrap() error { return apperror.ErrValidation }

func fail(rule int, field, key string) *ValidationError {
	return &ValidationError{Rule: rule, Field: field, MessageKey: key}
}

// Validate checks the draft rules in order and returns the first failure.
func Validate(d *Draft) error {
	switch {
	case d.courseCode == "":
		return fail(RuleSelection, "course", KeyFillAllFields)
	case d.termCode == "":
		return fail(RuleSelection, "term", KeyFillAllFields)
	case len(d.evaluations) == 0:
		return fail(RuleSelection, "instructors", KeyFillAllFields)
	}

	for _, r := range []struct {
		field string
		val   model.Rating
	}{
		{"workload", d.Workload},
		{"difficulty", d.Difficulty},
		{"usefulness", d.Usefulness},
	} {
		if !r.val.IsSet() {
			return fail(RuleCourseRatings, r.field, KeyFillAllFields)
		}
	}

	if !model.IsValidGrade(d.Grade) {
		return fail(RuleGrade, "grade", KeyFillAllFields)
	}

	if strings.TrimSpace(d.CourseComments) == "" {
		return fail(RuleCourseComments, "courseComments", KeyFillAllFields)
	}
	if !inWordRange(d.CourseComments) {
		return fail(RuleCourseComments, "courseComments", KeyCourseCommentsWordCount)
	}

	for _, e := range d.evaluations {
		field := "instructors." + string(e.Key())
		if !e.TeachingScore.IsSet() {
			return fail(RuleInstructors, field+".teaching", KeyFillAllFields)
		}
		if strings.TrimSpace(e.Comments) == "" {
			return fail(RuleInstructors, field+".comments", KeyFillAllFields)
		}
		if !inWordRange(e.Comments) {
			return fail(RuleInstructors, field+".comments", KeyInstructorCommentsWordCount)
		}
	}

	if d.HasServiceLearning {
		desc := strings.TrimSpace(d.ServiceLearningDescription)
		switch d.ServiceLearningType {
		case model.ServiceLearningCompulsory:
			if desc == "" {
				return fail(RuleServiceLearning, "serviceLearningDescription", KeyFillAllFields)
			}
			if !inWordRange(desc) {
				return fail(RuleServiceLearning, "serviceLearningDescription", KeyServiceLearningWordCount)
			}
		case model.ServiceLearningOptional:
			if CountWords(desc) > MaxWords {
				return fail(RuleServiceLearning, "serviceLearningDescription", KeyServiceLearningWordCount)
			}
		default:
			return fail(RuleServiceLearning, "serviceLearningType", KeyFillAllFields)
		}
	}
	return nil
}

// CheckInstructors verifies that every key is taught in course during term
// according to records.
func CheckInstructors(records []model.TeachingRecord, course, term string, keys []model.InstructorKey) error {
	offered := make(map[model.InstructorKey]bool, len(records))
	for _, r := range records {
		if r.CourseCode == course && r.TermCode == term {
			offered[r.Key()] = true
		}
	}
	for _, k := range keys {
		if !offered[k] {
			e := fail(RuleTeachingRecords, "instructors", KeyInvalidInstructor)
			e.Detail = string(k)
			return e
		}
	}
	return nil
}

// ValidatePayload runs the draft rules over a submitted request body.
func ValidatePayload(p model.ReviewPayload) error {
	var d Draft
	if err := d.Hydrate(model.Review{ReviewPayload: p}); err != nil {
		e := fail(RuleInstructors, "instructor_details", KeyFillAllFields)
		e.Detail = err.Error()
		return e
	}
	return Validate(&d)
}
