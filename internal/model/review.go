package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GradeNotApplicable is the final-grade sentinel for "prefer not to say".
const GradeNotApplicable = "-1"

// Grades lists the accepted letter grades in display order.
var Grades = []string{"A", "A-", "B+", "B", "B-", "C+", "C", "C-", "D+", "D", "F", "P", GradeNotApplicable}

// IsValidGrade reports whether g is a letter grade or the N/A sentinel.
func IsValidGrade(g string) bool {
	for _, v := range Grades {
		if v == g {
			return true
		}
	}
	return false
}

// InstructorEvaluation is the part of a review about one instructor in one
// session type.
type InstructorEvaluation struct {
	InstructorName           string `json:"instructor_name"`
	SessionType              string `json:"session_type"`
	TeachingScore            Rating `json:"teaching"`
	GradingScore             Rating `json:"grading"`
	Comments                 string `json:"comments"`
	HasMidterm               bool   `json:"has_midterm"`
	HasQuiz                  bool   `json:"has_quiz"`
	HasGroupProject          bool   `json:"has_group_project"`
	HasIndividualAssignment  bool   `json:"has_individual_assignment"`
	HasPresentation          bool   `json:"has_presentation"`
	HasReading               bool   `json:"has_reading"`
	HasAttendanceRequirement bool   `json:"has_attendance_requirement"`
}

// Key identifies the evaluated (instructor, session type) pair.
func (e InstructorEvaluation) Key() InstructorKey {
	return NewInstructorKey(e.InstructorName, e.SessionType)
}

// EncodeInstructorDetails serializes evaluations into the JSON string stored
// in the instructor_details column. A nil slice encodes as "[]".
func EncodeInstructorDetails(evals []InstructorEvaluation) (string, error) {
	if evals == nil {
		evals = []InstructorEvaluation{}
	}
	b, err := json.Marshal(evals)
	if err != nil {
		return "", fmt.Errorf("model: encoding instructor details: %w", err)
	}
	return string(b), nil
}

// ErrInvalidInstructorDetails is returned when a stored instructor_details
// string cannot be used.
var ErrInvalidInstructorDetails = errors.New("invalid instructor details")

// ParseInstructorDetails parses and validates the instructor_details string
// of a persisted review.
func ParseInstructorDetails(s string) ([]InstructorEvaluation, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidInstructorDetails)
	}
	var evals []InstructorEvaluation
	if err := json.Unmarshal([]byte(s), &evals); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInstructorDetails, err)
	}
	seen := make(map[InstructorKey]bool, len(evals))
	for i, e := range evals {
		if strings.TrimSpace(e.InstructorName) == "" || strings.TrimSpace(e.SessionType) == "" {
			return nil, fmt.Errorf("%w: entry %d has no instructor or session type", ErrInvalidInstructorDetails, i)
		}
		if seen[e.Key()] {
			return nil, fmt.Errorf("%w: duplicate entry for %s", ErrInvalidInstructorDetails, e.Key())
		}
		seen[e.Key()] = true
	}
	return evals, nil
}

// ReviewPayload is the create/update request body.
type ReviewPayload struct {
	UserID                     string  `json:"user_id"`
	IsAnon                     bool    `json:"is_anon"`
	Username                   string  `json:"username"`
	CourseCode                 string  `json:"course_code"`
	TermCode                   string  `json:"term_code"`
	Workload                   Rating  `json:"course_workload"`
	Difficulty                 Rating  `json:"course_difficulties"`
	Usefulness                 Rating  `json:"course_usefulness"`
	FinalGrade                 string  `json:"course_final_grade"`
	Comments                   string  `json:"course_comments"`
	HasServiceLearning         bool    `json:"has_service_learning"`
	ServiceLearningDescription *string `json:"service_learning_description,omitempty"`
	SubmittedAt                string  `json:"submitted_at"`
	InstructorDetails          string  `json:"instructor_details"`
	ReviewLanguage             string  `json:"review_language"`
}

// Review is a persisted review.
type Review struct {
	ID string `json:"review_id"`
	ReviewPayload
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Evaluations parses the stored instructor details.
func (r *Review) Evaluations() ([]InstructorEvaluation, error) {
	return ParseInstructorDetails(r.InstructorDetails)
}

// Anonymized blanks the author fields of an anonymous review for readers
// other than its author.
func (r Review) Anonymized() Review {
	if r.IsAnon {
		r.UserID = ""
		r.Username = ""
	}
	return r
}
