package review

import (
	"strings"
	"time"

	"github.com/sakif/course-review/internal/model"
)

// DefaultLanguage is used when a draft does not record its language.
const DefaultLanguage = "en"

// BuildPayload turns a draft into the create/update request body. Comments
// are sent trimmed, as Validate measured them. It does not validate; callers
// run Validate first.
func BuildPayload(d *Draft, user model.AuthUser, now time.Time) (model.ReviewPayload, error) {
	evals := make([]model.InstructorEvaluation, len(d.evaluations))
	for i, e := range d.evaluations {
		e.Comments = strings.TrimSpace(e.Comments)
		evals[i] = e
	}
	details, err := model.EncodeInstructorDetails(evals)
	if err != nil {
		return model.ReviewPayload{}, err
	}
	lang := d.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	p := model.ReviewPayload{
		UserID:             user.ID,
		IsAnon:             d.Anonymous,
		Username:           user.Name,
		CourseCode:         d.courseCode,
		TermCode:           d.termCode,
		Workload:           d.Workload,
		Difficulty:         d.Difficulty,
		Usefulness:         d.Usefulness,
		FinalGrade:         d.Grade,
		Comments:           strings.TrimSpace(d.CourseComments),
		HasServiceLearning: d.HasServiceLearning,
		SubmittedAt:        now.UTC().Format(time.RFC3339),
		InstructorDetails:  details,
		ReviewLanguage:     lang,
	}
	if d.HasServiceLearning {
		desc := model.EncodeServiceLearning(d.ServiceLearningType, d.ServiceLearningDescription)
		p.ServiceLearningDescription = &desc
	}
	return p, nil
}
