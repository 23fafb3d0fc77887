package review

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/model"
)

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Draft)
		rule    int
		wantKey string
	}{
		{"no course", func(d *Draft) { d.SelectCourse("") }, RuleSelection, KeyFillAllFields},
		{"no term", func(d *Draft) { d.SelectTerm("") }, RuleSelection, KeyFillAllFields},
		{"no instructor", func(d *Draft) { d.ToggleInstructor(leeLecture) }, RuleSelection, KeyFillAllFields},
		{"workload unrated", func(d *Draft) { d.Workload = model.Unrated() }, RuleCourseRatings, KeyFillAllFields},
		{"usefulness unrated", func(d *Draft) { d.Usefulness = model.Unrated() }, RuleCourseRatings, KeyFillAllFields},
		{"no grade", func(d *Draft) { d.Grade = "" }, RuleGrade, KeyFillAllFields},
		{"empty comments", func(d *Draft) { d.CourseComments = "  " }, RuleCourseComments, KeyFillAllFields},
		{"four word comments", func(d *Draft) { d.CourseComments = fourWords }, RuleCourseComments, KeyCourseCommentsWordCount},
		{"too many words", func(d *Draft) { d.CourseComments = strings.Repeat("word ", MaxWords+1) }, RuleCourseComments, KeyCourseCommentsWordCount},
		{"teaching unrated", func(d *Draft) {
			_ = d.SetInstructorScore(leeLecture, AspectTeaching, model.Unrated())
		}, RuleInstructors, KeyFillAllFields},
		{"instructor comments empty", func(d *Draft) {
			_ = d.SetInstructorComments(leeLecture, "")
		}, RuleInstructors, KeyFillAllFields},
		{"instructor comments short", func(d *Draft) {
			_ = d.SetInstructorComments(leeLecture, fourWords)
		}, RuleInstructors, KeyInstructorCommentsWordCount},
		{"compulsory without description", func(d *Draft) {
			d.SetServiceLearning(true, model.ServiceLearningCompulsory, "")
		}, RuleServiceLearning, KeyFillAllFields},
		{"compulsory description short", func(d *Draft) {
			d.SetServiceLearning(true, model.ServiceLearningCompulsory, fourWords)
		}, RuleServiceLearning, KeyServiceLearningWordCount},
		{"optional description too long", func(d *Draft) {
			d.SetServiceLearning(true, model.ServiceLearningOptional, strings.Repeat("w ", MaxWords+1))
		}, RuleServiceLearning, KeyServiceLearningWordCount},
		{"service learning without type", func(d *Draft) {
			d.SetServiceLearning(true, "", tenWords)
		}, RuleServiceLearning, KeyFillAllFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(d)

			err := Validate(d)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.rule, ve.Rule)
			assert.Equal(t, tt.wantKey, ve.MessageKey)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestValidate_FirstFailingRuleWins(t *testing.T) {
	d := validDraft()
	d.Workload = model.Unrated()
	d.CourseComments = fourWords

	var ve *ValidationError
	require.ErrorAs(t, Validate(d), &ve)
	assert.Equal(t, RuleCourseRatings, ve.Rule)
}

func TestValidate_Accepts(t *testing.T) {
	d := validDraft()
	d.Workload = model.NotApplicable()
	d.Grade = model.GradeNotApplicable
	_ = d.SetInstructorScore(leeLecture, AspectGrading, model.Unrated())
	d.SetServiceLearning(true, model.ServiceLearningOptional, "")

	assert.NoError(t, Validate(d))

	d.SetServiceLearning(true, model.ServiceLearningOptional, "short note")
	assert.NoError(t, Validate(d), "optional description may be short")
}

func TestCheckInstructors(t *testing.T) {
	recs := bus1001Records()

	assert.NoError(t, CheckInstructors(recs, "BUS1001", "2023-24 Term 1", []model.InstructorKey{leeLecture}))

	wrongTerm := model.NewInstructorKey("Dr. Wong", "Lecture")
	err := CheckInstructors(recs, "BUS1001", "2023-24 Term 1", []model.InstructorKey{leeLecture, wrongTerm})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, RuleTeachingRecords, ve.Rule)
	assert.Equal(t, KeyInvalidInstructor, ve.MessageKey)
	assert.Equal(t, string(wrongTerm), ve.Detail)

	wrongSession := model.NewInstructorKey("Dr. Lee", "Tutorial")
	assert.Error(t, CheckInstructors(recs, "BUS1001", "2023-24 Term 1", []model.InstructorKey{wrongSession}))
}

func TestValidatePayload(t *testing.T) {
	p, err := BuildPayload(validDraft(), model.AuthUser{ID: "u1", Name: "amy"}, fixedNow)
	require.NoError(t, err)
	assert.NoError(t, ValidatePayload(p))

	p.InstructorDetails = "not json"
	var ve *ValidationError
	require.ErrorAs(t, ValidatePayload(p), &ve)
	assert.Equal(t, "instructor_details", ve.Field)

	p.InstructorDetails = "[]"
	require.ErrorAs(t, ValidatePayload(p), &ve)
	assert.Equal(t, RuleSelection, ve.Rule)
}
