package review

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/sakif/course-review/internal/model"
)

// Raw HTML in comments is not rendered.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RatingView is a rating as displayed: Stars is empty for unrated and NA is
// set for not applicable.
type RatingView struct {
	Stars string   `json:"stars"`
	Value *float64 `json:"value"`
	NA    bool     `json:"na"`
}

type InstructorCard struct {
	Name         string        `json:"name"`
	SessionType  string        `json:"session_type"`
	Teaching     RatingView    `json:"teaching"`
	Grading      RatingView    `json:"grading"`
	CommentsHTML string        `json:"comments_html"`
	Requirements []Requirement `json:"requirements"`
}

// Preview is the read-only rendering of a draft.
type Preview struct {
	CourseCode      string           `json:"course_code"`
	TermCode        string           `json:"term_code"`
	Workload        RatingView       `json:"workload"`
	Difficulty      RatingView       `json:"difficulty"`
	Usefulness      RatingView       `json:"usefulness"`
	Grade           string           `json:"grade"`
	GradeNA         bool             `json:"grade_na"`
	CommentsHTML    string           `json:"comments_html"`
	ServiceLearning *ServiceLearning `json:"service_learning,omitempty"`
	Anonymous       bool             `json:"anonymous"`
	Instructors     []InstructorCard `json:"instructors"`
}

type ServiceLearning struct {
	Type            model.ServiceLearningType `json:"type"`
	DescriptionHTML string                    `json:"description_html"`
}

// NewPreview renders d. It does not validate and works on partial drafts.
func NewPreview(d *Draft) (*Preview, error) {
	comments, err := renderMarkdown(d.CourseComments)
	if err != nil {
		return nil, err
	}
	p := &Preview{
		CourseCode:   d.courseCode,
		TermCode:     d.termCode,
		Workload:     ratingView(d.Workload),
		Difficulty:   ratingView(d.Difficulty),
		Usefulness:   ratingView(d.Usefulness),
		Grade:        d.Grade,
		GradeNA:      d.Grade == model.GradeNotApplicable,
		CommentsHTML: comments,
		Anonymous:    d.Anonymous,
		Instructors:  make([]InstructorCard, 0, len(d.evaluations)),
	}
	if d.HasServiceLearning {
		desc, err := renderMarkdown(d.ServiceLearningDescription)
		if err != nil {
			return nil, err
		}
		p.ServiceLearning = &ServiceLearning{Type: d.ServiceLearningType, DescriptionHTML: desc}
	}
	for _, e := range d.evaluations {
		body, err := renderMarkdown(e.Comments)
		if err != nil {
			return nil, err
		}
		card := InstructorCard{
			Name:         e.InstructorName,
			SessionType:  e.SessionType,
			Teaching:     ratingView(e.TeachingScore),
			Grading:      ratingView(e.GradingScore),
			CommentsHTML: body,
		}
		for _, r := range Requirements {
			if *requirementField(&e, r) {
				card.Requirements = append(card.Requirements, r)
			}
		}
		p.Instructors = append(p.Instructors, card)
	}
	return p, nil
}

func ratingView(r model.Rating) RatingView {
	v := RatingView{Value: r.Number(), NA: r.IsNotApplicable()}
	if score, ok := r.Points(); ok {
		v.Stars = Stars(score)
	}
	return v
}

// Stars draws a 0–5 score as five glyphs: ★ full, ½ half, ☆ empty.
func Stars(score float64) string {
	score = math.Max(0, math.Min(model.MaxScore, score))
	full := int(score)
	half := score-float64(full) >= 0.5
	var sb strings.Builder
	sb.WriteString(strings.Repeat("★", full))
	empty := int(model.MaxScore) - full
	if half {
		sb.WriteString("½")
		empty--
	}
	sb.WriteString(strings.Repeat("☆", empty))
	return sb.String()
}

func renderMarkdown(src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("review: rendering markdown: %w", err)
	}
	return buf.String(), nil
}
