package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/review"
)

// draftFile is a review written as YAML:
//
//	course: BUS1001
//	term: 2023-24 Term 1
//	workload: 3
//	difficulty: na
//	usefulness: 4.5
//	grade: B+
//	comments: Clear lectures and fair exams throughout the term.
//	phrases: [course.content.practical]
//	instructors:
//	  - name: Dr. LEE
//	    session: Lecture
//	    teaching: 4
//	    grading: na
//	    comments: Explains every concept with real examples.
//	    requirements: [midterm, quiz]
//
// Phrases are toggled after the comments are written, so listing a phrase
// the comments already contain removes it.
type draftFile struct {
	Course          string               `yaml:"course"`
	Term            string               `yaml:"term"`
	Language        string               `yaml:"language"`
	Anonymous       *bool                `yaml:"anonymous"`
	Workload        score                `yaml:"workload"`
	Difficulty      score                `yaml:"difficulty"`
	Usefulness      score                `yaml:"usefulness"`
	Grade           string               `yaml:"grade"`
	Comments        string               `yaml:"comments"`
	Phrases         []string             `yaml:"phrases"`
	ServiceLearning *serviceLearningFile `yaml:"service_learning"`
	Instructors     []instructorFile     `yaml:"instructors"`
}

type serviceLearningFile struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

type instructorFile struct {
	Name         string   `yaml:"name"`
	Session      string   `yaml:"session"`
	Teaching     score    `yaml:"teaching"`
	Grading      score    `yaml:"grading"`
	Comments     string   `yaml:"comments"`
	Phrases      []string `yaml:"phrases"`
	Requirements []string `yaml:"requirements"`
}

func (in instructorFile) key() model.InstructorKey {
	return model.NewInstructorKey(in.Name, in.Session)
}

// score is a rating in a draft file: a number on the 0.5 grid, or "na".
// An absent score leaves the draft untouched.
type score struct {
	set    bool
	rating model.Rating
}

func (s *score) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: a rating is a number or na", n.Line)
	}
	switch strings.ToLower(n.Value) {
	case "na", "n/a":
		*s = score{set: true, rating: model.NotApplicable()}
		return nil
	}
	v, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return fmt.Errorf("line %d: a rating is a number or na, got %q", n.Line, n.Value)
	}
	r, err := model.RatingFromNumber(v)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*s = score{set: true, rating: r}
	return nil
}

func parseDraft(r io.Reader) (*draftFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var df draftFile
	if err := dec.Decode(&df); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("draft file is empty")
		}
		return nil, fmt.Errorf("parsing draft: %w", err)
	}
	return &df, nil
}

// apply fills form from the file. A new review selects the course and term
// first; an edit keeps the loaded ones and only accepts a file that names
// the same course and term, or none.
func (df *draftFile) apply(ctx context.Context, form *review.Form, editing bool) error {
	current := form.Draft()
	if editing {
		if (df.Course != "" && df.Course != current.CourseCode()) ||
			(df.Term != "" && df.Term != current.TermCode()) {
			return errors.New("the course and term of a review cannot change")
		}
	} else {
		if df.Course == "" || df.Term == "" {
			return errors.New("course and term are required")
		}
		if err := form.SelectCourse(ctx, df.Course); err != nil {
			return err
		}
		form.SelectTerm(df.Term)
	}

	for _, in := range df.Instructors {
		d := form.Draft()
		if d.IsSelected(in.key()) {
			continue
		}
		if _, err := form.ToggleInstructor(in.key()); err != nil {
			return err
		}
	}

	if err := form.Update(df.fill); err != nil {
		return err
	}

	lang := df.Language
	if lang == "" {
		d := form.Draft()
		lang = d.Language
	}
	for _, id := range df.Phrases {
		if err := form.TogglePhrase(id, "", lang); err != nil {
			return err
		}
	}
	for _, in := range df.Instructors {
		for _, id := range in.Phrases {
			if err := form.TogglePhrase(id, in.key(), lang); err != nil {
				return err
			}
		}
	}
	return nil
}

func (df *draftFile) fill(d *review.Draft) error {
	if df.Language != "" {
		d.Language = df.Language
	}
	if df.Anonymous != nil {
		d.Anonymous = *df.Anonymous
	}
	for aspect, s := range map[review.Aspect]score{
		review.AspectWorkload:   df.Workload,
		review.AspectDifficulty: df.Difficulty,
		review.AspectUsefulness: df.Usefulness,
	} {
		if s.set {
			if err := d.SetRating(aspect, s.rating); err != nil {
				return err
			}
		}
	}
	if df.Grade != "" {
		d.Grade = df.Grade
	}
	if df.Comments != "" {
		d.CourseComments = df.Comments
	}
	if sl := df.ServiceLearning; sl != nil {
		d.SetServiceLearning(true, model.ServiceLearningType(sl.Type), sl.Description)
	}

	for _, in := range df.Instructors {
		key := in.key()
		for aspect, s := range map[review.Aspect]score{
			review.AspectTeaching: in.Teaching,
			review.AspectGrading:  in.Grading,
		} {
			if s.set {
				if err := d.SetInstructorScore(key, aspect, s.rating); err != nil {
					return err
				}
			}
		}
		if in.Comments != "" {
			if err := d.SetInstructorComments(key, in.Comments); err != nil {
				return err
			}
		}
		for _, r := range in.Requirements {
			if err := d.SetRequirement(key, review.Requirement(r), true); err != nil {
				return err
			}
		}
	}
	return nil
}
