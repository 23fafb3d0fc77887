package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sakif/course-review/internal/model"
)

// catalogFile is the seed document:
//
//	courses:
//	  - code: BUS1001
//	    title_en: Business Fundamentals
//	    title_tc: 商業基礎
//	    department: Business
//	    language: English
//	terms:
//	  - code: 2023-24 Term 1
//	    name: 2023-24 Term 1
//	    start_date: 2023-09-04
//	    end_date: 2023-12-16
//	instructors:
//	  - name: Dr. LEE
//	    title: Lecturer
//	teaching_records:
//	  - course: BUS1001
//	    term: 2023-24 Term 1
//	    instructor: Dr. LEE
//	    session_type: Lecture
type catalogFile struct {
	Courses         []model.Course         `yaml:"courses"`
	Terms           []model.Term           `yaml:"terms"`
	Instructors     []model.Instructor     `yaml:"instructors"`
	TeachingRecords []model.TeachingRecord `yaml:"teaching_records"`
}

// catalogStore is the part of sqlite.DB the import writes to.
type catalogStore interface {
	UpsertCourse(ctx context.Context, c model.Course) error
	UpsertTerm(ctx context.Context, t model.Term) error
	UpsertInstructor(ctx context.Context, i model.Instructor) error
	AddTeachingRecord(ctx context.Context, r model.TeachingRecord) error
}

// parseCatalog decodes and checks a seed document. Unknown keys are errors
// so a misspelled field does not silently import as empty.
func parseCatalog(r io.Reader) (*catalogFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cat catalogFile
	if err := dec.Decode(&cat); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed: catalog file is empty")
		}
		return nil, fmt.Errorf("seed: decoding catalog: %w", err)
	}
	if err := cat.check(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// check rejects blank keys, duplicates and teaching records that point at
// entries missing from the document.
func (c *catalogFile) check() error {
	courses := make(map[string]bool, len(c.Courses))
	for i, course := range c.Courses {
		code := strings.TrimSpace(course.Code)
		if code == "" {
			return fmt.Errorf("seed: courses[%d]: code is required", i)
		}
		if courses[code] {
			return fmt.Errorf("seed: duplicate course %s", code)
		}
		courses[code] = true
	}

	terms := make(map[string]bool, len(c.Terms))
	for i, t := range c.Terms {
		code := strings.TrimSpace(t.Code)
		if code == "" {
			return fmt.Errorf("seed: terms[%d]: code is required", i)
		}
		if !t.StartDate.IsZero() && !t.EndDate.IsZero() && t.EndDate.Before(t.StartDate) {
			return fmt.Errorf("seed: term %s ends before it starts", code)
		}
		terms[code] = true
	}

	instructors := make(map[string]bool, len(c.Instructors))
	for i, in := range c.Instructors {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return fmt.Errorf("seed: instructors[%d]: name is required", i)
		}
		instructors[name] = true
	}

	for i, r := range c.TeachingRecords {
		switch {
		case !courses[r.CourseCode]:
			return fmt.Errorf("seed: teaching_records[%d]: unknown course %q", i, r.CourseCode)
		case !terms[r.TermCode]:
			return fmt.Errorf("seed: teaching_records[%d]: unknown term %q", i, r.TermCode)
		case !instructors[r.InstructorName]:
			return fmt.Errorf("seed: teaching_records[%d]: unknown instructor %q", i, r.InstructorName)
		case strings.TrimSpace(r.SessionType) == "":
			return fmt.Errorf("seed: teaching_records[%d]: session_type is required", i)
		}
	}
	return nil
}

type importStats struct {
	Courses, Terms, Instructors, TeachingRecords int
}

// apply writes the catalog in dependency order: teaching records reference
// the other three tables. Re-running the same file is harmless.
func (c *catalogFile) apply(ctx context.Context, store catalogStore) (importStats, error) {
	var st importStats
	for _, course := range c.Courses {
		if err := store.UpsertCourse(ctx, course); err != nil {
			return st, err
		}
		st.Courses++
	}
	for _, t := range c.Terms {
		if err := store.UpsertTerm(ctx, t); err != nil {
			return st, err
		}
		st.Terms++
	}
	for _, in := range c.Instructors {
		if err := store.UpsertInstructor(ctx, in); err != nil {
			return st, err
		}
		st.Instructors++
	}
	for _, r := range c.TeachingRecords {
		if err := store.AddTeachingRecord(ctx, r); err != nil {
			return st, err
		}
		st.TeachingRecords++
	}
	return st, nil
}
