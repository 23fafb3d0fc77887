package model

import (
	"strings"
	"time"
)

// Course is a catalogued course. Titles are kept per language because the
// listing search matches all three.
type Course struct {
	Code       string `json:"course_code"   yaml:"code"`
	TitleEN    string `json:"course_title"  yaml:"title_en"`
	TitleTC    string `json:"course_title_tc" yaml:"title_tc"`
	TitleSC    string `json:"course_title_sc" yaml:"title_sc"`
	Department string `json:"department"    yaml:"department"`
	Language   string `json:"course_language" yaml:"language"`
}

// Title returns the course title for lang, falling back to English.
func (c Course) Title(lang string) string {
	switch lang {
	case "zh-TW":
		if c.TitleTC != "" {
			return c.TitleTC
		}
	case "zh-CN":
		if c.TitleSC != "" {
			return c.TitleSC
		}
	}
	return c.TitleEN
}

// Term is an academic term such as "2023-24 Term 1".
type Term struct {
	Code      string    `json:"term_code"  yaml:"code"`
	Name      string    `json:"term_name"  yaml:"name"`
	StartDate time.Time `json:"start_date" yaml:"start_date"`
	EndDate   time.Time `json:"end_date"   yaml:"end_date"`
}

// Instructor is a teaching staff member.
type Instructor struct {
	Name       string `json:"name"       yaml:"name"`
	Title      string `json:"title"      yaml:"title"`
	Department string `json:"department" yaml:"department"`
	Email      string `json:"email"      yaml:"email"`
}

// TeachingRecord says that an instructor taught a session type (Lecture,
// Tutorial, ...) of a course in a term. Reviews may only evaluate instructors
// that have a record for the reviewed course and term.
type TeachingRecord struct {
	CourseCode     string `json:"course_code"     yaml:"course"`
	TermCode       string `json:"term_code"       yaml:"term"`
	InstructorName string `json:"instructor_name" yaml:"instructor"`
	SessionType    string `json:"session_type"    yaml:"session_type"`
}

// Key identifies the (instructor, session type) pair of the record.
func (r TeachingRecord) Key() InstructorKey {
	return NewInstructorKey(r.InstructorName, r.SessionType)
}

// InstructorKey is "instructorName|sessionType".
type InstructorKey string

const instructorKeySep = "|"

func NewInstructorKey(name, sessionType string) InstructorKey {
	return InstructorKey(name + instructorKeySep + sessionType)
}

// Split returns the instructor name and session type of the key.
func (k InstructorKey) Split() (name, sessionType string) {
	s := string(k)
	i := strings.LastIndex(s, instructorKeySep)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

// CourseStats aggregates the reviews of a course. Averages skip N/A and
// unrated answers.
type CourseStats struct {
	ReviewCount          int     `json:"review_count"`
	AvgWorkload          float64 `json:"average_workload"`
	AvgDifficulty        float64 `json:"average_difficulty"`
	AvgUsefulness        float64 `json:"average_usefulness"`
	ServiceLearningCount int     `json:"service_learning_count"`
}

// CourseListing is one row of the course listing page.
type CourseListing struct {
	Course
	Stats        CourseStats `json:"stats"`
	OfferedTerms []string    `json:"offered_terms"`
}

// HasServiceLearning reports whether any review flagged service learning.
func (c CourseListing) HasServiceLearning() bool {
	return c.Stats.ServiceLearningCount > 0
}

// InstructorStats aggregates the instructor evaluations of an instructor.
type InstructorStats struct {
	ReviewCount int     `json:"review_count"`
	AvgTeaching float64 `json:"average_teaching"`
	AvgGrading  float64 `json:"average_grading"`
}

// InstructorListing is one row of the instructor listing page.
type InstructorListing struct {
	Instructor
	Stats   InstructorStats `json:"stats"`
	Terms   []string        `json:"terms"`
	Courses []string        `json:"courses"`
}
