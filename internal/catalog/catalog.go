// Package catalog filters, sorts and paginates the course and instructor
// listings. Everything here is a pure function over already loaded rows so
// the server and any client can share it.
package catalog

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sakif/course-review/internal/model"
)

// SortField names a listing column.
type SortField string

const (
	SortCode       SortField = "code"
	SortTitle      SortField = "title"
	SortName       SortField = "name"
	SortReviews    SortField = "reviews"
	SortWorkload   SortField = "workload"
	SortDifficulty SortField = "difficulty"
	SortUsefulness SortField = "usefulness"
	SortTeaching   SortField = "teaching"
	SortGrading    SortField = "grading"
)

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Sort is a column and direction. The zero value sorts by code (courses) or
// name (instructors) ascending.
type Sort struct {
	Field SortField
	Order Order
}

// ServiceLearning filters on whether any review reported service learning.
type ServiceLearning string

const (
	ServiceLearningAny ServiceLearning = ""
	ServiceLearningYes ServiceLearning = "yes"
	ServiceLearningNo  ServiceLearning = "no"
)

// CourseFilter narrows the course listing. Empty fields match everything.
type CourseFilter struct {
	Search          string
	Department      string
	Language        string
	ServiceLearning ServiceLearning
	Term            string
}

type InstructorFilter struct {
	Search     string
	Department string
	Term       string
}

func matchSearch(query string, fields ...string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func matchExact(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}

// FilterCourses returns the courses matching every set field of f, keeping
// their order. The search matches the code and the title in all languages.
func FilterCourses(courses []model.CourseListing, f CourseFilter) []model.CourseListing {
	out := make([]model.CourseListing, 0, len(courses))
	for _, c := range courses {
		if !matchSearch(f.Search, c.Code, c.TitleEN, c.TitleTC, c.TitleSC) ||
			!matchExact(f.Department, c.Department) ||
			!matchExact(f.Language, c.Language) {
			continue
		}
		switch f.ServiceLearning {
		case ServiceLearningYes:
			if !c.HasServiceLearning() {
				continue
			}
		case ServiceLearningNo:
			if c.HasServiceLearning() {
				continue
			}
		}
		if f.Term != "" && !slices.Contains(c.OfferedTerms, f.Term) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FilterInstructors returns the instructors matching f. The search matches
// the name, title and email.
func FilterInstructors(list []model.InstructorListing, f InstructorFilter) []model.InstructorListing {
	out := make([]model.InstructorListing, 0, len(list))
	for _, in := range list {
		if !matchSearch(f.Search, in.Name, in.Title, in.Email) ||
			!matchExact(f.Department, in.Department) {
			continue
		}
		if f.Term != "" && !slices.Contains(in.Terms, f.Term) {
			continue
		}
		out = append(out, in)
	}
	return out
}

func directed(c int, o Order) int {
	if o == Desc {
		return -c
	}
	return c
}

// titleCollator orders titles the way readers of lang expect: stroke order
// for Traditional Chinese, pinyin for Simplified Chinese.
// A collate.Collator is not safe for concurrent use, so build one per sort.
func titleCollator(lang string) *collate.Collator {
	tag := language.English
	switch lang {
	case "zh-TW":
		tag = language.TraditionalChinese
	case "zh-CN":
		tag = language.SimplifiedChinese
	}
	return collate.New(tag, collate.IgnoreCase)
}

// SortCourses sorts courses in place. Titles compare in lang. Ties always
// fall back to the course code ascending, whatever the order.
func SortCourses(courses []model.CourseListing, s Sort, lang string) {
	var col *collate.Collator
	if s.Field == SortTitle {
		col = titleCollator(lang)
	}
	slices.SortStableFunc(courses, func(a, b model.CourseListing) int {
		var c int
		switch s.Field {
		case SortTitle:
			c = col.CompareString(a.Title(lang), b.Title(lang))
		case SortReviews:
			c = cmp.Compare(a.Stats.ReviewCount, b.Stats.ReviewCount)
		case SortWorkload:
			c = cmp.Compare(a.Stats.AvgWorkload, b.Stats.AvgWorkload)
		case SortDifficulty:
			c = cmp.Compare(a.Stats.AvgDifficulty, b.Stats.AvgDifficulty)
		case SortUsefulness:
			c = cmp.Compare(a.Stats.AvgUsefulness, b.Stats.AvgUsefulness)
		default:
			return directed(cmp.Compare(a.Code, b.Code), s.Order)
		}
		if c = directed(c, s.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
}

// SortInstructors sorts instructors in place with name as tiebreak.
func SortInstructors(list []model.InstructorListing, s Sort) {
	slices.SortStableFunc(list, func(a, b model.InstructorListing) int {
		var c int
		switch s.Field {
		case SortReviews:
			c = cmp.Compare(a.Stats.ReviewCount, b.Stats.ReviewCount)
		case SortTeaching:
			c = cmp.Compare(a.Stats.AvgTeaching, b.Stats.AvgTeaching)
		case SortGrading:
			c = cmp.Compare(a.Stats.AvgGrading, b.Stats.AvgGrading)
		default:
			return directed(cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), s.Order)
		}
		if c = directed(c, s.Order); c != 0 {
			return c
		}
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}
