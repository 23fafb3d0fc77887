package catalog

import (
	"net/url"
	"strconv"

	"github.com/sakif/course-review/internal/model"
)

// Query parameter names shared by the listing endpoints and their clients.
const (
	ParamSearch          = "q"
	ParamDepartment      = "department"
	ParamLanguage        = "language"
	ParamServiceLearning = "service_learning"
	ParamTerm            = "term"
	ParamSort            = "sort"
	ParamOrder           = "order"
	ParamPage            = "page"
	ParamPageSize        = "page_size"
	ParamLang            = "lang"
)

// CourseQuery is a full course listing request.
type CourseQuery struct {
	Filter   CourseFilter
	Sort     Sort
	Page     int
	PageSize int
	Lang     string
}

type InstructorQuery struct {
	Filter   InstructorFilter
	Sort     Sort
	Page     int
	PageSize int
}

func setIf(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setPaging(v url.Values, s Sort, page, size int) {
	setIf(v, ParamSort, string(s.Field))
	setIf(v, ParamOrder, string(s.Order))
	if page > 0 {
		v.Set(ParamPage, strconv.Itoa(page))
	}
	if size > 0 {
		v.Set(ParamPageSize, strconv.Itoa(size))
	}
}

func parsePaging(v url.Values) (Sort, int, int) {
	s := Sort{Field: SortField(v.Get(ParamSort)), Order: Asc}
	if Order(v.Get(ParamOrder)) == Desc {
		s.Order = Desc
	}
	// Bad numbers fall through to Paginate's clamping.
	page, _ := strconv.Atoi(v.Get(ParamPage))
	size, _ := strconv.Atoi(v.Get(ParamPageSize))
	return s, page, size
}

func (q CourseQuery) Values() url.Values {
	v := url.Values{}
	setIf(v, ParamSearch, q.Filter.Search)
	setIf(v, ParamDepartment, q.Filter.Department)
	setIf(v, ParamLanguage, q.Filter.Language)
	setIf(v, ParamServiceLearning, string(q.Filter.ServiceLearning))
	setIf(v, ParamTerm, q.Filter.Term)
	setIf(v, ParamLang, q.Lang)
	setPaging(v, q.Sort, q.Page, q.PageSize)
	return v
}

func ParseCourseQuery(v url.Values) CourseQuery {
	s, page, size := parsePaging(v)
	sl := ServiceLearning(v.Get(ParamServiceLearning))
	if sl != ServiceLearningYes && sl != ServiceLearningNo {
		sl = ServiceLearningAny
	}
	return CourseQuery{
		Filter: CourseFilter{
			Search:          v.Get(ParamSearch),
			Department:      v.Get(ParamDepartment),
			Language:        v.Get(ParamLanguage),
			ServiceLearning: sl,
			Term:            v.Get(ParamTerm),
		},
		Sort:     s,
		Page:     page,
		PageSize: size,
		Lang:     v.Get(ParamLang),
	}
}

func (q InstructorQuery) Values() url.Values {
	v := url.Values{}
	setIf(v, ParamSearch, q.Filter.Search)
	setIf(v, ParamDepartment, q.Filter.Department)
	setIf(v, ParamTerm, q.Filter.Term)
	setPaging(v, q.Sort, q.Page, q.PageSize)
	return v
}

func ParseInstructorQuery(v url.Values) InstructorQuery {
	s, page, size := parsePaging(v)
	return InstructorQuery{
		Filter: InstructorFilter{
			Search:     v.Get(ParamSearch),
			Department: v.Get(ParamDepartment),
			Term:       v.Get(ParamTerm),
		},
		Sort:     s,
		Page:     page,
		PageSize: size,
	}
}

// Courses runs the whole listing pipeline on a copy of rows.
func Courses(rows []model.CourseListing, q CourseQuery) Page[model.CourseListing] {
	list := FilterCourses(rows, q.Filter)
	SortCourses(list, q.Sort, q.Lang)
	return Paginate(list, q.Page, q.PageSize)
}

func Instructors(rows []model.InstructorListing, q InstructorQuery) Page[model.InstructorListing] {
	list := FilterInstructors(rows, q.Filter)
	SortInstructors(list, q.Sort)
	return Paginate(list, q.Page, q.PageSize)
}
