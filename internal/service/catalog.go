package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/cache"
	"github.com/sakif/course-review/internal/catalog"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository"
)

// CatalogService serves the read side: courses, terms, instructors and the
// listing pages with review statistics.
//
// WHY CACHE THE LISTINGS AND NOT THE PAGES?
// Every filter, sort and page combination is a different page, but they all
// start from the same two full listings. Caching those and running
// catalog.Courses/Instructors per request keeps the cache at two keys that
// a review write can drop in one call.
type CatalogService struct {
	catalog repository.CatalogRepository
	reviews repository.ReviewRepository
	cache   cache.CatalogCache
	logger  *slog.Logger
}

func NewCatalogService(
	catalogRepo repository.CatalogRepository,
	reviews repository.ReviewRepository,
	listings cache.CatalogCache,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{catalog: catalogRepo, reviews: reviews, cache: listings, logger: logger}
}

func (s *CatalogService) Courses(ctx context.Context) ([]model.Course, error) {
	list, err := s.catalog.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing courses: %w", err)
	}
	return list, nil
}

func (s *CatalogService) Course(ctx context.Context, code string) (*model.Course, error) {
	c, err := s.catalog.GetCourse(ctx, code)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/catalog: fetching course %s: %w", code, err)
	}
	return c, err
}

// TeachingRecords returns who taught courseCode in which term. An unknown
// course is NotFound rather than an empty list.
func (s *CatalogService) TeachingRecords(ctx context.Context, courseCode string) ([]model.TeachingRecord, error) {
	if _, err := s.Course(ctx, courseCode); err != nil {
		return nil, err
	}
	records, err := s.catalog.ListTeachingRecords(ctx, courseCode)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing teaching records: %w", err)
	}
	return records, nil
}

func (s *CatalogService) Terms(ctx context.Context) ([]model.Term, error) {
	terms, err := s.catalog.ListTerms(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing terms: %w", err)
	}
	return terms, nil
}

func (s *CatalogService) Term(ctx context.Context, code string) (*model.Term, error) {
	t, err := s.catalog.GetTerm(ctx, code)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/catalog: fetching term %s: %w", code, err)
	}
	return t, err
}

// cached reads through the cache. Cache errors are logged and treated as
// misses; the database stays the source of truth.
func cached[T any](
	ctx context.Context,
	s *CatalogService,
	name string,
	get func(context.Context) ([]T, bool, error),
	set func(context.Context, []T) error,
	build func(context.Context) ([]T, error),
) ([]T, error) {
	list, ok, err := get(ctx)
	if err != nil {
		s.logger.Warn("catalog cache read failed", slog.String("listing", name), slog.String("error", err.Error()))
	}
	if ok {
		return list, nil
	}
	list, err = build(ctx)
	if err != nil {
		return nil, err
	}
	if err := set(ctx, list); err != nil {
		s.logger.Warn("catalog cache write failed", slog.String("listing", name), slog.String("error", err.Error()))
	}
	return list, nil
}

// CourseListings returns every course with its review stats and the terms
// it was offered in, ordered by code.
func (s *CatalogService) CourseListings(ctx context.Context) ([]model.CourseListing, error) {
	return cached(ctx, s, "courses", s.cache.GetCourses, s.cache.SetCourses, s.buildCourseListings)
}

func (s *CatalogService) buildCourseListings(ctx context.Context) ([]model.CourseListing, error) {
	courses, err := s.catalog.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing courses: %w", err)
	}
	stats, err := s.catalog.CourseStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: aggregating stats: %w", err)
	}
	records, err := s.catalog.ListAllTeachingRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing teaching records: %w", err)
	}

	offered := make(map[string][]string)
	for _, r := range records {
		if !slices.Contains(offered[r.CourseCode], r.TermCode) {
			offered[r.CourseCode] = append(offered[r.CourseCode], r.TermCode)
		}
	}

	out := make([]model.CourseListing, 0, len(courses))
	for _, c := range courses {
		out = append(out, model.CourseListing{
			Course:       c,
			Stats:        stats[c.Code],
			OfferedTerms: sortedOrEmpty(offered[c.Code]),
		})
	}
	return out, nil
}

// InstructorListings returns every instructor with the terms and courses
// they taught and the averages of their evaluations.
func (s *CatalogService) InstructorListings(ctx context.Context) ([]model.InstructorListing, error) {
	return cached(ctx, s, "instructors", s.cache.GetInstructors, s.cache.SetInstructors, s.buildInstructorListings)
}

type scoreSum struct {
	reviews             map[string]bool
	teaching, grading   float64
	teachingN, gradingN int
}

func (s *CatalogService) buildInstructorListings(ctx context.Context) ([]model.InstructorListing, error) {
	instructors, err := s.catalog.ListInstructors(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing instructors: %w", err)
	}
	records, err := s.catalog.ListAllTeachingRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing teaching records: %w", err)
	}
	reviews, err := s.reviews.ListAllReviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing reviews: %w", err)
	}

	terms := make(map[string][]string)
	courses := make(map[string][]string)
	for _, r := range records {
		if !slices.Contains(terms[r.InstructorName], r.TermCode) {
			terms[r.InstructorName] = append(terms[r.InstructorName], r.TermCode)
		}
		if !slices.Contains(courses[r.InstructorName], r.CourseCode) {
			courses[r.InstructorName] = append(courses[r.InstructorName], r.CourseCode)
		}
	}

	sums := make(map[string]*scoreSum)
	for _, rv := range reviews {
		evals, err := rv.Evaluations()
		if err != nil {
			s.logger.Warn("skipping review with unreadable instructor details",
				slog.String("reviewID", rv.ID), slog.String("error", err.Error()))
			continue
		}
		for _, e := range evals {
			sum := sums[e.InstructorName]
			if sum == nil {
				sum = &scoreSum{reviews: make(map[string]bool)}
				sums[e.InstructorName] = sum
			}
			sum.reviews[rv.ID] = true
			if v, ok := e.TeachingScore.Points(); ok {
				sum.teaching += v
				sum.teachingN++
			}
			if v, ok := e.GradingScore.Points(); ok {
				sum.grading += v
				sum.gradingN++
			}
		}
	}

	out := make([]model.InstructorListing, 0, len(instructors))
	for _, in := range instructors {
		l := model.InstructorListing{
			Instructor: in,
			Terms:      sortedOrEmpty(terms[in.Name]),
			Courses:    sortedOrEmpty(courses[in.Name]),
		}
		if sum := sums[in.Name]; sum != nil {
			l.Stats.ReviewCount = len(sum.reviews)
			if sum.teachingN > 0 {
				l.Stats.AvgTeaching = sum.teaching / float64(sum.teachingN)
			}
			if sum.gradingN > 0 {
				l.Stats.AvgGrading = sum.grading / float64(sum.gradingN)
			}
		}
		out = append(out, l)
	}
	return out, nil
}

func sortedOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	slices.Sort(s)
	return s
}

// ListCourses answers one course listing page.
func (s *CatalogService) ListCourses(ctx context.Context, q catalog.CourseQuery) (catalog.Page[model.CourseListing], error) {
	rows, err := s.CourseListings(ctx)
	if err != nil {
		return catalog.Page[model.CourseListing]{}, err
	}
	return catalog.Courses(rows, q), nil
}

// ListInstructors answers one instructor listing page.
func (s *CatalogService) ListInstructors(ctx context.Context, q catalog.InstructorQuery) (catalog.Page[model.InstructorListing], error) {
	rows, err := s.InstructorListings(ctx)
	if err != nil {
		return catalog.Page[model.InstructorListing]{}, err
	}
	return catalog.Instructors(rows, q), nil
}
