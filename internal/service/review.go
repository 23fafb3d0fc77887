package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/cache"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository"
	"github.com/sakif/course-review/internal/review"
)

// ReviewService owns review writes. The client validates drafts too, but
// the server re-runs every rule on the submitted payload.
//
// FLOW (create):
//
//	payload → ValidatePayload (word counts, ratings, grades, instructors)
//	        → course and term exist
//	        → every evaluated instructor taught the course that term
//	        → author fields come from the session user, never the body
//	        → insert (one review per user, course and term)
//	        → drop the cached listings
type ReviewService struct {
	reviews repository.ReviewRepository
	catalog repository.CatalogRepository
	users   repository.UserRepository
	cache   cache.CatalogCache
	now     Clock
	logger  *slog.Logger
}

func NewReviewService(
	reviews repository.ReviewRepository,
	catalog repository.CatalogRepository,
	users repository.UserRepository,
	listings cache.CatalogCache,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews: reviews,
		catalog: catalog,
		users:   users,
		cache:   listings,
		now:     time.Now,
		logger:  logger,
	}
}

func (s *ReviewService) check(ctx context.Context, p model.ReviewPayload) error {
	if err := review.ValidatePayload(p); err != nil {
		return err
	}
	if _, err := s.catalog.GetCourse(ctx, p.CourseCode); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("course_code", "unknown course "+p.CourseCode)
		}
		return fmt.Errorf("service/review: fetching course: %w", err)
	}
	if _, err := s.catalog.GetTerm(ctx, p.TermCode); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("term_code", "unknown term "+p.TermCode)
		}
		return fmt.Errorf("service/review: fetching term: %w", err)
	}

	evals, err := model.ParseInstructorDetails(p.InstructorDetails)
	if err != nil {
		return apperror.ValidationFailed("instructor_details", err.Error())
	}
	keys := make([]model.InstructorKey, len(evals))
	for i, e := range evals {
		keys[i] = e.Key()
	}
	records, err := s.catalog.ListTeachingRecords(ctx, p.CourseCode)
	if err != nil {
		return fmt.Errorf("service/review: fetching teaching records: %w", err)
	}
	return review.CheckInstructors(records, p.CourseCode, p.TermCode, keys)
}

// stamp overwrites the fields the client does not get to choose.
func (s *ReviewService) stamp(ctx context.Context, userID string, p *model.ReviewPayload) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Unauthorized("session user no longer exists")
		}
		return fmt.Errorf("service/review: fetching author: %w", err)
	}
	p.UserID = user.ID
	p.Username = user.Name
	p.SubmittedAt = s.now().UTC().Format(time.RFC3339)
	p.Comments = strings.TrimSpace(p.Comments)

	evals, err := model.ParseInstructorDetails(p.InstructorDetails)
	if err != nil {
		return apperror.ValidationFailed("instructor_details", err.Error())
	}
	for i := range evals {
		evals[i].Comments = strings.TrimSpace(evals[i].Comments)
	}
	if p.InstructorDetails, err = model.EncodeInstructorDetails(evals); err != nil {
		return fmt.Errorf("service/review: encoding instructor details: %w", err)
	}

	if p.ReviewLanguage == "" {
		p.ReviewLanguage = review.DefaultLanguage
	}
	return nil
}

func (s *ReviewService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("catalog cache invalidation failed", slog.String("error", err.Error()))
	}
}

func (s *ReviewService) Create(ctx context.Context, userID string, p model.ReviewPayload) (*model.Review, error) {
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}
	if err := s.stamp(ctx, userID, &p); err != nil {
		return nil, err
	}
	r := &model.Review{ReviewPayload: p}
	if err := s.reviews.CreateReview(ctx, r); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/review: creating review: %w", err)
	}
	s.invalidate(ctx)
	s.logger.Info("review created",
		slog.String("reviewID", r.ID),
		slog.String("course", r.CourseCode),
		slog.String("term", r.TermCode),
	)
	return r, nil
}

// owned returns the review if userID wrote it.
func (s *ReviewService) owned(ctx context.Context, userID, id string) (*model.Review, error) {
	r, err := s.reviews.GetReview(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/review: fetching review %s: %w", id, err)
	}
	if r.UserID != userID {
		return nil, apperror.Forbidden("you can only change your own reviews")
	}
	return r, nil
}

// Update replaces the review's content. The course and term of a review are
// fixed once it exists.
func (s *ReviewService) Update(ctx context.Context, userID, id string, p model.ReviewPayload) (*model.Review, error) {
	existing, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if p.CourseCode != existing.CourseCode || p.TermCode != existing.TermCode {
		return nil, apperror.ValidationFailed("course_code", "course and term of a review cannot be changed")
	}
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}
	if err := s.stamp(ctx, userID, &p); err != nil {
		return nil, err
	}
	updated := &model.Review{ID: existing.ID, ReviewPayload: p, CreatedAt: existing.CreatedAt}
	if err := s.reviews.UpdateReview(ctx, updated); err != nil {
		return nil, fmt.Errorf("service/review: updating review %s: %w", id, err)
	}
	s.invalidate(ctx)
	s.logger.Info("review updated", slog.String("reviewID", id))
	return updated, nil
}

func (s *ReviewService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.reviews.DeleteReview(ctx, id); err != nil {
		return fmt.Errorf("service/review: deleting review %s: %w", id, err)
	}
	s.invalidate(ctx)
	s.logger.Info("review deleted", slog.String("reviewID", id))
	return nil
}

// Get returns the review as viewerID may see it; viewerID may be empty.
func (s *ReviewService) Get(ctx context.Context, viewerID, id string) (*model.Review, error) {
	r, err := s.reviews.GetReview(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/review: fetching review %s: %w", id, err)
	}
	if r.UserID != viewerID {
		anon := r.Anonymized()
		r = &anon
	}
	return r, nil
}

// ListByUser returns the author's own reviews, unredacted.
func (s *ReviewService) ListByUser(ctx context.Context, userID string) ([]model.Review, error) {
	list, err := s.reviews.ListReviewsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/review: listing reviews of %s: %w", userID, err)
	}
	return list, nil
}

// ListByCourse returns the reviews of a course with anonymous authors hidden
// from everyone but themselves.
func (s *ReviewService) ListByCourse(ctx context.Context, viewerID, courseCode string) ([]model.Review, error) {
	if _, err := s.catalog.GetCourse(ctx, courseCode); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/review: fetching course: %w", err)
	}
	list, err := s.reviews.ListReviewsByCourse(ctx, courseCode)
	if err != nil {
		return nil, fmt.Errorf("service/review: listing reviews of %s: %w", courseCode, err)
	}
	for i := range list {
		if list[i].UserID != viewerID {
			list[i] = list[i].Anonymized()
		}
	}
	return list, nil
}
