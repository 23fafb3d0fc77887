package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository"
)

var _ repository.ReviewRepository = (*DB)(nil)

const reviewColumns = `id, user_id, is_anon, username, course_code, term_code,
	course_workload, course_difficulties, course_usefulness, course_final_grade,
	course_comments, has_service_learning, service_learning_description,
	submitted_at, instructor_details, review_language, created_at, updated_at`

// scanReview reads ratings through model.Rating's sql.Scanner, so NULL comes
// back as unrated and -1 as N/A.
func scanReview(row interface{ Scan(...any) error }) (*model.Review, error) {
	var r model.Review
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.IsAnon,
		&r.Username,
		&r.CourseCode,
		&r.TermCode,
		&r.Workload,
		&r.Difficulty,
		&r.Usefulness,
		&r.FinalGrade,
		&r.Comments,
		&r.HasServiceLearning,
		&r.ServiceLearningDescription,
		&r.SubmittedAt,
		&r.InstructorDetails,
		&r.ReviewLanguage,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) CreateReview(ctx context.Context, r *model.Review) error {
	now := time.Now().UTC()
	r.ID = xid.New().String()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO reviews (`+reviewColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.UserID,
		r.IsAnon,
		r.Username,
		r.CourseCode,
		r.TermCode,
		r.Workload,
		r.Difficulty,
		r.Usefulness,
		r.FinalGrade,
		r.Comments,
		r.HasServiceLearning,
		r.ServiceLearningDescription,
		r.SubmittedAt,
		r.InstructorDetails,
		r.ReviewLanguage,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("review", "already reviewed this course for the term")
		}
		return fmt.Errorf("sqlite: creating review: %w", err)
	}
	return nil
}

func (db *DB) GetReview(ctx context.Context, id string) (*model.Review, error) {
	r, err := scanReview(db.conn.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("review", id)
		}
		return nil, fmt.Errorf("sqlite: getting review %s: %w", id, err)
	}
	return r, nil
}

// UpdateReview rewrites every user-editable column. Author, id and
// created_at never change.
func (db *DB) UpdateReview(ctx context.Context, r *model.Review) error {
	r.UpdatedAt = time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE reviews SET
		   is_anon = ?, username = ?, course_code = ?, term_code = ?,
		   course_workload = ?, course_difficulties = ?, course_usefulness = ?,
		   course_final_grade = ?, course_comments = ?, has_service_learning = ?,
		   service_learning_description = ?, submitted_at = ?, instructor_details = ?,
		   review_language = ?, updated_at = ?
		 WHERE id = ?`,
		r.IsAnon,
		r.Username,
		r.CourseCode,
		r.TermCode,
		r.Workload,
		r.Difficulty,
		r.Usefulness,
		r.FinalGrade,
		r.Comments,
		r.HasServiceLearning,
		r.ServiceLearningDescription,
		r.SubmittedAt,
		r.InstructorDetails,
		r.ReviewLanguage,
		r.UpdatedAt,
		r.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("review", "already reviewed this course for the term")
		}
		return fmt.Errorf("sqlite: updating review %s: %w", r.ID, err)
	}
	return checkAffected(res, apperror.NotFound("review", r.ID))
}

func (db *DB) DeleteReview(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting review %s: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("review", id))
}

func (db *DB) listReviews(ctx context.Context, where string, args ...any) ([]model.Review, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reviews: %w", err)
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning review: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ListReviewsByUser returns the user's reviews, newest first.
func (db *DB) ListReviewsByUser(ctx context.Context, userID string) ([]model.Review, error) {
	return db.listReviews(ctx, `WHERE user_id = ?`, userID)
}

func (db *DB) ListReviewsByCourse(ctx context.Context, courseCode string) ([]model.Review, error) {
	return db.listReviews(ctx, `WHERE course_code = ?`, courseCode)
}

func (db *DB) ListAllReviews(ctx context.Context) ([]model.Review, error) {
	return db.listReviews(ctx, ``)
}
