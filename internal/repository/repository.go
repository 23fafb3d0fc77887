// Package repository declares the storage interfaces the service layer
// depends on. Each aggregate gets its own small interface so services and
// their tests only see what they use; repository/sqlite implements all of
// them on one *DB.
package repository

import (
	"context"
	"time"

	"github.com/sakif/course-review/internal/model"
)

type UserRepository interface {
	// CreateUser assigns ID and timestamps. Duplicate email or name is
	// apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	// NameTaken is case-insensitive; exceptID lets a user keep their own name.
	NameTaken(ctx context.Context, name, exceptID string) (bool, error)
	UpdateUserName(ctx context.Context, id, name string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetEmailVerified(ctx context.Context, id string) error
	// LinkGoogle is apperror.ErrConflict when googleID belongs to another user.
	LinkGoogle(ctx context.Context, id, googleID, googleEmail string) error
}

type CatalogRepository interface {
	UpsertCourse(ctx context.Context, c model.Course) error
	GetCourse(ctx context.Context, code string) (*model.Course, error)
	ListCourses(ctx context.Context) ([]model.Course, error)

	UpsertTerm(ctx context.Context, t model.Term) error
	GetTerm(ctx context.Context, code string) (*model.Term, error)
	ListTerms(ctx context.Context) ([]model.Term, error)

	UpsertInstructor(ctx context.Context, i model.Instructor) error
	ListInstructors(ctx context.Context) ([]model.Instructor, error)

	AddTeachingRecord(ctx context.Context, r model.TeachingRecord) error
	ListTeachingRecords(ctx context.Context, courseCode string) ([]model.TeachingRecord, error)
	ListAllTeachingRecords(ctx context.Context) ([]model.TeachingRecord, error)

	// CourseStats aggregates reviews per course code.
	CourseStats(ctx context.Context) (map[string]model.CourseStats, error)
}

type ReviewRepository interface {
	// CreateReview is apperror.ErrConflict when the user already reviewed
	// the course in that term.
	CreateReview(ctx context.Context, r *model.Review) error
	GetReview(ctx context.Context, id string) (*model.Review, error)
	UpdateReview(ctx context.Context, r *model.Review) error
	DeleteReview(ctx context.Context, id string) error
	ListReviewsByUser(ctx context.Context, userID string) ([]model.Review, error)
	ListReviewsByCourse(ctx context.Context, courseCode string) ([]model.Review, error)
	ListAllReviews(ctx context.Context) ([]model.Review, error)
}

type FavoriteRepository interface {
	// AddFavorite is idempotent.
	AddFavorite(ctx context.Context, f *model.Favorite) error
	RemoveFavorite(ctx context.Context, userID string, kind model.FavoriteKind, key string) error
	ListFavorites(ctx context.Context, userID string) ([]model.Favorite, error)
}

type TokenRepository interface {
	// SaveVerificationCode replaces any pending code for the email.
	SaveVerificationCode(ctx context.Context, v *model.VerificationCode) error
	GetVerificationCode(ctx context.Context, email string) (*model.VerificationCode, error)
	IncrementVerificationAttempts(ctx context.Context, email string) error
	MarkEmailVerified(ctx context.Context, email string, at time.Time) error

	CreatePasswordReset(ctx context.Context, p *model.PasswordReset) error
	// LatestPasswordReset returns the newest reset issued for the user.
	LatestPasswordReset(ctx context.Context, userID string) (*model.PasswordReset, error)
	MarkPasswordResetUsed(ctx context.Context, id string, at time.Time) error
}
