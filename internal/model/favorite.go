package model

import "time"

type FavoriteKind string

const (
	FavoriteCourse     FavoriteKind = "course"
	FavoriteInstructor FavoriteKind = "instructor"
)

func (k FavoriteKind) Valid() bool {
	return k == FavoriteCourse || k == FavoriteInstructor
}

// Favorite is a course code or instructor name bookmarked by a user.
type Favorite struct {
	UserID    string       `json:"-"`
	Kind      FavoriteKind `json:"type"`
	Key       string       `json:"key"`
	CreatedAt time.Time    `json:"createdAt"`
}
