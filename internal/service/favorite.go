package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository"
)

type FavoriteService struct {
	favorites repository.FavoriteRepository
	catalog   repository.CatalogRepository
	logger    *slog.Logger
}

func NewFavoriteService(favorites repository.FavoriteRepository, catalogRepo repository.CatalogRepository, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{favorites: favorites, catalog: catalogRepo, logger: logger}
}

func (s *FavoriteService) exists(ctx context.Context, kind model.FavoriteKind, key string) (bool, error) {
	switch kind {
	case model.FavoriteCourse:
		_, err := s.catalog.GetCourse(ctx, key)
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	case model.FavoriteInstructor:
		list, err := s.catalog.ListInstructors(ctx)
		if err != nil {
			return false, err
		}
		for _, in := range list {
			if in.Name == key {
				return true, nil
			}
		}
	}
	return false, nil
}

// Add bookmarks a course (by code) or an instructor (by name). Adding the
// same favorite twice is fine.
func (s *FavoriteService) Add(ctx context.Context, userID string, kind model.FavoriteKind, key string) (*model.Favorite, error) {
	key = strings.TrimSpace(key)
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("type", "favorite type must be course or instructor")
	}
	if key == "" {
		return nil, apperror.ValidationFailed("key", "favorite key is required")
	}
	ok, err := s.exists(ctx, kind, key)
	if err != nil {
		return nil, fmt.Errorf("service/favorite: checking %s %q: %w", kind, key, err)
	}
	if !ok {
		return nil, apperror.NotFound(string(kind), key)
	}

	f := &model.Favorite{UserID: userID, Kind: kind, Key: key}
	if err := s.favorites.AddFavorite(ctx, f); err != nil {
		return nil, fmt.Errorf("service/favorite: adding: %w", err)
	}
	s.logger.Debug("favorite added", slog.String("userID", userID), slog.String("type", string(kind)), slog.String("key", key))
	return f, nil
}

// Remove is a no-op for favorites that do not exist.
func (s *FavoriteService) Remove(ctx context.Context, userID string, kind model.FavoriteKind, key string) error {
	if !kind.Valid() {
		return apperror.ValidationFailed("type", "favorite type must be course or instructor")
	}
	if err := s.favorites.RemoveFavorite(ctx, userID, kind, key); err != nil {
		return fmt.Errorf("service/favorite: removing: %w", err)
	}
	return nil
}

func (s *FavoriteService) List(ctx context.Context, userID string) ([]model.Favorite, error) {
	list, err := s.favorites.ListFavorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/favorite: listing: %w", err)
	}
	return list, nil
}
