package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository"
)

var _ repository.FavoriteRepository = (*DB)(nil)

func (db *DB) AddFavorite(ctx context.Context, f *model.Favorite) error {
	f.CreatedAt = time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO favorites (user_id, kind, key, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, kind, key) DO NOTHING`,
		f.UserID, string(f.Kind), f.Key, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding favorite %s/%s: %w", f.Kind, f.Key, err)
	}
	return nil
}

// RemoveFavorite succeeds even if the favorite did not exist.
func (db *DB) RemoveFavorite(ctx context.Context, userID string, kind model.FavoriteKind, key string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND kind = ? AND key = ?`,
		userID, string(kind), key)
	if err != nil {
		return fmt.Errorf("sqlite: removing favorite %s/%s: %w", kind, key, err)
	}
	return nil
}

func (db *DB) ListFavorites(ctx context.Context, userID string) ([]model.Favorite, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, kind, key, created_at FROM favorites
		 WHERE user_id = ? ORDER BY created_at DESC, kind, key`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing favorites: %w", err)
	}
	defer rows.Close()

	var out []model.Favorite
	for rows.Next() {
		var (
			f    model.Favorite
			kind string
		)
		if err := rows.Scan(&f.UserID, &kind, &f.Key, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning favorite: %w", err)
		}
		f.Kind = model.FavoriteKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}
