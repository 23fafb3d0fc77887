package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/model"
)

func TestFavorites(t *testing.T) {
	db := newTestStore(t)
	svc := NewFavoriteService(db, db, testLogger())
	u := createStoreUser(t, db, "chan@ln.hk", "chan")
	ctx := context.Background()

	if _, err := svc.Add(ctx, u.ID, model.FavoriteCourse, "BUS1001"); err != nil {
		t.Fatalf("Add(course) error = %v", err)
	}
	if _, err := svc.Add(ctx, u.ID, model.FavoriteCourse, "BUS1001"); err != nil {
		t.Fatalf("Add(course) twice error = %v", err)
	}
	if _, err := svc.Add(ctx, u.ID, model.FavoriteInstructor, "Dr. LEE"); err != nil {
		t.Fatalf("Add(instructor) error = %v", err)
	}

	list, err := svc.List(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("List() = %d favorites, want 2", len(list))
	}

	if err := svc.Remove(ctx, u.ID, model.FavoriteCourse, "BUS1001"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if list, _ = svc.List(ctx, u.ID); len(list) != 1 || list[0].Kind != model.FavoriteInstructor {
		t.Errorf("after Remove, List() = %+v", list)
	}
}

func TestFavorites_Rejections(t *testing.T) {
	db := newTestStore(t)
	svc := NewFavoriteService(db, db, testLogger())
	u := createStoreUser(t, db, "chan@ln.hk", "chan")
	ctx := context.Background()

	tests := []struct {
		name string
		kind model.FavoriteKind
		key  string
		want error
	}{
		{"bad kind", "department", "Business", apperror.ErrValidation},
		{"blank key", model.FavoriteCourse, "  ", apperror.ErrValidation},
		{"unknown course", model.FavoriteCourse, "NOPE0000", apperror.ErrNotFound},
		{"unknown instructor", model.FavoriteInstructor, "Dr. NOBODY", apperror.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Add(ctx, u.ID, tt.kind, tt.key); !errors.Is(err, tt.want) {
				t.Errorf("Add() error = %v, want %v", err, tt.want)
			}
		})
	}
}
