// Package cache keeps the computed catalog listings (courses and
// instructors with their review statistics) in Redis so listing requests
// do not re-aggregate every review. Review writes invalidate it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/course-review/internal/model"
)

// CatalogCache stores the full, unfiltered listings. A miss returns
// (nil, false, nil).
type CatalogCache interface {
	GetCourses(ctx context.Context) ([]model.CourseListing, bool, error)
	SetCourses(ctx context.Context, list []model.CourseListing) error
	GetInstructors(ctx context.Context) ([]model.InstructorListing, bool, error)
	SetInstructors(ctx context.Context, list []model.InstructorListing) error
	Invalidate(ctx context.Context) error
}

// DefaultPrefix is the key prefix the server and the seed command share.
const DefaultPrefix = "course-review:"

const (
	keyCourses     = "catalog:courses"
	keyInstructors = "catalog:instructors"
)

type redisCatalogCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewCatalogCache stores entries under prefix (e.g. "course-review:") for ttl.
func NewCatalogCache(client redis.Cmdable, prefix string, ttl time.Duration) CatalogCache {
	return &redisCatalogCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *redisCatalogCache) key(name string) string {
	return c.prefix + name
}

func getJSON[T any](ctx context.Context, c *redisCatalogCache, name string) (T, bool, error) {
	var out T
	data, err := c.client.Get(ctx, c.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return out, false, nil
	}
	if err != nil {
		return out, false, fmt.Errorf("cache: reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false, fmt.Errorf("cache: decoding %s: %w", name, err)
	}
	return out, true, nil
}

func (c *redisCatalogCache) setJSON(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encoding %s: %w", name, err)
	}
	if err := c.client.Set(ctx, c.key(name), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: writing %s: %w", name, err)
	}
	return nil
}

func (c *redisCatalogCache) GetCourses(ctx context.Context) ([]model.CourseListing, bool, error) {
	return getJSON[[]model.CourseListing](ctx, c, keyCourses)
}

func (c *redisCatalogCache) SetCourses(ctx context.Context, list []model.CourseListing) error {
	return c.setJSON(ctx, keyCourses, list)
}

func (c *redisCatalogCache) GetInstructors(ctx context.Context) ([]model.InstructorListing, bool, error) {
	return getJSON[[]model.InstructorListing](ctx, c, keyInstructors)
}

func (c *redisCatalogCache) SetInstructors(ctx context.Context, list []model.InstructorListing) error {
	return c.setJSON(ctx, keyInstructors, list)
}

func (c *redisCatalogCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key(keyCourses), c.key(keyInstructors)).Err(); err != nil {
		return fmt.Errorf("cache: invalidating catalog: %w", err)
	}
	return nil
}

// NopCatalogCache always misses. It is used when no Redis is configured.
type NopCatalogCache struct{}

var _ CatalogCache = NopCatalogCache{}

func (NopCatalogCache) GetCourses(context.Context) ([]model.CourseListing, bool, error) {
	return nil, false, nil
}
func (NopCatalogCache) SetCourses(context.Context, []model.CourseListing) error { return nil }
func (NopCatalogCache) GetInstructors(context.Context) ([]model.InstructorListing, bool, error) {
	return nil, false, nil
}
func (NopCatalogCache) SetInstructors(context.Context, []model.InstructorListing) error { return nil }
func (NopCatalogCache) Invalidate(context.Context) error                                  { return nil }
