package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"stageboard-api/domain"
)

const (
	tasksCacheKey       = "board:tasks"
	peopleCacheKey      = "board:people"
	assignmentsCacheKey = "board:assignments"
)

// Cache wraps a store with Redis-backed caching for the board listings.
// Mutations pass through to the base store and evict the affected keys.
type Cache struct {
	domain.Store
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching store wrapper using the provided Redis client
// and TTL.
func NewCache(base domain.Store, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{Store: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if c.loadFromCache(ctx, tasksCacheKey, &tasks) {
		return tasks, nil
	}
	tasks, err := c.Store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	c.storeInCache(ctx, tasksCacheKey, tasks)
	return tasks, nil
}

func (c *Cache) ListPeople(ctx context.Context) ([]domain.Person, error) {
	var people []domain.Person
	if c.loadFromCache(ctx, peopleCacheKey, &people) {
		return people, nil
	}
	people, err := c.Store.ListPeople(ctx)
	if err != nil {
		return nil, err
	}
	c.storeInCache(ctx, peopleCacheKey, people)
	return people, nil
}

func (c *Cache) ListAssignments(ctx context.Context) ([]domain.Assignment, error) {
	var rows []domain.Assignment
	if c.loadFromCache(ctx, assignmentsCacheKey, &rows) {
		return rows, nil
	}
	rows, err := c.Store.ListAssignments(ctx)
	if err != nil {
		return nil, err
	}
	c.storeInCache(ctx, assignmentsCacheKey, rows)
	return rows, nil
}

func (c *Cache) UpsertTask(ctx context.Context, t domain.Task) error {
	if err := c.Store.UpsertTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey)
	return nil
}

func (c *Cache) UpdateTaskPosition(ctx context.Context, id string, position int) error {
	if err := c.Store.UpdateTaskPosition(ctx, id, position); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey)
	return nil
}

func (c *Cache) UpdateTaskOrphanNotes(ctx context.Context, id, notes string) error {
	if err := c.Store.UpdateTaskOrphanNotes(ctx, id, notes); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	if err := c.Store.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey, assignmentsCacheKey)
	return nil
}

func (c *Cache) ReplaceAssignments(ctx context.Context, taskID string, rows []domain.Assignment) error {
	if err := c.Store.ReplaceAssignments(ctx, taskID, rows); err != nil {
		return err
	}
	c.evict(ctx, assignmentsCacheKey)
	return nil
}

func (c *Cache) DeleteAssignment(ctx context.Context, id string) error {
	if err := c.Store.DeleteAssignment(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, assignmentsCacheKey)
	return nil
}

func (c *Cache) InsertPerson(ctx context.Context, p domain.Person) error {
	if err := c.Store.InsertPerson(ctx, p); err != nil {
		return err
	}
	c.evict(ctx, peopleCacheKey)
	return nil
}

func (c *Cache) DeletePerson(ctx context.Context, id string) error {
	if err := c.Store.DeletePerson(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, peopleCacheKey, assignmentsCacheKey)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) storeInCache(ctx context.Context, key string, value any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}
