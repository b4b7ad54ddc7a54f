package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"diaryhub-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	keyUserByName = "user:name:"
	keyUsernameOf = "user:id:"
)

// UserCache caches username lookups in Redis. Password hashes are never cached.
type UserCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewUserCache returns a new UserCache
func NewUserCache(rdb *redis.Client, ttl time.Duration) *UserCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &UserCache{rdb: rdb, ttl: ttl}
}

// GetByUsername returns the cached user or nil on a miss
func (c *UserCache) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	b, err := c.rdb.Get(ctx, keyUserByName+username).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUser stores both lookup directions for the user
func (c *UserCache) SetUser(ctx context.Context, u *models.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, keyUserByName+u.Username, b, c.ttl)
	pipe.Set(ctx, keyUsernameOf+u.ID, u.Username, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Usernames returns cached usernames for ids and the ids that missed
func (c *UserCache) Usernames(ctx context.Context, ids []string) (map[string]string, []string, error) {
	found := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return found, nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyUsernameOf + id
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, ids, err
	}

	var missing []string
	for i, v := range vals {
		name, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		found[ids[i]] = name
	}
	return found, missing, nil
}

// SetUsernames stores id -> username entries
func (c *UserCache) SetUsernames(ctx context.Context, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}
	pipe := c.rdb.TxPipeline()
	for id, name := range names {
		pipe.Set(ctx, keyUsernameOf+id, name, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Invalidate drops every entry for the user
func (c *UserCache) Invalidate(ctx context.Context, u *models.User) error {
	return c.rdb.Del(ctx, keyUserByName+u.Username, keyUsernameOf+u.ID).Err()
}
