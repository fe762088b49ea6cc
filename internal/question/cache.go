package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// Cache stores fetched question sets in Redis so repeated requests skip the
// generator and OpenTDB.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ SetCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(req Request) string {
	return strings.Join([]string{
		"questionset",
		strings.ToLower(req.Topic),
		string(req.Type),
		string(req.Difficulty),
		fmt.Sprint(req.Count),
		strings.ToLower(req.Language),
	}, ":")
}

// Get returns nil, nil on a miss.
func (c *Cache) Get(ctx context.Context, req Request) (*Set, error) {
	data, err := c.client.Get(ctx, cacheKey(req)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (c *Cache) Set(ctx context.Context, req Request, set Set) error {
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(req), data, c.ttl).Err()
}
