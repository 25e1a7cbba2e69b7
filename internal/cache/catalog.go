package cache

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"coinrush/internal/economy"
)

// Connect parses a Redis URL and pings the server. Accepts the formats
// hosting providers hand out, including bare host:port and redis-cli
// command lines. Returns (nil, nil) for an empty URL so callers can run
// without a cache.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	redisURL = normalizeRedisURL(redisURL)
	if redisURL == "" {
		return nil, nil
	}
	if !strings.Contains(redisURL, "://") {
		redisURL = "redis://" + redisURL
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func normalizeRedisURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if i := strings.Index(s, "rediss://"); i >= 0 {
		s = s[i:]
	} else if i := strings.Index(s, "redis://"); i >= 0 {
		s = s[i:]
	}
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if i := strings.IndexAny(s, " \t\r\n"); i >= 0 {
		s = strings.Trim(s[:i], `"'`)
	}
	return s
}

// Catalog caches the immutable card catalog in Redis. Only catalog
// entries are cached, never user state; admin card writes invalidate
// the whole keyspace. A nil Catalog (or nil client) is a no-op and
// every lookup is a miss.
type Catalog struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCatalog(rdb *redis.Client, ttl time.Duration) *Catalog {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{rdb: rdb, ttl: ttl}
}

const keyPrefix = "coinrush:cards:"

func catalogKey(category string) string {
	if category == "" {
		return keyPrefix + "all"
	}
	return keyPrefix + "cat:" + category
}

func (c *Catalog) Get(ctx context.Context, category string) ([]economy.Card, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, catalogKey(category)).Bytes()
	if err != nil {
		return nil, false
	}
	var cards []economy.Card
	if err := json.Unmarshal(raw, &cards); err != nil {
		return nil, false
	}
	return cards, true
}

func (c *Catalog) Put(ctx context.Context, category string, cards []economy.Card) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(cards)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, catalogKey(category), raw, c.ttl).Err(); err != nil {
		log.Printf("cache: put %s: %v", catalogKey(category), err)
	}
}

// Invalidate drops every cached catalog view. Called on any admin card
// write so readers never see a stale catalog past one round trip.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("cache: scan: %v", err)
		return
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			log.Printf("cache: invalidate: %v", err)
		}
	}
}
