package profile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

const keyPrefix = "chat:profile:"

type cachedProfile struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"displayName"`
	Role            string  `json:"role"`
	Specialty       *string `json:"specialty,omitempty"`
	ProfileImageURL *string `json:"profileImageUrl,omitempty"`
}

// Cached is a read-through redis cache in front of another Directory. Redis
// failures are logged and fall through to the backing directory; misses are
// not cached.
type Cached struct {
	next Directory
	rdb  redis.Cmdable
	ttl  time.Duration
	log  *slog.Logger
}

func NewCached(next Directory, rdb redis.Cmdable, ttl time.Duration, log *slog.Logger) *Cached {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{next: next, rdb: rdb, ttl: ttl, log: log}
}

func (c *Cached) Lookup(ctx context.Context, userID string) (domain.Profile, error) {
	key := keyPrefix + userID

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cp cachedProfile
		if err := json.Unmarshal(raw, &cp); err == nil {
			return domain.Profile{
				ID:              cp.ID,
				DisplayName:     cp.DisplayName,
				Role:            domain.Role(cp.Role),
				Specialty:       cp.Specialty,
				ProfileImageURL: cp.ProfileImageURL,
			}, nil
		}
		c.log.Warn("profile cache: corrupt entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("profile cache: get failed", "key", key, "err", err)
	}

	p, err := c.next.Lookup(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}

	data, err := json.Marshal(cachedProfile{
		ID:              p.ID,
		DisplayName:     p.DisplayName,
		Role:            string(p.Role),
		Specialty:       p.Specialty,
		ProfileImageURL: p.ProfileImageURL,
	})
	if err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn("profile cache: set failed", "key", key, "err", err)
		}
	}
	return p, nil
}

// Invalidate drops the cached entry for userID.
func (c *Cached) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, keyPrefix+userID).Err()
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
