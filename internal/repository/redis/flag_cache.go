package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/maratoff/institute-dashboard-iam/internal/core/port"
)

const defaultFlagCachePrefix = "pwc"

// FlagCache caches the per-account password-changed flag in Redis so session
// reconciliation does not hit PostgreSQL on every refresh.
type FlagCache struct {
	client *red.Client
	prefix string
}

// NewFlagCache constructs a Redis-backed flag cache.
func NewFlagCache(client *red.Client, keyPrefix string) *FlagCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultFlagCachePrefix
	}
	return &FlagCache{client: client, prefix: prefix}
}

// GetPasswordChanged returns the cached flag and whether an entry was present.
func (c *FlagCache) GetPasswordChanged(ctx context.Context, accountID string) (bool, bool, error) {
	key := c.key(accountID)
	if key == "" {
		return false, false, fmt.Errorf("account id is required")
	}

	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("redis get flag: %w", err)
	}

	return value == "1", true, nil
}

// SetPasswordChanged caches the flag with the supplied TTL.
func (c *FlagCache) SetPasswordChanged(ctx context.Context, accountID string, changed bool, ttl time.Duration) error {
	key := c.key(accountID)
	if key == "" {
		return fmt.Errorf("account id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	value := "0"
	if changed {
		value = "1"
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set flag: %w", err)
	}

	return nil
}

// Invalidate drops the cached entry so the next read goes to the store.
func (c *FlagCache) Invalidate(ctx context.Context, accountID string) error {
	key := c.key(accountID)
	if key == "" {
		return fmt.Errorf("account id is required")
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete flag: %w", err)
	}
	return nil
}

func (c *FlagCache) key(accountID string) string {
	trimmed := strings.TrimSpace(accountID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.prefix, trimmed)
}

var _ port.FlagCache = (*FlagCache)(nil)
