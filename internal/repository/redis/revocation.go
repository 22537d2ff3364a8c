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

const defaultRevocationPrefix = "revoked"

// SessionRevocationStore marks session token identifiers as terminated in
// Redis. Entries carry a TTL matching the remaining token lifetime, so the set
// stays bounded without a sweeper.
type SessionRevocationStore struct {
	client *red.Client
	prefix string
}

// NewSessionRevocationStore constructs a Redis-backed revocation store.
func NewSessionRevocationStore(client *red.Client, keyPrefix string) *SessionRevocationStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	return &SessionRevocationStore{client: client, prefix: prefix}
}

// Revoke stores the token identifier with the supplied reason and TTL window.
func (s *SessionRevocationStore) Revoke(ctx context.Context, jti, reason string, ttl time.Duration) error {
	key := s.key(jti)
	if key == "" {
		return fmt.Errorf("token id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	value := strings.TrimSpace(reason)
	if value == "" {
		value = "revoked"
	}

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set revocation: %w", err)
	}

	return nil
}

// IsRevoked reports whether the token identifier has been revoked.
func (s *SessionRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	key := s.key(jti)
	if key == "" {
		return false, fmt.Errorf("token id is required")
	}

	if _, err := s.client.Get(ctx, key).Result(); err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get revocation: %w", err)
	}

	return true, nil
}

func (s *SessionRevocationStore) key(jti string) string {
	trimmed := strings.TrimSpace(jti)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, trimmed)
}

var _ port.SessionRevocationStore = (*SessionRevocationStore)(nil)
