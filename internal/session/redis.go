// internal/session/redis.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"intake-crm/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore shares sessions across CRM instances. Expiry is delegated to
// the key TTL.
type RedisStore struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
	newToken  func() string
}

func NewRedisStore(client redis.Cmdable, keyPrefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		now:       time.Now,
		newToken:  uuid.NewString,
	}
}

func (s *RedisStore) key(token string) string {
	return s.keyPrefix + token
}

func (s *RedisStore) Create(ctx context.Context, username string) (*models.Session, error) {
	now := s.now()
	sess := models.Session{
		Token:     s.newToken(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.Token), payload, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Verify(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	payload, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.IsExpired(s.now()) {
		return nil, ErrInvalidToken
	}
	sess.Token = token
	return &sess, nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to revoke session: %w", err)
	}
	return n > 0, nil
}
