package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"donateabook/internal/domain"
	"donateabook/internal/util"
)

const sessionKeyPrefix = "donateabook:session:"

// RedisSessionStore keeps session identity in Redis with TTL. The token held
// by the client is opaque; all identity data stays server-side.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore builds a Redis-backed session store.
func NewRedisSessionStore(addr, password string, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}
}

// Establish writes a token -> session mapping with TTL and returns the token.
func (s *RedisSessionStore) Establish(session domain.Session) (string, error) {
	token := util.NewID()
	payload, err := json.Marshal(session)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, sessionKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Get resolves a token to its session identity. Expired or unknown tokens
// return found=false without error.
func (s *RedisSessionStore) Get(token string) (domain.Session, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	val, err := s.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	var session domain.Session
	if err := json.Unmarshal(val, &session); err != nil {
		return domain.Session{}, false, err
	}
	return session, true, nil
}

// Delete removes a token mapping.
func (s *RedisSessionStore) Delete(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}
