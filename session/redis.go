package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists the session in Redis so that several processes of one
// installation share it. The three keys are written in one MULTI/EXEC block
// and read with a single MGET.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	keys   Keys
	ttl    time.Duration
}

// NewRedisStore returns a store writing under prefix. A ttl of zero keeps keys
// until cleared. Zero-valued keys fall back to [DefaultKeys].
func NewRedisStore(client redis.UniversalClient, prefix string, keys Keys, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		keys:   keys.withDefaults(),
		ttl:    ttl,
	}
}

func (s *RedisStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + ":" + name
}

func (s *RedisStore) allKeys() []string {
	return []string{
		s.key(s.keys.AccessToken),
		s.key(s.keys.RefreshToken),
		s.key(s.keys.User),
	}
}

func (s *RedisStore) Get(ctx context.Context) (*Session, error) {
	vals, err := s.redis.MGet(ctx, s.allKeys()...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	access, _ := vals[0].(string)
	refresh, _ := vals[1].(string)
	var user []byte
	if v, ok := vals[2].(string); ok {
		user = []byte(v)
	}
	return assemble(access, refresh, user)
}

func (s *RedisStore) Set(ctx context.Context, sess *Session) error {
	if !sess.Complete() {
		return ErrIncomplete
	}
	user, err := Encode(sess)
	if err != nil {
		return err
	}

	keys := s.allKeys()
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keys[0], sess.AccessToken, s.ttl)
		pipe.Set(ctx, keys[1], sess.RefreshToken, s.ttl)
		pipe.Set(ctx, keys[2], user, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.allKeys()...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
