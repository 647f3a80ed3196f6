package relay

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

// NewPool creates a redis pool for the given address.
func NewPool(address string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     16,
		MaxActive:   256,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", address)
		},
	}
}

// RedisStore keeps entries in redis so several manager replicas can share them.
type RedisStore struct {
	pool   *redis.Pool
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps a pool. A positive ttl expires entries after that long.
func NewRedisStore(pool *redis.Pool, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{pool: pool, prefix: prefix, ttl: ttl}
}

// Set stores value under key.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return errors.Wrap(err, "redis connection")
	}
	defer conn.Close()

	args := redis.Args{}.Add(s.prefix+key, value)
	if s.ttl > 0 {
		args = args.Add("PX", s.ttl.Milliseconds())
	}
	if _, err := conn.Do("SET", args...); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return "", errors.Wrap(err, "redis connection")
	}
	defer conn.Close()

	value, err := redis.String(conn.Do("GET", s.prefix+key))
	if err == redis.ErrNil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "redis get %s", key)
	}
	return value, nil
}

// Close releases the pool.
func (s *RedisStore) Close() error {
	return s.pool.Close()
}
