package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/cms-backend/internal/platform/logger"
)

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"cms"`
}

// RedisStore keeps entries as plain keys and tags as Redis sets of member keys.
type RedisStore struct {
	rdb    *goredis.Client
	log    *logger.Logger
	prefix string
}

func NewRedisStore(cfg RedisConfig, log *logger.Logger) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "cms"
	}
	return &RedisStore{
		rdb:    rdb,
		log:    log.With("service", "RedisCacheStore"),
		prefix: prefix,
	}, nil
}

// Client exposes the underlying connection for pool metrics.
func (s *RedisStore) Client() *goredis.Client { return s.rdb }

func (s *RedisStore) key(k string) string    { return s.prefix + ":" + k }
func (s *RedisStore) tagKey(t string) string { return s.prefix + ":tag:" + t }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key(key), value, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, s.tagKey(tag), s.key(key))
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}
	return s.rdb.Del(ctx, full...).Err()
}

func (s *RedisStore) DeleteTag(ctx context.Context, tag string) error {
	tk := s.tagKey(tag)
	members, err := s.rdb.SMembers(ctx, tk).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return err
	}
	return s.rdb.Del(ctx, append(members, tk)...).Err()
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
