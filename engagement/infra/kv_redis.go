package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"blog-engagement/engagement/domain"

	"github.com/redis/go-redis/v9"
)

// RedisKV guarda cada escopo como um hash "<prefix>:<scope>".
//
// ttl=0 torna o store durável (flags de like/pesquisa por dispositivo).
// ttl>0 renova a expiração a cada escrita e a cada Touch, o que serve de
// store de sessão.
type RedisKV struct {
	rdb *redis.Client

	prefix string
	ttl    time.Duration
}

type RedisKVOption func(*RedisKV)

func WithKVPrefix(prefix string) RedisKVOption {
	return func(s *RedisKV) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithKVTTL(d time.Duration) RedisKVOption {
	return func(s *RedisKV) { s.ttl = d }
}

func NewRedisKV(rdb *redis.Client, opts ...RedisKVOption) *RedisKV {
	s := &RedisKV{
		rdb:    rdb,
		prefix: "engagement:flags",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ domain.KeyValueStore = (*RedisKV)(nil)
	_ domain.SessionKeeper = (*RedisKV)(nil)
)

// aliveField mantém o hash de um escopo recém-aberto existindo mesmo sem flags.
const aliveField = "_alive"

func (s *RedisKV) hashKey(scope string) string {
	return s.prefix + ":" + scope
}

func (s *RedisKV) Load(ctx context.Context, scope, key string) (string, bool, error) {
	if s == nil || s.rdb == nil {
		return "", false, errors.New("redis kv: no client")
	}

	v, err := s.rdb.HGet(ctx, s.hashKey(scope), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis kv load %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisKV) Store(ctx context.Context, scope, key, value string) error {
	if s == nil || s.rdb == nil {
		return errors.New("redis kv: no client")
	}

	hk := s.hashKey(scope)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, hk, key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, hk, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis kv store %s: %w", key, err)
	}
	return nil
}

// Touch renova o TTL do escopo e informa se o hash já existia.
func (s *RedisKV) Touch(ctx context.Context, scope string) (bool, error) {
	if s == nil || s.rdb == nil {
		return false, errors.New("redis kv: no client")
	}

	hk := s.hashKey(scope)
	pipe := s.rdb.TxPipeline()
	existed := pipe.Exists(ctx, hk)
	pipe.HSetNX(ctx, hk, aliveField, "1")
	if s.ttl > 0 {
		pipe.Expire(ctx, hk, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis kv touch %s: %w", scope, err)
	}
	return existed.Val() > 0, nil
}
