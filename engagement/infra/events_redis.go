package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"blog-engagement/engagement/domain"

	"github.com/redis/go-redis/v9"
)

// RedisEventRecorder acumula desfechos em hashes:
//
//	<prefix>:total            campo "<action>:<outcome>" (cumulativo, não expira)
//	<prefix>:<bucket>:<hora>  mesmo campo, com ttl (bucket "minute" ou "hour")
//	<prefix>:tier             campo "<tier>" (leituras de métricas por camada)
//	<prefix>:post:<postId>    campo "<action>:<outcome>", só com trackPosts
type RedisEventRecorder struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por post.
	ttl time.Duration

	bucket string // "minute" (padrão), "hour" ou "none"

	trackPosts bool
}

type RedisEventsOption func(*RedisEventRecorder)

func WithEventsPrefix(prefix string) RedisEventsOption {
	return func(s *RedisEventRecorder) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithEventsTTL(d time.Duration) RedisEventsOption {
	return func(s *RedisEventRecorder) { s.ttl = d }
}

func WithEventsBucket(bucket string) RedisEventsOption {
	return func(s *RedisEventRecorder) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithEventsTrackPosts(track bool) RedisEventsOption {
	return func(s *RedisEventRecorder) { s.trackPosts = track }
}

func NewRedisEventRecorder(rdb *redis.Client, opts ...RedisEventsOption) *RedisEventRecorder {
	s := &RedisEventRecorder{
		rdb:    rdb,
		prefix: "engagement:events",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// bucketLayouts mapeia o nome do bucket para o layout da chave de série temporal.
var bucketLayouts = map[string]string{
	"minute": "200601021504",
	"hour":   "2006010215",
}

func (s *RedisEventRecorder) Record(ctx context.Context, ev domain.Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(ev.Action) + ":" + string(ev.Outcome)

	pipe := s.rdb.Pipeline()
	incr := func(key, field string, expires bool) {
		pipe.HIncrBy(ctx, key, field, 1)
		if expires && s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}

	incr(s.prefix+":total", field, false)
	if layout, ok := bucketLayouts[s.bucket]; ok {
		incr(fmt.Sprintf("%s:%s:%s", s.prefix, s.bucket, at.UTC().Format(layout)), field, true)
	}
	if tier := strings.TrimSpace(ev.Tier); tier != "" {
		incr(s.prefix+":tier", tier, false)
	}
	if p := strings.TrimSpace(ev.PostID); s.trackPosts && p != "" {
		incr(s.prefix+":post:"+p, field, true)
	}

	_, err := pipe.Exec(ctx)
	return err
}
