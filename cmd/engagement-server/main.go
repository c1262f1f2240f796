package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blog-engagement/engagement"
	"blog-engagement/engagement/application"
	"blog-engagement/engagement/domain"
	"blog-engagement/engagement/identity"
	"blog-engagement/engagement/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		durableKV domain.KeyValueStore
		sessionKV domain.KeyValueStore
		keeper    domain.SessionKeeper
		events    domain.EventRecorder
		rdb       *redis.Client
	)
	if cfg.redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}

		durableKV = infra.NewRedisKV(rdb, infra.WithKVPrefix(cfg.redisPrefix+":durable"))
		rkv := infra.NewRedisKV(rdb,
			infra.WithKVPrefix(cfg.redisPrefix+":session"),
			infra.WithKVTTL(cfg.sessionTTL),
		)
		sessionKV, keeper = rkv, rkv
	} else {
		logger.Warn("REDIS_ADDR not set, engagement flags kept in memory only")
		durableKV = infra.NewMemoryKV()
		mem := infra.NewMemoryKV(infra.WithMemoryIdleTTL(cfg.sessionTTL))
		mem.StartJanitor(ctx, 2*time.Minute)
		sessionKV, keeper = mem, mem
	}

	if cfg.eventsEnabled {
		if rdb != nil {
			events = infra.NewRedisEventRecorder(rdb,
				infra.WithEventsPrefix(cfg.redisPrefix+":events"),
				infra.WithEventsTTL(cfg.eventsTTL),
				infra.WithEventsBucket(cfg.eventsBucket),
				infra.WithEventsTrackPosts(cfg.eventsTrackPosts),
			)
		} else {
			events = infra.NewMemoryEventRecorder(infra.WithTrackPosts(cfg.eventsTrackPosts))
		}
	}

	remote := infra.NewHTTPMetricsService(cfg.metricsEndpoint)

	var static domain.SnapshotSource
	if cfg.snapshotURL != "" {
		static = infra.NewSnapshotLoader(cfg.snapshotURL, infra.WithSnapshotTTL(cfg.staticTTL))
	}

	cache := infra.NewMetricsCache()
	cache.StartJanitor(ctx)

	fetcher := application.NewFetcher(cache, remote, static, infra.NewHashSynthesizer(),
		application.WithLiveTTL(cfg.liveTTL),
		application.WithStaticTTL(cfg.staticTTL),
		application.WithSyntheticTTL(cfg.syntheticTTL),
		application.WithLiveTimeout(cfg.liveTimeout),
		application.WithFetcherEvents(events),
		application.WithFetcherLogger(logger),
	)

	registry := infra.NewSessionRegistry(
		engagement.NewControllerFactory(engagement.SessionDeps{
			Resolver:     fetcher,
			Remote:       remote,
			DurableKV:    durableKV,
			SessionKV:    sessionKV,
			Events:       events,
			Logger:       logger,
			WriteTimeout: cfg.writeTimeout,
			FlagTimeout:  cfg.flagTimeout,
		}),
		infra.WithIdleTTL[engagement.Visitor, *application.Controller](cfg.sessionTTL),
		infra.WithWriteRate[engagement.Visitor, *application.Controller](cfg.writeRPS, cfg.writeBurst),
		infra.WithOnEvict[engagement.Visitor](func(c *application.Controller) { c.Close() }),
	)
	registry.StartJanitor(ctx)

	concurrency := application.ConcurrencyService{AcquireTimeout: cfg.concurrencyTimeout}
	var slots *infra.RequestSlots
	if cfg.concurrencyMax > 0 {
		slots = infra.NewRequestSlots(cfg.concurrencyMax)
		concurrency.Pool = slots
	}

	if cfg.logLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), engagement.RequestLogger(logger))
	if err := r.SetTrustedProxies(cfg.trustedProxies); err != nil {
		log.Fatalf("invalid TRUSTED_PROXIES: %v", err)
	}
	if len(cfg.corsOrigins) > 0 {
		r.Use(engagement.CORS(cfg.corsOrigins))
	}

	engagement.NewHandler(engagement.Options{
		Identity: identity.New(),
		Cookies: engagement.CookieOptions{
			Secure: cfg.cookieSecure,
			Domain: cfg.cookieDomain,
		},
		Sessions:      registry,
		SessionKeeper: keeper,
		Popular:       fetcher,
		Throttle: engagement.ThrottleOptions{
			Limiter:             registry,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
		},
		Concurrency: concurrency,
		Health: func() gin.H {
			h := gin.H{"sessions": registry.Len(), "cachedPosts": cache.Len()}
			if slots != nil {
				h["inFlight"] = slots.InUse()
				h["maxInFlight"] = slots.Cap()
			}
			if rec, ok := events.(*infra.MemoryEventRecorder); ok {
				h["outcomes"] = rec.ByAction()
				h["tiers"] = rec.ByTier()
			}
			return h
		},
		Logger: logger,
	}).Register(r)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("engagement server listening", "addr", cfg.listenAddr, "metricsEndpoint", cfg.metricsEndpoint, "snapshot", cfg.snapshotURL)
	logger.Info("cache", "liveTTL", cfg.liveTTL, "staticTTL", cfg.staticTTL, "syntheticTTL", cfg.syntheticTTL, "liveTimeout", cfg.liveTimeout)
	logger.Info("flags", "redis", cfg.redisAddr != "", "prefix", cfg.redisPrefix, "sessionTTL", cfg.sessionTTL)
	logger.Info("writes", "rps", cfg.writeRPS, "burst", cfg.writeBurst, "concurrencyMax", cfg.concurrencyMax, "acquireTimeout", cfg.concurrencyTimeout)
	logger.Info("events", "enabled", cfg.eventsEnabled, "bucket", cfg.eventsBucket, "ttl", cfg.eventsTTL, "trackPosts", cfg.eventsTrackPosts)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func newLogger(cfg config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.logLevel}
	if cfg.logFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
