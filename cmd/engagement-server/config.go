package main

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	listenAddr      string
	metricsEndpoint string
	snapshotURL     string

	liveTTL      time.Duration
	staticTTL    time.Duration
	syntheticTTL time.Duration
	liveTimeout  time.Duration
	writeTimeout time.Duration
	flagTimeout  time.Duration

	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string
	sessionTTL    time.Duration

	eventsEnabled    bool
	eventsTTL        time.Duration
	eventsBucket     string
	eventsTrackPosts bool

	writeRPS           float64
	writeBurst         int
	retryAfter         time.Duration
	addHeaders         bool
	concurrencyMax     int
	concurrencyTimeout time.Duration

	corsOrigins    []string
	trustedProxies []string
	cookieSecure   bool
	cookieDomain   string

	logLevel  slog.Level
	logFormat string
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.metricsEndpoint = strings.TrimSpace(os.Getenv("METRICS_ENDPOINT"))
	cfg.snapshotURL = strings.TrimSpace(os.Getenv("SNAPSHOT_URL"))

	cfg.liveTTL = getenvDurationDefault("LIVE_TTL", 5*time.Minute)
	cfg.staticTTL = getenvDurationDefault("STATIC_TTL", 30*time.Minute)
	// 0: valores sintetizados não entram no cache.
	cfg.syntheticTTL = getenvDurationDefault("SYNTHETIC_TTL", 0)
	cfg.liveTimeout = getenvDurationDefault("LIVE_TIMEOUT", 5*time.Second)
	cfg.writeTimeout = getenvDurationDefault("WRITE_TIMEOUT", 5*time.Second)
	cfg.flagTimeout = getenvDurationDefault("FLAG_TIMEOUT", 500*time.Millisecond)

	cfg.redisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.redisPrefix = strings.Trim(getenvDefault("REDIS_PREFIX", "engagement"), ":")
	cfg.sessionTTL = getenvDurationDefault("SESSION_TTL", 30*time.Minute)

	cfg.eventsEnabled = getenvBoolDefault("EVENTS_ENABLED", false)
	cfg.eventsTTL = getenvDurationDefault("EVENTS_TTL", 24*time.Hour)
	cfg.eventsBucket = getenvDefault("EVENTS_BUCKET", "minute")
	cfg.eventsTrackPosts = getenvBoolDefault("EVENTS_TRACK_POSTS", false)

	cfg.writeRPS = getenvFloatDefault("WRITE_RPS", 1)
	// o burst cobre a rajada de uma página (view + like + pesquisa).
	// Com WRITE_RPS < 1 explícito e sem WRITE_BURST, cai para 1.
	if burst, ok := getenvInt("WRITE_BURST"); ok {
		cfg.writeBurst = burst
	} else {
		cfg.writeBurst = 5
		if getenvIsSet("WRITE_RPS") && cfg.writeRPS > 0 && cfg.writeRPS < 1 {
			cfg.writeBurst = 1
		}
	}
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 1*time.Second)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.corsOrigins = getenvList("CORS_ORIGINS")
	cfg.trustedProxies = getenvList("TRUSTED_PROXIES")
	cfg.cookieSecure = getenvBoolDefault("COOKIE_SECURE", false)
	cfg.cookieDomain = os.Getenv("COOKIE_DOMAIN")

	cfg.logFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "text"))
	if err := cfg.logLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return config{}, errors.New("LOG_LEVEL must be debug, info, warn or error")
	}

	if cfg.metricsEndpoint == "" {
		return config{}, errors.New("METRICS_ENDPOINT is required")
	}
	if cfg.liveTTL <= 0 || cfg.staticTTL <= 0 {
		return config{}, errors.New("LIVE_TTL and STATIC_TTL must be > 0")
	}
	if cfg.syntheticTTL < 0 {
		return config{}, errors.New("SYNTHETIC_TTL must be >= 0")
	}
	if cfg.sessionTTL <= 0 {
		return config{}, errors.New("SESSION_TTL must be > 0")
	}
	if cfg.writeRPS <= 0 {
		return config{}, errors.New("WRITE_RPS must be > 0")
	}
	if cfg.writeBurst <= 0 {
		return config{}, errors.New("WRITE_BURST must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.logFormat != "text" && cfg.logFormat != "json" {
		return config{}, errors.New("LOG_FORMAT must be text or json")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvList lê uma lista separada por vírgulas, ignorando itens vazios.
func getenvList(k string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(k), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
