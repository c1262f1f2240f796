package engagement

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// WriteLimiter decide se o visitante ainda pode escrever agora.
// *infra.SessionRegistry[Visitor, T] satisfaz esta interface.
type WriteLimiter interface {
	AllowWrite(v Visitor) bool
	RPS() float64
	Burst() int
}

type ThrottleOptions struct {
	Limiter             WriteLimiter
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	Logger              *slog.Logger
}

// ThrottleWrites aplica o token bucket do visitante. Sem visitante
// identificado (Identify não rodou) a requisição passa.
func ThrottleWrites(opts ThrottleOptions) gin.HandlerFunc {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return func(c *gin.Context) {
		v, ok := VisitorFrom(c)
		if opts.Limiter == nil || !ok {
			c.Next()
			return
		}

		if opts.AddRateLimitHeaders {
			c.Header("X-RateLimit-RPS", strconv.FormatFloat(opts.Limiter.RPS(), 'f', -1, 64))
			c.Header("X-RateLimit-Burst", strconv.Itoa(opts.Limiter.Burst()))
		}

		if !opts.Limiter.AllowWrite(v) {
			opts.Logger.Debug("write throttled", "sessionId", v.SessionID, "path", c.FullPath())
			c.Header("Retry-After", strconv.Itoa(int(opts.RetryAfter.Seconds())))
			c.AbortWithStatusJSON(opts.RejectStatus, gin.H{"error": http.StatusText(opts.RejectStatus)})
			return
		}
		c.Next()
	}
}
