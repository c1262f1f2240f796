package engagement

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// isClientGone reconhece erros de escrita em conexão que o cliente já fechou.
func isClientGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.EPIPE) || errors.Is(opErr.Err, syscall.ECONNRESET) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "broken pipe")
}

// RequestLogger loga cada requisição em slog, ignorando "broken pipe" de
// clientes que saíram da página antes da resposta.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		last := c.Errors.Last()
		if last != nil && isClientGone(last.Err) {
			return
		}

		status := c.Writer.Status()
		level := slog.LevelDebug
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"clientIP", c.ClientIP(),
		}
		if last != nil {
			attrs = append(attrs, "error", last.Error())
		}
		logger.Log(c.Request.Context(), level, "request", attrs...)
	}
}
