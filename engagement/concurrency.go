package engagement

import (
	"net/http"

	"blog-engagement/engagement/application"

	"github.com/gin-gonic/gin"
)

// LimitConcurrency segura uma vaga do pool durante a requisição.
// Sem vaga dentro do AcquireTimeout responde 503.
func LimitConcurrency(svc application.ConcurrencyService) gin.HandlerFunc {
	if svc.Pool == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		release, ok := svc.Acquire(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": http.StatusText(http.StatusServiceUnavailable)})
			return
		}
		defer release()
		c.Next()
	}
}
