package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kovanet/kovascan/internal/metrics"
)

// Logger returns a gin.HandlerFunc (middleware) that logs requests using zerolog.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		var errorMessage string
		if len(c.Errors) > 0 {
			errorMessage = c.Errors.String()
		}

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = path
		}
		metrics.ApiRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()

		log.Debug().
			Str("path", path).
			Str("raw", raw).
			Int("status", statusCode).
			Str("method", c.Request.Method).
			Str("ip", c.ClientIP()).
			Dur("latency", latency).
			Str("error", errorMessage).
			Msg("incoming request")
	}
}
