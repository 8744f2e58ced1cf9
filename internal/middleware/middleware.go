// Package middleware provides gin middleware for the query surface:
// request tracing (the engine traces its own API), metrics, and rate
// limiting.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spanlight/spanlight/internal/logging"
	"github.com/spanlight/spanlight/internal/monitoring"
	"github.com/spanlight/spanlight/internal/tracing"
	"golang.org/x/time/rate"
)

// Tracing runs each request inside a fresh trace and collects it. The
// ambient trace context is available to handlers through the request
// context.
func Tracing(collector tracing.Collector, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = tracing.Run(c.Request.Context(), collector, c.FullPath(), map[string]any{
			"source": "http",
		}, logger, func(ctx context.Context) error {
			tc, _ := tracing.FromContext(ctx)
			c.Request = c.Request.WithContext(ctx)

			// The analyzer reads span tags, not trace metadata.
			if tc != nil {
				tc.AddTags(map[string]any{
					"http.method": c.Request.Method,
					"http.path":   c.Request.URL.Path,
				})
			}

			c.Next()

			if tc != nil {
				tc.AddTags(map[string]any{
					"http.status": c.Writer.Status(),
				})
			}
			if len(c.Errors) > 0 {
				return c.Errors.Last()
			}
			return nil
		})
	}
}

// Metrics records request counts and latency.
func Metrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		metrics.RecordHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}

// RateLimit applies a global token-bucket limit to the query surface.
func RateLimit(rps, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
