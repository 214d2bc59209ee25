package httpgin

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redisrepo "github.com/kirinyoku/tourgo/internal/repository/redis"
)

const (
	headerRequestID  = "X-Request-ID"
	headerCustomerID = "X-Customer-ID"
	ctxRequestID     = "request_id"
)

// RequestIDMiddleware echoes the caller's X-Request-ID or mints one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			headerRequestID, headerCustomerID, headerIdempotencyKey, "If-None-Match",
		},
		ExposeHeaders: []string{
			headerRequestID, "ETag", "Cache-Control", "Retry-After",
			"X-RateLimit-Limit", "X-RateLimit-Remaining",
		},
		MaxAge: 12 * time.Hour,
	})
}

// LoggingMiddleware writes one line per request. Server errors log at ERROR,
// client errors at WARN.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError || len(c.Errors) > 0:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		logger.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("request_id", c.GetString(ctxRequestID)),
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
		)
	}
}

// RateLimit applies the sliding window per customer (X-Customer-ID) or, when
// the header is absent, per client IP. A nil limiter disables it and a limiter
// error lets the request through.
func RateLimit(limiter *redisrepo.SlidingWindowLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if id := c.GetHeader(headerCustomerID); id != "" {
			subject = "customer:" + id
		}

		d, err := limiter.Allow(c.Request.Context(), subject)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limiter unavailable", slog.String("error", err.Error()))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			c.Header("Retry-After", d.RetryAfterSeconds())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many booking attempts, try again later"})
			return
		}

		c.Next()
	}
}
