package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"MarketPulse/internal/service/ratelimit"
)

// RateLimit rejects requests over limit-per-window for a client IP with 429.
func RateLimit(limiter *ratelimit.Limiter, limit int, window time.Duration) echo.MiddlewareFunc {
	if window <= 0 {
		window = time.Second
	}
	capacity := float64(limit)
	refill := capacity / window.Seconds()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow(c.RealIP(), capacity, refill) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}
