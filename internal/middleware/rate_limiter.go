package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each client IP the given number of requests per
// duration. Idle entries are swept on later requests.
func RateLimiter(requests int, duration time.Duration) echo.MiddlewareFunc {
	if requests <= 0 {
		requests = 1
	}
	var (
		visitors  = make(map[string]*visitor)
		mu        sync.Mutex
		lastSweep = time.Now()
	)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			now := time.Now()

			mu.Lock()
			if now.Sub(lastSweep) > 5*time.Minute {
				for key, v := range visitors {
					if now.Sub(v.lastSeen) > 10*time.Minute {
						delete(visitors, key)
					}
				}
				lastSweep = now
			}
			v, exists := visitors[ip]
			if !exists {
				v = &visitor{limiter: rate.NewLimiter(rate.Every(duration/time.Duration(requests)), requests)}
				visitors[ip] = v
			}
			v.lastSeen = now
			mu.Unlock()

			if !v.limiter.Allow() {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "Rate limit exceeded. Please try again later.",
				})
			}
			return next(c)
		}
	}
}
