package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"vidadmin/internal/server/auth"
	"vidadmin/internal/server/service"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

const sessionKey = "session"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidadmin_http_requests_total",
			Help: "HTTP requests handled, by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidadmin_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// visitor tracks the rate limit state for a single IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-IP token-bucket rate limiter.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter creates a rate limiter with the given rate (requests/sec) and burst size.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Middleware returns an echo middleware function that enforces rate limits.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !rl.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", c.Request().URL.Path)
				return writeError(c, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later")
			}
			return next(c)
		}
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Start evicts idle visitors every five minutes until ctx is done.
func (rl *RateLimiter) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup(rl.now().Add(-10 * time.Minute))
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Cleanup drops visitors idle since before cutoff.
func (rl *RateLimiter) Cleanup(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// RequestLogger returns an echo middleware that logs requests using slog.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", c.RealIP(),
				"user_agent", req.UserAgent(),
				"bytes_out", res.Size,
			}
			if claims := sessionFrom(c); claims != nil {
				attrs = append(attrs, "user_id", claims.Subject)
			}
			slog.Info("request", attrs...)

			return err
		}
	}
}

// Metrics records request counts and latency per route template.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			// Route templates keep label cardinality bounded.
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// SessionLoader resolves the session cookie or bearer token, when present,
// and stores the claims on the context. It never rejects a request.
func SessionLoader(accounts *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request())
			if token == "" {
				if cookie, err := c.Cookie(auth.CookieName); err == nil {
					token = cookie.Value
				}
			}
			if token != "" {
				if claims, err := accounts.Authenticate(token); err == nil {
					c.Set(sessionKey, claims)
				} else {
					slog.Debug("ignoring invalid session", "error", err)
				}
			}
			return next(c)
		}
	}
}

// RequireSession rejects API requests without a valid session before the
// handler runs.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if sessionFrom(c) == nil {
				return mapServiceError(c, service.ErrUnauthorized)
			}
			return next(c)
		}
	}
}

// PageGuard redirects anonymous visitors away from the dashboard and signed-in
// users away from the login page.
func PageGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if target := guardDecision(c.Request().URL.Path, sessionFrom(c) != nil); target != "" {
				return c.Redirect(http.StatusFound, target)
			}
			return next(c)
		}
	}
}

// guardDecision returns the redirect target for path, or "" to pass through.
func guardDecision(path string, authenticated bool) string {
	switch {
	case hasRoutePrefix(path, "/login") && authenticated:
		return "/dashboard"
	case hasRoutePrefix(path, "/dashboard") && !authenticated:
		return "/login"
	}
	return ""
}

// hasRoutePrefix matches prefix itself and anything below it, but not
// siblings such as /dashboards.
func hasRoutePrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func sessionFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(sessionKey).(*auth.Claims)
	return claims
}
