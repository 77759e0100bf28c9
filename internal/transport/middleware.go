package transport

import (
	"crypto/subtle"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agentfleet/coordinator/internal/transport/httpx"

	"github.com/agentfleet/coordinator/internal/domain/apperr"
)

// noisyPaths are high-frequency read/long-poll paths logged at Debug to
// keep Info clean: the dispatcher and change-feed endpoints are polled
// continuously by every connected agent.
var noisyPaths = map[string]bool{
	"/api/v1/tasks/next": true,
	"/api/v1/changes":    true,
	"/api/v1/ws":         true,
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"request_id", c.Writer.Header().Get("X-Request-ID"),
		}
		if status >= 400 {
			slog.Error("request", attrs...)
			return
		}
		if c.Request.Method == "GET" && noisyPaths[c.Request.URL.Path] {
			slog.Debug("request", attrs...)
			return
		}
		slog.Info("request", attrs...)
	}
}

// CorrelationID stamps every request with an X-Request-ID (generated
// unless the caller already supplied one), returned in the response
// header and logged by RequestLogger on every 4xx/5xx.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Idempotency-Key, X-API-Key, X-Agent-ID, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// APIKeyMiddleware checks X-API-Key against the configured key using a
// constant-time comparison, mirroring go-claw's gateway.AuthMiddleware. A
// nil/empty apiKey disables the check entirely, since a local dev
// deployment with API_KEY unset should not be locked out.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		got := c.GetHeader("X-API-Key")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
			httpx.WriteError(c, apperr.New(apperr.KindUnauthorized, "missing or invalid API key"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// tokenBucket is a minimal token-bucket rate limiter, one per API key,
// grounded on go-claw's gateway.TokenBucket.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(limit int, period time.Duration) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(limit),
		maxTokens:  float64(limit),
		refillRate: float64(limit) / period.Seconds(),
		lastRefill: time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// RateLimitMiddleware enforces a per-API-key token bucket, default 100
// requests per 60s per §6 (API_RATE_LIMIT/API_RATE_LIMIT_PERIOD). Requests
// with no API key bucket by remote address instead, so an unauthenticated
// deployment is still protected from a single runaway client.
func RateLimitMiddleware(limit int, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 100
	}
	if period <= 0 {
		period = 60 * time.Second
	}

	var mu sync.Mutex
	buckets := make(map[string]*tokenBucket)

	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.ClientIP()
		}

		mu.Lock()
		b, ok := buckets[key]
		if !ok {
			b = newTokenBucket(limit, period)
			buckets[key] = b
		}
		mu.Unlock()

		if !b.allow() {
			c.Writer.Header().Set("Retry-After", "1")
			httpx.WriteError(c, apperr.New(apperr.KindTooManyRequests, "rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// ProjectScopeMiddleware rejects any request under rg missing project_id
// (query param or :project_id route param) with a 400 before the handler
// ever runs.
func ProjectScopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := httpx.RequireProjectID(c); !ok {
			c.Abort()
			return
		}
		c.Next()
	}
}
