package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/Domenick1991/parking/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RequestLogger tags each request with an id and logs its outcome at a
// level matching the status class.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request completed", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Recovery turns a panic into the standard 500 envelope.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("recovered from panic",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", requestID(c)),
					zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newEnvelope(false, internalErrorMessage, nil, http.StatusInternalServerError))
			}
		}()
		c.Next()
	}
}

type rateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter forgets clients idle for longer than it takes their bucket
// to refill, so dropping them never grants extra tokens.
func newRateLimiter(limit rate.Limit, burst int) *rateLimiter {
	idle := time.Duration(float64(burst) / float64(limit) * float64(time.Second))
	if idle < time.Minute {
		idle = time.Minute
	}
	return &rateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    limit,
		burst:    burst,
		idleTTL:  idle,
		now:      time.Now,
	}
}

func (l *rateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		for key, c := range l.limiters {
			if now.Sub(c.lastSeen) >= l.idleTTL {
				delete(l.limiters, key)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.limiters[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// RateLimit applies a token bucket per client IP. A non-positive RPS
// disables limiting.
func RateLimit(cfg config.RateLimitConfig, log *zap.Logger) gin.HandlerFunc {
	if cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	store := newRateLimiter(rate.Limit(cfg.RPS), burst)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.get(ip).Allow() {
			log.Warn("rate limit exceeded", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				newEnvelope(false, "Too many requests", nil, http.StatusTooManyRequests))
			return
		}
		c.Next()
	}
}

// CORS allows every origin when none are configured.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	c := cors.DefaultConfig()
	if len(cfg.AllowOrigins) > 0 {
		c.AllowOrigins = cfg.AllowOrigins
	} else {
		c.AllowAllOrigins = true
	}
	if len(cfg.AllowMethods) > 0 {
		c.AllowMethods = cfg.AllowMethods
	}
	if len(cfg.AllowHeaders) > 0 {
		c.AllowHeaders = cfg.AllowHeaders
	}
	if cfg.MaxAge > 0 {
		c.MaxAge = cfg.MaxAge
	}
	return cors.New(c)
}
