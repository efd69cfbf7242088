package auth

import (
	"sync"
	"time"

	"github.com/eleven-am/zentoria-gateway/internal/shared"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type IPGuardConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
}

func DefaultIPGuardConfig() IPGuardConfig {
	return IPGuardConfig{
		RequestsPerSecond: 20,
		Burst:             40,
		CleanupInterval:   5 * time.Minute,
	}
}

// IPGuard is an in-process token bucket per client IP. It runs before
// credential resolution so floods never reach the key store or the identity
// provider. It is per instance and complements the shared limiter.
type IPGuard struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	config   IPGuardConfig
	stop     chan struct{}
	stopOnce sync.Once
}

func NewIPGuard(cfg IPGuardConfig) *IPGuard {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultIPGuardConfig().CleanupInterval
	}
	g := &IPGuard{
		limiters: make(map[string]*rate.Limiter),
		config:   cfg,
		stop:     make(chan struct{}),
	}
	go g.cleanupLoop()
	return g
}

func (g *IPGuard) getLimiter(ip string) *rate.Limiter {
	g.mu.RLock()
	limiter, exists := g.limiters[ip]
	g.mu.RUnlock()

	if exists {
		return limiter
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if limiter, exists = g.limiters[ip]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(g.config.RequestsPerSecond), g.config.Burst)
	g.limiters[ip] = limiter
	return limiter
}

func (g *IPGuard) cleanupLoop() {
	ticker := time.NewTicker(g.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.mu.Lock()
			for ip, limiter := range g.limiters {
				// A full bucket carries no history worth keeping.
				if limiter.Tokens() >= float64(g.config.Burst) {
					delete(g.limiters, ip)
				}
			}
			g.mu.Unlock()
		}
	}
}

func (g *IPGuard) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

func (g *IPGuard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !g.getLimiter(c.RealIP()).Allow() {
				c.Response().Header().Set("Retry-After", "1")
				return shared.TooManyRequests("rate_limit_exceeded", "too many requests")
			}
			return next(c)
		}
	}
}
