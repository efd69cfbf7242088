package health

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/zentoria-gateway/internal/breaker"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RequestStats struct {
	TotalRequests     uint64 `json:"total_requests"`
	ActiveConnections int64  `json:"active_connections"`
}

type ReadinessResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Requests      RequestStats               `json:"requests"`
	Components    map[string]ComponentStatus `json:"components"`
}

// ProviderStater reports the identity provider's circuit state.
type ProviderStater interface {
	ProviderState() breaker.State
}

// Database and redis are required for every request; the identity provider
// only for bearer tokens.
var critical = map[string]bool{"database": true, "redis": true}

type Handler struct {
	db        *gorm.DB
	redis     redis.Cmdable
	identity  ProviderStater
	version   string
	startTime time.Time

	totalRequests     atomic.Uint64
	activeConnections atomic.Int64
}

func NewHandler(db *gorm.DB, redis redis.Cmdable, identity ProviderStater, version string) *Handler {
	return &Handler{
		db:        db,
		redis:     redis,
		identity:  identity,
		version:   version,
		startTime: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Liveness)
	e.GET("/health/ready", h.Readiness)
}

// Track counts a request for the readiness report.
func (h *Handler) Track(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h.totalRequests.Add(1)
		h.activeConnections.Add(1)
		defer h.activeConnections.Add(-1)
		return next(c)
	}
}

func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := map[string]func(context.Context) ComponentStatus{
		"database": timed(h.pingDatabase),
		"redis":    timed(h.pingRedis),
		"identity": h.checkIdentity,
	}

	components := make(map[string]ComponentStatus, len(checks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, check := range checks {
		name, check := name, check
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := check(ctx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall := overallStatus(components)
	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	return c.JSON(code, ReadinessResponse{
		Status:        overall,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Requests: RequestStats{
			TotalRequests:     h.totalRequests.Load(),
			ActiveConnections: h.activeConnections.Load(),
		},
		Components: components,
	})
}

// timed turns a ping into a component status: any error is unhealthy.
func timed(ping func(context.Context) error) func(context.Context) ComponentStatus {
	return func(ctx context.Context) ComponentStatus {
		start := time.Now()
		status := ComponentStatus{Status: StatusHealthy}
		if err := ping(ctx); err != nil {
			status = ComponentStatus{Status: StatusUnhealthy, Error: err.Error()}
		}
		status.LatencyMs = time.Since(start).Milliseconds()
		return status
	}
}

func (h *Handler) pingDatabase(ctx context.Context) error {
	if h.db == nil {
		return errors.New("database not configured")
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return errors.New("failed to get underlying db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.New("ping failed")
	}
	return nil
}

func (h *Handler) pingRedis(ctx context.Context) error {
	if h.redis == nil {
		return errors.New("redis not configured")
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return errors.New("ping failed")
	}
	return nil
}

// An open identity breaker is degraded, not unhealthy: API keys still
// authenticate without the provider.
func (h *Handler) checkIdentity(context.Context) ComponentStatus {
	if h.identity == nil {
		return ComponentStatus{Status: StatusDegraded, Error: "identity provider not configured"}
	}
	if state := h.identity.ProviderState(); state != breaker.StateClosed {
		return ComponentStatus{Status: StatusDegraded, Error: "circuit " + string(state)}
	}
	return ComponentStatus{Status: StatusHealthy}
}

func overallStatus(components map[string]ComponentStatus) Status {
	overall := StatusHealthy
	for name, c := range components {
		switch {
		case c.Status == StatusUnhealthy && critical[name]:
			return StatusUnhealthy
		case c.Status != StatusHealthy:
			overall = StatusDegraded
		}
	}
	return overall
}
