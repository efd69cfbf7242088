package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/eleven-am/zentoria-gateway/internal/shared"
	"github.com/redis/go-redis/v9"
)

type Action string

const (
	ActionLogin         Action = "login"
	ActionPasswordReset Action = "password_reset"
	ActionKeyCreate     Action = "api_key_create"
	ActionAICommand     Action = "ai_command"
	ActionFileUpload    Action = "file_upload"
	ActionAPIRequest    Action = "api_request"
)

type Config struct {
	Limit  int
	Window time.Duration
}

var defaults = map[Action]Config{
	ActionLogin:         {Limit: 10, Window: 15 * time.Minute},
	ActionPasswordReset: {Limit: 3, Window: time.Hour},
	ActionKeyCreate:     {Limit: 5, Window: time.Hour},
	ActionAICommand:     {Limit: 60, Window: time.Minute},
	ActionFileUpload:    {Limit: 100, Window: time.Hour},
	ActionAPIRequest:    {Limit: 100, Window: time.Minute},
}

// Actions lists the named actions in a stable order.
func Actions() []Action {
	return []Action{
		ActionLogin,
		ActionPasswordReset,
		ActionKeyCreate,
		ActionAICommand,
		ActionFileUpload,
		ActionAPIRequest,
	}
}

func DefaultConfig(action Action) (Config, bool) {
	cfg, ok := defaults[action]
	return cfg, ok
}

// overridable reports whether per-key limits replace the named default.
func overridable(action Action) bool {
	return action == ActionAPIRequest || action == ActionAICommand
}

// ConfigFor returns the windows a request for action must pass. Per-key
// overrides apply to request-volume actions only.
func ConfigFor(action Action, limits *shared.KeyLimits) []Config {
	base, ok := defaults[action]
	if !ok {
		base = defaults[ActionAPIRequest]
	}
	if limits.Empty() || !overridable(action) {
		return []Config{base}
	}

	configs := []Config{base}
	if limits.PerMinute != nil {
		configs[0] = Config{Limit: *limits.PerMinute, Window: time.Minute}
	}
	if limits.PerDay != nil {
		configs = append(configs, Config{Limit: *limits.PerDay, Window: 24 * time.Hour})
	}
	return configs
}

// Overridden reports whether limits change the windows for action. Callers
// key overridden counters by key id rather than by owner.
func Overridden(action Action, limits *shared.KeyLimits) bool {
	return !limits.Empty() && overridable(action)
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a rejected caller should wait, rounded up to whole
// seconds and never below one.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return (d + time.Second - 1).Truncate(time.Second)
}

type Limiter struct {
	redis  redis.Cmdable
	logger *slog.Logger
	now    func() time.Time
}

func NewLimiter(redisClient redis.Cmdable, logger *slog.Logger) *Limiter {
	return &Limiter{
		redis:  redisClient,
		logger: logger.With("component", "ratelimit"),
		now:    time.Now,
	}
}

func (l *Limiter) Now() time.Time {
	return l.now()
}

func bucketKey(action Action, subject string, window time.Duration, primary bool) string {
	key := fmt.Sprintf("ratelimit:%s:%s", action, subject)
	if !primary {
		key += ":" + strconv.FormatInt(int64(window/time.Second), 10)
	}
	return key
}

// Check records the request and reports whether it fits in the window.
// Storage failures fail open.
func (l *Limiter) Check(ctx context.Context, subject string, action Action, cfg Config) Result {
	return l.check(ctx, bucketKey(action, subject, cfg.Window, true), cfg, true)
}

// Status reads the window without recording a request.
func (l *Limiter) Status(ctx context.Context, subject string, action Action, cfg Config) Result {
	return l.check(ctx, bucketKey(action, subject, cfg.Window, true), cfg, false)
}

// CheckAll records the request against every window and is allowed only when
// all of them allow it. The returned result is the most constrained window.
func (l *Limiter) CheckAll(ctx context.Context, subject string, action Action, configs []Config) Result {
	var out Result
	for i, cfg := range configs {
		r := l.check(ctx, bucketKey(action, subject, cfg.Window, i == 0), cfg, true)
		if i == 0 || moreConstrained(r, out) {
			out = r
		}
	}
	return out
}

// StatusAll reads every window CheckAll would charge, in the same order.
func (l *Limiter) StatusAll(ctx context.Context, subject string, action Action, configs []Config) []Result {
	out := make([]Result, len(configs))
	for i, cfg := range configs {
		out[i] = l.check(ctx, bucketKey(action, subject, cfg.Window, i == 0), cfg, false)
	}
	return out
}

func moreConstrained(a, b Result) bool {
	if a.Allowed != b.Allowed {
		return !a.Allowed
	}
	return a.Remaining < b.Remaining
}

func (l *Limiter) check(ctx context.Context, key string, cfg Config, record bool) Result {
	now := l.now()
	nowMicro := now.UnixMicro()
	cutoff := nowMicro - cfg.Window.Microseconds()

	pipe := l.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, key)
	if record {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMicro), Member: shared.NewID("req_")})
		pipe.Expire(ctx, key, cfg.Window)
	}
	oldest := pipe.ZRangeWithScores(ctx, key, 0, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limit check failed, allowing request", "error", err, "key", key)
		return l.open(now, cfg)
	}

	count, err := card.Result()
	if err != nil {
		l.logger.Warn("malformed rate limit reply, allowing request", "error", err, "key", key)
		return l.open(now, cfg)
	}
	if record {
		count++
	}

	resetAt := now.Add(cfg.Window)
	if entries, err := oldest.Result(); err == nil && len(entries) > 0 {
		resetAt = time.UnixMicro(int64(entries[0].Score)).Add(cfg.Window)
	}

	allowed := int(count) <= cfg.Limit
	if !record {
		allowed = int(count) < cfg.Limit
	}

	return Result{
		Allowed:   allowed,
		Limit:     cfg.Limit,
		Remaining: max(0, cfg.Limit-int(count)),
		ResetAt:   resetAt,
	}
}

func (l *Limiter) open(now time.Time, cfg Config) Result {
	return Result{
		Allowed:   true,
		Limit:     cfg.Limit,
		Remaining: cfg.Limit,
		ResetAt:   now.Add(cfg.Window),
	}
}
