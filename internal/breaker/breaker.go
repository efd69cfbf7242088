package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned without attempting the call while a breaker is open
// or while a half-open breaker is already probing.
var ErrOpen = errors.New("circuit breaker open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type Config struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// HalfOpenRequests is the number of probe calls allowed while half-open.
	HalfOpenRequests uint32
	// Interval clears closed-state counts periodically; zero never clears.
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenRequests: 1,
		Interval:         time.Minute,
	}
}

// Registry holds one breaker per dependency name.
type Registry struct {
	cfg      Config
	logger   *slog.Logger
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	return &Registry{
		cfg:      cfg,
		logger:   logger.With("component", "breaker"),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (r *Registry) get(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	threshold := r.cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: r.cfg.HalfOpenRequests,
		Interval:    r.cfg.Interval,
		Timeout:     r.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A caller hanging up says nothing about the dependency.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				r.logger.Warn("circuit opened", "breaker", name, "from", from.String())
				return
			}
			r.logger.Info("circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	r.breakers[name] = cb
	return cb
}

// Execute runs op through the named breaker with a per-call deadline.
func (r *Registry) Execute(ctx context.Context, name string, timeout time.Duration, op func(ctx context.Context) (any, error)) (any, error) {
	cb := r.get(name)

	result, err := cb.Execute(func() (any, error) {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return op(callCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", name, ErrOpen)
	}
	return result, err
}

func (r *Registry) State(name string) State {
	switch r.get(name).State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Do is a typed wrapper around Registry.Execute.
func Do[T any](ctx context.Context, r *Registry, name string, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result, err := r.Execute(ctx, name, timeout, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, nil
	}
	return typed, nil
}
