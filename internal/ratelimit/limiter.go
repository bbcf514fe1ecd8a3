// Package ratelimit is admission control for login, registration and checkout.
//
// Counters live in an expiring key-value store (Redis in production); the
// process holds no authoritative state. Each key counts attempts inside a
// fixed window that starts at the first attempt and ends when the store
// expires the key.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownScope = errors.New("ratelimit: unknown scope")

// Result is the outcome of one CheckAndIncrement.
type Result struct {
	Scope   Scope
	Allowed bool
	// Count is the number of attempts recorded in the current window.
	Count int64
	// Remaining is how many more attempts the window allows.
	Remaining int
	// ResetTime is when the store will expire the window.
	ResetTime time.Time
	// Delay is the advisory wait before acting on an allowed attempt.
	Delay  time.Duration
	Reason string
}

// RetryAfter is the time left until ResetTime, measured from now.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Record is a read-only view of one counter.
type Record struct {
	Key   string
	Count int64
	TTL   time.Duration
}

// Limiter counts attempts per scope and identifier.
type Limiter struct {
	store Store
	cfg   Config
	now   func() time.Time
}

func New(store Store, cfg Config) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("ratelimit: store is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Limiter{store: store, cfg: cfg, now: time.Now}, nil
}

// Rule returns the configured rule for scope.
func (l *Limiter) Rule(scope Scope) (Rule, bool) {
	r, ok := l.cfg.Rules[scope]
	return r, ok
}

// CheckAndIncrement records one attempt for identifier under scope.
//
// A throttled identifier is rejected without touching the counter, so
// rejected attempts neither extend the window nor count twice. Otherwise the
// counter is incremented atomically; a caller whose increment pushes the
// count past Max lost a race at the boundary and is rejected too.
//
// Store failures are returned wrapped in ErrStoreUnavailable and nothing is
// retried. An increment that succeeded stands even if ctx is cancelled
// afterwards.
func (l *Limiter) CheckAndIncrement(ctx context.Context, scope Scope, identifier string) (Result, error) {
	rule, ok := l.cfg.Rules[scope]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}
	key, err := Key(scope, identifier)
	if err != nil {
		return Result{}, err
	}

	count, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if count >= int64(rule.Max) {
		ttl, err := l.store.TTL(ctx, key)
		if err != nil {
			return Result{}, err
		}
		return l.denied(scope, rule, count, ttl), nil
	}

	n, ttl, err := l.store.Incr(ctx, key, rule.Window)
	if err != nil {
		return Result{}, err
	}
	if n > int64(rule.Max) {
		return l.denied(scope, rule, n, ttl), nil
	}

	return Result{
		Scope:     scope,
		Allowed:   true,
		Count:     n,
		Remaining: rule.Max - int(n),
		ResetTime: l.now().Add(ttl),
		Delay:     l.cfg.delayFor(n - 1),
	}, nil
}

// Reset clears the counter for identifier under scope.
func (l *Limiter) Reset(ctx context.Context, scope Scope, identifier string) error {
	if _, ok := l.cfg.Rules[scope]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}
	key, err := Key(scope, identifier)
	if err != nil {
		return err
	}
	return l.store.Delete(ctx, key)
}

// Peek reads a counter without modifying it or its TTL.
func (l *Limiter) Peek(ctx context.Context, scope Scope, identifier string) (Record, error) {
	key, err := Key(scope, identifier)
	if err != nil {
		return Record{}, err
	}
	count, err := l.store.Get(ctx, key)
	if err != nil {
		return Record{}, err
	}
	ttl, err := l.store.TTL(ctx, key)
	if err != nil {
		return Record{}, err
	}
	return Record{Key: key, Count: count, TTL: ttl}, nil
}

func (l *Limiter) denied(scope Scope, rule Rule, count int64, ttl time.Duration) Result {
	return Result{
		Scope:     scope,
		Allowed:   false,
		Count:     count,
		ResetTime: l.now().Add(ttl),
		Reason:    fmt.Sprintf("%s: limit of %d attempts per %v reached", scope, rule.Max, rule.Window),
	}
}
