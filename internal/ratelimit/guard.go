package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ExceededError is returned when an identifier is throttled.
type ExceededError struct {
	Scope      Scope
	ResetTime  time.Time
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %v", e.Scope, e.RetryAfter.Round(time.Second))
}

func (e *ExceededError) Is(target error) bool { return target == ErrRateLimitExceeded }

// Message is the text shown to the customer.
func (e *ExceededError) Message() string {
	return "Çok fazla deneme yapıldı. Lütfen " + humanizeTR(e.RetryAfter) + " sonra tekrar deneyin."
}

// RetryAfterSeconds rounds up, for the Retry-After header.
func (e *ExceededError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

func humanizeTR(d time.Duration) string {
	if d <= time.Minute {
		s := int(math.Ceil(d.Seconds()))
		if s < 1 {
			s = 1
		}
		return fmt.Sprintf("%d saniye", s)
	}
	return fmt.Sprintf("%d dakika", int(math.Ceil(d.Minutes())))
}

// Admission is the outcome of a fully admitted attempt.
type Admission struct {
	// Delay is the largest advisory delay across the checked scopes.
	Delay time.Duration
	// Remaining is the smallest number of attempts left across the scopes.
	Remaining int
	Results   []Result
}

// Guard applies the per-flow policy on top of a Limiter. It always fails
// closed: when the store cannot be reached the attempt is refused with an
// error wrapping ErrStoreUnavailable. There is no switch to bypass it.
type Guard struct {
	limiter *Limiter
	now     func() time.Time
}

func NewGuard(l *Limiter) *Guard {
	return &Guard{limiter: l, now: time.Now}
}

type check struct {
	scope      Scope
	identifier string
}

// AdmitLogin checks the address and the email; both must pass.
func (g *Guard) AdmitLogin(ctx context.Context, ip, email string) (Admission, error) {
	return g.admit(ctx, check{LoginIP, ip}, check{LoginEmail, email})
}

// AdmitRegister checks the address and the email; both must pass.
func (g *Guard) AdmitRegister(ctx context.Context, ip, email string) (Admission, error) {
	return g.admit(ctx, check{RegisterIP, ip}, check{RegisterEmail, email})
}

func (g *Guard) AdmitCheckout(ctx context.Context, ip string) (Admission, error) {
	return g.admit(ctx, check{CheckoutIP, ip})
}

// LoginSucceeded clears the failed-attempt history of both the address and
// the email.
func (g *Guard) LoginSucceeded(ctx context.Context, ip, email string) error {
	return errors.Join(
		g.limiter.Reset(ctx, LoginIP, ip),
		g.limiter.Reset(ctx, LoginEmail, email),
	)
}

// RegisterSucceeded clears only the email counter. The address keeps its
// hourly cap so one host cannot register accounts in bulk.
func (g *Guard) RegisterSucceeded(ctx context.Context, email string) error {
	return g.limiter.Reset(ctx, RegisterEmail, email)
}

func (g *Guard) admit(ctx context.Context, checks ...check) (Admission, error) {
	adm := Admission{Remaining: math.MaxInt}
	for _, c := range checks {
		res, err := g.limiter.CheckAndIncrement(ctx, c.scope, c.identifier)
		if err != nil {
			return Admission{}, fmt.Errorf("%s: %w", c.scope, err)
		}
		if !res.Allowed {
			return Admission{}, &ExceededError{
				Scope:      c.scope,
				ResetTime:  res.ResetTime,
				RetryAfter: res.RetryAfter(g.now()),
			}
		}
		adm.Results = append(adm.Results, res)
		if res.Delay > adm.Delay {
			adm.Delay = res.Delay
		}
		if res.Remaining < adm.Remaining {
			adm.Remaining = res.Remaining
		}
	}
	return adm, nil
}
