package ratelimit

import (
	"fmt"
	"time"
)

// Rule caps attempts for one scope. The window is anchored at the first
// attempt and ends when the store expires the counter.
type Rule struct {
	Max    int
	Window time.Duration
}

// Config holds the per-scope rules and the progressive-delay table. Delays[i]
// is the advisory wait before attempt i+1, i.e. after i prior attempts in the
// current window; counts past the end use the last entry.
type Config struct {
	Rules  map[Scope]Rule
	Delays []time.Duration
}

// DefaultConfig is the production policy. Registration is capped per hour so
// one address cannot mass-create accounts.
func DefaultConfig() Config {
	return Config{
		Rules: map[Scope]Rule{
			LoginIP:       {Max: 20, Window: 15 * time.Minute},
			LoginEmail:    {Max: 5, Window: 15 * time.Minute},
			RegisterIP:    {Max: 5, Window: time.Hour},
			RegisterEmail: {Max: 3, Window: time.Hour},
			CheckoutIP:    {Max: 10, Window: 10 * time.Minute},
		},
		Delays: []time.Duration{0, 0, time.Second, 2 * time.Second, 3 * time.Second, 5 * time.Second},
	}
}

func (c Config) validate() error {
	if len(c.Rules) == 0 {
		return fmt.Errorf("ratelimit: no rules configured")
	}
	for scope, r := range c.Rules {
		if r.Max <= 0 {
			return fmt.Errorf("ratelimit: %s max must be positive, got %d", scope, r.Max)
		}
		if r.Window < time.Second {
			return fmt.Errorf("ratelimit: %s window must be at least 1s, got %v", scope, r.Window)
		}
	}
	for i, d := range c.Delays {
		if d < 0 {
			return fmt.Errorf("ratelimit: delay[%d] is negative", i)
		}
		if i > 0 && d < c.Delays[i-1] {
			return fmt.Errorf("ratelimit: delays must be non-decreasing (delay[%d]=%v < delay[%d]=%v)", i, d, i-1, c.Delays[i-1])
		}
	}
	return nil
}

// delayFor looks up the progressive delay for a pre-increment attempt count.
func (c Config) delayFor(prior int64) time.Duration {
	if len(c.Delays) == 0 {
		return 0
	}
	if prior < 0 {
		prior = 0
	}
	if prior >= int64(len(c.Delays)) {
		return c.Delays[len(c.Delays)-1]
	}
	return c.Delays[prior]
}
