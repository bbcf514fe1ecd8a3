// cmd/ratelimit-reset inspects or clears a customer's rate limit counter,
// for support staff unlocking an account after a false positive.
//
// Usage:
//
//	REDIS_ADDR=localhost:6379 \
//	go run ./cmd/ratelimit-reset/ \
//	  --scope login-email \
//	  --id    customer@example.com \
//	  [--peek]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/0gfoundation/0g-storefront/internal/ratelimit"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ratelimit-reset", flag.ContinueOnError)
	fs.SetOutput(out)
	addr := fs.String("redis", envOr("REDIS_ADDR", "localhost:6379"), "Redis address")
	password := fs.String("password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	scopeName := fs.String("scope", "", "Scope: "+scopeList())
	id := fs.String("id", "", "Identifier (IP address or email)")
	peek := fs.Bool("peek", false, "Only print the counter, do not clear it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	scope := ratelimit.Scope(*scopeName)
	if !known(scope) {
		return fmt.Errorf("unknown scope %q (want one of %s)", *scopeName, scopeList())
	}
	if strings.TrimSpace(*id) == "" {
		return fmt.Errorf("--id is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: *addr, Password: *password})
	defer rdb.Close()

	limiter, err := ratelimit.New(ratelimit.NewRedisStore(rdb), ratelimit.DefaultConfig())
	if err != nil {
		return err
	}

	rec, err := limiter.Peek(ctx, scope, *id)
	if err != nil {
		return fmt.Errorf("read counter: %w", err)
	}
	fmt.Fprintf(out, "key:      %s\n", rec.Key)
	fmt.Fprintf(out, "attempts: %d\n", rec.Count)
	fmt.Fprintf(out, "expires:  %v\n", rec.TTL.Round(time.Second))
	if *peek {
		return nil
	}

	if err := limiter.Reset(ctx, scope, *id); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	fmt.Fprintln(out, "cleared ✓")
	return nil
}

func known(s ratelimit.Scope) bool {
	for _, k := range ratelimit.Scopes {
		if k == s {
			return true
		}
	}
	return false
}

func scopeList() string {
	names := make([]string, len(ratelimit.Scopes))
	for i, s := range ratelimit.Scopes {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
