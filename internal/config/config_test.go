package config

import (
	"strings"
	"testing"
	"time"

	"github.com/0gfoundation/0g-storefront/internal/ratelimit"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PAYMENT_API_URL", "https://sandbox-api.example.com")
	t.Setenv("PAYMENT_API_KEY", "api-key")
	t.Setenv("PAYMENT_SECRET_KEY", "secret-key")
	t.Setenv("JWT_SECRET", "jwt-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port: got %d", cfg.Server.Port)
	}
	if cfg.Payment.AuthScheme != "PWS" || cfg.Payment.NonceHeader != "x-rnd" {
		t.Errorf("payment header defaults: %q %q", cfg.Payment.AuthScheme, cfg.Payment.NonceHeader)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver: got %q", cfg.Database.Driver)
	}

	lc := cfg.Limiter()
	def := ratelimit.DefaultConfig()
	for _, s := range ratelimit.Scopes {
		if lc.Rules[s] != def.Rules[s] {
			t.Errorf("%s: got %+v want %+v", s, lc.Rules[s], def.Rules[s])
		}
	}
	if len(lc.Delays) != len(def.Delays) {
		t.Fatalf("delays: got %v want %v", lc.Delays, def.Delays)
	}
	for i := range def.Delays {
		if lc.Delays[i] != def.Delays[i] {
			t.Errorf("delay[%d]: got %v want %v", i, lc.Delays[i], def.Delays[i])
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("RATELIMIT_LOGIN_EMAIL_MAX", "7")
	t.Setenv("RATELIMIT_LOGIN_EMAIL_WINDOW_SEC", "60")
	t.Setenv("RATELIMIT_DELAYS_MS", "0,500,1500")
	t.Setenv("PAYMENT_AUTH_SCHEME", "GW")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port: got %d", cfg.Server.Port)
	}
	if cfg.Payment.AuthScheme != "GW" {
		t.Errorf("auth scheme: got %q", cfg.Payment.AuthScheme)
	}

	lc := cfg.Limiter()
	if r := lc.Rules[ratelimit.LoginEmail]; r.Max != 7 || r.Window != time.Minute {
		t.Errorf("login-email rule: %+v", r)
	}
	want := []time.Duration{0, 500 * time.Millisecond, 1500 * time.Millisecond}
	if len(lc.Delays) != len(want) {
		t.Fatalf("delays: got %v", lc.Delays)
	}
	for i := range want {
		if lc.Delays[i] != want[i] {
			t.Errorf("delay[%d]: got %v want %v", i, lc.Delays[i], want[i])
		}
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, missing := range []string{"PAYMENT_API_URL", "PAYMENT_API_KEY", "PAYMENT_SECRET_KEY", "JWT_SECRET"} {
		t.Run(missing, func(t *testing.T) {
			setRequired(t)
			t.Setenv(missing, "")

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), missing) {
				t.Fatalf("expected error naming %s, got %v", missing, err)
			}
		})
	}
}

func TestLoad_UnsupportedDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_DRIVER", "mysql")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
