package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRun_ClearsCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	key := "ratelimit:login:email:customer@example.com"
	mr.Set(key, "5")
	mr.SetTTL(key, 10*time.Minute)

	var out bytes.Buffer
	err := run([]string{"--redis", mr.Addr(), "--scope", "login-email", "--id", "Customer@Example.com"}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if mr.Exists(key) {
		t.Error("counter should be deleted")
	}
	if !strings.Contains(out.String(), "attempts: 5") || !strings.Contains(out.String(), "expires:  10m0s") {
		t.Errorf("output: %s", out.String())
	}
}

func TestRun_Peek(t *testing.T) {
	mr := miniredis.RunT(t)
	key := "ratelimit:checkout:ip:10.0.0.1"
	mr.Set(key, "2")

	var out bytes.Buffer
	if err := run([]string{"--redis", mr.Addr(), "--scope", "checkout-ip", "--id", "10.0.0.1", "--peek"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !mr.Exists(key) {
		t.Error("--peek must not delete the counter")
	}
}

func TestRun_BadArgs(t *testing.T) {
	mr := miniredis.RunT(t)
	var out bytes.Buffer

	if err := run([]string{"--redis", mr.Addr(), "--scope", "admin-ip", "--id", "x"}, &out); err == nil {
		t.Error("unknown scope: expected error")
	}
	if err := run([]string{"--redis", mr.Addr(), "--scope", "login-ip"}, &out); err == nil {
		t.Error("missing id: expected error")
	}
}
