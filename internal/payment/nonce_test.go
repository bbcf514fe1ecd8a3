package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestIssuer(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *NonceIssuer) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewNonceIssuer(rdb, ttl)
}

func TestNonceIssuer_IssuesUniqueReservedNonces(t *testing.T) {
	mr, n := newTestIssuer(t, time.Minute)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		nonce, err := n.Issue(ctx)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if len(nonce) != 32 {
			t.Errorf("nonce length: got %d want 32", len(nonce))
		}
		if seen[nonce] {
			t.Fatalf("nonce %s issued twice", nonce)
		}
		seen[nonce] = true
		if !mr.Exists(nonceKeyPrefix + nonce) {
			t.Errorf("nonce %s not reserved", nonce)
		}
	}
}

func TestNonceIssuer_ReserveRejectsReplay(t *testing.T) {
	_, n := newTestIssuer(t, time.Minute)
	ctx := context.Background()

	if err := n.Reserve(ctx, "fixed"); err != nil {
		t.Fatalf("first Reserve: %v", err)
	}
	if err := n.Reserve(ctx, "fixed"); !errors.Is(err, ErrNonceReused) {
		t.Fatalf("second Reserve: expected ErrNonceReused, got %v", err)
	}
}

func TestNonceIssuer_ReservationExpires(t *testing.T) {
	mr, n := newTestIssuer(t, time.Minute)
	ctx := context.Background()

	if err := n.Reserve(ctx, "fixed"); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(nonceKeyPrefix + "fixed"); ttl != time.Minute {
		t.Errorf("TTL: got %v want 1m", ttl)
	}
	mr.FastForward(61 * time.Second)
	if err := n.Reserve(ctx, "fixed"); err != nil {
		t.Fatalf("Reserve after replay window: %v", err)
	}
}

func TestNonceIssuer_StoreDown(t *testing.T) {
	mr, n := newTestIssuer(t, time.Minute)
	mr.Close()
	if _, err := n.Issue(context.Background()); err == nil {
		t.Fatal("expected error when Redis is unreachable")
	}
}
