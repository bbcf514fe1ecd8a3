package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const nonceKeyPrefix = "payment:nonce:"

// DefaultNonceTTL covers the gateway's replay window.
const DefaultNonceTTL = 15 * time.Minute

var ErrNonceReused = errors.New("payment nonce already issued")

// NonceIssuer hands out single-use request nonces. Every nonce is reserved in
// Redis with SET NX for the replay window, so the same value is never issued
// twice across instances.
type NonceIssuer struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewNonceIssuer(rdb *redis.Client, ttl time.Duration) *NonceIssuer {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &NonceIssuer{rdb: rdb, ttl: ttl}
}

// Issue returns a fresh nonce that has been reserved for the replay window.
func (n *NonceIssuer) Issue(ctx context.Context) (string, error) {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := n.Reserve(ctx, nonce); err != nil {
		return "", err
	}
	return nonce, nil
}

// Reserve marks nonce as used. It fails with ErrNonceReused when the nonce is
// still inside its replay window.
func (n *NonceIssuer) Reserve(ctx context.Context, nonce string) error {
	set, err := n.rdb.SetNX(ctx, nonceKeyPrefix+nonce, 1, n.ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve nonce: %w", err)
	}
	if !set {
		return ErrNonceReused
	}
	return nil
}
