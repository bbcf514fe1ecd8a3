package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-storefront/internal/metrics"
	"github.com/0gfoundation/0g-storefront/internal/store"
)

const (
	defaultMaxAttempts  = 5
	defaultBlockTimeout = 5 * time.Second
)

// Repository is satisfied by store.Store.
type Repository interface {
	CreateOrder(ctx context.Context, o *store.Order) error
}

// Worker moves orders from the pending list into the database. An order is
// held in the processing list while it is being written, so a crash leaves
// it there for Recover to pick up.
type Worker struct {
	rdb          *redis.Client
	repo         Repository
	log          *zap.Logger
	maxAttempts  int
	blockTimeout time.Duration
}

func NewWorker(rdb *redis.Client, repo Repository, log *zap.Logger) *Worker {
	return &Worker{
		rdb:          rdb,
		repo:         repo,
		log:          log,
		maxAttempts:  defaultMaxAttempts,
		blockTimeout: defaultBlockTimeout,
	}
}

// Run is the main loop: BLMOVE pending → processing, persist, acknowledge.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("order worker started", zap.String("queue", PendingKey))
	for {
		if ctx.Err() != nil {
			w.log.Info("order worker stopped")
			return
		}
		if _, err := w.ProcessOne(ctx, w.blockTimeout); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error("order worker", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOne waits up to timeout for a pending order and handles it. It
// reports false when nothing arrived. If the order can be neither persisted
// nor moved to another list, it stays in the processing list and the error
// is returned.
func (w *Worker) ProcessOne(ctx context.Context, timeout time.Duration) (bool, error) {
	raw, err := w.rdb.BLMove(ctx, PendingKey, ProcessingKey, "LEFT", "RIGHT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blmove: %w", err)
	}
	if err := w.handle(ctx, raw); err != nil {
		return true, err
	}
	w.ack(ctx, raw)
	return true, nil
}

// handle returns nil once the order is persisted, known to be persisted, or
// safely pushed to the pending or dead-letter list.
func (w *Worker) handle(ctx context.Context, raw string) error {
	var o Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		w.log.Error("order worker: unmarshal order", zap.String("raw", raw), zap.Error(err))
		return w.deadLetter(ctx, raw)
	}

	err := w.repo.CreateOrder(ctx, o.model())
	switch {
	case err == nil:
		metrics.OrdersProcessed.WithLabelValues("persisted").Inc()
		w.log.Info("order persisted",
			zap.String("order", o.ID),
			zap.String("payment", o.PaymentID),
			zap.String("paid_price", o.PaidPrice.StringFixed(2)),
		)
		return nil

	case errors.Is(err, store.ErrDuplicateOrder):
		metrics.OrdersProcessed.WithLabelValues("duplicate").Inc()
		w.log.Warn("order already persisted", zap.String("order", o.ID))
		return nil
	}

	o.Attempts++
	retry, merr := json.Marshal(o)
	if merr != nil {
		return fmt.Errorf("order %s: marshal retry: %w", o.ID, merr)
	}
	if o.Attempts >= w.maxAttempts {
		w.log.Error("order dead-lettered after repeated failures",
			zap.String("order", o.ID),
			zap.Int("attempts", o.Attempts),
			zap.Error(err),
		)
		return w.deadLetter(ctx, string(retry))
	}
	w.log.Warn("order persist failed, requeueing",
		zap.String("order", o.ID),
		zap.Int("attempts", o.Attempts),
		zap.Error(err),
	)
	if err := w.rdb.RPush(ctx, PendingKey, retry).Err(); err != nil {
		return fmt.Errorf("order %s: requeue: %w", o.ID, err)
	}
	metrics.OrdersProcessed.WithLabelValues("retried").Inc()
	return nil
}

func (w *Worker) ack(ctx context.Context, raw string) {
	if err := w.rdb.LRem(ctx, ProcessingKey, 1, raw).Err(); err != nil {
		w.log.Error("order worker: ack", zap.Error(err))
	}
}

func (w *Worker) deadLetter(ctx context.Context, raw string) error {
	if err := w.rdb.RPush(ctx, DLQKey, raw).Err(); err != nil {
		return fmt.Errorf("dead-letter: %w", err)
	}
	metrics.OrdersProcessed.WithLabelValues("dead_lettered").Inc()
	return nil
}

// Recover moves orders left in the processing list by a previous run back to
// the head of the pending list. Call it once on startup before Run.
func (w *Worker) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		_, err := w.rdb.LMove(ctx, ProcessingKey, PendingKey, "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		w.log.Info("recovered in-flight orders", zap.Int("count", n))
	}
	return n, nil
}
