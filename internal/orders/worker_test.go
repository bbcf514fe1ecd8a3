package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-storefront/internal/store"
)

// ── helpers ───────────────────────────────────────────────────────────────────

type fakeRepo struct {
	mu     sync.Mutex
	orders map[string]*store.Order
	err    error
	// onCreate runs before every CreateOrder call.
	onCreate func()
}

func newFakeRepo() *fakeRepo { return &fakeRepo{orders: map[string]*store.Order{}} }

func (f *fakeRepo) CreateOrder(_ context.Context, o *store.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.err != nil {
		return f.err
	}
	if _, ok := f.orders[o.ID]; ok {
		return store.ErrDuplicateOrder
	}
	f.orders[o.ID] = o
	return nil
}

func setup(t *testing.T, repo Repository) (*miniredis.Miniredis, *Queue, *Worker) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewQueue(rdb), NewWorker(rdb, repo, zap.NewNop())
}

func testOrder(id string) Order {
	return Order{
		ID:             id,
		UserID:         "user-1",
		ConversationID: "conv-" + id,
		PaymentID:      "pay-" + id,
		Price:          decimal.RequireFromString("59.80"),
		PaidPrice:      decimal.RequireFromString("59.80"),
		Currency:       "TRY",
		Items: []Item{
			{ProductID: "BI101", Name: "Kupa", Price: decimal.RequireFromString("49.90")},
			{ProductID: "BI103", Name: "Kaşık", Price: decimal.RequireFromString("9.90")},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func listLen(t *testing.T, mr *miniredis.Miniredis, key string) int {
	t.Helper()
	if !mr.Exists(key) {
		return 0
	}
	l, err := mr.List(key)
	if err != nil {
		t.Fatal(err)
	}
	return len(l)
}

// ── ProcessOne ────────────────────────────────────────────────────────────────

func TestProcessOne_Persists(t *testing.T) {
	repo := newFakeRepo()
	mr, q, w := setup(t, repo)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testOrder("o1")); err != nil {
		t.Fatal(err)
	}
	ok, err := w.ProcessOne(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("ProcessOne: ok=%v err=%v", ok, err)
	}

	got := repo.orders["o1"]
	if got == nil {
		t.Fatal("order not persisted")
	}
	if got.Status != store.OrderStatusPaid || len(got.Items) != 2 || got.Items[0].OrderID != "o1" {
		t.Errorf("persisted order: %+v", got)
	}
	if n := listLen(t, mr, ProcessingKey); n != 0 {
		t.Errorf("processing list: got %d entries, want 0", n)
	}
	if n := listLen(t, mr, PendingKey); n != 0 {
		t.Errorf("pending list: got %d entries, want 0", n)
	}
}

func TestProcessOne_DuplicateIsAcked(t *testing.T) {
	repo := newFakeRepo()
	mr, q, w := setup(t, repo)
	ctx := context.Background()

	q.Enqueue(ctx, testOrder("o1")) //nolint:errcheck
	q.Enqueue(ctx, testOrder("o1")) //nolint:errcheck
	w.ProcessOne(ctx, time.Second)  //nolint:errcheck
	w.ProcessOne(ctx, time.Second)  //nolint:errcheck

	if n := listLen(t, mr, DLQKey); n != 0 {
		t.Errorf("duplicate must not be dead-lettered, DLQ has %d", n)
	}
	if n := listLen(t, mr, PendingKey); n != 0 {
		t.Errorf("duplicate must not be requeued, pending has %d", n)
	}
}

func TestProcessOne_RetryThenDeadLetter(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("database is locked")
	mr, q, w := setup(t, repo)
	w.maxAttempts = 3
	ctx := context.Background()

	q.Enqueue(ctx, testOrder("o1")) //nolint:errcheck

	for i := 1; i < 3; i++ {
		if _, err := w.ProcessOne(ctx, time.Second); err != nil {
			t.Fatal(err)
		}
		pending, _ := mr.List(PendingKey)
		if len(pending) != 1 {
			t.Fatalf("attempt %d: expected order requeued, pending=%v", i, pending)
		}
		var o Order
		json.Unmarshal([]byte(pending[0]), &o)
		if o.Attempts != i {
			t.Errorf("attempt %d: Attempts=%d", i, o.Attempts)
		}
	}

	w.ProcessOne(ctx, time.Second) //nolint:errcheck
	if n := listLen(t, mr, DLQKey); n != 1 {
		t.Fatalf("expected order in DLQ after 3 failures, got %d", n)
	}
	if n := listLen(t, mr, PendingKey); n != 0 {
		t.Errorf("pending should be empty, got %d", n)
	}
	if n := listLen(t, mr, ProcessingKey); n != 0 {
		t.Errorf("processing should be empty, got %d", n)
	}
}

func TestProcessOne_FailedRequeueKeepsOrderInFlight(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("database is locked")
	mr, q, w := setup(t, repo)
	ctx := context.Background()

	q.Enqueue(ctx, testOrder("o1")) //nolint:errcheck
	// Pending is empty once the order is moved out; a string key makes the
	// requeue RPUSH fail with WRONGTYPE.
	repo.onCreate = func() { mr.Set(PendingKey, "blocked") }

	ok, err := w.ProcessOne(ctx, time.Second)
	if !ok || err == nil {
		t.Fatalf("expected a handling error, got ok=%v err=%v", ok, err)
	}
	if n := listLen(t, mr, ProcessingKey); n != 1 {
		t.Fatalf("order must stay in processing, got %d entries", n)
	}
	if n := listLen(t, mr, DLQKey); n != 0 {
		t.Errorf("DLQ should be empty, got %d", n)
	}

	repo.onCreate = nil
	repo.err = nil
	mr.Del(PendingKey)
	if n, err := w.Recover(ctx); err != nil || n != 1 {
		t.Fatalf("Recover: n=%d err=%v", n, err)
	}
	if _, err := w.ProcessOne(ctx, time.Second); err != nil {
		t.Fatal(err)
	}
	if repo.orders["o1"] == nil {
		t.Error("order lost after recovery")
	}
}

func TestProcessOne_FailedDeadLetterKeepsOrderInFlight(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("database is locked")
	mr, q, w := setup(t, repo)
	w.maxAttempts = 1
	ctx := context.Background()

	q.Enqueue(ctx, testOrder("o1")) //nolint:errcheck
	mr.Set(DLQKey, "blocked")

	if _, err := w.ProcessOne(ctx, time.Second); err == nil {
		t.Fatal("expected dead-letter error")
	}
	if n := listLen(t, mr, ProcessingKey); n != 1 {
		t.Errorf("order must stay in processing, got %d entries", n)
	}
	if n := listLen(t, mr, PendingKey); n != 0 {
		t.Errorf("pending should be empty, got %d", n)
	}
}

func TestProcessOne_FailedDeadLetterOfMalformedEntry(t *testing.T) {
	mr, _, w := setup(t, newFakeRepo())
	mr.RPush(PendingKey, "{not json")
	mr.Set(DLQKey, "blocked")

	if _, err := w.ProcessOne(context.Background(), time.Second); err == nil {
		t.Fatal("expected dead-letter error")
	}
	processing, _ := mr.List(ProcessingKey)
	if len(processing) != 1 || processing[0] != "{not json" {
		t.Errorf("processing: %v", processing)
	}
}

func TestProcessOne_MalformedGoesToDLQ(t *testing.T) {
	mr, _, w := setup(t, newFakeRepo())
	mr.RPush(PendingKey, "{not json")

	if _, err := w.ProcessOne(context.Background(), time.Second); err != nil {
		t.Fatal(err)
	}
	dlq, _ := mr.List(DLQKey)
	if len(dlq) != 1 || dlq[0] != "{not json" {
		t.Errorf("DLQ: %v", dlq)
	}
}

func TestProcessOne_EmptyQueue(t *testing.T) {
	_, _, w := setup(t, newFakeRepo())
	ok, err := w.ProcessOne(context.Background(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected no work on an empty queue")
	}
}

// ── Run ───────────────────────────────────────────────────────────────────────

func TestRun_StopsPromptlyWhileRedisIsDown(t *testing.T) {
	mr, _, w := setup(t, newFakeRepo())
	mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(900 * time.Millisecond):
		t.Fatal("Run did not return after cancel")
	}
}

// ── Recover ───────────────────────────────────────────────────────────────────

func TestRecover_MovesInFlightBack(t *testing.T) {
	repo := newFakeRepo()
	mr, q, w := setup(t, repo)
	ctx := context.Background()

	a, _ := json.Marshal(testOrder("a"))
	b, _ := json.Marshal(testOrder("b"))
	mr.RPush(ProcessingKey, string(a), string(b))
	q.Enqueue(ctx, testOrder("c")) //nolint:errcheck

	n, err := w.Recover(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("recovered %d, want 2", n)
	}

	pending, _ := mr.List(PendingKey)
	if len(pending) != 3 {
		t.Fatalf("pending: %v", pending)
	}
	var first Order
	json.Unmarshal([]byte(pending[0]), &first)
	if first.ID != "a" {
		t.Errorf("recovered orders should be processed first, head is %q", first.ID)
	}

	for i := 0; i < 3; i++ {
		w.ProcessOne(ctx, time.Second) //nolint:errcheck
	}
	if len(repo.orders) != 3 {
		t.Errorf("persisted %d orders, want 3", len(repo.orders))
	}
}

func TestQueue_Depth(t *testing.T) {
	mr, q, _ := setup(t, newFakeRepo())
	ctx := context.Background()

	q.Enqueue(ctx, testOrder("a")) //nolint:errcheck
	q.Enqueue(ctx, testOrder("b")) //nolint:errcheck
	mr.RPush(DLQKey, "x")

	p, pr, d, err := q.Depth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p != 2 || pr != 0 || d != 1 {
		t.Errorf("depth: pending=%d processing=%d dead=%d", p, pr, d)
	}
}

// ── Against the real store ────────────────────────────────────────────────────

func TestWorker_PersistsIntoStore(t *testing.T) {
	s, err := store.Open("sqlite", "file:orders_worker?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	_, q, w := setup(t, s)
	ctx := context.Background()

	q.Enqueue(ctx, testOrder("o-store")) //nolint:errcheck
	w.ProcessOne(ctx, time.Second)       //nolint:errcheck

	got, err := s.Order(ctx, "o-store")
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if !got.PaidPrice.Equal(decimal.RequireFromString("59.8")) || len(got.Items) != 2 {
		t.Errorf("stored order: %+v", got)
	}
}
