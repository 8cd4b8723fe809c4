package budget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/nyaya-labs/nyaya/internal/domain"
)

// --- Mock Store ---

type mockStore struct {
	mu     sync.Mutex
	data   map[string]int64
	getErr error
	setErr error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]int64)}
}

func (m *mockStore) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return 0, m.setErr
	}
	m.data[key] += val
	return m.data[key], nil
}

func (m *mockStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[key], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTracker_RejectWhenExceeded(t *testing.T) {
	bt := NewTracker(100, 0, ActionReject, zap.NewNop())
	bt.Record(100)

	err := bt.Check(context.Background())
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected domain.ErrQuotaExceeded, got %v", err)
	}
}

func TestTracker_WarnWhenExceeded(t *testing.T) {
	bt := NewTracker(100, 0, ActionWarn, zap.NewNop())
	bt.Record(200)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for warn action, got %v", err)
	}
}

func TestTracker_DefaultActionIsWarn(t *testing.T) {
	bt := NewTracker(1, 0, "", zap.NewNop())
	bt.Record(5)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected warn default, got %v", err)
	}
}

func TestTracker_MonthlyReject(t *testing.T) {
	bt := NewTracker(0, 500, ActionReject, zap.NewNop())
	bt.Record(500)

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected domain.ErrQuotaExceeded for monthly limit, got %v", err)
	}
}

func TestTracker_UnlimitedWhenZero(t *testing.T) {
	bt := NewTracker(0, 0, ActionReject, zap.NewNop())
	bt.Record(999999999)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for unlimited budget, got %v", err)
	}
	if bt.RemainingDaily() != -1 || bt.RemainingMonthly() != -1 {
		t.Errorf("expected -1 for unlimited, got %d / %d", bt.RemainingDaily(), bt.RemainingMonthly())
	}
}

func TestTracker_Remaining(t *testing.T) {
	bt := NewTracker(1000, 10000, ActionWarn, zap.NewNop())
	bt.Record(300)

	if daily := bt.RemainingDaily(); daily != 700 {
		t.Errorf("expected daily remaining 700, got %d", daily)
	}
	if monthly := bt.RemainingMonthly(); monthly != 9700 {
		t.Errorf("expected monthly remaining 9700, got %d", monthly)
	}

	bt.Record(5000)
	if daily := bt.RemainingDaily(); daily != 0 {
		t.Errorf("expected remaining clamped to 0, got %d", daily)
	}
}

func TestTracker_IgnoresNonPositive(t *testing.T) {
	bt := NewTracker(1000, 0, ActionWarn, zap.NewNop())
	bt.Record(0)
	bt.Record(-5)
	if bt.DailyUsed() != 0 {
		t.Errorf("expected 0 used, got %d", bt.DailyUsed())
	}
}

func TestTracker_DayRollover(t *testing.T) {
	now := time.Date(2026, 10, 17, 23, 59, 0, 0, time.UTC)
	bt := NewTracker(100, 1000, ActionReject, zap.NewNop())
	bt.now = fixedClock(now)
	bt.lastDayReset = truncateToDay(now)
	bt.lastMonthReset = truncateToMonth(now)

	bt.Record(100)
	if err := bt.Check(context.Background()); err == nil {
		t.Fatal("expected rejection before rollover")
	}

	bt.now = fixedClock(now.Add(2 * time.Minute))
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected daily reset after midnight, got %v", err)
	}
	if bt.MonthlyUsed() != 100 {
		t.Errorf("monthly counter must survive day rollover, got %d", bt.MonthlyUsed())
	}
}

func TestTracker_MonthRollover(t *testing.T) {
	now := time.Date(2026, 10, 31, 23, 0, 0, 0, time.UTC)
	bt := NewTracker(0, 50, ActionReject, zap.NewNop())
	bt.now = fixedClock(now)
	bt.lastDayReset = truncateToDay(now)
	bt.lastMonthReset = truncateToMonth(now)

	bt.Record(60)
	bt.now = fixedClock(now.Add(2 * time.Hour))

	if bt.MonthlyUsed() != 0 {
		t.Errorf("expected monthly reset, got %d", bt.MonthlyUsed())
	}
}

// --- Persistence tests ---

func TestTracker_WithStore_LoadsValues(t *testing.T) {
	store := newMockStore()
	now := time.Now().UTC()
	store.data[dailyKey(now)] = 300
	store.data[monthlyKey(now)] = 5000

	bt := NewTracker(1000, 10000, ActionReject, zap.NewNop()).WithStore(context.Background(), store)

	if bt.DailyUsed() != 300 {
		t.Errorf("expected daily_used=300, got %d", bt.DailyUsed())
	}
	if bt.MonthlyUsed() != 5000 {
		t.Errorf("expected monthly_used=5000, got %d", bt.MonthlyUsed())
	}
}

func TestTracker_Record_PersistsToStore(t *testing.T) {
	store := newMockStore()
	bt := NewTracker(10000, 100000, ActionWarn, zap.NewNop()).WithStore(context.Background(), store)

	bt.Record(100)
	bt.Record(200)
	bt.Record(300)

	if bt.DailyUsed() != 600 {
		t.Errorf("expected daily_used=600, got %d", bt.DailyUsed())
	}

	store.mu.Lock()
	val := store.data[dailyKey(time.Now().UTC())]
	store.mu.Unlock()
	if val != 600 {
		t.Errorf("expected store daily=600, got %d", val)
	}
}

func TestTracker_Record_AdoptsSharedTotal(t *testing.T) {
	store := newMockStore()
	bt := NewTracker(1000, 0, ActionReject, zap.NewNop()).WithStore(context.Background(), store)

	// Another replica consumed 950 tokens after this one started.
	store.mu.Lock()
	store.data[dailyKey(time.Now().UTC())] = 950
	store.mu.Unlock()

	bt.Record(60)

	if bt.DailyUsed() != 1010 {
		t.Errorf("expected shared total 1010, got %d", bt.DailyUsed())
	}
	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected rejection from shared total, got %v", err)
	}
}

func TestTracker_WithStore_LoadError(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("connection refused")

	bt := NewTracker(1000, 10000, ActionReject, zap.NewNop()).WithStore(context.Background(), store)

	if bt.DailyUsed() != 0 || bt.MonthlyUsed() != 0 {
		t.Errorf("expected zero counters on load error, got %d / %d", bt.DailyUsed(), bt.MonthlyUsed())
	}
}

func TestTracker_Record_StoreWriteError(t *testing.T) {
	store := newMockStore()
	bt := NewTracker(1000, 10000, ActionWarn, zap.NewNop()).WithStore(context.Background(), store)

	store.mu.Lock()
	store.setErr = errors.New("write timeout")
	store.mu.Unlock()

	bt.Record(50)
	if bt.DailyUsed() != 50 {
		t.Errorf("expected daily_used=50 even with store error, got %d", bt.DailyUsed())
	}
}

func TestTracker_Gauge(t *testing.T) {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_budget_remaining"}, []string{"period"})
	bt := NewTracker(1000, 0, ActionWarn, zap.NewNop()).WithGauge(gauge)

	if got := testutil.ToFloat64(gauge.WithLabelValues("daily")); got != 1000 {
		t.Errorf("initial daily gauge = %v, want 1000", got)
	}

	bt.Record(250)
	if got := testutil.ToFloat64(gauge.WithLabelValues("daily")); got != 750 {
		t.Errorf("daily gauge = %v, want 750", got)
	}
	if n := testutil.CollectAndCount(gauge); n != 1 {
		t.Errorf("unlimited monthly period must not be published, got %d series", n)
	}
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	bt := NewTracker(0, 0, ActionWarn, zap.NewNop())

	var wg sync.WaitGroup
	for j := 0; j < 50; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bt.Record(2)
			_ = bt.Check(context.Background())
		}()
	}
	wg.Wait()

	if bt.DailyUsed() != 100 {
		t.Errorf("expected 100, got %d", bt.DailyUsed())
	}
}
