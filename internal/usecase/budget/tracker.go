// Package budget enforces daily and monthly token limits shared by the
// embedding and generation providers.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nyaya-labs/nyaya/internal/domain"
)

// Action defines behavior when the token budget is exceeded.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request with domain.ErrQuotaExceeded.
	ActionReject Action = "reject"
)

// Store is the persistence interface for budget counters.
// IncrBy returns the counter total after the increment.
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

// Tracker is an in-memory token budget tracker with optional persistence.
// Hot path (Check) is in-memory only, no round-trip.
// Record updates in-memory first, then writes through to the store and adopts
// the store total when another replica has consumed more.
type Tracker struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	dailyLimit     int64
	monthlyLimit   int64
	action         Action
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          Store
	remaining      *prometheus.GaugeVec
	now            func() time.Time
	logger         *zap.Logger
}

// NewTracker creates a tracker. A zero limit means unlimited.
func NewTracker(dailyLimit, monthlyLimit int64, action Action, logger *zap.Logger) *Tracker {
	if action == "" {
		action = ActionWarn
	}
	t := &Tracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
	now := t.now()
	t.lastDayReset = truncateToDay(now)
	t.lastMonthReset = truncateToMonth(now)
	return t
}

// WithStore attaches a persistence store and loads current counters.
func (b *Tracker) WithStore(ctx context.Context, store Store) *Tracker {
	b.store = store
	b.loadFromStore(ctx)
	return b
}

// WithGauge publishes remaining tokens per period ("daily"/"monthly") to gauge.
func (b *Tracker) WithGauge(gauge *prometheus.GaugeVec) *Tracker {
	b.remaining = gauge
	b.mu.Lock()
	b.publishLocked()
	b.mu.Unlock()
	return b
}

func (b *Tracker) loadFromStore(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if val, err := b.store.Get(ctx, dailyKey(now)); err == nil {
		b.dailyUsed = val
	} else {
		b.logger.Warn("Failed to load daily budget from store", zap.Error(err))
	}
	if val, err := b.store.Get(ctx, monthlyKey(now)); err == nil {
		b.monthlyUsed = val
	} else {
		b.logger.Warn("Failed to load monthly budget from store", zap.Error(err))
	}

	b.logger.Info("Budget loaded from store",
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("monthly_used", b.monthlyUsed),
	)
	b.publishLocked()
}

func dailyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:daily:%s", domain.KeyPrefix, t.Format("2006-01-02"))
}

func monthlyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:monthly:%s", domain.KeyPrefix, t.Format("2006-01"))
}

// Check verifies the budget allows a new provider call. In-memory only (hot path).
func (b *Tracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()

	dailyExceeded := b.dailyLimit > 0 && b.dailyUsed >= b.dailyLimit
	monthlyExceeded := b.monthlyLimit > 0 && b.monthlyUsed >= b.monthlyLimit

	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.action == ActionReject {
		return domain.ErrQuotaExceeded
	}

	// action=warn: log but allow the request through
	b.logger.Warn("Token budget exceeded",
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record registers consumed tokens after a provider call.
func (b *Tracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}

	b.mu.Lock()
	b.resetIfNeeded()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	store := b.store
	now := b.now()
	b.publishLocked()
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Store writes use their own deadline so a cancelled request still gets counted.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dk, mk := dailyKey(now), monthlyKey(now)
	dailyTotal, err := store.IncrBy(ctx, dk, tokens)
	if err != nil {
		b.logger.Warn("Failed to persist daily budget", zap.String("key", dk), zap.Error(err))
	}
	monthlyTotal, err := store.IncrBy(ctx, mk, tokens)
	if err != nil {
		b.logger.Warn("Failed to persist monthly budget", zap.String("key", mk), zap.Error(err))
	}

	b.mu.Lock()
	// Adopt totals written by other replicas, but never for a period that already rolled over.
	if truncateToDay(now).Equal(b.lastDayReset) && dailyTotal > b.dailyUsed {
		b.dailyUsed = dailyTotal
	}
	if truncateToMonth(now).Equal(b.lastMonthReset) && monthlyTotal > b.monthlyUsed {
		b.monthlyUsed = monthlyTotal
	}
	b.publishLocked()
	b.mu.Unlock()
}

// DailyLimit returns the configured daily limit (0 = unlimited).
func (b *Tracker) DailyLimit() int64 { return b.dailyLimit }

// MonthlyLimit returns the configured monthly limit (0 = unlimited).
func (b *Tracker) MonthlyLimit() int64 { return b.monthlyLimit }

// RemainingDaily returns tokens left in the daily budget (-1 if unlimited).
func (b *Tracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.dailyLimit, b.dailyUsed)
}

// RemainingMonthly returns tokens left in the monthly budget (-1 if unlimited).
func (b *Tracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.monthlyLimit, b.monthlyUsed)
}

// DailyUsed returns tokens consumed today.
func (b *Tracker) DailyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.dailyUsed
}

// MonthlyUsed returns tokens consumed this month.
func (b *Tracker) MonthlyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.monthlyUsed
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1 // unlimited
	}
	return max(0, limit-used)
}

// publishLocked updates the remaining gauge. Unlimited periods are not published.
func (b *Tracker) publishLocked() {
	if b.remaining == nil {
		return
	}
	if b.dailyLimit > 0 {
		b.remaining.WithLabelValues("daily").Set(float64(remaining(b.dailyLimit, b.dailyUsed)))
	}
	if b.monthlyLimit > 0 {
		b.remaining.WithLabelValues("monthly").Set(float64(remaining(b.monthlyLimit, b.monthlyUsed)))
	}
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (b *Tracker) resetIfNeeded() {
	now := b.now()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(b.lastDayReset) {
		b.dailyUsed = 0
		b.lastDayReset = today
	}
	if thisMonth.After(b.lastMonthReset) {
		b.monthlyUsed = 0
		b.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
