package usage

import (
	"context"
	"testing"
	"time"
)

type mockBudgetReader struct {
	dailyLimit, monthlyLimit         int64
	dailyUsed, monthlyUsed           int64
	remainingDaily, remainingMonthly int64
}

func (m *mockBudgetReader) DailyLimit() int64       { return m.dailyLimit }
func (m *mockBudgetReader) MonthlyLimit() int64     { return m.monthlyLimit }
func (m *mockBudgetReader) DailyUsed() int64        { return m.dailyUsed }
func (m *mockBudgetReader) MonthlyUsed() int64      { return m.monthlyUsed }
func (m *mockBudgetReader) RemainingDaily() int64   { return m.remainingDaily }
func (m *mockBudgetReader) RemainingMonthly() int64 { return m.remainingMonthly }

func fixedService(br BudgetReader) *Service {
	s := New(br)
	s.now = func() time.Time { return time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC) }
	return s
}

func TestGetReport_Day(t *testing.T) {
	br := &mockBudgetReader{dailyLimit: 1000, dailyUsed: 400, remainingDaily: 600}
	r := fixedService(br).GetReport(context.Background(), PeriodDay)

	if r.Period != PeriodDay {
		t.Errorf("Period = %q", r.Period)
	}
	if !r.PeriodStart.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PeriodStart = %v", r.PeriodStart)
	}
	if !r.PeriodEnd.Equal(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PeriodEnd = %v", r.PeriodEnd)
	}
	if r.TokensLimit != 1000 || r.TokensUsed != 400 || r.TokensRemaining != 600 {
		t.Errorf("unexpected tokens: %+v", r)
	}
	if r.Exhausted {
		t.Error("should not be exhausted")
	}
}

func TestGetReport_MonthExhausted(t *testing.T) {
	br := &mockBudgetReader{monthlyLimit: 5000, monthlyUsed: 5200, remainingMonthly: 0}
	r := fixedService(br).GetReport(context.Background(), PeriodMonth)

	if !r.PeriodStart.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PeriodStart = %v", r.PeriodStart)
	}
	if !r.PeriodEnd.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PeriodEnd = %v", r.PeriodEnd)
	}
	if !r.Exhausted {
		t.Error("expected exhausted")
	}
}

func TestGetReport_NoBudget(t *testing.T) {
	r := fixedService(nil).GetReport(context.Background(), PeriodDay)

	if r.TokensLimit != 0 || r.TokensUsed != 0 {
		t.Errorf("unexpected tokens: %+v", r)
	}
	if r.TokensRemaining != -1 {
		t.Errorf("TokensRemaining = %d, want -1 (unlimited)", r.TokensRemaining)
	}
	if r.Exhausted {
		t.Error("unlimited budget must never be exhausted")
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"", PeriodMonth, false},
		{"month", PeriodMonth, false},
		{"day", PeriodDay, false},
		{"total", "", true},
	}
	for _, tc := range tests {
		got, err := ParsePeriod(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParsePeriod(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParsePeriod(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
