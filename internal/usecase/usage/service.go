// Package usage reports token consumption against the configured budget.
package usage

import (
	"context"
	"fmt"
	"time"
)

// Period selects the budget window of a report.
type Period string

// Supported periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps "", "day" and "month" to a Period. Empty means month.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodMonth:
		return PeriodMonth, nil
	case PeriodDay:
		return PeriodDay, nil
	default:
		return "", fmt.Errorf("period must be %q or %q, got %q", PeriodDay, PeriodMonth, s)
	}
}

// Report is the token usage for one period. Limit 0 means unlimited.
type Report struct {
	Period      Period
	PeriodStart time.Time
	PeriodEnd   time.Time
	TokensUsed  int64
	TokensLimit int64
	// TokensRemaining is -1 when the period is unlimited.
	TokensRemaining int64
	Exhausted       bool
}

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: func() time.Time { return time.Now().UTC() }}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period Period) Report {
	now := s.now()
	r := Report{Period: period, TokensRemaining: -1}

	switch period {
	case PeriodDay:
		r.PeriodStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.PeriodEnd = r.PeriodStart.Add(24 * time.Hour)
		if s.br != nil {
			r.TokensLimit = s.br.DailyLimit()
			r.TokensUsed = s.br.DailyUsed()
			r.TokensRemaining = s.br.RemainingDaily()
		}
	default:
		r.Period = PeriodMonth
		r.PeriodStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.PeriodEnd = r.PeriodStart.AddDate(0, 1, 0)
		if s.br != nil {
			r.TokensLimit = s.br.MonthlyLimit()
			r.TokensUsed = s.br.MonthlyUsed()
			r.TokensRemaining = s.br.RemainingMonthly()
		}
	}

	r.Exhausted = r.TokensLimit > 0 && r.TokensRemaining <= 0
	return r
}
