package chi

import (
	"context"

	"github.com/nyaya-labs/nyaya/internal/domain"
	healthuc "github.com/nyaya-labs/nyaya/internal/usecase/health"
	"github.com/nyaya-labs/nyaya/internal/usecase/query"
	usageuc "github.com/nyaya-labs/nyaya/internal/usecase/usage"
)

// QueryRunner answers legal questions.
type QueryRunner interface {
	Run(ctx context.Context, raw string) query.Result
	Stream(ctx context.Context, raw string, onDelta domain.DeltaFunc) query.Result
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports token consumption against the budget.
type UsageReporter interface {
	GetReport(ctx context.Context, period usageuc.Period) usageuc.Report
}
