package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentVectorStore = "vector_store"
	ComponentEmbedding   = "embedding"
	ComponentGeneration  = "generation"
	ComponentCache       = "cache"
)

const defaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type check struct {
	name string
	fn   func(ctx context.Context) error
}

// Service coordinates health checks. Checks run concurrently, each bounded by its own timeout.
type Service struct {
	checks  []check
	timeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithEmbedding adds the embedding provider check.
func WithEmbedding(c ProviderChecker) Option {
	return func(s *Service) { s.add(ComponentEmbedding, c.HealthCheck) }
}

// WithGeneration adds the generation provider check.
func WithGeneration(c ProviderChecker) Option {
	return func(s *Service) { s.add(ComponentGeneration, c.HealthCheck) }
}

// WithCache adds the key-value store check.
func WithCache(p Pinger) Option {
	return func(s *Service) { s.add(ComponentCache, p.Ping) }
}

// WithTimeout bounds each individual check.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Service. The vector store is always checked.
func New(store Pinger, opts ...Option) *Service {
	s := &Service{timeout: defaultCheckTimeout}
	s.add(ComponentVectorStore, store.Ping)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) add(name string, fn func(ctx context.Context) error) {
	s.checks = append(s.checks, check{name: name, fn: fn})
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range s.checks {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := c.fn(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[c.name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
