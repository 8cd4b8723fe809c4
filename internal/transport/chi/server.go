// Package chi exposes the query pipeline over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nyaya-labs/nyaya/internal/domain"
	"github.com/nyaya-labs/nyaya/internal/logger"
	healthuc "github.com/nyaya-labs/nyaya/internal/usecase/health"
	"github.com/nyaya-labs/nyaya/internal/usecase/query"
	usageuc "github.com/nyaya-labs/nyaya/internal/usecase/usage"
)

const maxBodyBytes = 1 << 20

// Server holds the HTTP handlers.
type Server struct {
	queries QueryRunner
	health  HealthChecker
	usage   UsageReporter
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(queries QueryRunner, health HealthChecker, usage UsageReporter, logger *zap.Logger) *Server {
	return &Server{queries: queries, health: health, usage: usage, logger: logger}
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, msgMethod)
	})

	r.Post("/query", s.Query)
	r.Post("/query/stream", s.QueryStream)
	r.Get("/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decodeMessage(w, r)
	if !ok {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res := s.queries.Run(ctx, msg)
	setUsageHeaders(w, usage)

	switch v := res.(type) {
	case query.Success:
		writeJSON(w, http.StatusOK, queryResponse{OK: true, Reply: v.Answer, Sources: v.SourceCount})
	case query.Failure:
		s.writeFailure(w, r, v)
	default:
		WriteError(w, http.StatusInternalServerError, msgInternal)
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// GetUsage handles GET /usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := usageuc.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := s.usage.GetReport(r.Context(), period)
	writeJSON(w, http.StatusOK, usageResponse{
		Period:          string(report.Period),
		PeriodStartAt:   report.PeriodStart,
		PeriodEndAt:     report.PeriodEnd,
		TokensUsed:      report.TokensUsed,
		TokensLimit:     report.TokensLimit,
		TokensRemaining: report.TokensRemaining,
		IsExhausted:     report.Exhausted,
	})
}

// decodeMessage reads {"message": ...}. A missing message decodes to "" and is
// rejected by the pipeline. On malformed JSON it writes the 400 and returns false.
func (s *Server) decodeMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req queryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.FromContext(r.Context(), s.logger).Debug("Invalid request body", zap.Error(err))
		WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return "", false
	}
	if req.Message == nil {
		return "", true
	}
	return *req.Message, true
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, f query.Failure) {
	log := logger.FromContext(r.Context(), s.logger)
	if f.Kind == query.InvalidInput {
		WriteError(w, http.StatusBadRequest, f.Message)
		return
	}
	log.Error("Query failed", zap.String("kind", string(f.Kind)), zap.String("error", f.Message))
	WriteError(w, http.StatusInternalServerError, f.Message)
}
