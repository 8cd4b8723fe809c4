package chi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nyaya-labs/nyaya/internal/domain"
)

// Client-facing error messages.
const (
	msgInvalidBody = "Invalid request body"
	msgInternal    = "internal error"
	msgNotFound    = "not found"
	msgMethod      = "method not allowed"
)

type queryRequest struct {
	Message *string `json:"message"`
}

type queryResponse struct {
	OK      bool   `json:"ok"`
	Reply   string `json:"reply"`
	Sources int    `json:"sources"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type usageResponse struct {
	Period          string    `json:"period"`
	PeriodStartAt   time.Time `json:"period_start_at"`
	PeriodEndAt     time.Time `json:"period_end_at"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensLimit     int64     `json:"tokens_limit"`
	TokensRemaining int64     `json:"tokens_remaining"`
	IsExhausted     bool      `json:"is_exhausted"`
}

type deltaEvent struct {
	Text string `json:"text"`
}

type doneEvent struct {
	OK      bool `json:"ok"`
	Sources int  `json:"sources"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"ok":false,"error":message}.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{OK: false, Error: message})
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.RequestUsage) {
	if usage == nil {
		return
	}
	if usage.EmbeddingUsed {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	}
	if usage.GenerationUsed {
		w.Header().Set("X-Generation-Tokens", strconv.Itoa(usage.GenerationTokens))
	}
}
