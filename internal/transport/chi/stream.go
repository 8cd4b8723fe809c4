package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nyaya-labs/nyaya/internal/logger"
	"github.com/nyaya-labs/nyaya/internal/usecase/query"
)

// SSE event names.
const (
	eventDelta = "delta"
	eventDone  = "done"
	eventError = "error"
)

// QueryStream handles POST /query/stream. Validation errors are plain JSON;
// once the stream starts every outcome is reported as an event.
func (s *Server) QueryStream(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decodeMessage(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(msg) == "" {
		WriteError(w, http.StatusBadRequest, query.MessageRequired)
		return
	}

	log := logger.FromContext(r.Context(), s.logger)
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(event string, v any) error {
		if err := writeEvent(w, event, v); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
		return nil
	}

	res := s.queries.Stream(r.Context(), msg, func(text string) error {
		return send(eventDelta, deltaEvent{Text: text})
	})

	var err error
	switch v := res.(type) {
	case query.Success:
		err = send(eventDone, doneEvent{OK: true, Sources: v.SourceCount})
	case query.Failure:
		log.Error("Streaming query failed", zap.String("kind", string(v.Kind)), zap.String("error", v.Message))
		err = send(eventError, ErrorResponse{OK: false, Error: v.Message})
	default:
		err = send(eventError, ErrorResponse{OK: false, Error: msgInternal})
	}
	if err != nil {
		log.Debug("Client went away before the stream ended", zap.Error(err))
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	return nil
}
