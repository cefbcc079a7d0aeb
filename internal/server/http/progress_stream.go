package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/synaptica/paper-aggregation-service/internal/csvimport"
)

// sseEvent represents an event sent via SSE during a streaming import.
type sseEvent struct {
	EventType string          `json:"event_type"`
	Current   int             `json:"current,omitempty"`
	Total     int             `json:"total,omitempty"`
	Outcome   *importResponse `json:"outcome,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// importCSVStream handles POST /imports/stream (SSE).
// The import runs synchronously; a progress event is emitted after every
// processed row and a final completed event carries the outcome.
func (s *Server) importCSVStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := projectIDFromContext(ctx)
	userID := userIDFromContext(ctx)

	rows, ok := s.readCSVRows(w, r)
	if !ok {
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sendSSEEvent(w, flusher, sseEvent{
		EventType: "stream_started",
		Total:     len(rows),
		Message:   "import started",
		Timestamp: time.Now(),
	})

	outcome := s.importer.Run(ctx, projectID, userID, rows, func(p csvimport.Progress) {
		sendSSEEvent(w, flusher, sseEvent{
			EventType: "progress",
			Current:   p.Current,
			Total:     p.Total,
			Timestamp: time.Now(),
		})
	})

	resp := outcomeToResponse(outcome, len(rows), s.maxErrors)
	sendSSEEvent(w, flusher, sseEvent{
		EventType: "completed",
		Current:   len(rows),
		Total:     len(rows),
		Outcome:   &resp,
		Message:   "import finished",
		Timestamp: time.Now(),
	})
}

// sendSSEEvent writes a single SSE event to the response writer.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
	flusher.Flush()
}
