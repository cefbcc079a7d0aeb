package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica/paper-aggregation-service/internal/csvimport"
)

// parseSSEBody splits a raw SSE response body into its events.
func parseSSEBody(t *testing.T, body string) []sseEvent {
	t.Helper()

	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		var data string
		for _, line := range strings.Split(block, "\n") {
			if strings.HasPrefix(line, "data: ") {
				data = strings.TrimPrefix(line, "data: ")
			}
		}
		require.NotEmpty(t, data, "SSE block missing data line: %q", block)

		var event sseEvent
		require.NoError(t, json.Unmarshal([]byte(data), &event))
		events = append(events, event)
	}
	return events
}

func TestImportCSVStream(t *testing.T) {
	projectID := uuid.New()

	t.Run("emits started, per-row progress and a final outcome", func(t *testing.T) {
		s, deps := newTestServer(t)
		deps.importer.outcome = &csvimport.Outcome{SuccessCount: 2}

		rec := doRequest(t, s, http.MethodPost, projectPath(projectID, "/imports/stream"), sampleCSV, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

		events := parseSSEBody(t, rec.Body.String())
		require.Len(t, events, 4)

		assert.Equal(t, "stream_started", events[0].EventType)
		assert.Equal(t, 2, events[0].Total)

		assert.Equal(t, "progress", events[1].EventType)
		assert.Equal(t, 1, events[1].Current)
		assert.Equal(t, 2, events[1].Total)

		assert.Equal(t, "progress", events[2].EventType)
		assert.Equal(t, 2, events[2].Current)

		completed := events[3]
		assert.Equal(t, "completed", completed.EventType)
		require.NotNil(t, completed.Outcome)
		assert.Equal(t, 2, completed.Outcome.TotalRows)
		assert.Equal(t, 2, completed.Outcome.SuccessCount)
	})

	t.Run("event framing matches the SSE wire format", func(t *testing.T) {
		s, _ := newTestServer(t)

		rec := doRequest(t, s, http.MethodPost, projectPath(projectID, "/imports/stream"), sampleCSV, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := rec.Body.String()
		assert.Contains(t, body, "event: stream_started\ndata: ")
		assert.Contains(t, body, "event: progress\ndata: ")
		assert.Contains(t, body, "event: completed\ndata: ")
	})

	t.Run("failed rows are reported in the final outcome", func(t *testing.T) {
		s, deps := newTestServer(t)
		deps.importer.outcome = &csvimport.Outcome{
			SuccessCount:   1,
			FailedCount:    1,
			DuplicateCount: 1,
			Errors:         []string{"row 2: duplicate paper"},
		}

		rec := doRequest(t, s, http.MethodPost, projectPath(projectID, "/imports/stream"), sampleCSV, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		events := parseSSEBody(t, rec.Body.String())
		completed := events[len(events)-1]
		require.Equal(t, "completed", completed.EventType)
		require.NotNil(t, completed.Outcome)
		assert.Equal(t, 1, completed.Outcome.FailedCount)
		assert.Equal(t, 1, completed.Outcome.DuplicateCount)
		assert.Equal(t, []string{"row 2: duplicate paper"}, completed.Outcome.Errors)
	})

	t.Run("invalid csv fails before the stream starts", func(t *testing.T) {
		s, deps := newTestServer(t)

		rec := doRequest(t, s, http.MethodPost, projectPath(projectID, "/imports/stream"), "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEqual(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, 0, deps.importer.calls)
	})
}
