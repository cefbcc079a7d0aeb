package httpserver

import (
	"io"
	"net/http"

	"github.com/synaptica/paper-aggregation-service/internal/csvimport"
)

// importCSV handles POST /imports.
// The request body is the raw CSV payload. The whole batch is processed
// before responding; clients that want per-row progress use the streaming
// variant instead.
func (s *Server) importCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := projectIDFromContext(ctx)
	userID := userIDFromContext(ctx)

	rows, ok := s.readCSVRows(w, r)
	if !ok {
		return
	}

	outcome := s.importer.Run(ctx, projectID, userID, rows, nil)
	writeJSON(w, http.StatusOK, outcomeToResponse(outcome, len(rows), s.maxErrors))
}

// readCSVRows reads and parses the CSV request body, writing an error
// response on failure.
func (s *Server) readCSVRows(w http.ResponseWriter, r *http.Request) ([]csvimport.Row, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return nil, false
	}

	rows, err := csvimport.ParseRows(string(body))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	if len(rows) == 0 {
		writeError(w, http.StatusBadRequest, "csv contains no importable rows")
		return nil, false
	}

	return rows, true
}
