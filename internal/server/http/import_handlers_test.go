package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica/paper-aggregation-service/internal/csvimport"
)

const sampleCSV = "PMID,Title,Authors\n" +
	"11111,First Paper,\"Smith J; Doe A\"\n" +
	"22222,Second Paper,Lee K\n"

func TestImportCSV(t *testing.T) {
	projectID := uuid.New()

	t.Run("imports parsed rows and reports the outcome", func(t *testing.T) {
		s, deps := newTestServer(t)
		deps.importer.outcome = &csvimport.Outcome{
			SuccessCount:   1,
			FailedCount:    1,
			DuplicateCount: 1,
			Errors:         []string{"row 2: duplicate paper"},
		}

		rec := doRequest(t, s, http.MethodPost, projectPath(projectID, "/imports"), sampleCSV, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp importResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.TotalRows)
		assert.Equal(t, 1, resp.SuccessCount)
		assert.Equal(t, 1, resp.FailedCount)
		assert.Equal(t, 1, resp.DuplicateCount)
		assert.Equal(t, []string{"row 2: duplicate paper"}, resp.Errors)

		assert.Equal(t, 1, deps.importer.calls)
		assert.Equal(t, projectID, deps.importer.lastProjectID)
		assert.Equal(t, "user-1", deps.importer.lastUserID)
		assert.Equal(t, 2, deps.importer.lastRowCount)
	})

	t.Run("empty body is rejected", func(t *testing.T) {
		s, deps := newTestServer(t)

		rec := doRequest(t, s, http.MethodPost, projectPath(projectID, "/imports"), "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, deps.importer.calls)
	})

	t.Run("header-only csv is rejected", func(t *testing.T) {
		s, deps := newTestServer(t)

		rec := doRequest(t, s, http.MethodPost, projectPath(projectID, "/imports"), "PMID,Title\n", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "no importable rows")
		assert.Equal(t, 0, deps.importer.calls)
	})

	t.Run("oversized body returns 413", func(t *testing.T) {
		deps := &testDeps{
			importer:  &fakeImporter{},
			fulltext:  &fakeFullTextService{},
			abstracts: &fakeAbstractFetcher{},
			repo:      newFakePaperRepo(),
		}
		s := NewServer(Config{MaxBodyBytes: 16}, deps.importer, deps.fulltext, deps.abstracts, deps.repo, nil, zerolog.Nop(), nil)

		body := sampleCSV + strings.Repeat("x", 64)
		rec := doRequest(t, s, http.MethodPost, projectPath(projectID, "/imports"), body, nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, 0, deps.importer.calls)
	})

	t.Run("error list is truncated at the configured cap", func(t *testing.T) {
		deps := &testDeps{
			importer:  &fakeImporter{},
			fulltext:  &fakeFullTextService{},
			abstracts: &fakeAbstractFetcher{},
			repo:      newFakePaperRepo(),
		}
		s := NewServer(Config{MaxErrorsReturned: 2}, deps.importer, deps.fulltext, deps.abstracts, deps.repo, nil, zerolog.Nop(), nil)
		deps.importer.outcome = &csvimport.Outcome{
			FailedCount: 4,
			Errors:      []string{"row 1: bad", "row 2: bad", "row 3: bad", "row 4: bad"},
		}

		rec := doRequest(t, s, http.MethodPost, projectPath(projectID, "/imports"), sampleCSV, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp importResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Errors, 3)
		assert.Equal(t, "...and 2 more", resp.Errors[2])
	})
}
