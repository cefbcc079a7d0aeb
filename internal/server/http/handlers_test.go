package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica/paper-aggregation-service/internal/csvimport"
	"github.com/synaptica/paper-aggregation-service/internal/domain"
	"github.com/synaptica/paper-aggregation-service/internal/repository"
)

// fakeImporter records the last Run invocation and replays progress
// callbacks one per row, the way the real importer does.
type fakeImporter struct {
	calls         int
	lastProjectID uuid.UUID
	lastUserID    string
	lastRowCount  int
	outcome       *csvimport.Outcome
}

func (f *fakeImporter) Run(_ context.Context, projectID uuid.UUID, userID string, rows []csvimport.Row, progress csvimport.ProgressFunc) *csvimport.Outcome {
	f.calls++
	f.lastProjectID = projectID
	f.lastUserID = userID
	f.lastRowCount = len(rows)

	if progress != nil {
		for i := range rows {
			progress(csvimport.Progress{Current: i + 1, Total: len(rows)})
		}
	}

	if f.outcome != nil {
		return f.outcome
	}
	return &csvimport.Outcome{SuccessCount: len(rows)}
}

type fakeFullTextService struct {
	sources    []domain.FullTextSource
	availErr   error
	content    *domain.FullTextContent
	contentErr error

	lastPMID  string
	lastPMCID string
}

func (f *fakeFullTextService) CheckAvailability(_ context.Context, pmid, pmcID string) ([]domain.FullTextSource, error) {
	f.lastPMID = pmid
	f.lastPMCID = pmcID
	return f.sources, f.availErr
}

func (f *fakeFullTextService) GetFullText(_ context.Context, pmid, pmcID string) (*domain.FullTextContent, error) {
	f.lastPMID = pmid
	f.lastPMCID = pmcID
	return f.content, f.contentErr
}

type fakeAbstractFetcher struct {
	abstracts map[string]string
	errs      map[string]error
	calls     int
}

func (f *fakeAbstractFetcher) FetchAbstract(_ context.Context, pmid string) (string, error) {
	f.calls++
	if err, ok := f.errs[pmid]; ok {
		return "", err
	}
	return f.abstracts[pmid], nil
}

// fakePaperRepo implements repository.PaperRepository in memory.
type fakePaperRepo struct {
	papers     []*domain.Paper
	totalCount int64
	listErr    error
	lastFilter repository.PaperFilter

	byPMID   map[string]*domain.Paper
	missing  []*domain.Paper
	saved    map[uuid.UUID]*domain.FullTextContent
	saveErr  error
	abstract map[uuid.UUID]string
	updErrs  map[uuid.UUID]error
}

func newFakePaperRepo() *fakePaperRepo {
	return &fakePaperRepo{
		byPMID:   make(map[string]*domain.Paper),
		saved:    make(map[uuid.UUID]*domain.FullTextContent),
		abstract: make(map[uuid.UUID]string),
		updErrs:  make(map[uuid.UUID]error),
	}
}

func (f *fakePaperRepo) SaveToProject(_ context.Context, _ uuid.UUID, record *domain.PaperRecord, _ string) (*domain.ProjectPaper, error) {
	return &domain.ProjectPaper{ID: uuid.New()}, nil
}

func (f *fakePaperRepo) GetByPMID(_ context.Context, pmid string) (*domain.Paper, error) {
	if p, ok := f.byPMID[pmid]; ok {
		return p, nil
	}
	return nil, domain.NewNotFoundError("paper", pmid)
}

func (f *fakePaperRepo) ListProjectPapers(_ context.Context, _ uuid.UUID, filter repository.PaperFilter) ([]*domain.Paper, int64, error) {
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	return f.papers, f.totalCount, nil
}

func (f *fakePaperRepo) ListMissingAbstracts(_ context.Context, _ uuid.UUID, _ int) ([]*domain.Paper, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.missing, nil
}

func (f *fakePaperRepo) UpdateAbstract(_ context.Context, paperID uuid.UUID, abstract string) error {
	if err, ok := f.updErrs[paperID]; ok {
		return err
	}
	f.abstract[paperID] = abstract
	return nil
}

func (f *fakePaperRepo) SaveFullText(_ context.Context, paperID uuid.UUID, content *domain.FullTextContent) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[paperID] = content
	return nil
}

func (f *fakePaperRepo) GetFullText(_ context.Context, paperID uuid.UUID) (*domain.FullTextContent, error) {
	if c, ok := f.saved[paperID]; ok {
		return c, nil
	}
	return nil, domain.NewNotFoundError("full text", paperID.String())
}

func (f *fakePaperRepo) ProjectExists(_ context.Context, _ uuid.UUID) (bool, error) {
	return true, nil
}

type testDeps struct {
	importer  *fakeImporter
	fulltext  *fakeFullTextService
	abstracts *fakeAbstractFetcher
	repo      *fakePaperRepo
}

func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()

	deps := &testDeps{
		importer:  &fakeImporter{},
		fulltext:  &fakeFullTextService{},
		abstracts: &fakeAbstractFetcher{abstracts: map[string]string{}, errs: map[string]error{}},
		repo:      newFakePaperRepo(),
	}
	s := NewServer(Config{}, deps.importer, deps.fulltext, deps.abstracts, deps.repo, nil, zerolog.Nop(), nil)
	return s, deps
}

func doRequest(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-User-ID", "user-1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func projectPath(projectID uuid.UUID, suffix string) string {
	return fmt.Sprintf("/api/v1/projects/%s%s", projectID, suffix)
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("healthz without database", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodGet, "/healthz", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("readyz without database", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodGet, "/readyz", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestListPapers(t *testing.T) {
	projectID := uuid.New()

	t.Run("returns papers with total count", func(t *testing.T) {
		s, deps := newTestServer(t)
		deps.repo.papers = []*domain.Paper{
			{ID: uuid.New(), PMID: "11111", Title: "First Paper", Authors: []string{"Smith J"}, CreatedAt: time.Now()},
			{ID: uuid.New(), PMID: "22222", Title: "Second Paper", CreatedAt: time.Now()},
		}
		deps.repo.totalCount = 2

		rec := doRequest(t, s, http.MethodGet, projectPath(projectID, "/papers"), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listPapersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Papers, 2)
		assert.Equal(t, "11111", resp.Papers[0].PMID)
		assert.Equal(t, 2, resp.TotalCount)
		assert.Empty(t, resp.NextPageToken)
	})

	t.Run("emits next page token when more results remain", func(t *testing.T) {
		s, deps := newTestServer(t)
		deps.repo.papers = []*domain.Paper{{ID: uuid.New(), PMID: "11111"}}
		deps.repo.totalCount = 120

		rec := doRequest(t, s, http.MethodGet, projectPath(projectID, "/papers?page_size=10"), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listPapersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.NextPageToken)

		decoded, err := base64.StdEncoding.DecodeString(resp.NextPageToken)
		require.NoError(t, err)
		assert.Equal(t, "10", string(decoded))
		assert.Equal(t, 10, deps.repo.lastFilter.Limit)
	})

	t.Run("page token sets offset", func(t *testing.T) {
		s, deps := newTestServer(t)
		token := base64.StdEncoding.EncodeToString([]byte("40"))

		rec := doRequest(t, s, http.MethodGet, projectPath(projectID, "/papers?page_token="+token), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 40, deps.repo.lastFilter.Offset)
	})

	t.Run("clamps oversized page_size", func(t *testing.T) {
		s, deps := newTestServer(t)

		rec := doRequest(t, s, http.MethodGet, projectPath(projectID, "/papers?page_size=9999"), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, maxPageSize, deps.repo.lastFilter.Limit)
	})

	t.Run("missing_abstract filter is forwarded", func(t *testing.T) {
		s, deps := newTestServer(t)

		rec := doRequest(t, s, http.MethodGet, projectPath(projectID, "/papers?missing_abstract=true"), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, deps.repo.lastFilter.MissingAbstract)
		assert.True(t, *deps.repo.lastFilter.MissingAbstract)
	})

	t.Run("repository failure maps to 500", func(t *testing.T) {
		s, deps := newTestServer(t)
		deps.repo.listErr = fmt.Errorf("connection reset")

		rec := doRequest(t, s, http.MethodGet, projectPath(projectID, "/papers"), "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestDomainErrorMapping(t *testing.T) {
	projectID := uuid.New()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"validation error", domain.NewValidationError("pmid", "PMID is required"), http.StatusBadRequest},
		{"already exists", domain.ErrAlreadyExists, http.StatusConflict},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"service unavailable", domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"unknown error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, deps := newTestServer(t)
			deps.repo.listErr = tt.err

			rec := doRequest(t, s, http.MethodGet, projectPath(projectID, "/papers"), "", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	t.Run("validation error message includes field detail", func(t *testing.T) {
		s, deps := newTestServer(t)
		deps.repo.listErr = domain.NewValidationError("limit", "limit must be positive")

		rec := doRequest(t, s, http.MethodGet, projectPath(projectID, "/papers"), "", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "limit must be positive")
	})
}
