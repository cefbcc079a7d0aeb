package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synaptica/paper-aggregation-service/internal/domain"
)

// maxAbstractBackfill bounds how many papers one fetch-abstracts request processes.
const maxAbstractBackfill = 100

// checkAvailability handles POST /papers/{pmid}/check-availability.
// An optional pmc_id query parameter short-circuits the lookup.
func (s *Server) checkAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pmid := chi.URLParam(r, "pmid")
	pmcID := r.URL.Query().Get("pmc_id")

	sources, err := s.fulltext.CheckAvailability(ctx, pmid, pmcID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]sourceResponse, len(sources))
	for i, src := range sources {
		responses[i] = domainSourceToResponse(src)
	}

	writeJSON(w, http.StatusOK, availabilityResponse{
		PMID:      pmid,
		Available: len(sources) > 0,
		Sources:   responses,
	})
}

// fetchFullText handles POST /papers/{pmid}/fetch-fulltext.
// When the paper exists in the project's corpus, the extracted content is
// also persisted. Unavailable full text is a normal 200 response with
// available=false.
func (s *Server) fetchFullText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pmid := chi.URLParam(r, "pmid")
	pmcID := r.URL.Query().Get("pmc_id")

	content, err := s.fulltext.GetFullText(ctx, pmid, pmcID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if content != nil {
		if paper, lookupErr := s.paperRepo.GetByPMID(ctx, pmid); lookupErr == nil {
			if saveErr := s.paperRepo.SaveFullText(ctx, paper.ID, content); saveErr != nil {
				s.logger.Error().Err(saveErr).
					Str("pmid", pmid).
					Msg("failed to persist full text")
			}
		} else if !errors.Is(lookupErr, domain.ErrNotFound) {
			s.logger.Error().Err(lookupErr).
				Str("pmid", pmid).
				Msg("failed to look up paper for full text persistence")
		}
	}

	writeJSON(w, http.StatusOK, domainContentToResponse(pmid, content))
}

// fetchAbstracts handles POST /fetch-abstracts.
// It backfills abstracts for papers in the project that were imported
// without one. Individual fetch failures never abort the batch.
func (s *Server) fetchAbstracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := projectIDFromContext(ctx)

	papers, err := s.paperRepo.ListMissingAbstracts(ctx, projectID, maxAbstractBackfill)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := fetchAbstractsResponse{Checked: len(papers)}
	for _, paper := range papers {
		if ctx.Err() != nil {
			break
		}

		abstract, fetchErr := s.abstracts.FetchAbstract(ctx, paper.PMID)
		if fetchErr != nil {
			resp.Failed++
			if s.metrics != nil {
				s.metrics.RecordAbstractBackfillFailed()
			}
			if !errors.Is(fetchErr, domain.ErrNotFound) {
				s.logger.Warn().Err(fetchErr).
					Str("pmid", paper.PMID).
					Msg("failed to fetch abstract")
			}
			continue
		}

		if updateErr := s.paperRepo.UpdateAbstract(ctx, paper.ID, abstract); updateErr != nil {
			resp.Failed++
			if s.metrics != nil {
				s.metrics.RecordAbstractBackfillFailed()
			}
			s.logger.Error().Err(updateErr).
				Str("pmid", paper.PMID).
				Msg("failed to update abstract")
			continue
		}
		resp.Updated++
		if s.metrics != nil {
			s.metrics.RecordAbstractBackfilled()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
