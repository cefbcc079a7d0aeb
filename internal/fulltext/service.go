package fulltext

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/synaptica/paper-aggregation-service/internal/domain"
	"github.com/synaptica/paper-aggregation-service/internal/observability"
	"github.com/synaptica/paper-aggregation-service/internal/sources/pmc"
)

// LinkResolver maps a PubMed identifier to its PMC counterpart. A paper
// with no open-access deposit must be reported with an error satisfying
// errors.Is(err, domain.ErrNotFound).
type LinkResolver interface {
	FindPMCID(ctx context.Context, pmid string) (string, error)
}

// ArticleFetcher retrieves JATS article documents from PMC.
type ArticleFetcher interface {
	FetchArticle(ctx context.Context, pmcID string) (*pmc.Article, error)
	RecordURL(pmcID string) string
}

// Service resolves open-access availability and fetches full text. All of
// its failures are degradable: a paper without retrievable full text is a
// normal outcome, never an error to the caller.
type Service struct {
	links   LinkResolver
	pmc     ArticleFetcher
	retry   RetryPolicy
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewService creates a full-text service. metrics may be nil.
func NewService(links LinkResolver, fetcher ArticleFetcher, retry RetryPolicy, logger zerolog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		links:   links,
		pmc:     fetcher,
		retry:   retry,
		logger:  logger.With().Str("component", "fulltext-service").Logger(),
		metrics: metrics,
	}
}

// CheckAvailability reports the open-access sources where full text for
// the paper can be fetched. A pmcID supplied by the caller is trusted and
// short-circuits the lookup without any network traffic. Otherwise the
// PubMed-to-PMC link is resolved with bounded retry; both "no mapping"
// and lookup exhaustion yield an empty slice with a nil error, since
// unavailability is not a fault.
func (s *Service) CheckAvailability(ctx context.Context, pmid, pmcID string) ([]domain.FullTextSource, error) {
	resolved, err := s.resolvePMCID(ctx, pmid, pmcID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.observeAvailability("error")
		s.logger.Warn().Err(err).
			Str("pmid", pmid).
			Msg("availability lookup failed, treating as unavailable")
		return []domain.FullTextSource{}, nil
	}
	if resolved == "" {
		s.observeAvailability("unavailable")
		return []domain.FullTextSource{}, nil
	}

	s.observeAvailability("available")
	return []domain.FullTextSource{
		{
			Origin:  domain.SourcePMC,
			Locator: s.pmc.RecordURL(resolved),
			Format:  domain.FormatXML,
		},
	}, nil
}

// GetFullText fetches and extracts full text for the paper. Every
// degradable failure (no open-access version, fetch failure, unusable
// document) returns (nil, nil) after logging the reason; only context
// cancellation surfaces as an error.
func (s *Service) GetFullText(ctx context.Context, pmid, pmcID string) (*domain.FullTextContent, error) {
	resolved, err := s.resolvePMCID(ctx, pmid, pmcID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.observeFetch("error")
		s.logger.Warn().Err(err).
			Str("pmid", pmid).
			Msg("full text lookup failed")
		return nil, nil
	}
	if resolved == "" {
		s.observeFetch("unavailable")
		s.logger.Debug().
			Str("pmid", pmid).
			Msg("no open-access full text available")
		return nil, nil
	}

	start := time.Now()
	article, err := s.pmc.FetchArticle(ctx, resolved)
	if s.metrics != nil {
		s.metrics.RecordSourceRequest("pmc", "oai_getrecord", time.Since(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil && !errors.Is(err, domain.ErrNotFound) {
			s.metrics.RecordSourceRequestFailed("pmc", "oai_getrecord")
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, domain.ErrNotFound) {
			s.observeFetch("unavailable")
			s.logger.Debug().
				Str("pmid", pmid).
				Str("pmc_id", resolved).
				Msg("pmc record not in open-access subset")
		} else {
			s.observeFetch("error")
			s.logger.Warn().Err(err).
				Str("pmid", pmid).
				Str("pmc_id", resolved).
				Msg("failed to fetch pmc article")
		}
		return nil, nil
	}

	source := domain.FullTextSource{
		Origin:  domain.SourcePMC,
		Locator: s.pmc.RecordURL(resolved),
		Format:  domain.FormatXML,
	}
	content := ExtractContent(article, source)
	if content == nil {
		s.observeFetch("empty")
		s.logger.Warn().
			Str("pmid", pmid).
			Str("pmc_id", resolved).
			Msg("pmc article carried no usable content")
		return nil, nil
	}

	s.observeFetch("fetched")
	s.logger.Info().
		Str("pmid", pmid).
		Str("pmc_id", resolved).
		Int("full_text_len", len(content.FullText)).
		Int("sections", len(content.Sections)).
		Msg("fetched full text")
	return content, nil
}

// resolvePMCID returns the PMC identifier for the paper. A caller-supplied
// id wins without network traffic. A lookup that cleanly finds no mapping
// returns ("", nil); transport failures after retry exhaustion return the
// last error.
func (s *Service) resolvePMCID(ctx context.Context, pmid, pmcID string) (string, error) {
	if pmcID != "" {
		return pmcID, nil
	}
	if pmid == "" {
		return "", domain.NewValidationError("pmid", "pmid is required when no pmc id is supplied")
	}

	var resolved string
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		id, err := s.links.FindPMCID(ctx, pmid)
		if s.metrics != nil {
			s.metrics.RecordSourceRequest("pubmed", "elink", time.Since(start).Seconds())
		}
		if err != nil {
			if s.metrics != nil && !errors.Is(err, domain.ErrNotFound) {
				s.metrics.RecordSourceRequestFailed("pubmed", "elink")
			}
			// No mapping is a definitive answer; retrying will not
			// change it.
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("pmc link lookup for pmid %s: %w", pmid, err)
		}
		resolved = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return resolved, nil
}

func (s *Service) observeAvailability(outcome string) {
	if s.metrics != nil {
		s.metrics.AvailabilityChecks.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) observeFetch(outcome string) {
	if s.metrics != nil {
		s.metrics.FullTextFetches.WithLabelValues(outcome).Inc()
	}
}
