package csvimport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/synaptica/paper-aggregation-service/internal/domain"
	"github.com/synaptica/paper-aggregation-service/internal/observability"
)

// PaperSaver is the persistence collaborator for the importer. A duplicate
// (project, paper) link must be reported with an error satisfying
// errors.Is(err, domain.ErrAlreadyExists).
type PaperSaver interface {
	SaveToProject(ctx context.Context, projectID uuid.UUID, record *domain.PaperRecord, userID string) (*domain.ProjectPaper, error)
}

// Progress reports how far an import run has advanced.
type Progress struct {
	Current int
	Total   int
}

// ProgressFunc observes import progress. It is invoked synchronously after
// every processed row.
type ProgressFunc func(Progress)

// Outcome is the aggregate result of one import run. DuplicateCount is a
// subset of FailedCount. Counters only increase during a run and the value
// is never mutated after Run returns.
type Outcome struct {
	SuccessCount   int
	FailedCount    int
	DuplicateCount int
	Errors         []string
}

// ErrorSummary returns at most max error strings. When the list is longer,
// the last entry summarizes how many were omitted, so truncation is never
// silent.
func (o *Outcome) ErrorSummary(max int) []string {
	if max <= 0 || len(o.Errors) <= max {
		return o.Errors
	}
	summary := make([]string, 0, max+1)
	summary = append(summary, o.Errors[:max]...)
	summary = append(summary, fmt.Sprintf("...and %d more", len(o.Errors)-max))
	return summary
}

// Importer drives the normalizer over parsed CSV rows and saves each
// record through the persistence collaborator, one row at a time.
type Importer struct {
	saver   PaperSaver
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewImporter creates an importer. metrics may be nil.
func NewImporter(saver PaperSaver, logger zerolog.Logger, metrics *observability.Metrics) *Importer {
	return &Importer{
		saver:   saver,
		logger:  logger.With().Str("component", "csv-importer").Logger(),
		metrics: metrics,
	}
}

// Run processes every row strictly sequentially and returns the full
// outcome. No single row ever aborts the batch: normalization defects and
// save failures are converted into outcome entries. Duplicates are
// classified with errors.Is against domain.ErrAlreadyExists and counted
// under both FailedCount and DuplicateCount. The progress callback fires
// after each row, so observed progress is monotonically increasing.
//
// The only early exit is cancellation of ctx, in which case the outcome
// covers the rows processed so far.
func (im *Importer) Run(ctx context.Context, projectID uuid.UUID, userID string, rows []Row, progress ProgressFunc) *Outcome {
	start := time.Now()
	outcome := &Outcome{}
	total := len(rows)

	if im.metrics != nil {
		im.metrics.ImportsStarted.Inc()
		im.metrics.ImportRowsPerRun.Observe(float64(total))
	}
	im.logger.Info().
		Str("project_id", projectID.String()).
		Int("rows", total).
		Msg("starting CSV import")

	for i, row := range rows {
		if ctx.Err() != nil {
			im.logger.Warn().
				Int("processed", i).
				Int("total", total).
				Msg("import cancelled before completion")
			break
		}

		im.processRow(ctx, projectID, userID, i, row, outcome)

		if progress != nil {
			progress(Progress{Current: i + 1, Total: total})
		}
	}

	if im.metrics != nil {
		im.metrics.ImportsCompleted.Inc()
		im.metrics.ImportDuration.Observe(time.Since(start).Seconds())
	}
	im.logger.Info().
		Str("project_id", projectID.String()).
		Int("success", outcome.SuccessCount).
		Int("failed", outcome.FailedCount).
		Int("duplicates", outcome.DuplicateCount).
		Msg("CSV import finished")

	return outcome
}

// processRow normalizes and saves a single row, classifying the result
// into the outcome counters.
func (im *Importer) processRow(ctx context.Context, projectID uuid.UUID, userID string, idx int, row Row, outcome *Outcome) {
	record, err := NormalizeRow(row)
	if err != nil {
		outcome.FailedCount++
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("row %d: %v", idx+1, err))
		if im.metrics != nil {
			im.metrics.ImportRowsFailed.Inc()
		}
		return
	}

	_, err = im.saver.SaveToProject(ctx, projectID, record, userID)
	switch {
	case err == nil:
		outcome.SuccessCount++
		if im.metrics != nil {
			im.metrics.ImportRowsSaved.Inc()
		}

	case errors.Is(err, domain.ErrAlreadyExists):
		outcome.FailedCount++
		outcome.DuplicateCount++
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("row %d: paper %s is already in this project", idx+1, record.PMID))
		if im.metrics != nil {
			im.metrics.ImportRowsDuplicate.Inc()
		}

	default:
		outcome.FailedCount++
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("row %d: failed to save paper %s: %v", idx+1, record.PMID, err))
		if im.metrics != nil {
			im.metrics.ImportRowsFailed.Inc()
		}
		im.logger.Error().Err(err).
			Str("pmid", record.PMID).
			Int("row", idx+1).
			Msg("failed to save paper")
	}
}
