package csvimport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica/paper-aggregation-service/internal/domain"
)

// fakeSaver records save calls and returns scripted errors per PMID.
type fakeSaver struct {
	calls  []string
	errors map[string]error
}

func (f *fakeSaver) SaveToProject(ctx context.Context, projectID uuid.UUID, record *domain.PaperRecord, userID string) (*domain.ProjectPaper, error) {
	f.calls = append(f.calls, record.PMID)
	if err, ok := f.errors[record.PMID]; ok {
		return nil, err
	}
	return &domain.ProjectPaper{
		ID:        uuid.New(),
		ProjectID: projectID,
		PaperID:   uuid.New(),
		AddedBy:   userID,
	}, nil
}

func parseTestRows(t *testing.T, csv string) []Row {
	t.Helper()
	rows, err := ParseRows(csv)
	require.NoError(t, err)
	return rows
}

func TestImporter_Run(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("classifies success, duplicate, and malformed rows", func(t *testing.T) {
		// 10 rows: 8 clean, 1 duplicate, 1 with an unusable PMID.
		var b strings.Builder
		b.WriteString("PMID,Title\n")
		for i := 1; i <= 8; i++ {
			fmt.Fprintf(&b, "%d,Paper %d\n", i, i)
		}
		b.WriteString("999,Duplicate Paper\n")
		b.WriteString("abc,Malformed PMID Paper\n")

		saver := &fakeSaver{errors: map[string]error{
			"999": domain.NewAlreadyExistsError("paper", "999"),
		}}
		importer := NewImporter(saver, zerolog.Nop(), nil)

		outcome := importer.Run(ctx, projectID, "user-1", parseTestRows(t, b.String()), nil)

		assert.Equal(t, 8, outcome.SuccessCount)
		assert.Equal(t, 2, outcome.FailedCount)
		assert.Equal(t, 1, outcome.DuplicateCount)
		assert.Len(t, outcome.Errors, 2)

		// The malformed row never reaches the saver.
		assert.NotContains(t, saver.calls, "")
		assert.Len(t, saver.calls, 9)
	})

	t.Run("duplicate classification uses the error kind not the message", func(t *testing.T) {
		saver := &fakeSaver{errors: map[string]error{
			// Message says nothing about duplicates; only the wrapped
			// sentinel should matter.
			"1": fmt.Errorf("constraint violation: %w", domain.ErrAlreadyExists),
			// Message mentions "already exists" but carries no sentinel.
			"2": errors.New("paper already exists somewhere"),
		}}
		importer := NewImporter(saver, zerolog.Nop(), nil)

		outcome := importer.Run(ctx, projectID, "user-1", parseTestRows(t, "PMID,Title\n1,A\n2,B\n"), nil)

		assert.Equal(t, 0, outcome.SuccessCount)
		assert.Equal(t, 2, outcome.FailedCount)
		assert.Equal(t, 1, outcome.DuplicateCount)
	})

	t.Run("never aborts on row failure", func(t *testing.T) {
		saver := &fakeSaver{errors: map[string]error{
			"1": errors.New("database on fire"),
		}}
		importer := NewImporter(saver, zerolog.Nop(), nil)

		outcome := importer.Run(ctx, projectID, "user-1", parseTestRows(t, "PMID,Title\n1,A\n2,B\n3,C\n"), nil)

		assert.Equal(t, 2, outcome.SuccessCount)
		assert.Equal(t, 1, outcome.FailedCount)
		assert.Equal(t, []string{"1", "2", "3"}, saver.calls)
	})

	t.Run("progress is reported after every row and increases monotonically", func(t *testing.T) {
		saver := &fakeSaver{}
		importer := NewImporter(saver, zerolog.Nop(), nil)

		var seen []Progress
		importer.Run(ctx, projectID, "user-1", parseTestRows(t, "PMID,Title\n1,A\n2,B\n3,C\n"), func(p Progress) {
			seen = append(seen, p)
		})

		require.Len(t, seen, 3)
		for i, p := range seen {
			assert.Equal(t, i+1, p.Current)
			assert.Equal(t, 3, p.Total)
		}
	})

	t.Run("second import of the same rows yields only duplicates", func(t *testing.T) {
		// Simulates the persistence layer enforcing (project, paper)
		// uniqueness across runs.
		seen := map[string]bool{}
		saver := &fakeSaver{errors: map[string]error{}}
		importer := NewImporter(&dedupSaver{inner: saver, seen: seen}, zerolog.Nop(), nil)

		rows := parseTestRows(t, "PMID,Title\n1,A\n2,B\n")

		first := importer.Run(ctx, projectID, "user-1", rows, nil)
		assert.Equal(t, 2, first.SuccessCount)
		assert.Equal(t, 0, first.DuplicateCount)

		second := importer.Run(ctx, projectID, "user-1", rows, nil)
		assert.Equal(t, 0, second.SuccessCount)
		assert.Equal(t, 2, second.DuplicateCount)
		assert.Equal(t, 2, second.FailedCount)
	})

	t.Run("cancelled context stops the batch early", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		saver := &fakeSaver{}
		importer := NewImporter(saver, zerolog.Nop(), nil)

		outcome := importer.Run(cancelled, projectID, "user-1", parseTestRows(t, "PMID,Title\n1,A\n"), nil)
		assert.Equal(t, 0, outcome.SuccessCount)
		assert.Empty(t, saver.calls)
	})
}

// dedupSaver wraps a fakeSaver and rejects repeat PMIDs with a duplicate error.
type dedupSaver struct {
	inner *fakeSaver
	seen  map[string]bool
}

func (d *dedupSaver) SaveToProject(ctx context.Context, projectID uuid.UUID, record *domain.PaperRecord, userID string) (*domain.ProjectPaper, error) {
	if d.seen[record.PMID] {
		return nil, domain.NewAlreadyExistsError("paper", record.PMID)
	}
	d.seen[record.PMID] = true
	return d.inner.SaveToProject(ctx, projectID, record, userID)
}

func TestOutcome_ErrorSummary(t *testing.T) {
	t.Run("short list is returned unchanged", func(t *testing.T) {
		o := &Outcome{Errors: []string{"a", "b"}}
		assert.Equal(t, []string{"a", "b"}, o.ErrorSummary(5))
	})

	t.Run("long list is capped with a remainder entry", func(t *testing.T) {
		o := &Outcome{Errors: []string{"a", "b", "c", "d", "e", "f", "g"}}
		summary := o.ErrorSummary(5)
		require.Len(t, summary, 6)
		assert.Equal(t, "...and 2 more", summary[5])
	})

	t.Run("non-positive cap disables truncation", func(t *testing.T) {
		o := &Outcome{Errors: []string{"a", "b"}}
		assert.Equal(t, []string{"a", "b"}, o.ErrorSummary(0))
	})
}
