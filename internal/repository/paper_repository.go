package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/synaptica/paper-aggregation-service/internal/domain"
)

// PaperRepository handles paper persistence and project membership.
// Papers are deduplicated globally by PMID; project membership is tracked
// separately so the same paper can belong to many projects.
type PaperRepository interface {
	// SaveToProject upserts the paper identified by the record's PMID and
	// links it to the project.
	// If the paper is already linked to the project, returns domain.ErrAlreadyExists.
	// If the project does not exist, returns domain.ErrNotFound.
	SaveToProject(ctx context.Context, projectID uuid.UUID, record *domain.PaperRecord, userID string) (*domain.ProjectPaper, error)

	// GetByPMID retrieves a paper by its PubMed identifier.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByPMID(ctx context.Context, pmid string) (*domain.Paper, error)

	// ListProjectPapers retrieves papers linked to the project.
	// Returns the matching papers and total count for pagination.
	// The total count reflects all matching records regardless of limit/offset.
	ListProjectPapers(ctx context.Context, projectID uuid.UUID, filter PaperFilter) ([]*domain.Paper, int64, error)

	// ListMissingAbstracts retrieves papers in the project that were saved
	// without an abstract, up to limit.
	ListMissingAbstracts(ctx context.Context, projectID uuid.UUID, limit int) ([]*domain.Paper, error)

	// UpdateAbstract sets the abstract of a paper.
	// Returns domain.ErrNotFound if the paper does not exist.
	UpdateAbstract(ctx context.Context, paperID uuid.UUID, abstract string) error

	// SaveFullText upserts the extracted full-text content for a paper.
	// Returns domain.ErrNotFound if the paper does not exist.
	SaveFullText(ctx context.Context, paperID uuid.UUID, content *domain.FullTextContent) error

	// GetFullText retrieves the stored full-text content for a paper.
	// Returns domain.ErrNotFound if none has been stored.
	GetFullText(ctx context.Context, paperID uuid.UUID) (*domain.FullTextContent, error)

	// ProjectExists reports whether the project exists.
	ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error)
}

// PaperFilter specifies criteria for listing project papers.
type PaperFilter struct {
	// MissingAbstract filters by abstract presence (optional).
	// When true, only papers without an abstract are returned.
	// When false, only papers with an abstract are returned.
	// When nil, no filtering is applied.
	MissingAbstract *bool

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *PaperFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
