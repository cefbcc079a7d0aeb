package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/synaptica/paper-aggregation-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// SaveToProject upserts the paper by PMID, then links it to the project.
// Re-importing a paper refreshes its metadata without losing fields the
// new record leaves empty.
func (r *PgPaperRepository) SaveToProject(ctx context.Context, projectID uuid.UUID, record *domain.PaperRecord, userID string) (*domain.ProjectPaper, error) {
	if record == nil {
		return nil, domain.NewValidationError("record", "record cannot be nil")
	}
	if record.PMID == "" {
		return nil, domain.NewValidationError("pmid", "PMID is required")
	}

	authorsJSON, err := json.Marshal(record.Authors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authors: %w", err)
	}

	now := time.Now().UTC()

	upsertQuery := `
		INSERT INTO papers (
			id, pmid, title, authors, journal, pub_date, abstract,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $8
		)
		ON CONFLICT (pmid) DO UPDATE SET
			title = COALESCE(NULLIF(EXCLUDED.title, ''), papers.title),
			authors = EXCLUDED.authors,
			journal = COALESCE(NULLIF(EXCLUDED.journal, ''), papers.journal),
			pub_date = COALESCE(NULLIF(EXCLUDED.pub_date, ''), papers.pub_date),
			abstract = COALESCE(NULLIF(EXCLUDED.abstract, ''), papers.abstract),
			updated_at = NOW()
		RETURNING id`

	var paperID uuid.UUID
	err = r.db.QueryRow(ctx, upsertQuery,
		uuid.New(),
		record.PMID,
		record.Title,
		authorsJSON,
		record.Journal,
		record.PubDate,
		record.Abstract,
		now,
	).Scan(&paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert paper: %w", err)
	}

	linkQuery := `
		INSERT INTO project_papers (id, project_id, paper_id, added_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	link := &domain.ProjectPaper{
		ID:        uuid.New(),
		ProjectID: projectID,
		PaperID:   paperID,
		AddedBy:   userID,
		CreatedAt: now,
	}

	_, err = r.db.Exec(ctx, linkQuery, link.ID, link.ProjectID, link.PaperID, link.AddedBy, link.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// Unique violation: the paper is already in this project.
			if pgErr.Code == "23505" {
				return nil, domain.NewAlreadyExistsError("paper", record.PMID)
			}
			// Foreign key violation: the project does not exist.
			if pgErr.Code == "23503" {
				return nil, domain.NewNotFoundError("project", projectID.String())
			}
		}
		return nil, fmt.Errorf("failed to link paper to project: %w", err)
	}

	return link, nil
}

// GetByPMID retrieves a paper by its PubMed identifier.
func (r *PgPaperRepository) GetByPMID(ctx context.Context, pmid string) (*domain.Paper, error) {
	if pmid == "" {
		return nil, domain.NewValidationError("pmid", "PMID is required")
	}

	query := `
		SELECT id, pmid, title, authors, journal, pub_date, abstract,
			created_at, updated_at
		FROM papers
		WHERE pmid = $1`

	row := r.db.QueryRow(ctx, query, pmid)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", pmid)
		}
		return nil, fmt.Errorf("failed to get paper by PMID: %w", err)
	}

	return paper, nil
}

// ListProjectPapers retrieves papers linked to the project, ordered by the
// time they were added.
func (r *PgPaperRepository) ListProjectPapers(ctx context.Context, projectID uuid.UUID, filter PaperFilter) ([]*domain.Paper, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	abstractClause := ""
	if filter.MissingAbstract != nil {
		if *filter.MissingAbstract {
			abstractClause = "AND (p.abstract IS NULL OR p.abstract = '')"
		} else {
			abstractClause = "AND p.abstract IS NOT NULL AND p.abstract != ''"
		}
	}

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM papers p
		INNER JOIN project_papers pp ON pp.paper_id = p.id
		WHERE pp.project_id = $1 %s`, abstractClause)

	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, projectID).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count project papers: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT p.id, p.pmid, p.title, p.authors, p.journal, p.pub_date, p.abstract,
			p.created_at, p.updated_at
		FROM papers p
		INNER JOIN project_papers pp ON pp.paper_id = p.id
		WHERE pp.project_id = $1 %s
		ORDER BY pp.created_at, p.id
		LIMIT $2 OFFSET $3`, abstractClause)

	rows, err := r.db.Query(ctx, selectQuery, projectID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list project papers: %w", err)
	}
	defer rows.Close()

	papers, err := scanPapers(rows)
	if err != nil {
		return nil, 0, err
	}

	return papers, totalCount, nil
}

// ListMissingAbstracts retrieves papers in the project saved without an abstract.
func (r *PgPaperRepository) ListMissingAbstracts(ctx context.Context, projectID uuid.UUID, limit int) ([]*domain.Paper, error) {
	missing := true
	papers, _, err := r.ListProjectPapers(ctx, projectID, PaperFilter{
		MissingAbstract: &missing,
		Limit:           limit,
	})
	return papers, err
}

// UpdateAbstract sets the abstract of a paper.
func (r *PgPaperRepository) UpdateAbstract(ctx context.Context, paperID uuid.UUID, abstract string) error {
	query := `
		UPDATE papers
		SET abstract = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, paperID, abstract)
	if err != nil {
		return fmt.Errorf("failed to update abstract: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", paperID.String())
	}

	return nil
}

// SaveFullText upserts the extracted full-text content for a paper.
func (r *PgPaperRepository) SaveFullText(ctx context.Context, paperID uuid.UUID, content *domain.FullTextContent) error {
	if content == nil {
		return domain.NewValidationError("content", "content cannot be nil")
	}

	sectionsJSON, err := json.Marshal(content.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	query := `
		INSERT INTO paper_fulltext (
			paper_id, title, abstract, full_text, sections,
			source_origin, source_locator, source_format,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $9
		)
		ON CONFLICT (paper_id) DO UPDATE SET
			title = EXCLUDED.title,
			abstract = EXCLUDED.abstract,
			full_text = EXCLUDED.full_text,
			sections = EXCLUDED.sections,
			source_origin = EXCLUDED.source_origin,
			source_locator = EXCLUDED.source_locator,
			source_format = EXCLUDED.source_format,
			updated_at = NOW()`

	now := time.Now().UTC()
	_, err = r.db.Exec(ctx, query,
		paperID,
		content.Title,
		content.Abstract,
		content.FullText,
		sectionsJSON,
		content.Source.Origin,
		content.Source.Locator,
		content.Source.Format,
		now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.NewNotFoundError("paper", paperID.String())
		}
		return fmt.Errorf("failed to save full text: %w", err)
	}

	return nil
}

// GetFullText retrieves the stored full-text content for a paper.
func (r *PgPaperRepository) GetFullText(ctx context.Context, paperID uuid.UUID) (*domain.FullTextContent, error) {
	query := `
		SELECT title, abstract, full_text, sections,
			source_origin, source_locator, source_format
		FROM paper_fulltext
		WHERE paper_id = $1`

	var (
		content      domain.FullTextContent
		sectionsJSON []byte
	)
	err := r.db.QueryRow(ctx, query, paperID).Scan(
		&content.Title,
		&content.Abstract,
		&content.FullText,
		&sectionsJSON,
		&content.Source.Origin,
		&content.Source.Locator,
		&content.Source.Format,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("full text", paperID.String())
		}
		return nil, fmt.Errorf("failed to get full text: %w", err)
	}

	if len(sectionsJSON) > 0 {
		if err := json.Unmarshal(sectionsJSON, &content.Sections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
		}
	}

	return &content, nil
}

// ProjectExists reports whether the project exists.
func (r *PgPaperRepository) ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)", projectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check project existence: %w", err)
	}
	return exists, nil
}

// scanPaper scans a single paper row.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var (
		paper       domain.Paper
		authorsJSON []byte
	)
	err := row.Scan(
		&paper.ID,
		&paper.PMID,
		&paper.Title,
		&authorsJSON,
		&paper.Journal,
		&paper.PubDate,
		&paper.Abstract,
		&paper.CreatedAt,
		&paper.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(authorsJSON) > 0 {
		if err := json.Unmarshal(authorsJSON, &paper.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}

	return &paper, nil
}

// scanPapers scans all paper rows.
func scanPapers(rows pgx.Rows) ([]*domain.Paper, error) {
	var papers []*domain.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate papers: %w", err)
	}
	return papers, nil
}
