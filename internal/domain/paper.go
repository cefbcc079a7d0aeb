// Package domain defines the core entities of the paper aggregation service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceOrigin identifies the kind of open-access repository a full text
// was located in.
type SourceOrigin string

// Known source origins.
const (
	SourcePMC       SourceOrigin = "pmc"
	SourceArXiv     SourceOrigin = "arxiv"
	SourceDOI       SourceOrigin = "doi"
	SourcePublisher SourceOrigin = "publisher"
)

// SourceFormat identifies the document format offered by a full-text source.
type SourceFormat string

// Known source formats.
const (
	FormatXML  SourceFormat = "xml"
	FormatHTML SourceFormat = "html"
	FormatText SourceFormat = "text"
)

// PaperRecord is the canonical, normalized representation of a paper,
// independent of the CSV column naming it was imported from.
// PMID contains digits only and is never empty for a valid record.
type PaperRecord struct {
	// PMID is the PubMed identifier, digits only.
	PMID string

	// Title is the article title, trimmed.
	Title string

	// Authors is the ordered author list, each entry trimmed, capped
	// at MaxAuthors during normalization.
	Authors []string

	// Journal is the journal name, possibly derived from a citation string.
	Journal string

	// PubDate is the publication year as a 4-digit string, or empty.
	PubDate string

	// Abstract is the abstract text, possibly empty.
	Abstract string
}

// Paper is a persisted paper row. Papers are shared across projects;
// project membership is tracked separately via ProjectPaper.
type Paper struct {
	ID        uuid.UUID
	PMID      string
	Title     string
	Authors   []string
	Journal   string
	PubDate   string
	Abstract  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectPaper links a paper to a project. The (ProjectID, PaperID) pair
// is unique, which is what makes re-imports idempotent.
type ProjectPaper struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	PaperID   uuid.UUID
	AddedBy   string
	CreatedAt time.Time
}

// FullTextSource describes where free full text for a paper can be found.
type FullTextSource struct {
	// Origin is the repository kind hosting the document.
	Origin SourceOrigin

	// Locator is the URL or repository identifier of the document.
	Locator string

	// Format is the document format at the locator.
	Format SourceFormat
}

// SectionCategory is a canonical body-section category.
type SectionCategory string

// Canonical section categories, in classification precedence order.
const (
	SectionIntroduction SectionCategory = "introduction"
	SectionMethods      SectionCategory = "methods"
	SectionResults      SectionCategory = "results"
	SectionDiscussion   SectionCategory = "discussion"
	SectionConclusion   SectionCategory = "conclusion"
)

// FullTextContent is the structural decomposition of a fetched article.
// It is created once per successful fetch and never mutated.
type FullTextContent struct {
	// Title is the article title extracted from the document.
	Title string

	// Abstract is the first abstract paragraph, or empty.
	Abstract string

	// FullText is the concatenation of all section texts in document order.
	FullText string

	// Sections maps canonical categories to their extracted text.
	// Categories that were not identified are absent.
	Sections map[SectionCategory]string

	// Source records where the content was fetched from.
	Source FullTextSource
}
