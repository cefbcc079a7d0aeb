package httpserver

import (
	"time"

	"github.com/synaptica/paper-aggregation-service/internal/csvimport"
	"github.com/synaptica/paper-aggregation-service/internal/domain"
)

// Response types for JSON serialization.

type importResponse struct {
	TotalRows      int      `json:"total_rows"`
	SuccessCount   int      `json:"success_count"`
	FailedCount    int      `json:"failed_count"`
	DuplicateCount int      `json:"duplicate_count"`
	Errors         []string `json:"errors,omitempty"`
}

type sourceResponse struct {
	Origin  string `json:"origin"`
	Locator string `json:"locator"`
	Format  string `json:"format"`
}

type availabilityResponse struct {
	PMID      string           `json:"pmid"`
	Available bool             `json:"available"`
	Sources   []sourceResponse `json:"sources"`
}

type fullTextResponse struct {
	PMID      string            `json:"pmid"`
	Available bool              `json:"available"`
	Title     string            `json:"title,omitempty"`
	Abstract  string            `json:"abstract,omitempty"`
	FullText  string            `json:"full_text,omitempty"`
	Sections  map[string]string `json:"sections,omitempty"`
	Source    *sourceResponse   `json:"source,omitempty"`
}

type paperResponse struct {
	ID        string    `json:"id"`
	PMID      string    `json:"pmid"`
	Title     string    `json:"title"`
	Authors   []string  `json:"authors,omitempty"`
	Journal   string    `json:"journal,omitempty"`
	PubDate   string    `json:"pub_date,omitempty"`
	Abstract  string    `json:"abstract,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type listPapersResponse struct {
	Papers        []paperResponse `json:"papers"`
	NextPageToken string          `json:"next_page_token,omitempty"`
	TotalCount    int             `json:"total_count"`
}

type fetchAbstractsResponse struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Converter functions

func outcomeToResponse(outcome *csvimport.Outcome, totalRows, maxErrors int) importResponse {
	return importResponse{
		TotalRows:      totalRows,
		SuccessCount:   outcome.SuccessCount,
		FailedCount:    outcome.FailedCount,
		DuplicateCount: outcome.DuplicateCount,
		Errors:         outcome.ErrorSummary(maxErrors),
	}
}

func domainSourceToResponse(s domain.FullTextSource) sourceResponse {
	return sourceResponse{
		Origin:  string(s.Origin),
		Locator: s.Locator,
		Format:  string(s.Format),
	}
}

func domainContentToResponse(pmid string, c *domain.FullTextContent) fullTextResponse {
	if c == nil {
		return fullTextResponse{PMID: pmid, Available: false}
	}

	sections := make(map[string]string, len(c.Sections))
	for cat, text := range c.Sections {
		sections[string(cat)] = text
	}

	source := domainSourceToResponse(c.Source)
	return fullTextResponse{
		PMID:      pmid,
		Available: true,
		Title:     c.Title,
		Abstract:  c.Abstract,
		FullText:  c.FullText,
		Sections:  sections,
		Source:    &source,
	}
}

func domainPaperToResponse(p *domain.Paper) paperResponse {
	return paperResponse{
		ID:        p.ID.String(),
		PMID:      p.PMID,
		Title:     p.Title,
		Authors:   p.Authors,
		Journal:   p.Journal,
		PubDate:   p.PubDate,
		Abstract:  p.Abstract,
		CreatedAt: p.CreatedAt,
	}
}
