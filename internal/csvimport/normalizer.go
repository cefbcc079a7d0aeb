package csvimport

import (
	"regexp"
	"strings"

	"github.com/synaptica/paper-aggregation-service/internal/domain"
)

// MaxAuthors caps the author list of a normalized record.
const MaxAuthors = 10

var (
	yearPattern      = regexp.MustCompile(`\d{4}`)
	authorSeparators = regexp.MustCompile(`[;,]`)
)

// NormalizeRow maps a header-keyed row into a canonical paper record.
// The PMID is stripped to digits; a row whose PMID contains no digits is
// rejected with a validation error so the importer can count it as a
// failure without touching the persistence layer.
func NormalizeRow(row Row) (*domain.PaperRecord, error) {
	pmid := stripNonDigits(row.Get("PMID"))
	if pmid == "" {
		return nil, domain.NewValidationError("pmid", "PMID contains no digits")
	}

	return &domain.PaperRecord{
		PMID:     pmid,
		Title:    strings.TrimSpace(row.Get("Title")),
		Authors:  normalizeAuthors(row.Get("Authors"), row.Get("First Author")),
		Journal:  deriveJournal(row.Get("Journal"), row.Get("Citation")),
		PubDate:  extractYear(row.Get("Publication Year"), row.Get("Create Date")),
		Abstract: strings.TrimSpace(row.Get("Abstract")),
	}, nil
}

// stripNonDigits removes every non-digit character from s.
func stripNonDigits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// normalizeAuthors splits the Authors field on semicolons or commas,
// trims each token, drops empties, and caps the list at MaxAuthors.
// An empty result falls back to a single-element list from First Author.
func normalizeAuthors(authors, firstAuthor string) []string {
	var out []string
	for _, token := range authorSeparators.Split(authors, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		out = append(out, token)
		if len(out) == MaxAuthors {
			break
		}
	}

	if len(out) == 0 {
		if fa := strings.TrimSpace(firstAuthor); fa != "" {
			return []string{fa}
		}
		return nil
	}
	return out
}

// deriveJournal prefers an explicit Journal column and otherwise derives
// the journal name from a Citation string by trying, in order: text
// before the first period, text before a 4-digit year, and text before
// the first semicolon. The first pattern yielding a non-empty prefix wins.
func deriveJournal(journal, citation string) string {
	if j := strings.TrimSpace(journal); j != "" {
		return j
	}

	citation = strings.TrimSpace(citation)
	if citation == "" {
		return ""
	}

	if idx := strings.Index(citation, "."); idx >= 0 {
		if prefix := strings.TrimSpace(citation[:idx]); prefix != "" {
			return prefix
		}
	}
	if loc := yearPattern.FindStringIndex(citation); loc != nil {
		if prefix := strings.TrimSpace(citation[:loc[0]]); prefix != "" {
			return prefix
		}
	}
	if idx := strings.Index(citation, ";"); idx >= 0 {
		if prefix := strings.TrimSpace(citation[:idx]); prefix != "" {
			return prefix
		}
	}

	return ""
}

// extractYear returns the first 4-digit run found in the Publication Year
// field, falling back to the Create Date field, or empty if neither
// contains one.
func extractYear(pubYear, createDate string) string {
	if y := yearPattern.FindString(pubYear); y != "" {
		return y
	}
	return yearPattern.FindString(createDate)
}
