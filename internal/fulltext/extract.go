package fulltext

import (
	"strings"

	"github.com/synaptica/paper-aggregation-service/internal/domain"
	"github.com/synaptica/paper-aggregation-service/internal/sources"
	"github.com/synaptica/paper-aggregation-service/internal/sources/pmc"
)

// MinFullTextLength is the minimum body length that counts as meaningful
// content when the document has neither a title nor an abstract.
const MinFullTextLength = 100

// categoryKeywords maps section-title keywords to canonical categories.
// Order matters: classification is first-match-wins, so a section titled
// "Results and Discussion" is categorized as results.
var categoryKeywords = []struct {
	keyword  string
	category domain.SectionCategory
}{
	{"introduction", domain.SectionIntroduction},
	{"method", domain.SectionMethods},
	{"result", domain.SectionResults},
	{"discussion", domain.SectionDiscussion},
	{"conclusion", domain.SectionConclusion},
}

// ExtractContent decomposes a JATS article into title, abstract, full
// body text, and categorized sections. It returns nil when nothing
// meaningful could be extracted: no title, no abstract, and a body
// shorter than MinFullTextLength.
func ExtractContent(article *pmc.Article, source domain.FullTextSource) *domain.FullTextContent {
	if article == nil {
		return nil
	}

	title := strings.TrimSpace(string(article.Front.ArticleMeta.TitleGroup.ArticleTitle))
	abstract := firstAbstractParagraph(article.Front.ArticleMeta.Abstract)

	var fullTextParts []string
	sections := make(map[domain.SectionCategory]string)

	if article.Body != nil {
		walkSections(article.Body.Sections, &fullTextParts, sections)
	}
	fullText := strings.Join(fullTextParts, "\n\n")

	if title == "" && abstract == "" && len(fullText) < MinFullTextLength {
		return nil
	}

	return &domain.FullTextContent{
		Title:    title,
		Abstract: abstract,
		FullText: fullText,
		Sections: sections,
		Source:   source,
	}
}

// walkSections visits sections and their subsections in document order,
// accumulating each section's text into the full-text parts and into the
// category map when its title matches a canonical category.
func walkSections(secs []pmc.Section, fullTextParts *[]string, sections map[domain.SectionCategory]string) {
	for _, sec := range secs {
		text := joinParagraphs(sec.Paragraphs)
		if text != "" {
			sectionText := text
			if t := strings.TrimSpace(string(sec.Title)); t != "" {
				sectionText = t + "\n" + text
			}
			*fullTextParts = append(*fullTextParts, sectionText)

			if cat, ok := classifySection(string(sec.Title)); ok {
				// Last section wins when the same category appears twice.
				sections[cat] = sectionText
			}
		}

		walkSections(sec.Sections, fullTextParts, sections)
	}
}

// classifySection matches a section title against the canonical
// categories, case-insensitively, first match wins.
func classifySection(title string) (domain.SectionCategory, bool) {
	lower := strings.ToLower(title)
	for _, ck := range categoryKeywords {
		if strings.Contains(lower, ck.keyword) {
			return ck.category, true
		}
	}
	return "", false
}

// joinParagraphs concatenates non-empty trimmed paragraphs with spaces.
func joinParagraphs(paragraphs []sources.InnerText) string {
	var parts []string
	for _, p := range paragraphs {
		if trimmed := strings.TrimSpace(string(p)); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// firstAbstractParagraph returns the first non-empty paragraph of the
// abstract, checking direct paragraphs before structured sub-sections.
func firstAbstractParagraph(abstract *pmc.Abstract) string {
	if abstract == nil {
		return ""
	}
	for _, p := range abstract.Paragraphs {
		if trimmed := strings.TrimSpace(string(p)); trimmed != "" {
			return trimmed
		}
	}
	for _, sec := range abstract.Sections {
		if p := joinParagraphs(sec.Paragraphs); p != "" {
			return p
		}
	}
	return ""
}
