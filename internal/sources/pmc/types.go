// Package pmc provides a client for the PubMed Central OAI-PMH service,
// which serves open-access article full text as JATS XML.
//
// The OAI-PMH interface is documented at:
// https://www.ncbi.nlm.nih.gov/pmc/tools/oai/
package pmc

import (
	"encoding/xml"

	"github.com/synaptica/paper-aggregation-service/internal/sources"
)

// OAIResponse represents an OAI-PMH envelope. A failed GetRecord carries
// an error element instead of a record; "noRecordsMatch" means the
// identifier has no open-access record and is a clean unavailable
// outcome, not a fault.
type OAIResponse struct {
	XMLName   xml.Name   `xml:"OAI-PMH"`
	Error     *OAIError  `xml:"error"`
	GetRecord *GetRecord `xml:"GetRecord"`
}

// OAIError is the OAI-PMH protocol error element.
type OAIError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// GetRecord wraps the single record returned by a GetRecord request.
type GetRecord struct {
	Record Record `xml:"record"`
}

// Record holds the record metadata payload.
type Record struct {
	Metadata Metadata `xml:"metadata"`
}

// Metadata wraps the JATS article document.
type Metadata struct {
	Article *Article `xml:"article"`
}

// Article is the JATS subset the structural parser consumes: front matter
// for title and abstract, body for the section tree.
type Article struct {
	Front Front `xml:"front"`
	Body  *Body `xml:"body"`
}

// Front is the JATS front matter.
type Front struct {
	ArticleMeta ArticleMeta `xml:"article-meta"`
}

// ArticleMeta carries the title group and abstract.
type ArticleMeta struct {
	TitleGroup TitleGroup `xml:"title-group"`
	Abstract   *Abstract  `xml:"abstract"`
}

// TitleGroup holds the article title. Titles and paragraphs decode as
// InnerText because JATS wraps inline markup (<italic>, <xref>, <sup>)
// around text that must not be lost.
type TitleGroup struct {
	ArticleTitle sources.InnerText `xml:"article-title"`
}

// Abstract holds abstract paragraphs, possibly nested in sections for
// structured abstracts.
type Abstract struct {
	Paragraphs []sources.InnerText `xml:"p"`
	Sections   []Section           `xml:"sec"`
}

// Body is the JATS article body: an ordered tree of sections.
type Body struct {
	Sections []Section `xml:"sec"`
}

// Section is one body section with an optional title, its paragraphs, and
// nested subsections in document order.
type Section struct {
	Title      sources.InnerText   `xml:"title"`
	Paragraphs []sources.InnerText `xml:"p"`
	Sections   []Section           `xml:"sec"`
}
