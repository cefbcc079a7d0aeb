// Package pubmed provides a client for the NCBI E-utilities endpoints the
// service depends on: elink.fcgi for PMID-to-PMCID link resolution and
// efetch.fcgi for abstract retrieval.
//
// The E-utilities API documentation is available at:
// https://www.ncbi.nlm.nih.gov/books/NBK25499/
package pubmed

import (
	"encoding/xml"

	"github.com/synaptica/paper-aggregation-service/internal/sources"
)

// ELinkResult represents the JSON response from the elink.fcgi endpoint.
// A PMID with no PMC mapping yields a result without linksetdbs or with
// an empty links array; that is a normal "no mapping" outcome.
type ELinkResult struct {
	LinkSets []LinkSet `json:"linksets"`
}

// LinkSet groups the link databases found for one set of input IDs.
type LinkSet struct {
	DBFrom     string      `json:"dbfrom"`
	IDs        []string    `json:"ids"`
	LinkSetDBs []LinkSetDB `json:"linksetdbs"`
}

// LinkSetDB holds the linked identifiers for one target database.
type LinkSetDB struct {
	DBTo     string   `json:"dbto"`
	LinkName string   `json:"linkname"`
	Links    []string `json:"links"`
}

// PubmedArticleSet represents the XML response from the efetch.fcgi
// endpoint when fetching article metadata by PMID.
type PubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []PubmedArticle `xml:"PubmedArticle"`
}

// PubmedArticle is a single article in the efetch response.
type PubmedArticle struct {
	MedlineCitation MedlineCitation `xml:"MedlineCitation"`
}

// MedlineCitation contains the core bibliographic information.
type MedlineCitation struct {
	PMID    PMID    `xml:"PMID"`
	Article Article `xml:"Article"`
}

// PMID represents the PubMed identifier with optional version.
type PMID struct {
	Version int    `xml:"Version,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// Article contains the article metadata fields the service uses. The
// title decodes as InnerText so inline markup (<i>, <sup>) does not
// swallow parts of it.
type Article struct {
	ArticleTitle sources.InnerText `xml:"ArticleTitle"`
	Abstract     *Abstract         `xml:"Abstract,omitempty"`
}

// Abstract contains the article abstract, which may have multiple sections.
type Abstract struct {
	AbstractTexts []AbstractText `xml:"AbstractText"`
}

// AbstractText represents a section of the abstract. Structured abstracts
// have labeled sections (Background, Methods, Results, etc.).
type AbstractText struct {
	Label       string
	NlmCategory string
	Value       string
}

// UnmarshalXML reads the Label and NlmCategory attributes and collects
// the full inner text, keeping the character data of inline markup the
// abstract may contain.
func (a *AbstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "Label":
			a.Label = attr.Value
		case "NlmCategory":
			a.NlmCategory = attr.Value
		}
	}

	var text sources.InnerText
	if err := text.UnmarshalXML(d, start); err != nil {
		return err
	}
	a.Value = string(text)
	return nil
}
