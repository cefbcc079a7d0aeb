package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/synaptica/paper-aggregation-service/internal/domain"
	"github.com/synaptica/paper-aggregation-service/internal/sources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout. Availability checks
	// sit on the interactive path, so a single elink call stays bounded
	// well under the retry budget.
	DefaultTimeout = 10 * time.Second

	// pmcLinkName selects the PMID-to-PMCID link set in elink responses.
	pmcLinkName = "pubmed_pmc"

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"
)

// maxResponseBytes bounds how much of an upstream response body is read.
const maxResponseBytes = 10 << 20

// minAbstractLength rejects placeholder abstracts ("N/A.", ".") that
// efetch sometimes returns for articles without one.
const minAbstractLength = 10

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	// Optional but recommended for production use.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (3 req/sec) if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client talks to the NCBI E-utilities endpoints.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
	}

	return &Client{
		config:     cfg,
		httpClient: sources.NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// FindPMCID resolves a PMID to a PMC identifier via the elink.fcgi
// endpoint. A well-formed response with no link set, no pubmed_pmc link
// database, or an empty links array is a normal "no mapping" outcome and
// returns a NotFoundError rather than a parse error. Transport and
// upstream failures are returned as-is so callers can retry them.
//
// The returned identifier is the bare numeric PMC id, without the "PMC"
// prefix.
func (c *Client) FindPMCID(ctx context.Context, pmid string) (string, error) {
	if pmid == "" {
		return "", domain.NewValidationError("pmid", "pmid is required")
	}

	u, err := url.Parse(c.config.BaseURL + "/elink.fcgi")
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("dbfrom", "pubmed")
	q.Set("db", "pmc")
	q.Set("linkname", pmcLinkName)
	q.Set("id", pmid)
	q.Set("retmode", "json")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return "", err
	}

	var result ELinkResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse elink response: %w", err)
	}

	// Missing nested fields mean "no mapping found", not a malformed
	// response.
	for _, ls := range result.LinkSets {
		for _, db := range ls.LinkSetDBs {
			if db.LinkName != pmcLinkName {
				continue
			}
			for _, link := range db.Links {
				if link != "" {
					return link, nil
				}
			}
		}
	}

	return "", domain.NewNotFoundError("pmc link", pmid)
}

// FetchAbstract retrieves the abstract for a PMID via the efetch.fcgi
// endpoint, concatenating labeled sections of structured abstracts.
// Returns a NotFoundError if the article is unknown or carries no
// meaningful abstract text (shorter than minAbstractLength).
func (c *Client) FetchAbstract(ctx context.Context, pmid string) (string, error) {
	if pmid == "" {
		return "", domain.NewValidationError("pmid", "pmid is required")
	}

	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", pmid)
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return "", err
	}

	var result PubmedArticleSet
	if err := xml.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse efetch response: %w", err)
	}

	if len(result.Articles) == 0 {
		return "", domain.NewNotFoundError("paper", pmid)
	}

	abstract := joinAbstract(result.Articles[0].MedlineCitation.Article.Abstract)
	if len(abstract) <= minAbstractLength {
		return "", domain.NewNotFoundError("abstract", pmid)
	}
	return abstract, nil
}

// get issues a GET request and returns the response body.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	return body, nil
}

// joinAbstract concatenates multiple abstract sections into a single string.
func joinAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	if len(abstract.AbstractTexts) == 1 && abstract.AbstractTexts[0].Label == "" {
		return strings.TrimSpace(abstract.AbstractTexts[0].Value)
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}
