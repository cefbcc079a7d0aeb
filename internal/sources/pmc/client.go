package pmc

import (
	"context"
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
	// DefaultBaseURL is the PMC OAI-PMH endpoint.
	DefaultBaseURL = "https://www.ncbi.nlm.nih.gov/pmc/oai/oai.cgi"

	// DefaultTimeout bounds a single GetRecord request.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimit matches NCBI etiquette of 3 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// sourceName is the human-readable name for this source.
	sourceName = "PMC"
)

// maxResponseBytes bounds how much of an upstream response body is read.
const maxResponseBytes = 20 << 20

// Config holds the configuration for the PMC client.
type Config struct {
	// BaseURL is the OAI-PMH endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout is the request timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
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

// Client fetches open-access article documents from PMC.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// New creates a new PMC client with the given configuration.
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

// NewWithHTTPClient creates a new PMC client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// RecordURL returns the GetRecord URL for a PMC identifier. The
// identifier may carry a "PMC" prefix; the OAI identifier uses the bare
// numeric form.
func (c *Client) RecordURL(pmcID string) string {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("verb", "GetRecord")
	q.Set("identifier", "oai:pubmedcentral.nih.gov:"+normalizeID(pmcID))
	q.Set("metadataPrefix", "pmc")
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchArticle retrieves the JATS article document for a PMC identifier
// via an OAI-PMH GetRecord request. A protocol error element (including
// "noRecordsMatch") or a record without an article document is a clean
// unavailable outcome and returns a NotFoundError. Transport failures and
// malformed XML are returned as errors for the caller to degrade on.
func (c *Client) FetchArticle(ctx context.Context, pmcID string) (*Article, error) {
	if normalizeID(pmcID) == "" {
		return nil, domain.NewValidationError("pmc_id", "pmc id is required")
	}

	reqURL := c.RecordURL(pmcID)
	if reqURL == "" {
		return nil, fmt.Errorf("invalid base URL: %s", c.config.BaseURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
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

	var oai OAIResponse
	if err := xml.Unmarshal(body, &oai); err != nil {
		return nil, fmt.Errorf("failed to parse OAI response: %w", err)
	}

	if oai.Error != nil {
		// noRecordsMatch and friends mean the article simply is not in
		// the open-access subset.
		return nil, domain.NewNotFoundError("pmc article", pmcID)
	}
	if oai.GetRecord == nil || oai.GetRecord.Record.Metadata.Article == nil {
		return nil, domain.NewNotFoundError("pmc article", pmcID)
	}

	return oai.GetRecord.Record.Metadata.Article, nil
}

// normalizeID strips an optional "PMC" prefix and surrounding whitespace.
func normalizeID(pmcID string) string {
	id := strings.TrimSpace(pmcID)
	id = strings.TrimPrefix(id, "PMC")
	id = strings.TrimPrefix(id, "pmc")
	return id
}
