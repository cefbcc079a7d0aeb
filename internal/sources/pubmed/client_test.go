package pubmed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica/paper-aggregation-service/internal/domain"
	"github.com/synaptica/paper-aggregation-service/internal/sources"
)

// Sample upstream responses for testing.
const elinkResponseJSON = `{
	"header": {"type": "elink", "version": "0.3"},
	"linksets": [
		{
			"dbfrom": "pubmed",
			"ids": ["12345678"],
			"linksetdbs": [
				{"dbto": "pmc", "linkname": "pubmed_pmc", "links": ["9876543"]}
			]
		}
	]
}`

const elinkNoMappingJSON = `{
	"header": {"type": "elink", "version": "0.3"},
	"linksets": [
		{"dbfrom": "pubmed", "ids": ["12345678"]}
	]
}`

const elinkEmptyLinksJSON = `{
	"linksets": [
		{
			"dbfrom": "pubmed",
			"ids": ["12345678"],
			"linksetdbs": [
				{"dbto": "pmc", "linkname": "pubmed_pmc", "links": []}
			]
		}
	]
}`

const efetchAbstractXML = `<?xml version="1.0" encoding="UTF-8" ?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">12345678</PMID>
			<Article PubModel="Print-Electronic">
				<ArticleTitle>CRISPR-Cas9 Gene Editing in Biomedical Research</ArticleTitle>
				<Abstract>
					<AbstractText Label="BACKGROUND">Gene editing technologies have revolutionized biomedical research.</AbstractText>
					<AbstractText Label="RESULTS">Our findings demonstrate significant improvements in editing efficiency.</AbstractText>
				</Abstract>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
</PubmedArticleSet>`

const efetchNoAbstractXML = `<?xml version="1.0" encoding="UTF-8" ?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation>
			<PMID Version="1">12345678</PMID>
			<Article>
				<ArticleTitle>An Article Without Abstract</ArticleTitle>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
</PubmedArticleSet>`

// newTestClient creates a client pointed at a mock server with a
// generous rate limit and no retry delays.
func newTestClient(baseURL string) *Client {
	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:    5 * time.Second,
		RateLimit:  1000,
		BurstSize:  1000,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	return NewWithHTTPClient(Config{BaseURL: baseURL}, httpClient)
}

func TestClient_FindPMCID(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves pmid to pmc id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "elink.fcgi")
			assert.Equal(t, "pubmed", r.URL.Query().Get("dbfrom"))
			assert.Equal(t, "pubmed_pmc", r.URL.Query().Get("linkname"))
			assert.Equal(t, "12345678", r.URL.Query().Get("id"))
			w.Write([]byte(elinkResponseJSON))
		}))
		defer srv.Close()

		pmcID, err := newTestClient(srv.URL).FindPMCID(ctx, "12345678")
		require.NoError(t, err)
		assert.Equal(t, "9876543", pmcID)
	})

	t.Run("missing linksetdbs means no mapping", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(elinkNoMappingJSON))
		}))
		defer srv.Close()

		pmcID, err := newTestClient(srv.URL).FindPMCID(ctx, "12345678")
		assert.Empty(t, pmcID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("empty links array means no mapping", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(elinkEmptyLinksJSON))
		}))
		defer srv.Close()

		pmcID, err := newTestClient(srv.URL).FindPMCID(ctx, "12345678")
		assert.Empty(t, pmcID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("malformed json is a parse error not a no-mapping", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).FindPMCID(ctx, "12345678")
		require.Error(t, err)
		assert.False(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("rejects empty pmid", func(t *testing.T) {
		_, err := newTestClient("http://unused").FindPMCID(ctx, "")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestClient_FetchAbstract(t *testing.T) {
	ctx := context.Background()

	t.Run("concatenates labeled abstract sections", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "efetch.fcgi")
			assert.Equal(t, "abstract", r.URL.Query().Get("rettype"))
			w.Write([]byte(efetchAbstractXML))
		}))
		defer srv.Close()

		abstract, err := newTestClient(srv.URL).FetchAbstract(ctx, "12345678")
		require.NoError(t, err)
		assert.Contains(t, abstract, "BACKGROUND: Gene editing technologies")
		assert.Contains(t, abstract, "RESULTS: Our findings")
	})

	t.Run("keeps the text of inline markup", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<?xml version="1.0"?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation>
			<PMID Version="1">12345678</PMID>
			<Article>
				<ArticleTitle>Expression of <i>BRCA1</i> in tumors</ArticleTitle>
				<Abstract>
					<AbstractText Label="RESULTS">Levels of <i>BRCA1</i> mRNA rose 2<sup>3</sup>-fold in treated cells.</AbstractText>
				</Abstract>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
</PubmedArticleSet>`))
		}))
		defer srv.Close()

		abstract, err := newTestClient(srv.URL).FetchAbstract(ctx, "12345678")
		require.NoError(t, err)
		assert.Equal(t, "RESULTS: Levels of BRCA1 mRNA rose 23-fold in treated cells.", abstract)
	})

	t.Run("missing abstract returns not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(efetchNoAbstractXML))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).FetchAbstract(ctx, "12345678")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("placeholder abstract returns not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<?xml version="1.0"?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation>
			<PMID Version="1">12345678</PMID>
			<Article>
				<ArticleTitle>Placeholder Abstract</ArticleTitle>
				<Abstract><AbstractText>N/A.</AbstractText></Abstract>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
</PubmedArticleSet>`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).FetchAbstract(ctx, "12345678")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("unknown pmid returns not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<?xml version="1.0"?><PubmedArticleSet></PubmedArticleSet>`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).FetchAbstract(ctx, "99999999")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("upstream error surfaces as external api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).FetchAbstract(ctx, "12345678")
		var apiErr *domain.ExternalAPIError
		require.Error(t, err)
		assert.True(t, errors.As(err, &apiErr))
	})
}

func TestJoinAbstract(t *testing.T) {
	t.Run("nil abstract", func(t *testing.T) {
		assert.Equal(t, "", joinAbstract(nil))
	})

	t.Run("single unlabeled section returned directly", func(t *testing.T) {
		a := &Abstract{AbstractTexts: []AbstractText{{Value: "  plain text  "}}}
		assert.Equal(t, "plain text", joinAbstract(a))
	})

	t.Run("empty sections are skipped", func(t *testing.T) {
		a := &Abstract{AbstractTexts: []AbstractText{
			{Label: "A", Value: "one"},
			{Label: "B", Value: "   "},
			{Label: "C", Value: "two"},
		}}
		assert.Equal(t, "A: one C: two", joinAbstract(a))
	})
}
