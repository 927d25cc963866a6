// Package scraper discovers legislation documents on legislation.gov.uk and
// fetches their pages.
//
// Discovery paginates the listing for a type/year (optionally filtered by the
// site's free-text search) and resolves each hit to its "as made" URL, which
// carries the full document text. The scraper never writes to either store.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sentinel errors for scraping.
var (
	// ErrSourceFormat indicates the listing markup no longer matches the
	// expected structure. Discovery cannot safely continue, so this is
	// fatal to the run; documents already ingested are unaffected.
	ErrSourceFormat = errors.New("source format changed")

	// ErrFetchFailed indicates a fetch that failed after exhausting retries.
	ErrFetchFailed = errors.New("fetch failed")
)

// The site serves a reduced page to clients without a browser User-Agent.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// maxBodySize caps response bodies; legislation pages are a few MB at most.
const maxBodySize = 20 * 1024 * 1024

// docLinkPattern matches document links in listing result tables.
var docLinkPattern = regexp.MustCompile(`^/(ukpga|uksi|ukci|asp|ssi|nisi|nisr|wsi|anaw)/(\d{4})/(\d+)`)

// Config holds scraper settings.
type Config struct {
	// BaseURL is the site root, e.g. "https://www.legislation.gov.uk".
	BaseURL string

	// DocType and Year scope the listing, e.g. "uksi" and 2024.
	DocType string
	Year    int

	// Category is passed to the site's free-text filter. Empty disables it.
	Category string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries caps retries of transient failures per URL.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff time.Duration

	// RequestsPerSecond rate-limits outbound requests.
	RequestsPerSecond float64

	// MaxPages caps listing pagination.
	MaxPages int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.legislation.gov.uk"
	}
	if c.DocType == "" {
		c.DocType = "uksi"
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 2
	}
	if c.MaxPages == 0 {
		c.MaxPages = 50
	}
}

// Scraper discovers and fetches legislation pages.
type Scraper struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a Scraper.
func New(config Config, logger *zap.Logger) *Scraper {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:  logger,
	}
}

// listingURL builds the listing page URL for one page of results.
func (s *Scraper) listingURL(page int) string {
	u := fmt.Sprintf("%s/%s/%d", strings.TrimRight(s.config.BaseURL, "/"), s.config.DocType, s.config.Year)
	q := url.Values{}
	if s.config.Category != "" {
		q.Set("text", s.config.Category)
	}
	if page > 1 {
		q.Set("page", fmt.Sprintf("%d", page))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// DiscoverDocuments paginates the listing and returns the deduplicated set
// of document URLs, each normalized to its "/made" form.
//
// A listing page without the expected results table returns ErrSourceFormat.
func (s *Scraper) DiscoverDocuments(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var docs []string

	for page := 1; page <= s.config.MaxPages; page++ {
		pageURL := s.listingURL(page)
		body, err := s.Fetch(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetching listing page %d: %w", page, err)
		}

		links, hasNext, err := parseListing(body)
		if err != nil {
			return nil, fmt.Errorf("listing page %d (%s): %w", page, pageURL, err)
		}

		added := 0
		for _, link := range links {
			madeURL := s.MadeURL(link)
			if !seen[madeURL] {
				seen[madeURL] = true
				docs = append(docs, madeURL)
				added++
			}
		}

		s.logger.Debug("listing page parsed",
			zap.Int("page", page),
			zap.Int("links", len(links)),
			zap.Int("new", added),
		)

		// An exhausted listing repeats its last page; stop once a page
		// contributes nothing new or declares no successor.
		if !hasNext || added == 0 {
			break
		}
	}

	s.logger.Info("discovery complete",
		zap.String("doc_type", s.config.DocType),
		zap.Int("year", s.config.Year),
		zap.String("category", s.config.Category),
		zap.Int("documents", len(docs)),
	)
	return docs, nil
}

// parseListing extracts document links and pagination state from a listing page.
func parseListing(body []byte) (links []string, hasNext bool, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, false, fmt.Errorf("parsing listing HTML: %w", err)
	}

	table := doc.Find("div#content table").First()
	if table.Length() == 0 {
		return nil, false, fmt.Errorf("%w: results table not found", ErrSourceFormat)
	}

	table.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if docLinkPattern.MatchString(href) {
			links = append(links, href)
		}
	})

	hasNext = doc.Find(`a[rel="next"], a.pageLink.next`).Length() > 0
	return links, hasNext, nil
}

// MadeURL normalizes a document link to its absolute "as made" URL, which is
// the version whose page carries the full text.
func (s *Scraper) MadeURL(link string) string {
	link = strings.SplitN(link, "?", 2)[0]
	link = strings.TrimSuffix(link, "/")
	link = strings.TrimSuffix(link, "/made")
	link = strings.TrimSuffix(link, "/contents")
	link += "/made"
	if strings.HasPrefix(link, "/") {
		link = strings.TrimRight(s.config.BaseURL, "/") + link
	}
	return link
}

// Fetch downloads a URL, retrying transient failures (connection errors and
// 5xx responses) with exponential backoff. 4xx responses are permanent.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			FetchRetries.Inc()
			s.logger.Debug("retrying fetch",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryable, err := s.fetchOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, rawURL, err)
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v",
		ErrFetchFailed, rawURL, s.config.MaxRetries+1, lastErr)
}

// fetchOnce performs a single GET. retryable reports whether the failure is
// transient.
func (s *Scraper) fetchOnce(ctx context.Context, rawURL string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		// Connection errors and timeouts are transient unless the run
		// itself was cancelled.
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("server error: %s", resp.Status)
	case resp.StatusCode >= 400:
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("client error: %s", resp.Status)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, true, fmt.Errorf("reading body: %w", err)
	}
	return body, false, nil
}
