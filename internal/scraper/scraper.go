// Package scraper fetches professor review pages and extracts the fields the ingestion pipeline
// embeds.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/rmpassist/rmp-assistant/internal/apperrors"
	"github.com/rmpassist/rmp-assistant/internal/models"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "rmp-assistant/1.0"
	maxPageBytes     = 10 << 20
)

// Selectors are the CSS selectors for the fields of a professor page.
type Selectors struct {
	Name    string
	Reviews string
	Subject string
	Stars   string
}

// DefaultSelectors matches the current review-site markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Name:    "h1",
		Reviews: ".ReviewText__StyledReviewText-sc-1g6gtl7-0",
		Subject: ".NameTitle__Title-dowf0z-1",
		Stars:   ".RatingValue__Numerator-qw8sqy-2",
	}
}

// Options configures the Scraper.
type Options struct {
	// Timeout bounds a single fetch attempt (default: 15 seconds).
	Timeout time.Duration
	// RetryMax is the number of retries after the first attempt (default: 0, one best-effort fetch).
	RetryMax int
	// UserAgent is sent with every fetch.
	UserAgent string
	// Selectors overrides DefaultSelectors when non-zero.
	Selectors Selectors
}

// Scraper fetches a page over HTTP and parses it with goquery.
type Scraper struct {
	httpClient *retryablehttp.Client
	userAgent  string
	selectors  Selectors
}

// New creates a Scraper.
func New(opts Options) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}

	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	if opts.Selectors == (Selectors{}) {
		opts.Selectors = DefaultSelectors()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil // callers log at the pipeline layer
	// Hand back the last response so non-2xx pages surface their status code.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Scraper{
		httpClient: retryClient,
		userAgent:  opts.UserAgent,
		selectors:  opts.Selectors,
	}
}

// Scrape fetches pageURL and extracts the professor fields. Fetch failures are returned as
// apperrors.UpstreamError with stage fetch. Missing fields are not an error here: the page is
// returned as found and the caller decides what is required.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (*models.ProfessorPage, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.StageFetch, fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}

		return nil, apperrors.NewUpstreamError(apperrors.StageFetch, fmt.Errorf("get %s: %w", pageURL, err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close page body", "url", pageURL, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewUpstreamError(apperrors.StageFetch,
			fmt.Errorf("get %s: unexpected status %d", pageURL, resp.StatusCode))
	}

	page, err := Parse(io.LimitReader(resp.Body, maxPageBytes), s.selectors)
	if err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.StageFetch, err)
	}

	return page, nil
}

// Parse extracts professor fields from an HTML document.
func Parse(r io.Reader, sel Selectors) (*models.ProfessorPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	page := &models.ProfessorPage{
		Name:    strings.TrimSpace(doc.Find(sel.Name).Text()),
		Subject: strings.TrimSpace(doc.Find(sel.Subject).Text()),
		Stars:   strings.TrimSpace(doc.Find(sel.Stars).Text()),
	}

	doc.Find(sel.Reviews).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			page.Reviews = append(page.Reviews, text)
		}
	})

	return page, nil
}
