package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/pmholt/eventscout/internal/event"
)

const (
	// UserAgent identifies the scraper to the listing site.
	UserAgent = "eventscout/1.0 (github.com/pmholt/eventscout)"

	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 30 * time.Second

	// MaxPages is a hard safety cap on pagination for a single date, in case
	// next-page detection misfires on unexpected markup.
	MaxPages = 10

	// DefaultPageDelay is the politeness delay inserted after every page fetch.
	DefaultPageDelay = 300 * time.Millisecond
)

// FetchError describes a failed page fetch: a network error, a timeout, or a
// non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetching %s: unexpected status code %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NotFound reports whether the fetch failed with a 404. Pagination treats a
// not-found response past page one as normal termination.
func (e *FetchError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Config configures a Scraper.
type Config struct {
	// BaseURL is the root of the listing site, without a trailing slash.
	BaseURL string
	// Timeout bounds each page fetch. Zero means DefaultTimeout.
	Timeout time.Duration
	// PageDelay is slept after every listing page fetch. Zero means
	// DefaultPageDelay; negative disables the delay (tests).
	PageDelay time.Duration
}

// Scraper fetches listing and detail pages.
type Scraper struct {
	client    *http.Client
	baseURL   string
	pageDelay time.Duration
	log       zerolog.Logger
}

// New creates a Scraper.
func New(cfg Config, log zerolog.Logger) *Scraper {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	delay := cfg.PageDelay
	if delay == 0 {
		delay = DefaultPageDelay
	}
	if delay < 0 {
		delay = 0
	}
	return &Scraper{
		client:    &http.Client{Timeout: timeout},
		baseURL:   cfg.BaseURL,
		pageDelay: delay,
		log:       log.With().Str("component", "scraper").Logger(),
	}
}

// listingURL builds the URL of one listing page for a date.
func (s *Scraper) listingURL(date string, page int) string {
	if page <= 1 {
		return fmt.Sprintf("%s/events/%s", s.baseURL, date)
	}
	return fmt.Sprintf("%s/events/%s?page=%d", s.baseURL, date, page)
}

// FetchListings retrieves all event summaries published for a date, walking
// pagination until a page yields no events, the markup shows no further page,
// or the MaxPages safety cap is reached. A not-found response past page one
// terminates pagination normally; any other fetch error aborts the whole
// date with that error.
func (s *Scraper) FetchListings(ctx context.Context, date string) ([]event.Summary, error) {
	var all []event.Summary

	for page := 1; page <= MaxPages; page++ {
		url := s.listingURL(date, page)
		doc, err := s.fetchDocument(ctx, url)
		if err != nil {
			var fe *FetchError
			if page > 1 && errors.As(err, &fe) && fe.NotFound() {
				s.log.Debug().Int("page", page).Msg("pagination ended with not-found")
				break
			}
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}

		summaries, hasNext := parseListingPage(doc)
		s.log.Debug().
			Int("page", page).
			Int("events", len(summaries)).
			Bool("has_next", hasNext).
			Msg("listing page parsed")

		all = append(all, summaries...)

		s.sleep(ctx, s.pageDelay)

		if len(summaries) == 0 || !hasNext {
			break
		}
	}

	return all, nil
}

// fetchDocument retrieves a URL and parses it with goquery. All failure modes
// surface as *FetchError.
func (s *Scraper) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("parsing HTML: %w", err)}
	}
	return doc, nil
}

func (s *Scraper) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
