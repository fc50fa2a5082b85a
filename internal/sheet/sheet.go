// Package sheet fetches community-submitted events from a published
// spreadsheet feed (CSV over HTTP). Rows become listing summaries and enter
// the pipeline alongside scraped events; duplicates against scraped listings
// are dropped in memory before the detail stage.
package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pmholt/eventscout/internal/event"
)

const timeout = 20 * time.Second

// Feed reads a published CSV of event rows.
type Feed struct {
	client *http.Client
	url    string
	log    zerolog.Logger
}

// New creates a Feed. url is the published CSV export URL; empty disables
// the feed (Fetch returns no rows).
func New(url string, log zerolog.Logger) *Feed {
	return &Feed{
		client: &http.Client{Timeout: timeout},
		url:    url,
		log:    log.With().Str("component", "sheet").Logger(),
	}
}

// Fetch retrieves the feed and returns the rows matching date (a YYYY-MM-DD
// string compared against each row's date column). Malformed rows are
// skipped and counted, not fatal.
func (f *Feed) Fetch(ctx context.Context, date string) ([]event.Summary, error) {
	if f.url == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching sheet: unexpected status code %d", resp.StatusCode)
	}

	return f.parse(resp.Body, date)
}

// Expected header columns. Order in the sheet does not matter.
const (
	colTitle    = "title"
	colDate     = "date"
	colTime     = "time"
	colVenue    = "venue"
	colAddress  = "address"
	colCost     = "cost"
	colURL      = "url"
	colCategory = "category"
)

func (f *Feed) parse(r io.Reader, date string) ([]event.Summary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading sheet header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := idx[colTitle]; !ok {
		return nil, fmt.Errorf("sheet has no %q column", colTitle)
	}

	var (
		summaries []event.Summary
		skipped   int
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		if get(colDate) != date {
			continue
		}
		title := get(colTitle)
		if title == "" {
			skipped++
			continue
		}

		s := event.Summary{
			Title:     title,
			DetailURL: get(colURL),
			Venue:     get(colVenue),
			Address:   get(colAddress),
			Cost:      get(colCost),
			Source:    event.SourceHTML,
		}
		if cat := get(colCategory); cat != "" {
			s.Categories = []string{cat}
		}

		when := get(colDate)
		if clock := get(colTime); clock != "" {
			when = when + "T" + clock
		}
		if t, ok := event.ParseTime(when); ok {
			s.StartsAt = &t
		}

		summaries = append(summaries, s)
	}

	if skipped > 0 {
		f.log.Warn().Int("skipped", skipped).Msg("sheet rows skipped")
	}
	return summaries, nil
}

// MergeSummaries appends feed rows to scraped summaries, dropping feed rows
// whose (title, start time) identity already appeared in the scrape.
func MergeSummaries(scraped, feed []event.Summary) []event.Summary {
	seen := make(map[string]bool, len(scraped))
	for _, s := range scraped {
		seen[s.Key()] = true
	}

	merged := scraped
	for _, s := range feed {
		if seen[s.Key()] {
			continue
		}
		seen[s.Key()] = true
		merged = append(merged, s)
	}
	return merged
}
