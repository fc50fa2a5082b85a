package scraper

import (
	"context"

	"github.com/pmholt/eventscout/internal/event"
)

// FetchDetail retrieves an event's own page and parses the full record.
// Fields from structured JSON-LD markup populate first; HTML-selector
// extraction fills only whatever is still missing. The returned record has
// HasDetailedInfo set. Network errors, timeouts, and non-2xx responses are
// reported as *FetchError.
func (s *Scraper) FetchDetail(ctx context.Context, url string) (event.Detail, error) {
	doc, err := s.fetchDocument(ctx, url)
	if err != nil {
		return event.Detail{}, err
	}

	var d event.Detail
	d.Source = event.SourceHTML

	if ldEvents := extractJSONLDEvents(doc); len(ldEvents) > 0 {
		applyLDToDetail(ldEvents[0], &d)
	}
	fillDetailFromHTML(doc, &d)

	if d.DetailURL == "" {
		d.DetailURL = url
	}
	d.HasDetailedInfo = true

	s.log.Debug().Str("url", url).Str("title", d.Title).Msg("detail page parsed")
	return d, nil
}
