package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pmholt/eventscout/internal/event"
)

const detailPage = `<html><head>
<script type="application/ld+json">
{
  "@type": "Event",
  "name": "Overlook Sessions",
  "startDate": "2026-03-14T19:00:00",
  "description": "An evening of ambient music.",
  "location": {"name": "Room 237", "address": "Overlook Hotel, Sidewinder"},
  "organizer": {"name": "Overlook Cultural Society", "url": "https://overlook.test"},
  "performer": [{"name": "The Torrance Trio"}, "Grady Twins"],
  "offers": {"price": "20", "priceCurrency": "USD", "url": "https://tickets.test/overlook"},
  "sameAs": ["https://facebook.com/overlooksessions"]
}
</script></head>
<body>
  <h1>Different HTML Title</h1>
  <span class="venue">The Gold Room</span>
  <div class="event-description">HTML description that must not win.</div>
  <a href="mailto:info@overlook.test">contact</a>
  <a href="tel:+1 555 0237">call</a>
  <a href="https://instagram.com/overlooksessions">insta</a>
  <a href="https://facebook.com/some-other-page">fb duplicate</a>
  <div class="tags"><span class="tag">ambient</span></div>
</body></html>`

const detailPageHTMLOnly = `<html><body>
  <h1>Backyard Flea Market</h1>
  <div class="event-description">Second-hand treasures.</div>
  <time datetime="2026-03-15T10:00"></time>
  <span class="event-venue">Linden Yard</span>
  <span class="event-cost">free</span>
  <div class="event-organizer"><a href="https://linden.test">Linden Collective</a></div>
</body></html>`

func TestFetchDetailJSONLDPrecedence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage)
	}))
	defer srv.Close()

	s := newTestScraper(srv.URL)
	d, err := s.FetchDetail(context.Background(), srv.URL+"/e/overlook")
	if err != nil {
		t.Fatalf("FetchDetail failed: %v", err)
	}

	// JSON-LD wins over conflicting HTML.
	if d.Title != "Overlook Sessions" {
		t.Errorf("title = %q, JSON-LD must take precedence", d.Title)
	}
	if d.Venue != "Room 237" {
		t.Errorf("venue = %q, expected Room 237 from JSON-LD", d.Venue)
	}
	if d.Description != "An evening of ambient music." {
		t.Errorf("description = %q", d.Description)
	}

	// HTML fills the gaps JSON-LD left open.
	if d.ContactEmail != "info@overlook.test" {
		t.Errorf("contact email = %q", d.ContactEmail)
	}
	if d.ContactPhone != "+1 555 0237" {
		t.Errorf("contact phone = %q", d.ContactPhone)
	}
	if len(d.Tags) == 0 || d.Tags[0] != "ambient" {
		t.Errorf("tags = %v", d.Tags)
	}

	// Social links: JSON-LD sameAs first, HTML additions, first-wins per platform.
	if d.SocialLinks["facebook"] != "https://facebook.com/overlooksessions" {
		t.Errorf("facebook link = %q, JSON-LD entry must win", d.SocialLinks["facebook"])
	}
	if d.SocialLinks["instagram"] != "https://instagram.com/overlooksessions" {
		t.Errorf("instagram link = %q", d.SocialLinks["instagram"])
	}

	if len(d.Performers) != 2 || d.Performers[0] != "The Torrance Trio" || d.Performers[1] != "Grady Twins" {
		t.Errorf("performers = %v", d.Performers)
	}
	if d.Currency != "USD" {
		t.Errorf("currency = %q", d.Currency)
	}
	if !d.HasDetailedInfo {
		t.Error("detail record must be marked as detailed")
	}
	if d.Source != event.SourceJSONLD {
		t.Errorf("source = %s", d.Source)
	}
}

func TestFetchDetailHTMLOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPageHTMLOnly)
	}))
	defer srv.Close()

	s := newTestScraper(srv.URL)
	d, err := s.FetchDetail(context.Background(), srv.URL+"/e/flea")
	if err != nil {
		t.Fatalf("FetchDetail failed: %v", err)
	}

	if d.Title != "Backyard Flea Market" {
		t.Errorf("title = %q", d.Title)
	}
	if d.Venue != "Linden Yard" {
		t.Errorf("venue = %q", d.Venue)
	}
	if d.Organizer != "Linden Collective" {
		t.Errorf("organizer = %q", d.Organizer)
	}
	if d.OrganizerURL != "https://linden.test" {
		t.Errorf("organizer URL = %q", d.OrganizerURL)
	}
	if d.StartsAt == nil {
		t.Error("start time should be parsed from time[datetime]")
	}
	if d.Source != event.SourceHTML {
		t.Errorf("source = %s", d.Source)
	}
}

func TestFetchDetailErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := newTestScraper(srv.URL)
	_, err := s.FetchDetail(context.Background(), srv.URL+"/e/x")
	if err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", fe.StatusCode)
	}
}

func TestFetchDetailNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	s := newTestScraper(srv.URL)
	_, err := s.FetchDetail(context.Background(), srv.URL+"/e/x")

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.NotFound() {
		t.Error("network error should not read as not-found")
	}
}
