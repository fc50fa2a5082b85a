package event

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"
)

// Source identifies which markup a record was extracted from.
type Source string

const (
	SourceJSONLD Source = "json-ld"
	SourceHTML   Source = "html"
)

// Type is the category assigned by the classifier. Compilations aggregate
// several sub-events (a festival roundup, a recurring series) and are
// excluded from copy enhancement.
type Type string

const (
	TypeStandalone  Type = "standalone"
	TypePart        Type = "part-of-a-compilation"
	TypeCompilation Type = "compilation"
)

// Valid reports whether t is one of the three known event types.
func (t Type) Valid() bool {
	switch t {
	case TypeStandalone, TypePart, TypeCompilation:
		return true
	}
	return false
}

// Summary is a lightweight event record scraped from a paginated index page.
// It is consumed immediately by the detail stage and never persisted as-is.
type Summary struct {
	Title      string     `json:"title"`
	DetailURL  string     `json:"detail_url,omitempty"`
	StartsAt   *time.Time `json:"starts_at,omitempty"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
	Venue      string     `json:"venue,omitempty"`
	Address    string     `json:"address,omitempty"`
	Cost       string     `json:"cost,omitempty"`
	ImageURL   string     `json:"image_url,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	Sponsored  bool       `json:"sponsored,omitempty"`
	Source     Source     `json:"source"`
}

// Key returns a deterministic identity for in-memory deduplication across
// listing sources, derived from the normalized title and start time.
func (s Summary) Key() string {
	start := ""
	if s.StartsAt != nil {
		start = s.StartsAt.UTC().Format(time.RFC3339)
	}
	h := sha1.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(s.Title)) + "|" + start))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Detail is the full event record after the detail page fetch. When a detail
// page exists its data supersedes the summary wholesale; when it does not,
// FromSummary produces a degraded Detail carrying only the summary fields.
type Detail struct {
	Summary

	Description  string            `json:"description,omitempty"`
	Organizer    string            `json:"organizer,omitempty"`
	OrganizerURL string            `json:"organizer_url,omitempty"`
	Performers   []string          `json:"performers,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	CostDetails  string            `json:"cost_details,omitempty"`
	SocialLinks  map[string]string `json:"social_links,omitempty"`
	ContactEmail string            `json:"contact_email,omitempty"`
	ContactPhone string            `json:"contact_phone,omitempty"`
	Tags         []string          `json:"tags,omitempty"`

	// HasDetailedInfo records whether a detail page was actually fetched,
	// as opposed to the record being promoted from its summary.
	HasDetailedInfo bool `json:"has_detailed_info"`
}

// FromSummary promotes a Summary into a degraded Detail. Used when the
// listing entry has no detail URL or the detail fetch failed.
func FromSummary(s Summary) Detail {
	return Detail{Summary: s}
}

// GeoQuery returns the text to geocode for this event. The structured
// address is preferred; the venue name is only a fallback when the address
// is absent or blank. An empty return means there is nothing to geocode.
func (d Detail) GeoQuery() string {
	if addr := strings.TrimSpace(d.Address); addr != "" {
		return addr
	}
	return strings.TrimSpace(d.Venue)
}

// Coordinates is a resolved geographic position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Enriched is the terminal in-memory form of an event: classified, optionally
// geocoded, and optionally rewritten by the copy enhancer. It is written to
// storage and never mutated afterwards.
type Enriched struct {
	Detail

	Type         Type         `json:"event_type"`
	Coords       *Coordinates `json:"coords,omitempty"`
	Emoji        string       `json:"emoji,omitempty"`
	RSVPRequired bool         `json:"rsvp_required,omitempty"`
}

// Enrich converts a Detail into an Enriched record with the given type.
// Coordinates and copy fields are filled in by later stages.
func Enrich(d Detail, t Type) Enriched {
	return Enriched{Detail: d, Type: t}
}

// Enhanceable reports whether this event participates in copy enhancement.
// Compilations are aggregates rather than single user-facing events and are
// deliberately excluded.
func (e Enriched) Enhanceable() bool {
	return e.Type == TypeStandalone || e.Type == TypePart
}
