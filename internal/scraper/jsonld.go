package scraper

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pmholt/eventscout/internal/event"
)

// ldEvent mirrors the schema.org Event fields we consume. Several fields
// appear as either a single value or a list in the wild, so they unmarshal
// through small wrapper types.
type ldEvent struct {
	Type        ldStringOrList `json:"@type"`
	Name        string         `json:"name"`
	URL         string         `json:"url"`
	StartDate   string         `json:"startDate"`
	EndDate     string         `json:"endDate"`
	Description string         `json:"description"`
	Image       ldStringOrList `json:"image"`
	Keywords    ldStringOrList `json:"keywords"`
	Location    *ldPlace       `json:"location"`
	Offers      *ldOffer       `json:"offers"`
	Organizer   *ldAgent       `json:"organizer"`
	Performer   []ldAgent      `json:"performer"`
	SameAs      ldStringOrList `json:"sameAs"`
}

type ldPlace struct {
	Name    string    `json:"name"`
	Address ldAddress `json:"address"`
}

type ldAddress struct {
	text string
	obj  struct {
		StreetAddress   string `json:"streetAddress"`
		AddressLocality string `json:"addressLocality"`
		PostalCode      string `json:"postalCode"`
	}
}

func (a *ldAddress) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.text)
	}
	return json.Unmarshal(data, &a.obj)
}

// String flattens a postal address object into a single free-text line.
func (a ldAddress) String() string {
	if a.text != "" {
		return a.text
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{a.obj.StreetAddress, a.obj.PostalCode, a.obj.AddressLocality} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}

type ldOffer struct {
	Price         ldScalar `json:"price"`
	PriceCurrency string   `json:"priceCurrency"`
	URL           string   `json:"url"`
}

// ldScalar accepts a JSON string or number and keeps its text form.
type ldScalar string

func (s *ldScalar) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = ldScalar(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = ldScalar(num.String())
		return nil
	}
	*s = ""
	return nil
}

func (s ldScalar) String() string { return string(s) }

type ldAgent struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (g *ldAgent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &g.Name)
	}
	type alias ldAgent
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*g = ldAgent(a)
	return nil
}

// ldStringOrList accepts "x", ["x","y"], or an object with a name field.
type ldStringOrList []string

func (l *ldStringOrList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = ldStringOrList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = ldStringOrList(list)
		return nil
	}
	// Unexpected shape; treat as absent rather than failing the block.
	*l = nil
	return nil
}

func (l ldStringOrList) first() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

// extractJSONLDEvents pulls every schema.org Event out of the document's
// ld+json script blocks. Blocks that fail to parse are skipped; a top-level
// array, a single object, and an @graph wrapper are all accepted.
func extractJSONLDEvents(doc *goquery.Document) []ldEvent {
	var events []ldEvent

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		for _, node := range decodeLDNodes(raw) {
			if node.isEvent() {
				events = append(events, node)
			}
		}
	})

	return events
}

// decodeLDNodes decodes one script block into candidate nodes.
func decodeLDNodes(raw string) []ldEvent {
	var single struct {
		ldEvent
		Graph []ldEvent `json:"@graph"`
	}
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		if len(single.Graph) > 0 {
			return single.Graph
		}
		return []ldEvent{single.ldEvent}
	}

	var list []ldEvent
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}

	return nil
}

func (e ldEvent) isEvent() bool {
	for _, t := range e.Type {
		if strings.EqualFold(t, "Event") || strings.HasSuffix(t, "Event") {
			return true
		}
	}
	return false
}

// summaryFromLD converts a JSON-LD event node into a listing summary.
func summaryFromLD(e ldEvent) event.Summary {
	s := event.Summary{
		Title:      strings.TrimSpace(e.Name),
		DetailURL:  e.URL,
		ImageURL:   e.Image.first(),
		Categories: e.Keywords,
		Source:     event.SourceJSONLD,
	}
	if t, ok := event.ParseTime(e.StartDate); ok {
		s.StartsAt = &t
	}
	if t, ok := event.ParseTime(e.EndDate); ok {
		s.EndsAt = &t
	}
	if e.Location != nil {
		s.Venue = strings.TrimSpace(e.Location.Name)
		s.Address = e.Location.Address.String()
	}
	if e.Offers != nil {
		s.Cost = e.Offers.Price.String()
	}
	return s
}

// applyLDToDetail populates a detail record from a JSON-LD event node. This
// runs before any HTML extraction, so every field it sets takes precedence.
func applyLDToDetail(e ldEvent, d *event.Detail) {
	d.Summary = summaryFromLD(e)
	d.Description = strings.TrimSpace(e.Description)
	if e.Organizer != nil {
		d.Organizer = strings.TrimSpace(e.Organizer.Name)
		d.OrganizerURL = e.Organizer.URL
	}
	for _, p := range e.Performer {
		if name := strings.TrimSpace(p.Name); name != "" {
			d.Performers = append(d.Performers, name)
		}
	}
	if e.Offers != nil {
		d.Currency = e.Offers.PriceCurrency
		d.CostDetails = e.Offers.URL
	}
	for _, link := range e.SameAs {
		if platform := socialPlatform(link); platform != "" {
			if d.SocialLinks == nil {
				d.SocialLinks = make(map[string]string)
			}
			if _, exists := d.SocialLinks[platform]; !exists {
				d.SocialLinks[platform] = link
			}
		}
	}
	d.Tags = append(d.Tags, e.Keywords...)
}
