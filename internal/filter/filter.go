// Package filter narrows scraped event summaries before enrichment.
//
// Filters express inclusion criteria over summaries:
//   - Date ranges (from/to)
//   - Venue names (substring matching, case-insensitive)
//   - Categories (exact matching, case-insensitive)
//   - Weekends only (Saturday/Sunday)
//   - Free events only
//
// A filter plugs into the pipeline's inclusion hook, so a run only enriches
// and persists what the filter keeps.
//
// Example usage:
//
//	// Keep free weekend concerts
//	f := filter.New()
//	f.WeekendsOnly = true
//	f.FreeOnly = true
//	f.Categories = []string{"music"}
//
//	kept := f.Apply(summaries)
package filter

import (
	"strings"
	"time"

	"github.com/pmholt/eventscout/internal/event"
)

// Filter represents summary inclusion criteria. The zero value matches
// everything.
type Filter struct {
	// Date range filtering, inclusive on both ends.
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	// Venue name filtering (case-insensitive substring match)
	Venues []string `json:"venues,omitempty"`

	// Category filtering (case-insensitive exact match)
	Categories []string `json:"categories,omitempty"`

	// Weekend-only filtering (Saturday/Sunday)
	WeekendsOnly bool `json:"weekends_only,omitempty"`

	// FreeOnly keeps only events whose cost text reads as free or is
	// absent.
	FreeOnly bool `json:"free_only,omitempty"`
}

// New creates an empty filter that matches all summaries.
func New() *Filter {
	return &Filter{}
}

// IsEmpty reports whether the filter has no criteria set.
func (f *Filter) IsEmpty() bool {
	return f.DateFrom == nil && f.DateTo == nil &&
		len(f.Venues) == 0 && len(f.Categories) == 0 &&
		!f.WeekendsOnly && !f.FreeOnly
}

// Matches reports whether a summary passes every criterion. Criteria that
// need a start time reject summaries without one; an undated event cannot be
// proven to fall in a range or on a weekend.
func (f *Filter) Matches(s event.Summary) bool {
	if f.DateFrom != nil || f.DateTo != nil || f.WeekendsOnly {
		if s.StartsAt == nil {
			return false
		}
	}

	if f.DateFrom != nil && s.StartsAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && s.StartsAt.After(*f.DateTo) {
		return false
	}

	if f.WeekendsOnly {
		switch s.StartsAt.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			return false
		}
	}

	if len(f.Venues) > 0 && !matchesAnySubstring(s.Venue, f.Venues) {
		return false
	}

	if len(f.Categories) > 0 && !hasAnyCategory(s.Categories, f.Categories) {
		return false
	}

	if f.FreeOnly && !isFree(s.Cost) {
		return false
	}

	return true
}

// Apply returns the summaries that pass the filter, preserving order.
func (f *Filter) Apply(summaries []event.Summary) []event.Summary {
	if f.IsEmpty() {
		return summaries
	}
	var kept []event.Summary
	for _, s := range summaries {
		if f.Matches(s) {
			kept = append(kept, s)
		}
	}
	return kept
}

// Describe returns a human-readable summary of the active criteria.
func (f *Filter) Describe() string {
	if f.IsEmpty() {
		return "no filter"
	}

	var parts []string
	switch {
	case f.DateFrom != nil && f.DateTo != nil:
		parts = append(parts, "from "+f.DateFrom.Format("2006-01-02")+" to "+f.DateTo.Format("2006-01-02"))
	case f.DateFrom != nil:
		parts = append(parts, "from "+f.DateFrom.Format("2006-01-02"))
	case f.DateTo != nil:
		parts = append(parts, "until "+f.DateTo.Format("2006-01-02"))
	}
	if len(f.Venues) > 0 {
		parts = append(parts, "venues: "+strings.Join(f.Venues, ", "))
	}
	if len(f.Categories) > 0 {
		parts = append(parts, "categories: "+strings.Join(f.Categories, ", "))
	}
	if f.WeekendsOnly {
		parts = append(parts, "weekends only")
	}
	if f.FreeOnly {
		parts = append(parts, "free only")
	}
	return strings.Join(parts, "; ")
}

func matchesAnySubstring(value string, wanted []string) bool {
	v := strings.ToLower(value)
	for _, w := range wanted {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" && strings.Contains(v, w) {
			return true
		}
	}
	return false
}

func hasAnyCategory(have, wanted []string) bool {
	for _, c := range have {
		for _, w := range wanted {
			if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}

// isFree recognizes the cost spellings listings actually use for free
// entry. An absent cost counts as free; an unparsed price does not.
func isFree(cost string) bool {
	c := strings.ToLower(strings.TrimSpace(cost))
	switch c {
	case "", "free", "gratis", "gratuit", "0", "0€", "€0", "0.00":
		return true
	}
	return strings.HasPrefix(c, "free ")
}
