// Package scraper fetches and parses event listings from the public
// event-listing site. Listing pages are paginated; each page is parsed from
// structured JSON-LD event markup when present, falling back to repeated
// HTML list-item blocks otherwise. Detail pages merge both sources with a
// strict precedence: JSON-LD fields are populated first and HTML selectors
// only fill fields that are still empty.
package scraper
