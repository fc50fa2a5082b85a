// Package event defines the staged event record types that flow through the
// enrichment pipeline: Summary (scraped from a listing page), Detail (after
// the per-event detail page fetch), and Enriched (after classification,
// geocoding, and copy enhancement). Each stage is a sealed struct with an
// explicit conversion function, so fields are never silently dropped or
// duplicated between stages.
package event
