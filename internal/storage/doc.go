// Package storage persists enriched events to Postgres and routes them to
// target collections by event type. Deduplication is delegated entirely to
// a uniqueness constraint on (title, starts_at) per collection: a duplicate
// insert is an expected, recoverable outcome that the router tallies
// separately from real failures. Titles and times are stored as scraped,
// without normalization, so near-duplicates with differing case or timezone
// will both be kept.
package storage
