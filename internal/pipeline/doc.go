// Package pipeline wires the scraping and enrichment stages into one run:
// listing fetch, spreadsheet-feed merge, detail fetch, LLM classification,
// geocoding, a first persistence pass routed by event type, copy enhancement
// for non-compilation events, and a second persistence pass into the curated
// collection. Stages run strictly one after another; within a stage, items
// run in paced concurrent batches. A run never panics or returns a Go error
// to its caller: the Result carries the success flag and enough detail to
// tell a scrape failure from a save or enhancement failure.
package pipeline
