// Package enrich holds the two LLM-backed enrichment stages: the classifier,
// which tags each event as standalone, part of a compilation, or a
// compilation, and the copy enhancer, which rewrites title, description, and
// cost into user-facing copy with an emoji and an rsvp flag. Both resolve
// every failure to a documented fallback at their boundary and never return
// an error to the pipeline.
package enrich
