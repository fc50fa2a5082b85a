// Package batch provides the reusable fan-out/fan-in primitive that drives
// every list-of-items-through-an-external-service stage of the pipeline:
// detail fetching, classification, geocoding, and copy enhancement.
//
// Items are processed in fixed-size batches. Within a batch every item runs
// concurrently; batches themselves run strictly one after another, which
// bounds in-flight external calls to the batch size. A failing item never
// affects its siblings: the caller supplies a fallback policy that turns the
// item and its error into a usable result.
package batch
