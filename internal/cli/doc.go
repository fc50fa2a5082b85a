// Package cli implements the command-line interface for eventscout.
//
// The cli package provides the Cobra-based CLI with the scrape subcommand
// for one-shot pipeline runs and the serve subcommand for the REST API.
// It wires the scraper, enrichment, geocoding, and storage packages from
// the loaded configuration.
package cli
