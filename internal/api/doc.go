// Package api serves the REST endpoints over the stored event collections
// and the run-trigger endpoint, plus health and Prometheus metrics.
package api
