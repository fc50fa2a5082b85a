// Package geocode resolves free-text addresses to coordinates through a
// Nominatim-style search endpoint. Resolution is strictly best-effort: a
// missing address, an empty result set, and a failed call all come back as
// nil coordinates, never as an error. Callers treat nil as "coordinates
// unknown".
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pmholt/eventscout/internal/event"
	"github.com/pmholt/eventscout/internal/fallible"
)

const (
	defaultTimeout = 15 * time.Second
	userAgent      = "eventscout/1.0 (github.com/pmholt/eventscout)"
)

// Geocoder resolves address text to coordinates.
type Geocoder struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// New creates a Geocoder against the given search endpoint base URL.
func New(baseURL string, log zerolog.Logger) *Geocoder {
	return &Geocoder{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: baseURL,
		log:     log.With().Str("component", "geocoder").Logger(),
	}
}

// Geocode resolves query text to a best-match coordinate pair. An empty
// query returns nil immediately without a network call.
func (g *Geocoder) Geocode(ctx context.Context, query string) *event.Coordinates {
	if query == "" {
		return nil
	}

	return fallible.Call(ctx, g.log, "geocode", (*event.Coordinates)(nil),
		func(ctx context.Context) (*event.Coordinates, error) {
			return g.search(ctx, query)
		})
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (g *Geocoder) search(ctx context.Context, query string) (*event.Coordinates, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling geocoding service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding service returned %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(results) == 0 {
		// Zero matches is an expected outcome, not a failure worth logging.
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing longitude %q: %w", results[0].Lon, err)
	}

	return &event.Coordinates{Latitude: lat, Longitude: lon}, nil
}
