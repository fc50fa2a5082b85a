package sheet

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pmholt/eventscout/internal/event"
	"github.com/pmholt/eventscout/internal/logger"
)

const sampleCSV = `title,date,time,venue,address,cost,url,category
Garden Concert,2026-03-14,18:30,Rose Garden,5 Park Lane,10,https://example.test/garden,music
Book Swap,2026-03-15,,Library,,free,,community
,2026-03-14,,,,,,
Night Ride,2026-03-14,,Meeting Point,,,,sports
`

func TestFetchFiltersByDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleCSV)
	}))
	defer srv.Close()

	f := New(srv.URL, logger.Nop())
	rows, err := f.Fetch(context.Background(), "2026-03-14")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows for the date, got %d", len(rows))
	}
	first := rows[0]
	if first.Title != "Garden Concert" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Venue != "Rose Garden" || first.Address != "5 Park Lane" {
		t.Errorf("location fields: %+v", first)
	}
	if first.StartsAt == nil {
		t.Fatal("start time should combine date and time columns")
	}
	expected := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	if !first.StartsAt.Equal(expected) {
		t.Errorf("start = %v, expected %v", first.StartsAt, expected)
	}
	if rows[1].Title != "Night Ride" {
		t.Errorf("second row = %q", rows[1].Title)
	}
}

func TestFetchDisabledWithoutURL(t *testing.T) {
	f := New("", logger.Nop())
	rows, err := f.Fetch(context.Background(), "2026-03-14")
	if err != nil {
		t.Fatalf("disabled feed should not error: %v", err)
	}
	if rows != nil {
		t.Errorf("expected no rows, got %v", rows)
	}
}

func TestFetchMissingTitleColumn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "name,when\nX,2026-03-14\n")
	}))
	defer srv.Close()

	f := New(srv.URL, logger.Nop())
	if _, err := f.Fetch(context.Background(), "2026-03-14"); err == nil {
		t.Fatal("expected an error for a sheet without a title column")
	}
}

func TestMergeSummariesDropsDuplicates(t *testing.T) {
	start := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	scraped := []event.Summary{
		{Title: "Jazz Night", StartsAt: &start},
		{Title: "Open Mic", StartsAt: &start},
	}
	feed := []event.Summary{
		{Title: "jazz night", StartsAt: &start}, // duplicate, case-insensitive
		{Title: "Night Ride", StartsAt: &start},
	}

	merged := MergeSummaries(scraped, feed)
	if len(merged) != 3 {
		t.Fatalf("expected 3 merged summaries, got %d", len(merged))
	}
	if merged[2].Title != "Night Ride" {
		t.Errorf("expected feed row appended, got %q", merged[2].Title)
	}
}
