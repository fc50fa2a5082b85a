package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pmholt/eventscout/internal/enrich"
	"github.com/pmholt/eventscout/internal/event"
	"github.com/pmholt/eventscout/internal/logger"
	"github.com/pmholt/eventscout/internal/storage"
)

type fakeListing struct {
	summaries []event.Summary
	err       error
}

func (f *fakeListing) FetchListings(ctx context.Context, date string) ([]event.Summary, error) {
	return f.summaries, f.err
}

type fakeDetail struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeDetail) FetchDetail(ctx context.Context, url string) (event.Detail, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.err != nil {
		return event.Detail{}, f.err
	}
	d := event.Detail{HasDetailedInfo: true}
	d.Title = "detail:" + url
	d.DetailURL = url
	d.Address = "1 Somewhere St"
	return d, nil
}

type fakeFeed struct {
	rows []event.Summary
	err  error
}

func (f *fakeFeed) Fetch(ctx context.Context, date string) ([]event.Summary, error) {
	return f.rows, f.err
}

// fakeClassifier types events whose title contains "festival" as
// compilations.
type fakeClassifier struct{}

func (fakeClassifier) Classify(ctx context.Context, d event.Detail) event.Type {
	if strings.Contains(d.Title, "festival") {
		return event.TypeCompilation
	}
	return event.TypeStandalone
}

type fakeGeocoder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeGeocoder) Geocode(ctx context.Context, query string) *event.Coordinates {
	if query == "" {
		return nil
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return &event.Coordinates{Latitude: 49.6, Longitude: 6.13}
}

type fakeEnhancer struct {
	fail bool
}

func (f *fakeEnhancer) Enhance(ctx context.Context, ev event.Enriched) enrich.Copy {
	if f.fail {
		return enrich.Copy{Title: ev.Title, Description: ev.Description, Cost: ev.Cost, Emoji: enrich.DefaultEmoji}
	}
	return enrich.Copy{
		Title:       "✨ " + ev.Title,
		Description: "rewritten",
		Cost:        ev.Cost,
		Emoji:       "🎉",
		Generated:   true,
	}
}

// fakeSaver saves everything, with optional scripted duplicates/failures by
// title, and records what went where.
type fakeSaver struct {
	duplicates map[string]bool
	failures   map[string]bool
	saved      map[storage.Collection][]string
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{
		duplicates: map[string]bool{},
		failures:   map[string]bool{},
		saved:      map[storage.Collection][]string{},
	}
}

func (f *fakeSaver) Save(ctx context.Context, events []event.Enriched) storage.SaveResult {
	return f.save(events, func(ev event.Enriched) storage.Collection {
		return storage.CollectionFor(ev.Type)
	})
}

func (f *fakeSaver) SaveTo(ctx context.Context, col storage.Collection, events []event.Enriched) storage.SaveResult {
	return f.save(events, func(event.Enriched) storage.Collection { return col })
}

func (f *fakeSaver) save(events []event.Enriched, route func(event.Enriched) storage.Collection) storage.SaveResult {
	result := storage.SaveResult{ByCollection: map[storage.Collection]int{}}
	for _, ev := range events {
		switch {
		case f.duplicates[ev.Title]:
			result.Duplicates++
		case f.failures[ev.Title]:
			result.Failures++
			result.FailedEvents = append(result.FailedEvents, ev)
		default:
			col := route(ev)
			result.Saved++
			result.ByCollection[col]++
			result.SavedEvents = append(result.SavedEvents, ev)
			f.saved[col] = append(f.saved[col], ev.Title)
		}
	}
	return result
}

func summaryWithURL(title, url, address string) event.Summary {
	s := event.Summary{Title: title, DetailURL: url}
	s.Address = address
	start := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	s.StartsAt = &start
	return s
}

func newTestPipeline(deps Deps) *Pipeline {
	deps.Log = logger.Nop()
	return New(deps)
}

func TestRunEndToEnd(t *testing.T) {
	// 5 summaries, 2 without a detail URL; 1 classifies as compilation;
	// 3 carry addresses.
	listing := &fakeListing{summaries: []event.Summary{
		summaryWithURL("a", "/e/a", "1 First St"),
		summaryWithURL("b", "/e/b", "2 Second St"),
		summaryWithURL("festival roundup", "/e/fest", "3 Third St"),
		summaryWithURL("d", "", ""),
		summaryWithURL("e", "", ""),
	}}
	detail := &fakeDetail{err: errors.New("detail pages down")} // all degrade to summaries
	geo := &fakeGeocoder{}
	saver := newFakeSaver()

	p := newTestPipeline(Deps{
		Listing:  listing,
		Detail:   detail,
		Classify: fakeClassifier{},
		Geocode:  geo,
		Enhance:  &fakeEnhancer{},
		Save:     saver,
	})

	result := p.Run(context.Background(), "2026-03-14", Options{BatchSize: 2, Enhance: true})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.TotalScraped != 5 {
		t.Errorf("total scraped = %d", result.TotalScraped)
	}
	if result.DetailRequests != 3 {
		t.Errorf("detail requests = %d, expected 3 (two summaries lack URLs)", result.DetailRequests)
	}
	if len(detail.calls) != 3 {
		t.Errorf("detail fetches = %d", len(detail.calls))
	}
	if result.Classified[event.TypeStandalone] != 4 || result.Classified[event.TypeCompilation] != 1 {
		t.Errorf("classified = %v", result.Classified)
	}
	if geo.calls != 3 {
		t.Errorf("geocode network calls = %d, expected 3 (two events have no address)", geo.calls)
	}
	if result.Geocoded != 3 {
		t.Errorf("geocoded = %d", result.Geocoded)
	}

	// First pass: 4 standalone to events, 1 compilation. Second pass: the 4
	// non-compilations, enhanced, into the curated collection.
	if n := len(saver.saved[storage.CollectionEvents]); n != 4 {
		t.Errorf("events collection = %d", n)
	}
	if n := len(saver.saved[storage.CollectionCompilations]); n != 1 {
		t.Errorf("compilations collection = %d", n)
	}
	if n := len(saver.saved[storage.CollectionCurated]); n != 4 {
		t.Errorf("curated collection = %d", n)
	}
	for _, title := range saver.saved[storage.CollectionCurated] {
		if !strings.HasPrefix(title, "✨ ") {
			t.Errorf("curated title %q should carry enhanced copy", title)
		}
	}

	if result.Saved != 9 {
		t.Errorf("total saved = %d, expected sum across both passes", result.Saved)
	}
	if result.Enhancements != 4 {
		t.Errorf("enhancements = %d", result.Enhancements)
	}
	if result.Message == "" || result.RunID == "" {
		t.Error("result should carry a message and a run id")
	}
}

func TestRunScrapeFailure(t *testing.T) {
	p := newTestPipeline(Deps{
		Listing:  &fakeListing{err: errors.New("site unreachable")},
		Classify: fakeClassifier{},
		Geocode:  &fakeGeocoder{},
		Enhance:  &fakeEnhancer{},
		Save:     newFakeSaver(),
	})

	result := p.Run(context.Background(), "2026-03-14", Options{})

	if result.Success {
		t.Fatal("scrape abort must not be a success")
	}
	if result.FailedStage != StageScrape {
		t.Errorf("failed stage = %q", result.FailedStage)
	}
	if result.TotalScraped != 0 || result.Saved != 0 {
		t.Errorf("aborted run should have zero counts: %+v", result)
	}
	if result.Message == "" {
		t.Error("aborted run needs an explanatory message")
	}
}

func TestRunSaveFailuresSurface(t *testing.T) {
	saver := newFakeSaver()
	saver.failures["a"] = true

	p := newTestPipeline(Deps{
		Listing:  &fakeListing{summaries: []event.Summary{summaryWithURL("a", "", ""), summaryWithURL("b", "", "")}},
		Classify: fakeClassifier{},
		Geocode:  &fakeGeocoder{},
		Enhance:  &fakeEnhancer{},
		Save:     saver,
	})

	result := p.Run(context.Background(), "2026-03-14", Options{})

	if result.Success {
		t.Error("a non-duplicate insert failure should mark the run failed")
	}
	if result.FailedStage != StageSave {
		t.Errorf("failed stage = %q", result.FailedStage)
	}
	if result.Failures != 1 || result.Saved != 1 {
		t.Errorf("tallies = saved %d, failures %d", result.Saved, result.Failures)
	}
}

func TestRunDuplicatesAreNotFailures(t *testing.T) {
	saver := newFakeSaver()
	saver.duplicates["a"] = true

	p := newTestPipeline(Deps{
		Listing:  &fakeListing{summaries: []event.Summary{summaryWithURL("a", "", ""), summaryWithURL("b", "", "")}},
		Classify: fakeClassifier{},
		Geocode:  &fakeGeocoder{},
		Enhance:  &fakeEnhancer{},
		Save:     saver,
	})

	result := p.Run(context.Background(), "2026-03-14", Options{})

	if !result.Success {
		t.Errorf("duplicates are recoverable, run should succeed: %+v", result)
	}
	if result.Duplicates != 1 {
		t.Errorf("duplicates = %d", result.Duplicates)
	}
}

func TestRunEnhanceDisabled(t *testing.T) {
	saver := newFakeSaver()
	p := newTestPipeline(Deps{
		Listing:  &fakeListing{summaries: []event.Summary{summaryWithURL("a", "", "")}},
		Classify: fakeClassifier{},
		Geocode:  &fakeGeocoder{},
		Enhance:  &fakeEnhancer{},
		Save:     saver,
	})

	result := p.Run(context.Background(), "2026-03-14", Options{Enhance: false})

	if result.Enhancements != 0 {
		t.Errorf("enhancements = %d", result.Enhancements)
	}
	if len(saver.saved[storage.CollectionCurated]) != 0 {
		t.Error("second pass must not run when enhancement is disabled")
	}
}

func TestRunEnhanceAllFallbacks(t *testing.T) {
	saver := newFakeSaver()
	p := newTestPipeline(Deps{
		Listing:  &fakeListing{summaries: []event.Summary{summaryWithURL("a", "", "")}},
		Classify: fakeClassifier{},
		Geocode:  &fakeGeocoder{},
		Enhance:  &fakeEnhancer{fail: true},
		Save:     saver,
	})

	result := p.Run(context.Background(), "2026-03-14", Options{Enhance: true})

	if result.Success {
		t.Error("all-fallback enhancement should mark the run as enhance-failed")
	}
	if result.FailedStage != StageEnhance {
		t.Errorf("failed stage = %q", result.FailedStage)
	}
	// The fallback copy is still persisted in the second pass.
	if len(saver.saved[storage.CollectionCurated]) != 1 {
		t.Error("fallback copy should still reach the curated collection")
	}
}

func TestRunFiltersSponsoredAndCategories(t *testing.T) {
	sponsored := summaryWithURL("ad", "", "")
	sponsored.Sponsored = true
	tagged := summaryWithURL("gig", "", "")
	tagged.Categories = []string{"Music"}
	other := summaryWithURL("talk", "", "")
	other.Categories = []string{"lecture"}

	saver := newFakeSaver()
	p := newTestPipeline(Deps{
		Listing:  &fakeListing{summaries: []event.Summary{sponsored, tagged, other}},
		Classify: fakeClassifier{},
		Geocode:  &fakeGeocoder{},
		Enhance:  &fakeEnhancer{},
		Save:     saver,
	})

	result := p.Run(context.Background(), "2026-03-14", Options{
		SkipSponsored: true,
		Categories:    []string{"music"},
	})

	if result.TotalScraped != 1 {
		t.Errorf("total scraped = %d, expected only the music event", result.TotalScraped)
	}
	if got := saver.saved[storage.CollectionEvents]; len(got) != 1 || got[0] != "gig" {
		t.Errorf("saved = %v", got)
	}
}

func TestRunMergesFeed(t *testing.T) {
	start := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	dupe := event.Summary{Title: "a", StartsAt: &start}
	fresh := event.Summary{Title: "from-sheet", StartsAt: &start}

	saver := newFakeSaver()
	p := newTestPipeline(Deps{
		Listing:  &fakeListing{summaries: []event.Summary{{Title: "a", StartsAt: &start}}},
		Feed:     &fakeFeed{rows: []event.Summary{dupe, fresh}},
		Classify: fakeClassifier{},
		Geocode:  &fakeGeocoder{},
		Enhance:  &fakeEnhancer{},
		Save:     saver,
	})

	result := p.Run(context.Background(), "2026-03-14", Options{})

	if result.TotalScraped != 2 {
		t.Errorf("total scraped = %d, feed duplicate should be dropped", result.TotalScraped)
	}
}

func TestRunFeedErrorDoesNotAbort(t *testing.T) {
	saver := newFakeSaver()
	p := newTestPipeline(Deps{
		Listing:  &fakeListing{summaries: []event.Summary{summaryWithURL("a", "", "")}},
		Feed:     &fakeFeed{err: fmt.Errorf("sheet gone")},
		Classify: fakeClassifier{},
		Geocode:  &fakeGeocoder{},
		Enhance:  &fakeEnhancer{},
		Save:     saver,
	})

	result := p.Run(context.Background(), "2026-03-14", Options{})

	if !result.Success {
		t.Errorf("feed failure should not abort the run: %+v", result)
	}
	if result.TotalScraped != 1 {
		t.Errorf("total scraped = %d", result.TotalScraped)
	}
}
