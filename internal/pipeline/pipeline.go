package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pmholt/eventscout/internal/batch"
	"github.com/pmholt/eventscout/internal/enrich"
	"github.com/pmholt/eventscout/internal/event"
	"github.com/pmholt/eventscout/internal/metrics"
	"github.com/pmholt/eventscout/internal/sheet"
	"github.com/pmholt/eventscout/internal/storage"
)

// Pacing delays between batches, tuned per external service.
const (
	detailPause  = 200 * time.Millisecond
	llmPause     = 400 * time.Millisecond
	geocodePause = 150 * time.Millisecond

	defaultBatchSize = 5
)

// ListingFetcher retrieves the event summaries published for a date.
type ListingFetcher interface {
	FetchListings(ctx context.Context, date string) ([]event.Summary, error)
}

// DetailFetcher retrieves and parses one event's detail page.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, url string) (event.Detail, error)
}

// FeedFetcher retrieves community-submitted rows for a date. Optional.
type FeedFetcher interface {
	Fetch(ctx context.Context, date string) ([]event.Summary, error)
}

// Classifier tags an event with its type. Implementations never fail; they
// fall back to standalone.
type Classifier interface {
	Classify(ctx context.Context, d event.Detail) event.Type
}

// Geocoder resolves address text to coordinates, nil when unknown.
type Geocoder interface {
	Geocode(ctx context.Context, query string) *event.Coordinates
}

// Enhancer rewrites an event into user-facing copy. Implementations never
// fail; they fall back to the original fields.
type Enhancer interface {
	Enhance(ctx context.Context, ev event.Enriched) enrich.Copy
}

// Saver is the persistence router.
type Saver interface {
	Save(ctx context.Context, events []event.Enriched) storage.SaveResult
	SaveTo(ctx context.Context, col storage.Collection, events []event.Enriched) storage.SaveResult
}

// Options is the per-run configuration bag.
type Options struct {
	// BatchSize bounds concurrent external calls within every stage.
	// Below 1 means defaultBatchSize; 1 recovers sequential processing.
	BatchSize int

	// Enhance controls whether the copy-enhancement stage and the second
	// persistence pass run at all.
	Enhance bool

	// SkipSponsored drops sponsored listings before the detail stage.
	SkipSponsored bool

	// Categories, when non-empty, keeps only summaries carrying at least
	// one of these category tags (case-insensitive).
	Categories []string

	// Include, when set, is an additional predicate applied after the
	// built-in filters. It must be safe for concurrent reads.
	Include func(event.Summary) bool
}

// Deps are the injected collaborators. Listing, Classify, Geocode, Enhance,
// and Save are required; Detail may be nil to skip detail fetching and Feed
// may be nil when no spreadsheet feed is configured.
type Deps struct {
	Listing  ListingFetcher
	Detail   DetailFetcher
	Feed     FeedFetcher
	Classify Classifier
	Geocode  Geocoder
	Enhance  Enhancer
	Save     Saver
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

// Pipeline runs the scrape-and-enrich sequence for one date.
type Pipeline struct {
	deps Deps
	log  zerolog.Logger
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewUnregistered()
	}
	return &Pipeline{
		deps: deps,
		log:  deps.Log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one pipeline invocation. It always returns a Result, never an
// error: a scrape abort comes back as a failed Result with zero counts.
func (p *Pipeline) Run(ctx context.Context, date string, opts Options) *Result {
	start := time.Now()
	result := &Result{
		RunID:      uuid.NewString(),
		Date:       date,
		Classified: map[event.Type]int{},
		SavedBy:    map[storage.Collection]int{},
	}
	log := p.log.With().Str("run_id", result.RunID).Str("date", date).Logger()

	if opts.BatchSize < 1 {
		opts.BatchSize = defaultBatchSize
	}

	summaries, err := p.scrape(ctx, date, opts, log)
	if err != nil {
		result.Success = false
		result.FailedStage = StageScrape
		result.Message = result.buildMessage(err)
		result.Duration = time.Since(start)
		p.deps.Metrics.RunsTotal.WithLabelValues("scrape_failed").Inc()
		log.Error().Err(err).Msg("run aborted at listing fetch")
		return result
	}

	result.TotalScraped = len(summaries)
	p.deps.Metrics.EventsScraped.Add(float64(len(summaries)))

	details := p.fetchDetails(ctx, summaries, opts, result, log)
	classified := p.classify(ctx, details, opts)
	p.geocode(ctx, classified, opts, result)
	for _, ev := range classified {
		result.Classified[ev.Type]++
	}

	firstPass := p.deps.Save.Save(ctx, classified)
	log.Info().
		Int("saved", firstPass.Saved).
		Int("duplicates", firstPass.Duplicates).
		Int("failures", firstPass.Failures).
		Msg("first persistence pass done")

	combined := firstPass
	if opts.Enhance {
		enhanced, generated := p.enhance(ctx, firstPass.SavedEvents, opts)
		result.Enhancements = generated
		p.deps.Metrics.Enhancements.Add(float64(generated))

		if len(enhanced) > 0 {
			secondPass := p.deps.Save.SaveTo(ctx, storage.CollectionCurated, enhanced)
			log.Info().
				Int("saved", secondPass.Saved).
				Int("duplicates", secondPass.Duplicates).
				Int("failures", secondPass.Failures).
				Msg("second persistence pass done")
			combined = firstPass.Merge(secondPass)
		}

		if len(enhanced) > 0 && generated == 0 {
			result.FailedStage = StageEnhance
		}
	}

	result.Saved = combined.Saved
	result.Duplicates = combined.Duplicates
	result.Failures = combined.Failures
	for col, n := range combined.ByCollection {
		result.SavedBy[col] = n
		p.deps.Metrics.EventsSaved.WithLabelValues(string(col)).Add(float64(n))
	}
	p.deps.Metrics.EventsDuplicate.Add(float64(combined.Duplicates))
	p.deps.Metrics.EventsFailed.Add(float64(combined.Failures))

	if combined.Failures > 0 {
		result.FailedStage = StageSave
	}
	result.Success = result.FailedStage == ""
	result.Message = result.buildMessage(nil)
	result.Duration = time.Since(start)

	outcome := "ok"
	if !result.Success {
		outcome = string(result.FailedStage) + "_failed"
	}
	p.deps.Metrics.RunsTotal.WithLabelValues(outcome).Inc()
	p.deps.Metrics.RunDuration.Observe(result.Duration.Seconds())

	log.Info().Bool("success", result.Success).Str("message", result.Message).Msg("run finished")
	return result
}

// scrape fetches listings, merges the optional feed, and applies the
// inclusion filters. A listing fetch error aborts the run; a feed error is
// logged and the feed skipped, since the feed only supplements the scrape.
func (p *Pipeline) scrape(ctx context.Context, date string, opts Options, log zerolog.Logger) ([]event.Summary, error) {
	summaries, err := p.deps.Listing.FetchListings(ctx, date)
	if err != nil {
		return nil, err
	}

	if p.deps.Feed != nil {
		rows, err := p.deps.Feed.Fetch(ctx, date)
		if err != nil {
			log.Warn().Err(err).Msg("sheet feed unavailable, continuing without it")
		} else if len(rows) > 0 {
			before := len(summaries)
			summaries = sheet.MergeSummaries(summaries, rows)
			log.Debug().Int("added", len(summaries)-before).Msg("sheet feed merged")
		}
	}

	return filterSummaries(summaries, opts), nil
}

func filterSummaries(summaries []event.Summary, opts Options) []event.Summary {
	kept := summaries[:0:len(summaries)]
	for _, s := range summaries {
		if opts.SkipSponsored && s.Sponsored {
			continue
		}
		if len(opts.Categories) > 0 && !hasAnyCategory(s, opts.Categories) {
			continue
		}
		if opts.Include != nil && !opts.Include(s) {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

func hasAnyCategory(s event.Summary, wanted []string) bool {
	for _, c := range s.Categories {
		for _, w := range wanted {
			if strings.EqualFold(c, w) {
				return true
			}
		}
	}
	return false
}

// fetchDetails runs the detail stage. Summaries without a detail URL and
// failed fetches degrade to summary-promoted records instead of dropping.
func (p *Pipeline) fetchDetails(ctx context.Context, summaries []event.Summary, opts Options, result *Result, log zerolog.Logger) []event.Detail {
	if p.deps.Detail == nil {
		details := make([]event.Detail, len(summaries))
		for i, s := range summaries {
			details[i] = event.FromSummary(s)
		}
		return details
	}

	for _, s := range summaries {
		if s.DetailURL != "" {
			result.DetailRequests++
		}
	}
	p.deps.Metrics.DetailRequests.Add(float64(result.DetailRequests))

	return batch.Run(ctx, summaries,
		batch.Options{
			Size:  opts.BatchSize,
			Pause: detailPause,
			OnProgress: func(done, total int) {
				log.Debug().Int("done", done).Int("total", total).Msg("detail stage progress")
			},
		},
		func(ctx context.Context, s event.Summary) (event.Detail, error) {
			if s.DetailURL == "" {
				return event.FromSummary(s), nil
			}
			return p.deps.Detail.FetchDetail(ctx, s.DetailURL)
		},
		func(s event.Summary, err error) event.Detail {
			log.Warn().Err(err).Str("title", s.Title).Msg("detail fetch failed, using summary")
			return event.FromSummary(s)
		})
}

// classify runs the classification stage. The classifier itself never
// errors; the fallback covers panics inside the batch machinery.
func (p *Pipeline) classify(ctx context.Context, details []event.Detail, opts Options) []event.Enriched {
	return batch.Run(ctx, details,
		batch.Options{Size: opts.BatchSize, Pause: llmPause},
		func(ctx context.Context, d event.Detail) (event.Enriched, error) {
			return event.Enrich(d, p.deps.Classify.Classify(ctx, d)), nil
		},
		func(d event.Detail, err error) event.Enriched {
			return event.Enrich(d, event.TypeStandalone)
		})
}

// geocode attaches coordinates in place. Every event goes through the stage;
// those without address or venue resolve to nil without a network call.
func (p *Pipeline) geocode(ctx context.Context, events []event.Enriched, opts Options, result *Result) {
	coords := batch.Run(ctx, events,
		batch.Options{Size: opts.BatchSize, Pause: geocodePause},
		func(ctx context.Context, ev event.Enriched) (*event.Coordinates, error) {
			return p.deps.Geocode.Geocode(ctx, ev.GeoQuery()), nil
		},
		func(ev event.Enriched, err error) *event.Coordinates {
			return nil
		})

	for i := range events {
		events[i].Coords = coords[i]
		if coords[i] != nil {
			result.Geocoded++
		}
	}
}

// enhanceResult pairs the rewritten event with whether the copy was
// genuinely generated rather than a fallback.
type enhanceResult struct {
	ev        event.Enriched
	generated bool
}

// enhance runs copy enhancement over the enhanceable subset of the first
// pass's saved records and returns the rewritten events plus the number of
// genuine enhancements.
func (p *Pipeline) enhance(ctx context.Context, saved []event.Enriched, opts Options) ([]event.Enriched, int) {
	var eligible []event.Enriched
	for _, ev := range saved {
		if ev.Enhanceable() {
			eligible = append(eligible, ev)
		}
	}
	if len(eligible) == 0 {
		return nil, 0
	}

	results := batch.Run(ctx, eligible,
		batch.Options{Size: opts.BatchSize, Pause: llmPause},
		func(ctx context.Context, ev event.Enriched) (enhanceResult, error) {
			c := p.deps.Enhance.Enhance(ctx, ev)
			return enhanceResult{ev: c.Apply(ev), generated: c.Generated}, nil
		},
		func(ev event.Enriched, err error) enhanceResult {
			fallback := enrich.Copy{
				Title:       ev.Title,
				Description: ev.Description,
				Cost:        ev.Cost,
				Emoji:       enrich.DefaultEmoji,
			}
			return enhanceResult{ev: fallback.Apply(ev)}
		})

	enhanced := make([]event.Enriched, len(results))
	generated := 0
	for i, r := range results {
		enhanced[i] = r.ev
		if r.generated {
			generated++
		}
	}
	return enhanced, generated
}
