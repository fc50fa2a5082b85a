package storage

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pmholt/eventscout/internal/event"
)

// Inserter is the slice of the store the router needs. The pipeline's tests
// substitute a fake.
type Inserter interface {
	InsertEvent(ctx context.Context, col Collection, ev event.Enriched) error
}

// SaveResult aggregates the outcome of one persistence pass. The three
// counts always sum to the number of events attempted.
type SaveResult struct {
	Saved      int
	Duplicates int
	Failures   int

	// ByCollection breaks Saved down per target collection.
	ByCollection map[Collection]int

	// SavedEvents are the records that were actually written, in input order.
	SavedEvents []event.Enriched

	// FailedEvents retains records that failed for a non-duplicate reason,
	// so a partial run's losses stay inspectable. They are not retried.
	FailedEvents []event.Enriched
}

// Total returns the number of events the pass attempted.
func (r SaveResult) Total() int {
	return r.Saved + r.Duplicates + r.Failures
}

// Merge sums another pass into this result. The pipeline reports its two
// persistence passes as one total without conflating their per-pass counts.
func (r SaveResult) Merge(other SaveResult) SaveResult {
	merged := SaveResult{
		Saved:        r.Saved + other.Saved,
		Duplicates:   r.Duplicates + other.Duplicates,
		Failures:     r.Failures + other.Failures,
		ByCollection: map[Collection]int{},
		SavedEvents:  append(append([]event.Enriched{}, r.SavedEvents...), other.SavedEvents...),
		FailedEvents: append(append([]event.Enriched{}, r.FailedEvents...), other.FailedEvents...),
	}
	for col, n := range r.ByCollection {
		merged.ByCollection[col] += n
	}
	for col, n := range other.ByCollection {
		merged.ByCollection[col] += n
	}
	return merged
}

// Router writes enriched events to their target collections and classifies
// every insert outcome as saved, duplicate, or failed. It never aborts a
// batch because one item misbehaved.
type Router struct {
	store Inserter
	log   zerolog.Logger
}

// NewRouter creates a Router.
func NewRouter(store Inserter, log zerolog.Logger) *Router {
	return &Router{
		store: store,
		log:   log.With().Str("component", "persistence").Logger(),
	}
}

// Save routes each event to the collection for its type and inserts it.
// Used for the first persistence pass, before copy enhancement.
func (r *Router) Save(ctx context.Context, events []event.Enriched) SaveResult {
	return r.save(ctx, events, func(ev event.Enriched) Collection {
		return CollectionFor(ev.Type)
	})
}

// SaveTo inserts every event into a single collection. Used for the second
// persistence pass, after copy enhancement.
func (r *Router) SaveTo(ctx context.Context, col Collection, events []event.Enriched) SaveResult {
	return r.save(ctx, events, func(event.Enriched) Collection { return col })
}

func (r *Router) save(ctx context.Context, events []event.Enriched, route func(event.Enriched) Collection) SaveResult {
	result := SaveResult{ByCollection: map[Collection]int{}}

	for _, ev := range events {
		col := route(ev)
		err := r.store.InsertEvent(ctx, col, ev)
		switch {
		case err == nil:
			result.Saved++
			result.ByCollection[col]++
			result.SavedEvents = append(result.SavedEvents, ev)
		case IsDuplicateKey(err):
			result.Duplicates++
			r.log.Debug().
				Str("collection", string(col)).
				Str("title", ev.Title).
				Msg("duplicate event skipped")
		default:
			result.Failures++
			result.FailedEvents = append(result.FailedEvents, ev)
			r.log.Error().Err(err).
				Str("collection", string(col)).
				Str("title", ev.Title).
				Msg("event insert failed")
		}
	}

	return result
}
