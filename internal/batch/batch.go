package batch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Options configures a Run invocation.
type Options struct {
	// Size is the number of items processed concurrently per batch.
	// Values below 1 are treated as 1, which recovers plain sequential
	// processing through the same code path.
	Size int

	// Pause is slept between consecutive batches, never within a batch and
	// never after the last one. Zero disables pacing.
	Pause time.Duration

	// OnProgress, when set, is called after each batch settles with the
	// number of items completed so far and the total item count.
	OnProgress func(done, total int)
}

// Worker processes a single item. Returning an error routes the item through
// the fallback policy; it never aborts the batch.
type Worker[T, R any] func(ctx context.Context, item T) (R, error)

// Fallback turns a failed item and its error into a substitute result.
type Fallback[T, R any] func(item T, err error) R

// Run processes items in sequential batches of opts.Size, fanning out
// concurrently within each batch and waiting for the whole batch to settle
// before starting the next. The returned slice always has the same length
// and order as items, regardless of completion order or failures.
func Run[T, R any](ctx context.Context, items []T, opts Options, worker Worker[T, R], fallback Fallback[T, R]) []R {
	size := opts.Size
	if size < 1 {
		size = 1
	}

	results := make([]R, len(items))

	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}

		runBatch(ctx, items[start:end], results[start:end], worker, fallback)

		if opts.OnProgress != nil {
			opts.OnProgress(end, len(items))
		}

		if opts.Pause > 0 && end < len(items) {
			pause(ctx, opts.Pause)
		}
	}

	return results
}

// runBatch fans out one goroutine per item and waits for all of them. The
// outer recover is a containment net for failures in the fan-in itself: if
// anything panics outside the per-item handlers, every item in the batch is
// resolved through the fallback instead of being lost.
func runBatch[T, R any](ctx context.Context, items []T, results []R, worker Worker[T, R], fallback Fallback[T, R]) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("batch processing failed: %v", r)
			for i := range items {
				results[i] = fallback(items[i], err)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = runOne(ctx, items[i], worker, fallback)
		}(i)
	}
	wg.Wait()
}

// runOne invokes the worker for a single item, converting both errors and
// panics into the caller's fallback result.
func runOne[T, R any](ctx context.Context, item T, worker Worker[T, R], fallback Fallback[T, R]) (result R) {
	defer func() {
		if r := recover(); r != nil {
			result = fallback(item, fmt.Errorf("worker panic: %v", r))
		}
	}()

	out, err := worker(ctx, item)
	if err != nil {
		return fallback(item, err)
	}
	return out
}

// pause sleeps for d but wakes early when ctx is done, so a canceled run
// stops pacing and lets the remaining workers fail fast on ctx instead.
func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
