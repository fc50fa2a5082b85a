package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/pmholt/eventscout/internal/event"
	"github.com/pmholt/eventscout/internal/storage"
)

// Stage identifies which part of a run failed.
type Stage string

const (
	// StageScrape means the listing fetch aborted; the run has no counts.
	StageScrape Stage = "scrape"
	// StageSave means at least one insert failed for a non-duplicate reason.
	StageSave Stage = "save"
	// StageEnhance means events were eligible for copy enhancement but none
	// could be generated.
	StageEnhance Stage = "enhance"
)

// Result is the structured summary a run always returns.
type Result struct {
	RunID    string        `json:"run_id"`
	Date     string        `json:"date"`
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`

	// FailedStage is empty on a clean run, otherwise the worst failure
	// encountered: scrape > save > enhance.
	FailedStage Stage `json:"failed_stage,omitempty"`

	TotalScraped   int                        `json:"total_scraped"`
	DetailRequests int                        `json:"detail_requests"`
	Classified     map[event.Type]int         `json:"classified,omitempty"`
	Geocoded       int                        `json:"geocoded"`
	Enhancements   int                        `json:"enhancements"`
	Saved          int                        `json:"saved"`
	Duplicates     int                        `json:"duplicates"`
	Failures       int                        `json:"failures"`
	SavedBy        map[storage.Collection]int `json:"saved_by_collection,omitempty"`
}

// buildMessage renders the human-readable summary line.
func (r *Result) buildMessage(scrapeErr error) string {
	if scrapeErr != nil {
		return fmt.Sprintf("scrape failed for %s: %v", r.Date, scrapeErr)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "scraped %d events for %s: saved %d", r.TotalScraped, r.Date, r.Saved)

	if len(r.SavedBy) > 0 {
		parts := make([]string, 0, len(r.SavedBy))
		for _, col := range []storage.Collection{storage.CollectionEvents, storage.CollectionCompilations, storage.CollectionCurated} {
			if n, ok := r.SavedBy[col]; ok && n > 0 {
				parts = append(parts, fmt.Sprintf("%s %d", col, n))
			}
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
		}
	}

	fmt.Fprintf(&b, ", %d duplicates, %d failed", r.Duplicates, r.Failures)
	fmt.Fprintf(&b, "; %d copy-enhanced", r.Enhancements)

	if r.FailedStage == StageEnhance {
		b.WriteString("; enhancement produced only fallbacks")
	}
	return b.String()
}
