package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pmholt/eventscout/internal/event"
	"github.com/pmholt/eventscout/internal/pipeline"
	"github.com/pmholt/eventscout/internal/storage"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// WriteResult writes a run result in the specified format
func WriteResult(w io.Writer, result *pipeline.Result, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, result *pipeline.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs the result as human-readable text
func writeText(w io.Writer, result *pipeline.Result) error {
	status := "OK"
	if !result.Success {
		status = fmt.Sprintf("FAILED (%s)", result.FailedStage)
	}
	fmt.Fprintf(w, "Run %s for %s: %s\n", result.RunID, result.Date, status)
	fmt.Fprintf(w, "  %s\n", result.Message)

	if result.FailedStage == pipeline.StageScrape {
		return nil
	}

	fmt.Fprintf(w, "\n  Scraped:     %d\n", result.TotalScraped)
	fmt.Fprintf(w, "  Detail hits: %d\n", result.DetailRequests)
	fmt.Fprintf(w, "  Classified:  %s\n", formatClassified(result.Classified))
	fmt.Fprintf(w, "  Geocoded:    %d\n", result.Geocoded)
	fmt.Fprintf(w, "  Saved:       %d\n", result.Saved)
	for _, col := range []storage.Collection{storage.CollectionEvents, storage.CollectionCompilations, storage.CollectionCurated} {
		if n := result.SavedBy[col]; n > 0 {
			fmt.Fprintf(w, "    %-20s %d\n", col+":", n)
		}
	}
	fmt.Fprintf(w, "  Duplicates:  %d\n", result.Duplicates)
	fmt.Fprintf(w, "  Failures:    %d\n", result.Failures)
	fmt.Fprintf(w, "  Enhanced:    %d\n", result.Enhancements)
	fmt.Fprintf(w, "  Duration:    %s\n", result.Duration.Round(time.Millisecond))

	return nil
}

func formatClassified(counts map[event.Type]int) string {
	if len(counts) == 0 {
		return "none"
	}
	out := ""
	for _, t := range []event.Type{event.TypeStandalone, event.TypePart, event.TypeCompilation} {
		if n := counts[t]; n > 0 {
			if out != "" {
				out += ", "
			}
			out += fmt.Sprintf("%s %d", t, n)
		}
	}
	if out == "" {
		return "none"
	}
	return out
}
