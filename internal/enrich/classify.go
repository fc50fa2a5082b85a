package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pmholt/eventscout/internal/event"
	"github.com/pmholt/eventscout/internal/fallible"
	"github.com/pmholt/eventscout/internal/llm"
)

const (
	classifyTemplateVersion = "v3"

	classifyTemplate = `You are given one event record as JSON. Decide whether it is a single
standalone event, one occurrence that belongs to a larger series, or a
record that itself aggregates several sub-events (a festival program, a
weekly roundup, a recurring series listing).

Respond with JSON: {"event_type": "standalone" | "part-of-a-compilation" | "compilation"}`
)

// Completer is the slice of the LLM client the enrichment stages need.
type Completer interface {
	Complete(ctx context.Context, p llm.Prompt) (string, error)
}

// Classifier tags events with their type.
type Classifier struct {
	llm Completer
	log zerolog.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(c Completer, log zerolog.Logger) *Classifier {
	return &Classifier{
		llm: c,
		log: log.With().Str("component", "classifier").Logger(),
	}
}

// Classify returns the event's type. Compilations and sub-events are the
// exception, so any call failure, parse failure, or unexpected response
// field resolves to TypeStandalone. Never returns an error.
func (c *Classifier) Classify(ctx context.Context, d event.Detail) event.Type {
	return fallible.Call(ctx, c.log, "classify", event.TypeStandalone,
		func(ctx context.Context) (event.Type, error) {
			raw, err := c.llm.Complete(ctx, llm.Prompt{
				Template: classifyTemplate,
				Version:  classifyTemplateVersion,
				Payload:  d,
			})
			if err != nil {
				return "", err
			}

			var out struct {
				EventType string `json:"event_type"`
			}
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return "", fmt.Errorf("parsing classification response: %w", err)
			}

			t := event.Type(out.EventType)
			if !t.Valid() {
				return "", fmt.Errorf("unexpected event_type %q", out.EventType)
			}
			return t, nil
		})
}
