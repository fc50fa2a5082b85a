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
	// DefaultEmoji is used whenever the enhancer cannot produce one.
	DefaultEmoji = "📍"

	enhanceTemplateVersion = "v5"

	enhanceTemplate = `You are given one event record as JSON. Rewrite it for an event-discovery
app: a short inviting title, a two-sentence description, and a plain cost
line. Pick a single emoji that captures the event. Decide whether attending
requires an RSVP or a ticket.

Respond with JSON:
{"title": "...", "description": "...", "cost": "...",
 "rsvp_ticket_required": true|false, "emoji": "..."}`
)

// Copy is the user-facing rewrite of an event produced by the enhancer.
type Copy struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Cost         string `json:"cost"`
	RSVPRequired bool   `json:"rsvp_ticket_required"`
	Emoji        string `json:"emoji"`

	// Generated is true when the copy came from the service rather than the
	// fallback. The pipeline uses it to count real enhancements.
	Generated bool `json:"-"`
}

// Apply merges the copy into an enriched event, returning the rewritten
// record. Only the copy fields change; everything else carries over.
func (c Copy) Apply(e event.Enriched) event.Enriched {
	e.Title = c.Title
	e.Description = c.Description
	e.Cost = c.Cost
	e.RSVPRequired = c.RSVPRequired
	e.Emoji = c.Emoji
	return e
}

// Enhancer rewrites events into user-facing copy. It is only invoked for
// standalone and part-of-a-compilation events; compilations are aggregates
// and keep their scraped copy.
type Enhancer struct {
	llm Completer
	log zerolog.Logger
}

// NewEnhancer creates an Enhancer.
func NewEnhancer(c Completer, log zerolog.Logger) *Enhancer {
	return &Enhancer{
		llm: c,
		log: log.With().Str("component", "enhancer").Logger(),
	}
}

// Enhance returns the rewritten copy for an event. On any failure the
// original title, description, and cost come back verbatim with
// RSVPRequired false and the default emoji. Never returns an error.
func (e *Enhancer) Enhance(ctx context.Context, ev event.Enriched) Copy {
	fallback := Copy{
		Title:       ev.Title,
		Description: ev.Description,
		Cost:        ev.Cost,
		Emoji:       DefaultEmoji,
	}

	return fallible.Call(ctx, e.log, "enhance", fallback,
		func(ctx context.Context) (Copy, error) {
			raw, err := e.llm.Complete(ctx, llm.Prompt{
				Template: enhanceTemplate,
				Version:  enhanceTemplateVersion,
				Payload:  ev,
			})
			if err != nil {
				return Copy{}, err
			}

			var out Copy
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return Copy{}, fmt.Errorf("parsing enhancement response: %w", err)
			}
			if out.Title == "" || out.Description == "" {
				return Copy{}, fmt.Errorf("enhancement response missing title or description")
			}
			if out.Emoji == "" {
				out.Emoji = DefaultEmoji
			}
			out.Generated = true
			return out, nil
		})
}
