// Package fallible wraps calls to external services whose failures must
// never propagate. The classifier, geocoder, and copy enhancer all resolve
// errors to a caller-supplied fallback value at their boundary; this package
// is the single place that catch-and-default behavior lives.
package fallible

import (
	"context"

	"github.com/rs/zerolog"
)

// Call runs fn and returns its result, or fallback if fn returns an error.
// The error is logged at warn level with the operation name and never
// returned. A nil context check is deliberately absent: fn owns its ctx use.
func Call[R any](ctx context.Context, log zerolog.Logger, op string, fallback R, fn func(ctx context.Context) (R, error)) R {
	v, err := fn(ctx)
	if err != nil {
		log.Warn().Err(err).Str("op", op).Msg("external call failed, using fallback")
		return fallback
	}
	return v
}
