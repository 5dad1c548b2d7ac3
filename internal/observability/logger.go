// Package observability wires structured logging and metrics for the
// Command Center. Logging uses zerolog (the corpus's dominant choice for
// production services); metrics use OpenTelemetry, left wired for whatever
// external collector operators attach — Prometheus scraping itself is an
// out-of-scope collaborator per the spec.
package observability

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. level accepts zerolog level names
// (debug, info, warn, error); unknown values fall back to info.
func NewLogger(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(w).Level(lvl).With().Timestamp().Caller().Logger()
}

// Component returns a child logger tagged with the owning subsystem, the
// same enrichment shape the teacher used for run/node context.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
