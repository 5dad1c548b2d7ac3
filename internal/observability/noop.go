package observability

import (
	"context"
	"time"
)

// NoopRecorder discards every measurement. Used in tests and whenever the
// OTel meter provider can't be constructed.
type NoopRecorder struct{}

func (NoopRecorder) RecordIngest(context.Context, string, error)                 {}
func (NoopRecorder) RecordEvaluatorTick(context.Context, int, int, time.Duration) {}
func (NoopRecorder) RecordDispatchAttempt(context.Context, string, time.Duration) {}
func (NoopRecorder) RecordFanoutDrop(context.Context, string)                    {}
