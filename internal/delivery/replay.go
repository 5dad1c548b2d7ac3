package delivery

import (
	"context"
	"time"
)

// Replay synthesizes a fresh queue entry from a completed or
// dead-lettered delivery, with attempt_count reset to 0 and
// next_attempt_at set to now. The caller is responsible for writing the
// operator.replay audit record that links originalDeliveryID to the
// returned entry's DeliveryID.
func (q *Queue) Replay(ctx context.Context, originalDeliveryID int64) (Entry, error) {
	original, err := q.GetCompleted(ctx, originalDeliveryID)
	if err != nil {
		return Entry{}, err
	}

	return q.Enqueue(ctx, Entry{
		AlertEventID:  original.AlertEventID,
		AlertPayload:  original.AlertPayload,
		WebhookURL:    original.WebhookURL,
		AttemptCount:  0,
		MaxAttempts:   DefaultMaxAttempts,
		NextAttemptAt: time.Now().UTC(),
	})
}
