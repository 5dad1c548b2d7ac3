package ccerrors

import (
	"math/rand/v2"
	"time"
)

// DeliveryBackoff returns the capped-exponential backoff band for a
// delivery attempt, per the dispatcher's fixed schedule: attempt 1 -> 30s,
// 2 -> 2m, 3 -> 5m, 4 -> 15m, 5+ -> 30m. attempt is the attempt_count
// *after* the failure that is driving the reschedule (i.e. the value
// about to be stored on the queue row).
func DeliveryBackoff(attempt int) time.Duration {
	switch {
	case attempt <= 1:
		return 30 * time.Second
	case attempt == 2:
		return 2 * time.Minute
	case attempt == 3:
		return 5 * time.Minute
	case attempt == 4:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// Jitter adds up to 10% random delay on top of d. It never subtracts, so
// a rescheduled delivery never falls below the band floor it was
// computed from.
func Jitter(d time.Duration) time.Duration {
	delta := float64(d) * 0.10 * rand.Float64()
	return d + time.Duration(delta)
}
