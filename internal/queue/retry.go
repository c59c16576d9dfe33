package queue

import (
	"time"

	"github.com/hibiken/asynq"
)

// Backoff returns the delay before redelivery after n previous retries:
// initial doubled n times, capped at max.
func Backoff(n int, initial, max time.Duration) time.Duration {
	if n < 0 {
		n = 0
	}
	d := initial
	for i := 0; i < n; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	return min(d, max)
}

// RetryDelay adapts Backoff to asynq's server-side retry hook.
func RetryDelay(initial, max time.Duration) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		return Backoff(n, initial, max)
	}
}
