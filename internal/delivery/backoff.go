// Package delivery drains the outbound notification queue.
package delivery

import "time"

const (
	backoffBase   = 5 * time.Minute
	backoffFactor = 3
)

// Backoff returns the delay before the next delivery attempt. attempts is
// the number of attempts already made, so the first retry waits 15 minutes,
// then 45, then 135.
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	d := backoffBase
	for range attempts {
		d *= backoffFactor
	}
	return d
}
