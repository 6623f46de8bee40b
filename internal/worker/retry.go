package worker

import "time"

// RetryPolicy computes the backoff delay before a failed job attempt is
// retried: base * 2^attempt, capped at max.
type RetryPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number attempt (0-based: the delay
// after the first failure is Base).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}
