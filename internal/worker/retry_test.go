package worker

import (
	"testing"
	"time"
)

func TestRetryPolicyExponentialBackoff(t *testing.T) {
	p := RetryPolicy{Base: 5 * time.Second, Max: 300 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 80 * time.Second},
		{5, 160 * time.Second},
		{6, 300 * time.Second}, // 320s capped
		{7, 300 * time.Second},
		{20, 300 * time.Second},
	}
	for _, tc := range cases {
		if got := p.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestRetryPolicyNegativeAttempt(t *testing.T) {
	p := RetryPolicy{Base: 5 * time.Second, Max: 300 * time.Second}
	if got := p.Delay(-3); got != 5*time.Second {
		t.Errorf("Delay(-3) = %v, want base", got)
	}
}

func TestRetryPolicyBaseAboveMax(t *testing.T) {
	p := RetryPolicy{Base: 10 * time.Minute, Max: 5 * time.Minute}
	if got := p.Delay(0); got != 5*time.Minute {
		t.Errorf("Delay(0) = %v, want max", got)
	}
}
