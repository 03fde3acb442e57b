package live

import (
	"context"
	"time"

	"github.com/vozcredit/voz-gateway/pkg/core"
)

// RetryPolicy bounds the retry loop around the interpret call. Transcription
// is deliberately never retried: a bad transcription is cheaper to fix by
// re-speaking, while the interpret call carries accumulated context and is
// worth retrying.
type RetryPolicy struct {
	MaxRetries int           `json:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay"`
	Multiplier float64       `json:"multiplier"`
}

// DefaultRetryPolicy returns the policy used for interpret calls: two extra
// attempts with exponential backoff starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: 500 * time.Millisecond, Multiplier: 2}
}

// Do runs fn up to MaxRetries+1 times, sleeping BaseDelay*Multiplier^i
// between attempts. Non-retryable errors and context cancellation stop the
// loop immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	delay := p.BaseDelay
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= p.MaxRetries || !core.IsRetryable(err) {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if p.Multiplier > 0 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}
}
