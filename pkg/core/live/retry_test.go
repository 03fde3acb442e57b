package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vozcredit/voz-gateway/pkg/core"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: time.Millisecond, Multiplier: 2}
}

func TestRetryDoFirstTrySuccess(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryDoRetriesRetryable(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return core.NewOverloadedError("busy")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	wantErr := core.NewInvalidRequestError("bad payload")
	err := fastPolicy(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryDoExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := core.NewAPIError("upstream 500")
	err := fastPolicy(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial attempt plus two retries)", calls)
	}
}

func TestRetryDoUnknownErrorTreatedRetryable(t *testing.T) {
	calls := 0
	fastPolicy(1).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("connection reset")
	})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fastPolicy(5).Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return core.NewOverloadedError("busy")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
