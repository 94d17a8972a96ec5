package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryWithBackoff(t *testing.T) {
	serverErr := &APIError{StatusCode: 500, Class: ErrorClassServer, Message: "boom"}
	clientErr := &APIError{StatusCode: 400, Class: ErrorClassClient, Message: "bad"}

	tests := []struct {
		name      string
		attempts  int
		results   []error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "success first try",
			attempts:  3,
			results:   []error{nil},
			wantCalls: 1,
		},
		{
			name:      "success after server error",
			attempts:  3,
			results:   []error{serverErr, nil},
			wantCalls: 2,
		},
		{
			name:      "client error not retried",
			attempts:  3,
			results:   []error{clientErr},
			wantCalls: 1,
			wantErr:   clientErr,
		},
		{
			name:      "exhausted",
			attempts:  2,
			results:   []error{serverErr, serverErr},
			wantCalls: 2,
			wantErr:   ErrRetryExhausted,
		},
		{
			name:      "unclassified error not retried",
			attempts:  3,
			results:   []error{context.DeadlineExceeded},
			wantCalls: 1,
			wantErr:   context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryWithBackoff(context.Background(), fastRetry(tt.attempts), zerolog.Nop(), func() error {
				res := tt.results[calls]
				calls++
				return res
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryWithBackoff_ExhaustedKeepsCause(t *testing.T) {
	serverErr := &APIError{StatusCode: 503, Class: ErrorClassServer, Message: "down"}
	err := retryWithBackoff(context.Background(), fastRetry(2), zerolog.Nop(), func() error {
		return serverErr
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 {
		t.Errorf("errors.As() did not find the last APIError in %v", err)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 2}

	calls := 0
	err := retryWithBackoff(ctx, cfg, zerolog.Nop(), func() error {
		calls++
		cancel()
		return &APIError{Class: ErrorClassNetwork, Message: "reset"}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryConfig_ForClass(t *testing.T) {
	base := DefaultRetryConfig()
	rl := base.forClass(ErrorClassRateLimit)
	if rl.InitialBackoff != 4*base.InitialBackoff || rl.MaxBackoff != 4*base.MaxBackoff {
		t.Errorf("forClass(rate_limit) = %+v", rl)
	}
	if base.forClass(ErrorClassServer) != base {
		t.Error("forClass(server) should not change the config")
	}
}
