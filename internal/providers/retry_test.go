package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.BaseDelay <= 0 || cfg.MaxDelay <= 0 {
		t.Errorf("BaseDelay/MaxDelay must be positive, got %v/%v", cfg.BaseDelay, cfg.MaxDelay)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"empty", "", 0},
		{"valid seconds", "5", 5 * time.Second},
		{"negative", "-1", 0},
		{"non-numeric", "soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRetryAfter(tt.header); got != tt.want {
				t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := RetryDo(context.Background(), fastRetryConfig(), func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("RetryDo() error = %v", err)
	}
	if got != 42 {
		t.Errorf("RetryDo() = %d, want 42", got)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRetryDo_RetriesOnRetryableStatus(t *testing.T) {
	calls := 0
	got, err := RetryDo(context.Background(), fastRetryConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, &HTTPError{Status: 503, Body: "unavailable"}
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("RetryDo() error = %v", err)
	}
	if got != 7 {
		t.Errorf("RetryDo() = %d, want 7", got)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestRetryDo_ExhaustsAttemptsReturnsLastError(t *testing.T) {
	calls := 0
	_, err := RetryDo(context.Background(), fastRetryConfig(), func() (int, error) {
		calls++
		return 0, &HTTPError{Status: 500, Body: "boom"}
	})
	if err == nil {
		t.Fatal("RetryDo() error = nil, want the last HTTPError")
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want MaxAttempts=3", calls)
	}
}

func TestRetryDo_NonRetryableStatusStopsImmediately(t *testing.T) {
	calls := 0
	_, err := RetryDo(context.Background(), fastRetryConfig(), func() (int, error) {
		calls++
		return 0, &HTTPError{Status: 400, Body: "bad request"}
	})
	if err == nil {
		t.Fatal("RetryDo() error = nil, want the 400 HTTPError")
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1 (no retry on 400)", calls)
	}
}

func TestRetryDo_ContextCanceledAbortsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}

	_, err := RetryDo(ctx, cfg, func() (int, error) {
		calls++
		if calls == 1 {
			cancel()
		}
		return 0, &HTTPError{Status: 500, Body: "boom"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RetryDo() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1 (canceled before second attempt)", calls)
	}
}

func TestRetryDo_GenericOverDifferentReturnTypes(t *testing.T) {
	type payload struct{ Name string }
	got, err := RetryDo(context.Background(), fastRetryConfig(), func() (*payload, error) {
		return &payload{Name: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("RetryDo() error = %v", err)
	}
	if got == nil || got.Name != "ok" {
		t.Errorf("RetryDo() = %+v, want payload{Name: ok}", got)
	}
}
