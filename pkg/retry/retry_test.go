package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

// recordSleep returns a Sleep func that records delays without waiting.
func recordSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestDo_NoRetryOnSuccess(t *testing.T) {
	calls := 0
	var delays []time.Duration
	p := Policy{Retries: 3, Backoff: time.Second, Sleep: recordSleep(&delays)}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if len(delays) != 0 {
		t.Fatalf("expected no sleeps, got %v", delays)
	}
}

func TestDo_ClientErrorIsFinal(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404, 429, 499} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			calls := 0
			var delays []time.Duration
			p := Policy{Retries: 3, Backoff: time.Second, Sleep: recordSleep(&delays)}

			err := p.Do(context.Background(), func(ctx context.Context) error {
				calls++
				return statusErr(code)
			})
			if calls != 1 {
				t.Fatalf("expected exactly 1 attempt, got %d", calls)
			}
			var sc StatusCoder
			if !errors.As(err, &sc) || sc.StatusCode() != code {
				t.Fatalf("expected status %d error, got %v", code, err)
			}
			if len(delays) != 0 {
				t.Fatalf("expected no backoff, got %v", delays)
			}
		})
	}
}

func TestDo_ServerErrorBacksOffAndDoubles(t *testing.T) {
	calls := 0
	var delays []time.Duration
	p := Policy{Retries: 4, Backoff: time.Second, Sleep: recordSleep(&delays)}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return statusErr(503)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
	var sc StatusCoder
	if !errors.As(err, &sc) || sc.StatusCode() != 503 {
		t.Fatalf("expected wrapped 503, got %v", err)
	}
}

func TestDo_TransientThenSuccess(t *testing.T) {
	calls := 0
	var delays []time.Duration
	p := Policy{Retries: 3, Backoff: 10 * time.Millisecond, Sleep: recordSleep(&delays)}

	got, err := Value(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "ok" {
		t.Fatalf("expected 'ok', got %q", got)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_CustomPredicate(t *testing.T) {
	calls := 0
	p := Policy{
		Retries:     5,
		Sleep:       func(context.Context, time.Duration) error { return nil },
		IsRetryable: func(error) bool { return false },
	}
	_ = p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return statusErr(500)
	})
	if calls != 1 {
		t.Fatalf("expected predicate to stop after 1 call, got %d", calls)
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{Retries: 3, Backoff: time.Hour}

	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return statusErr(500)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDelay(t *testing.T) {
	p := Policy{Backoff: time.Second, MaxBackoff: 5 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDefaultRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad request", statusErr(400), false},
		{"wrapped unauthorized", fmt.Errorf("gnews: %w", statusErr(401)), false},
		{"server error", statusErr(502), true},
		{"plain error", errors.New("unexpected EOF"), true},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryable(tt.err); got != tt.want {
				t.Errorf("DefaultRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
