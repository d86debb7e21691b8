package breaker

import (
	"errors"
	"testing"
	"time"
)

var (
	errRemote   = errors.New("remote failure")
	errFallback = errors.New("service unavailable")
	errNotFound = errors.New("not found")
)

func newTestBreaker(maxFailures int, resetTimeout time.Duration) *Breaker {
	return New("test-op", func() error { return errFallback }, Options{
		MaxFailures:  maxFailures,
		ResetTimeout: resetTimeout,
		Trip: func(err error) bool {
			return err != nil && !errors.Is(err, errNotFound)
		},
	})
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errRemote }); !errors.Is(err, errRemote) {
			t.Fatalf("attempt %d: expected remote error, got %v", i, err)
		}
	}

	if b.State() != StateOpen {
		t.Fatalf("expected breaker open, got %s", b.State())
	}

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if called {
		t.Fatal("open breaker must not invoke the operation")
	}
	if !errors.Is(err, errFallback) {
		t.Fatalf("expected fallback error, got %v", err)
	}
}

func TestBreaker_HalfOpenTrialClosesOnSuccess(t *testing.T) {
	b := newTestBreaker(1, 10*time.Millisecond)

	_ = b.Execute(func() error { return errRemote })
	if b.State() != StateOpen {
		t.Fatalf("expected breaker open, got %s", b.State())
	}

	time.Sleep(20 * time.Millisecond)

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected breaker closed after trial success, got %s", b.State())
	}
}

func TestBreaker_HalfOpenTrialReopensOnFailure(t *testing.T) {
	b := newTestBreaker(1, 10*time.Millisecond)

	_ = b.Execute(func() error { return errRemote })
	time.Sleep(20 * time.Millisecond)

	if err := b.Execute(func() error { return errRemote }); !errors.Is(err, errRemote) {
		t.Fatalf("expected remote error from trial, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected breaker re-opened, got %s", b.State())
	}
}

func TestBreaker_BusinessErrorDoesNotTrip(t *testing.T) {
	b := newTestBreaker(1, time.Minute)

	for i := 0; i < 5; i++ {
		if err := b.Execute(func() error { return errNotFound }); !errors.Is(err, errNotFound) {
			t.Fatalf("expected not-found passthrough, got %v", err)
		}
	}

	if b.State() != StateClosed {
		t.Fatalf("not-found responses must not open the breaker, got %s", b.State())
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker(2, time.Minute)

	_ = b.Execute(func() error { return errRemote })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return errRemote })

	if b.State() != StateClosed {
		t.Fatalf("non-consecutive failures must not open the breaker, got %s", b.State())
	}
}
