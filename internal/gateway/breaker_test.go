package gateway

import (
	"testing"
	"time"
)

func testBreaker() (*Breaker, *time.Time) {
	now := time.Unix(1000, 0)
	b := NewBreaker(0, 0, 0)
	b.now = func() time.Time { return now }
	return b, &now
}

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.RecordFailure()
	}
}

func TestBreaker_OpensAfterFailureThreshold(t *testing.T) {
	b, _ := testBreaker()
	failN(b, 4)
	if b.State() != StateClosed {
		t.Fatalf("state=%v after 4 failures, want closed", b.State())
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("state=%v after 5 failures, want open", b.State())
	}
	if b.Allow() {
		t.Error("open breaker must fail fast")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := testBreaker()
	failN(b, 4)
	b.RecordSuccess()
	failN(b, 4)
	if b.State() != StateClosed {
		t.Errorf("state=%v, want closed: success resets the counter", b.State())
	}
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b, now := testBreaker()
	failN(b, 5)
	if b.Allow() {
		t.Fatal("expected fail-fast before timeout")
	}
	*now = now.Add(29 * time.Second)
	if b.Allow() {
		t.Fatal("timeout has not elapsed yet")
	}
	*now = now.Add(2 * time.Second)
	if !b.Allow() {
		t.Fatal("expected probe after timeout")
	}
	if b.State() != StateHalfOpen {
		t.Errorf("state=%v, want half_open", b.State())
	}
}

func TestBreaker_ClosesAfterHalfOpenSuccesses(t *testing.T) {
	b, now := testBreaker()
	failN(b, 5)
	*now = now.Add(31 * time.Second)
	b.Allow()
	b.RecordSuccess()
	if b.State() != StateHalfOpen {
		t.Fatalf("state=%v after 1 success, want half_open", b.State())
	}
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("state=%v after 2 successes, want closed", b.State())
	}
	// Counters are reset: it takes the full threshold to open again.
	failN(b, 4)
	if b.State() != StateClosed {
		t.Errorf("state=%v, want closed after recovery reset", b.State())
	}
}

func TestBreaker_HalfOpenBoundsInFlightProbes(t *testing.T) {
	b, now := testBreaker()
	failN(b, 5)
	*now = now.Add(31 * time.Second)

	// The transition itself admits the first probe; one more slot remains.
	if !b.Allow() {
		t.Fatal("expected first probe")
	}
	if !b.Allow() {
		t.Fatal("expected second probe")
	}
	if b.Allow() {
		t.Fatal("third concurrent probe must be rejected")
	}

	// A completed probe frees its slot.
	b.RecordSuccess()
	if !b.Allow() {
		t.Fatal("expected probe slot after success")
	}
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("state=%v, want closed", b.State())
	}
	if !b.Allow() {
		t.Error("closed breaker admits all requests")
	}
}

func TestBreaker_SingleFailureInHalfOpenReopens(t *testing.T) {
	b, now := testBreaker()
	failN(b, 5)
	*now = now.Add(31 * time.Second)
	b.Allow()
	b.RecordSuccess()
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("state=%v, want open after half-open failure", b.State())
	}
	if b.Allow() {
		t.Error("expected fail-fast after reopening")
	}
}
