package worker

import (
	"testing"
	"time"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	if d := policy.NextDelay(1); d != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d)
	}
	if d := policy.NextDelay(2); d != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d)
	}
	if d := policy.NextDelay(5); d != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d)
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	var policy RetryPolicy
	if d := policy.NextDelay(0); d != time.Second {
		t.Fatalf("expected default 1s, got %s", d)
	}
	if d := policy.NextDelay(3); d != 4*time.Second {
		t.Fatalf("expected 4s with default factor, got %s", d)
	}
}

func TestRetryPolicyJitterStaysInBounds(t *testing.T) {
	policy := TransactionRetryPolicy(3, 10*time.Millisecond)
	for i := 0; i < 100; i++ {
		d := policy.NextDelay(2)
		if d < 15*time.Millisecond || d > 25*time.Millisecond {
			t.Fatalf("attempt2 delay %s outside jitter bounds", d)
		}
	}
	if d := policy.NextDelay(10); d > policy.MaxDelay {
		t.Fatalf("delay %s exceeds cap %s", d, policy.MaxDelay)
	}
}
