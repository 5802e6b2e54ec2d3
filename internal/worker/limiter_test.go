package worker

import (
	"testing"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_AllowPerClient(t *testing.T) {
	limiter := NewLimiter(0.001, 2)

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if limiter.Allow("10.0.0.1") {
		t.Error("expected third request to be denied")
	}

	// Another client has its own budget
	if !limiter.Allow("10.0.0.2") {
		t.Error("expected independent budget for second client")
	}

	if n := limiter.limiters.ItemCount(); n != 2 {
		t.Errorf("expected 2 tracked clients, got %d", n)
	}
}
