package util

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Hour, time.Hour, nil, zap.NewNop())

	if !cb.CanExecute() {
		t.Fatal("new breaker must start CLOSED")
	}

	cb.RecordFailure(0)
	cb.RecordFailure(0)
	if !cb.CanExecute() {
		t.Fatal("breaker opened before reaching the threshold")
	}

	cb.RecordFailure(0)
	if cb.CanExecute() {
		t.Fatal("breaker must be OPEN after the third failure")
	}

	status := cb.GetStatus()
	if status.State != CircuitStateOpen || status.FailureCount != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.NextRetryTime == nil {
		t.Fatal("OPEN status must expose the next retry time")
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Hour, time.Hour, nil, zap.NewNop())

	cb.RecordFailure(0)
	cb.RecordFailure(0)
	cb.RecordSuccess()

	cb.RecordFailure(0)
	cb.RecordFailure(0)
	if !cb.CanExecute() {
		t.Fatal("success must reset the failure count")
	}
}

func TestCircuitBreakerTimeBasedRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Millisecond, time.Hour, nil, zap.NewNop())

	cb.RecordFailure(0)
	if cb.CanExecute() {
		t.Fatal("breaker must be OPEN after reaching the threshold")
	}

	time.Sleep(5 * time.Millisecond)
	if !cb.CanExecute() {
		t.Fatal("breaker must go HALF_OPEN after the reset timeout")
	}
	if cb.GetState() != CircuitStateHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", cb.GetState())
	}

	cb.RecordSuccess()
	if cb.GetState() != CircuitStateClosed {
		t.Fatalf("expected CLOSED after recovery, got %s", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Millisecond, time.Hour, nil, zap.NewNop())

	cb.RecordFailure(0)
	time.Sleep(5 * time.Millisecond)
	if cb.GetState() != CircuitStateHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", cb.GetState())
	}

	cb.RecordFailure(time.Hour)
	if cb.CanExecute() {
		t.Fatal("failure during recovery must reopen the circuit")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour, time.Hour, nil, zap.NewNop())

	cb.RecordFailure(0)
	if cb.CanExecute() {
		t.Fatal("breaker must be OPEN")
	}

	cb.Reset()
	if !cb.CanExecute() || cb.GetStatus().FailureCount != 0 {
		t.Fatal("manual reset must close the circuit and clear failures")
	}
}
