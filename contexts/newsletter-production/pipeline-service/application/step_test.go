package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Delay: time.Millisecond, StepTimeout: time.Second}
}

func TestRunStepRetriesUntilSuccess(t *testing.T) {
	calls := 0
	step := Step{Name: "flaky", Critical: true, Run: func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}}

	if err := RunStep(context.Background(), nil, fastRetry(), step); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRunStepCriticalExhaustionFails(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	step := Step{Name: "broken", Critical: true, Run: func(context.Context) error {
		calls++
		return sentinel
	}}

	err := RunStep(context.Background(), nil, fastRetry(), step)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected retry budget of 3 attempts, got %d", calls)
	}
}

func TestRunStepNonCriticalExhaustionContinues(t *testing.T) {
	calls := 0
	step := Step{Name: "optional", Critical: false, Run: func(context.Context) error {
		calls++
		return errors.New("down")
	}}

	if err := RunStep(context.Background(), nil, fastRetry(), step); err != nil {
		t.Fatalf("non-critical exhaustion must not fail the run, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("non-critical steps still get the full budget, got %d attempts", calls)
	}
}

func TestRunStepCancellationSurfacesRegardlessOfCriticality(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	step := Step{Name: "optional", Critical: false, Run: func(context.Context) error {
		cancel()
		return errors.New("interrupted")
	}}

	err := RunStep(ctx, nil, fastRetry(), step)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunStepZeroPolicyUsesDefaultBudget(t *testing.T) {
	policy := RetryPolicy{}.normalized()
	if policy.MaxRetries != 2 {
		t.Fatalf("expected 2 retries by default, got %d", policy.MaxRetries)
	}
	if policy.Delay != 2*time.Second {
		t.Fatalf("expected fixed 2s delay, got %s", policy.Delay)
	}
	if policy.StepTimeout != 800*time.Second {
		t.Fatalf("expected 800s step timeout, got %s", policy.StepTimeout)
	}
}
