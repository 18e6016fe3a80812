package core

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestTask_AgeNs(t *testing.T) {
	task := &Task{ID: uuid.New(), SubmissionTimeNs: 1000}

	if got := task.AgeNs(1500); got != 500 {
		t.Errorf("AgeNs(1500) = %d, want 500", got)
	}
	if got := task.AgeNs(1000); got != 0 {
		t.Errorf("AgeNs(1000) = %d, want 0", got)
	}
}

func TestTaskMode_String(t *testing.T) {
	if got := NonBlocking.String(); got != "NonBlocking" {
		t.Errorf("NonBlocking.String() = %q, want NonBlocking", got)
	}
	if got := ProbablyBlocking.String(); got != "ProbablyBlocking" {
		t.Errorf("ProbablyBlocking.String() = %q, want ProbablyBlocking", got)
	}
}

func TestWorkerFromContext_NilWhenAbsent(t *testing.T) {
	if w := WorkerFromContext(context.Background()); w != nil {
		t.Errorf("WorkerFromContext(background) = %v, want nil", w)
	}
}

func TestWorkerFromContext_RoundTrip(t *testing.T) {
	w := &Worker{index: 3}
	ctx := contextForWorker(context.Background(), w)

	got := WorkerFromContext(ctx)
	if got != w {
		t.Errorf("WorkerFromContext round-trip = %v, want %v", got, w)
	}
}
