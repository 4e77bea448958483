package httpdl

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPauseGate(t *testing.T) {
	g := NewPauseGate()
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("open gate: %v", err)
	}
	if !g.Pause() || g.Pause() {
		t.Fatal("Pause should report true once")
	}
	if !g.Paused() {
		t.Fatal("gate should be paused")
	}

	released := make(chan error, 1)
	go func() { released <- g.Wait(context.Background()) }()
	select {
	case <-released:
		t.Fatal("Wait returned while paused")
	case <-time.After(50 * time.Millisecond):
	}
	if !g.Resume() || g.Resume() {
		t.Fatal("Resume should report true once")
	}
	select {
	case err := <-released:
		if err != nil {
			t.Fatalf("Wait() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Resume")
	}
}

func TestPauseGateCancelWhilePaused(t *testing.T) {
	g := NewPauseGate()
	g.Pause()
	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan error, 1)
	go func() { released <- g.Wait(ctx) }()
	cancel()
	select {
	case err := <-released:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Wait() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait ignored cancellation")
	}
}

func TestNilPauseGate(t *testing.T) {
	var g *PauseGate
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("nil gate: %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("job failed: %w", mergeError("append part", base))
	if KindOf(err) != KindMerge {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	if !errors.Is(err, base) {
		t.Error("cause is not reachable through the chain")
	}
	if got := networkError("range request", base).Error(); got != "network error: range request: boom" {
		t.Errorf("Error() = %q", got)
	}
	if KindOf(base) != "" {
		t.Error("plain errors have no kind")
	}
}
