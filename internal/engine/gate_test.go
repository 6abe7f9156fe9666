package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateBusyDuringBodyAndCooldown(t *testing.T) {
	clk := newFakeClock()
	g := NewGate(clk)

	if g.IsBusy() {
		t.Fatalf("new gate should be free")
	}
	var busyInBody bool
	done := make(chan error, 1)
	go func() {
		done <- g.Run(context.Background(), func(context.Context) error {
			busyInBody = g.IsBusy()
			return nil
		}, 5*time.Second)
	}()

	clk.BlockUntil(1)
	if !g.IsBusy() {
		t.Fatalf("gate should be busy during cooldown")
	}
	until, ok := g.BusyUntil()
	if !ok || !until.Equal(epochStart.Add(5*time.Second)) {
		t.Fatalf("busy until = %v, %v", until, ok)
	}

	clk.Advance(5 * time.Second)
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if !busyInBody {
		t.Fatalf("gate should be busy while the body runs")
	}
	if g.IsBusy() {
		t.Fatalf("gate should be free after cooldown")
	}
	if _, ok := g.BusyUntil(); ok {
		t.Fatalf("free gate should not report a cooldown")
	}
}

func TestGateBodyErrorSkipsCooldown(t *testing.T) {
	g := NewGate(newFakeClock())
	boom := errors.New("boom")

	err := g.Run(context.Background(), func(context.Context) error { return boom }, time.Hour)
	if !errors.Is(err, boom) {
		t.Fatalf("expected body error, got %v", err)
	}
	if g.IsBusy() {
		t.Fatalf("gate should be free after a failed body")
	}
}

func TestGateCancelDuringCooldown(t *testing.T) {
	clk := newFakeClock()
	g := NewGate(clk)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- g.Run(ctx, func(context.Context) error { return nil }, 5*time.Second)
	}()
	clk.BlockUntil(1)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if g.IsBusy() {
		t.Fatalf("gate should be free after cancellation")
	}
}

func TestGateCancelDuringBody(t *testing.T) {
	g := NewGate(newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- g.Run(ctx, func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}, 5*time.Second)
	}()
	<-started
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if g.IsBusy() {
		t.Fatalf("gate should be free after cancellation")
	}
}

func TestGateReleasesSlotOnPanic(t *testing.T) {
	g := NewGate(newFakeClock())

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = g.Run(context.Background(), func(context.Context) error { panic("cue") }, time.Second)
	}()

	if g.IsBusy() {
		t.Fatalf("gate should be free after a panic")
	}
	ran := false
	if err := g.Run(context.Background(), func(context.Context) error {
		ran = true
		return errors.New("stop")
	}, 0); err == nil || !ran {
		t.Fatalf("gate should accept a new sequence after a panic")
	}
}

func TestGateSerializesSequences(t *testing.T) {
	clk := newFakeClock()
	g := NewGate(clk)

	release := make(chan struct{})
	firstStarted := make(chan struct{})
	var secondRan atomic.Bool

	first := make(chan error, 1)
	go func() {
		first <- g.Run(context.Background(), func(context.Context) error {
			close(firstStarted)
			<-release
			return nil
		}, 5*time.Second)
	}()
	<-firstStarted

	second := make(chan error, 1)
	go func() {
		second <- g.Run(context.Background(), func(context.Context) error {
			secondRan.Store(true)
			return nil
		}, 0)
	}()

	close(release)
	clk.BlockUntil(1)
	if secondRan.Load() {
		t.Fatalf("second sequence ran during the first cooldown")
	}
	clk.Advance(5 * time.Second)

	if err := <-first; err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second: %v", err)
	}
	if !secondRan.Load() {
		t.Fatalf("second sequence did not run")
	}
}

func TestGateWaitForSlotHonoursContext(t *testing.T) {
	g := NewGate(newFakeClock())
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = g.Run(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		}, 0)
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Run(ctx, func(context.Context) error { return nil }, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation while waiting, got %v", err)
	}
}
