package engine

import (
	"context"
	"time"

	"github.com/verte-zerg/endure/internal/model"
)

// CueSink plays a named audio cue. Play may block until the cue finishes or
// ctx is done.
type CueSink interface {
	Play(ctx context.Context, cue string) error
}

// HapticSink emits a short pulse. Implementations must not block.
type HapticSink interface {
	Pulse(d time.Duration)
}

// StatsSink receives the snapshot of an ended session.
type StatsSink interface {
	RecordSession(ctx context.Context, stats model.SessionStats) error
}

// RandomDraw supplies the random choices a session needs.
type RandomDraw interface {
	SecondsInRange(r model.TimeRange) int
	PickScenario(scenarios []model.Scenario) (model.Scenario, bool)
	Jitter(maxSeconds int) int
}

type silentCues struct{}

func (silentCues) Play(context.Context, string) error { return nil }

type noHaptics struct{}

func (noHaptics) Pulse(time.Duration) {}
