package engine

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/verte-zerg/endure/internal/model"
)

// fixedDraw returns the lower bound of every range, the first scenario and a
// constant jitter.
type fixedDraw struct {
	jitter int
}

func (fixedDraw) SecondsInRange(r model.TimeRange) int { return r.MinSeconds }

func (fixedDraw) PickScenario(s []model.Scenario) (model.Scenario, bool) {
	if len(s) == 0 {
		return model.Scenario{}, false
	}
	return s[0], true
}

func (d fixedDraw) Jitter(maxSeconds int) int { return min(d.jitter, max(0, maxSeconds)) }

type recordingCues struct {
	mu     sync.Mutex
	played []string
	fail   map[string]error
}

func (r *recordingCues) Play(_ context.Context, cue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, cue)
	return r.fail[cue]
}

func (r *recordingCues) Played() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.played...)
}

type countingHaptics struct {
	mu     sync.Mutex
	pulses int
}

func (h *countingHaptics) Pulse(time.Duration) {
	h.mu.Lock()
	h.pulses++
	h.mu.Unlock()
}

func (h *countingHaptics) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pulses
}

type recordingSink struct {
	mu       sync.Mutex
	sessions []model.SessionStats
}

func (s *recordingSink) RecordSession(_ context.Context, st model.SessionStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, st)
	return nil
}

func (s *recordingSink) Sessions() []model.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SessionStats(nil), s.sessions...)
}

func fixedRange(n int) model.TimeRange {
	return model.TimeRange{MinSeconds: n, MaxSeconds: n}
}

// fakeClock is the part of the clockwork fake clock the tests drive.
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntil(n int)
}

var epochStart = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

func newFakeClock() fakeClock {
	return clockwork.NewFakeClockAt(epochStart)
}

// step waits for a single sleeper and then moves the clock past it.
func step(clk fakeClock, waits ...time.Duration) {
	for _, d := range waits {
		clk.BlockUntil(1)
		clk.Advance(d)
	}
}
