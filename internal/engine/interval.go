package engine

import (
	"math"
	"time"

	"github.com/verte-zerg/endure/internal/model"
)

// never is the due time of a timer that must not fire.
var never = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// IntervalTimer is the countdown state of one logical timer. Either dueAt or
// stored is authoritative at any instant: dueAt while the timer counts down,
// stored while it is paused, frozen, idle or running its sequence.
type IntervalTimer struct {
	draw  RandomDraw
	span  model.TimeRange
	drawn int

	dueAt  time.Time
	stored int

	pending    bool
	inSequence bool
	frozen     bool
	label      string
}

func newIntervalTimer(draw RandomDraw, span model.TimeRange) *IntervalTimer {
	return &IntervalTimer{draw: draw, span: span, dueAt: never}
}

// Arm draws a fresh duration into stored and anchors dueAt to now when the
// timer is counting. Otherwise dueAt is parked at never.
func (t *IntervalTimer) Arm(now time.Time, running bool) int {
	t.drawn = t.draw.SecondsInRange(t.span)
	t.stored = t.drawn
	if running && t.counting() {
		t.dueAt = now.Add(seconds(t.stored))
	} else {
		t.dueAt = never
	}
	return t.drawn
}

// Evaluate marks the timer pending the first time now reaches dueAt.
func (t *IntervalTimer) Evaluate(now time.Time) bool {
	if t.pending || !t.counting() {
		return false
	}
	if now.Before(t.dueAt) {
		return false
	}
	t.pending = true
	return true
}

// RemainingSeconds is the ceiling of the time left, never negative.
func (t *IntervalTimer) RemainingSeconds(now time.Time, running bool) int {
	if running && t.counting() && !t.dueAt.Equal(never) {
		return ceilSeconds(t.dueAt.Sub(now))
	}
	return max(0, t.stored)
}

// CaptureRemaining snapshots the countdown into stored and parks dueAt.
func (t *IntervalTimer) CaptureRemaining(now time.Time) {
	if !t.dueAt.Equal(never) {
		t.stored = ceilSeconds(t.dueAt.Sub(now))
	}
	t.dueAt = never
}

// RestoreFromStored re-anchors dueAt so exactly stored seconds remain.
func (t *IntervalTimer) RestoreFromStored(now time.Time) {
	t.dueAt = now.Add(seconds(max(0, t.stored)))
}

// Park stops the countdown without touching stored.
func (t *IntervalTimer) Park() {
	t.dueAt = never
}

func (t *IntervalTimer) counting() bool {
	return !t.inSequence && !t.frozen
}

func (t *IntervalTimer) clearFlags() {
	t.pending = false
	t.inSequence = false
	t.frozen = false
	t.label = ""
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
