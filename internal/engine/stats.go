package engine

import (
	"time"

	"github.com/verte-zerg/endure/internal/model"
)

// statsAccumulator collects per-session counters. Only completed sequences
// contribute.
type statsAccumulator struct {
	maxRepeatsReached int

	timer2Sequences int
	warnDelaySum    int
	delayAfter2Sum  int
	baseAfter3Sum   int
	jitterSum       int
}

func (a *statsAccumulator) recordRepeat(count int) {
	if count > a.maxRepeatsReached {
		a.maxRepeatsReached = count
	}
}

// recordTimer2 adds one finished timer-2 script. Jitter is summed apart from
// the base wait.
func (a *statsAccumulator) recordTimer2(sc model.Scenario, warnDelay time.Duration, jitter int) {
	a.timer2Sequences++
	a.warnDelaySum += int(warnDelay / time.Second)
	a.delayAfter2Sum += sc.DelayAfterSecond
	a.baseAfter3Sum += sc.BaseWait
	a.jitterSum += jitter
}

func (a statsAccumulator) snapshot(cfg model.SessionConfig, finalMaxRepeats int, startedAt, endedAt time.Time) model.SessionStats {
	return model.SessionStats{
		StartedAt:               startedAt,
		EndedAt:                 endedAt,
		Config:                  cfg,
		Timer1MaxRepeatsReached: a.maxRepeatsReached,
		Timer1FinalMaxRepeats:   finalMaxRepeats,
		Timer2Enabled:           cfg.Timer2Enabled,
		Timer2SequenceCount:     a.timer2Sequences,
		Timer2WarnDelaySum:      a.warnDelaySum,
		Timer2DelayAfter2Sum:    a.delayAfter2Sum,
		Timer2BaseAfter3Sum:     a.baseAfter3Sum,
		Timer2JitterSum:         a.jitterSum,
	}
}

// repeatLimit is timer 1's consecutive-repeat ceiling. The ceiling ratchets
// up by one each time it is hit.
type repeatLimit struct {
	count int
	max   int
	armed bool
}

// advance applies one finished timer-1 script that ran with the given armed
// state and returns the new repeat count.
func (l *repeatLimit) advance(ranArmed bool) int {
	if ranArmed {
		l.count = 0
		l.armed = false
		l.max++
		return l.count
	}
	if l.count < l.max {
		l.count++
	}
	if l.count >= l.max {
		l.armed = true
	}
	return l.count
}
