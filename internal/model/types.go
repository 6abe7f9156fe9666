// Package model defines shared data structures.
package model

import "time"

// TimeRange is an inclusive range of whole seconds.
type TimeRange struct {
	MinSeconds int
	MaxSeconds int
}

// Valid reports whether both bounds are positive and ordered.
func (r TimeRange) Valid() bool {
	return r.MinSeconds > 0 && r.MaxSeconds > 0 && r.MinSeconds <= r.MaxSeconds
}

// SessionConfig defines the settings of one game session.
type SessionConfig struct {
	Timer1Range      TimeRange
	Timer1MaxRepeats int
	Timer2Enabled    bool
	Timer2Range      TimeRange
}

// Scenario is one timer-2 script variant.
type Scenario struct {
	Name             string
	WarnCue          string
	DelayAfterSecond int
	BaseWait         int
	JitterMax        int
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Since *time.Time
	Last  int
}

// SessionStats is the immutable snapshot taken when a session ends.
type SessionStats struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Config    SessionConfig

	Timer1MaxRepeatsReached int
	Timer1FinalMaxRepeats   int

	Timer2Enabled        bool
	Timer2SequenceCount  int
	Timer2WarnDelaySum   int
	Timer2DelayAfter2Sum int
	Timer2BaseAfter3Sum  int
	Timer2JitterSum      int
}

// Duration returns the wall-clock span of the session.
func (s SessionStats) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}
