package engine

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/endure/internal/model"
)

// Cue ids played by the sequence scripts.
const (
	CueTick  = "inf_tick"
	CueLimit = "inf_limit"
	CueGo    = "pop_go"
	CueWait  = "pop_wait"
	CueEnd   = "pop_end"
)

// Status labels shown in place of a countdown.
const (
	LabelGo    = "GO"
	LabelReset = "RESET"
	LabelWait  = "WAIT"
	LabelWarn  = "WARN"
	LabelEnd   = "END"
)

// HapticPulse is the vibration length emitted before each cue.
const HapticPulse = 35 * time.Millisecond

// Step plays Cue under Label and then waits for Wait.
type Step struct {
	Label string
	Cue   string
	Wait  time.Duration
}

// Runner executes step scripts. Cue and haptic failures never abort a
// script; only cancellation does.
type Runner struct {
	clock   clockwork.Clock
	cues    CueSink
	haptics HapticSink
	log     zerolog.Logger
}

// NewRunner wires a runner to its sinks. Nil sinks are replaced by no-ops.
func NewRunner(clock clockwork.Clock, cues CueSink, haptics HapticSink, log zerolog.Logger) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cues == nil {
		cues = silentCues{}
	}
	if haptics == nil {
		haptics = noHaptics{}
	}
	return &Runner{clock: clock, cues: cues, haptics: haptics, log: log}
}

// Run plays steps in order, publishing each label before its cue.
func (r *Runner) Run(ctx context.Context, steps []Step, publish func(label string)) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if publish != nil {
			publish(step.Label)
		}
		r.haptics.Pulse(HapticPulse)
		if err := r.cues.Play(ctx, step.Cue); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn().Err(err).Str("cue", step.Cue).Msg("cue playback failed")
		}
		if err := sleep(ctx, r.clock, step.Wait); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func timer1Steps(limitArmed bool) []Step {
	if limitArmed {
		return []Step{{Label: LabelReset, Cue: CueLimit}}
	}
	return []Step{{Label: LabelGo, Cue: CueTick}}
}

func timer2Steps(sc model.Scenario, warnDelay time.Duration, jitter int) []Step {
	return []Step{
		{Label: LabelWarn, Cue: sc.WarnCue, Wait: warnDelay},
		{Label: LabelGo, Cue: CueGo, Wait: seconds(sc.DelayAfterSecond)},
		{Label: LabelWait, Cue: CueWait, Wait: seconds(sc.BaseWait + jitter)},
		{Label: LabelEnd, Cue: CueEnd},
	}
}
