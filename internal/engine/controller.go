// Package engine schedules the two interval timers of a session and
// serializes their cue sequences through a single gate.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/endure/internal/generator"
	"github.com/verte-zerg/endure/internal/model"
)

// Sequence timing defaults.
const (
	DefaultCooldown  = 5 * time.Second
	DefaultWarnDelay = 6 * time.Second
)

// DefaultScenarios is the built-in timer-2 scenario set.
func DefaultScenarios() []model.Scenario {
	return []model.Scenario{
		{Name: "s1", WarnCue: "pop_warn_s1", DelayAfterSecond: 4, BaseWait: 6, JitterMax: 4},
		{Name: "s2", WarnCue: "pop_warn_s2", DelayAfterSecond: 8, BaseWait: 10, JitterMax: 10},
		{Name: "s3", WarnCue: "pop_warn_s3", DelayAfterSecond: 12, BaseWait: 15, JitterMax: 15},
	}
}

// Options wires a Controller to its collaborators.
type Options struct {
	Clock     clockwork.Clock
	Draw      RandomDraw
	Gate      *Gate
	Cues      CueSink
	Haptics   HapticSink
	Stats     StatsSink
	Scenarios []model.Scenario
	Cooldown  time.Duration
	WarnDelay time.Duration
	Logger    zerolog.Logger
}

// TimerView is the display state of one timer.
type TimerView struct {
	Enabled    bool
	Seconds    int
	Label      string
	Pending    bool
	InSequence bool
	Frozen     bool
}

// Text renders the label if one is active, otherwise the countdown.
func (v TimerView) Text() string {
	if !v.Enabled {
		return "-"
	}
	if v.Label != "" {
		return v.Label
	}
	return formatSeconds(v.Seconds)
}

// View is what the presentation layer needs after each tick.
type View struct {
	Initialized     bool
	Running         bool
	Timer1          TimerView
	Timer2          TimerView
	Repeats         int
	MaxRepeats      int
	LimitArmed      bool
	Timer2Sequences int
	GateBusy        bool
	CooldownUntil   time.Time
}

// Controller owns both interval timers of a session. Its methods are safe
// to call from the tick goroutine while sequences run on their own
// goroutines; the mutex is never held across a cue or a wait.
type Controller struct {
	clock     clockwork.Clock
	draw      RandomDraw
	gate      *Gate
	runner    *Runner
	haptics   HapticSink
	sink      StatsSink
	scenarios []model.Scenario
	cooldown  time.Duration
	warnDelay time.Duration
	log       zerolog.Logger

	mu                sync.Mutex
	cfg               *model.SessionConfig
	running           bool
	startedAt         time.Time
	t1                *IntervalTimer
	t2                *IntervalTimer
	limit             repeatLimit
	stats             statsAccumulator
	epoch             uint64
	ctx               context.Context
	cancel            context.CancelFunc
	resetWhileStopped bool

	wg sync.WaitGroup
}

// New builds a Controller. Initialize must be called before it does anything.
func New(opts Options) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	gate := opts.Gate
	if gate == nil {
		gate = NewGate(clock)
	}
	haptics := opts.Haptics
	if haptics == nil {
		haptics = noHaptics{}
	}
	draw := opts.Draw
	if draw == nil {
		draw = generator.New()
	}
	scenarios := opts.Scenarios
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	return &Controller{
		clock:     clock,
		draw:      draw,
		gate:      gate,
		runner:    NewRunner(clock, opts.Cues, haptics, opts.Logger),
		haptics:   haptics,
		sink:      opts.Stats,
		scenarios: append([]model.Scenario(nil), scenarios...),
		cooldown:  opts.Cooldown,
		warnDelay: opts.WarnDelay,
		log:       opts.Logger,
	}
}

// Initialize starts a new stopped session with freshly drawn durations. Any
// sequence of a previous session is cancelled.
func (c *Controller) Initialize(cfg model.SessionConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg.Timer1MaxRepeats < 1 {
		cfg.Timer1MaxRepeats = 1
	}
	c.cfg = &cfg
	c.newScope()
	c.epoch++
	c.running = false
	c.startedAt = time.Time{}
	c.resetWhileStopped = false
	c.limit = repeatLimit{max: cfg.Timer1MaxRepeats}
	c.stats = statsAccumulator{}

	now := c.now()
	c.t1 = newIntervalTimer(c.draw, cfg.Timer1Range)
	c.t1.Arm(now, false)
	c.t2 = newIntervalTimer(c.draw, cfg.Timer2Range)
	if cfg.Timer2Enabled {
		c.t2.Arm(now, false)
	}
	c.log.Info().
		Int("timer1_min", cfg.Timer1Range.MinSeconds).
		Int("timer1_max", cfg.Timer1Range.MaxSeconds).
		Int("timer1_max_repeats", cfg.Timer1MaxRepeats).
		Bool("timer2_enabled", cfg.Timer2Enabled).
		Msg("session initialized")
}

// StartPause toggles between running and paused.
func (c *Controller) StartPause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg == nil {
		return
	}
	now := c.now()
	if c.running {
		c.pause(now)
		return
	}
	c.start(now)
}

// Running reports whether the countdowns are advancing.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Reset redraws both timers and clears every flag and the repeat count.
// Statistics are kept. A sequence in flight finishes but no longer touches
// session state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg == nil {
		return
	}
	now := c.now()
	c.epoch++
	c.t1.clearFlags()
	c.t2.clearFlags()
	c.limit.count = 0
	c.limit.armed = false

	c.t1.Arm(now, c.running)
	if c.cfg.Timer2Enabled {
		c.t2.Arm(now, c.running)
	}
	if !c.running {
		c.resetWhileStopped = true
	}
	c.log.Info().Bool("running", c.running).Msg("session reset")
}

// End pauses the session, freezes its statistics and hands them to the
// stats sink. It returns the zero value before Initialize.
func (c *Controller) End() model.SessionStats {
	c.mu.Lock()
	if c.cfg == nil {
		c.mu.Unlock()
		return model.SessionStats{}
	}
	now := c.now()
	if c.running {
		c.pause(now)
	}
	startedAt := c.startedAt
	if startedAt.IsZero() {
		startedAt = now
	}
	snap := c.stats.snapshot(*c.cfg, c.limit.max, startedAt, now)
	sink := c.sink
	c.mu.Unlock()

	c.log.Info().
		Int("timer1_max_repeats_reached", snap.Timer1MaxRepeatsReached).
		Int("timer2_sequences", snap.Timer2SequenceCount).
		Msg("session ended")
	if sink != nil {
		if err := sink.RecordSession(context.Background(), snap); err != nil {
			c.log.Error().Err(err).Msg("failed to record session stats")
		}
	}
	return snap
}

// Advance evaluates both timers against now, dispatches at most one pending
// sequence and returns the display state.
func (c *Controller) Advance(now time.Time) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg == nil {
		return View{}
	}
	now = now.UTC()
	if c.running {
		if c.t1.Evaluate(now) {
			c.log.Debug().Msg("timer1 due")
		}
		if c.cfg.Timer2Enabled && c.t2.Evaluate(now) {
			c.log.Debug().Msg("timer2 due")
		}
		c.dispatch(now)
	}
	return c.view(now)
}

// Close cancels the session scope. Sequences in flight unwind without
// touching statistics.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Wait blocks until every dispatched sequence goroutine has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// GateBusy reports whether a sequence or its cooldown holds the gate.
func (c *Controller) GateBusy() bool {
	return c.gate.IsBusy()
}

func (c *Controller) start(now time.Time) {
	c.haptics.Pulse(HapticPulse)
	if c.resetWhileStopped {
		c.newScope()
		c.resetWhileStopped = false
	}
	if c.startedAt.IsZero() {
		c.startedAt = now
	}
	if c.t1.counting() {
		c.t1.RestoreFromStored(now)
	}
	if c.cfg.Timer2Enabled && c.t2.counting() {
		c.t2.RestoreFromStored(now)
	}
	c.running = true
	c.log.Info().Msg("session started")
}

func (c *Controller) pause(now time.Time) {
	if c.t1.counting() {
		c.t1.CaptureRemaining(now)
	}
	if c.cfg.Timer2Enabled && c.t2.counting() {
		c.t2.CaptureRemaining(now)
	}
	c.running = false
	c.log.Info().
		Int("timer1_remaining", c.t1.stored).
		Int("timer2_remaining", c.t2.stored).
		Msg("session paused")
}

// dispatch starts one pending sequence if nothing holds the gate. Timer 2
// goes first because its script freezes timer 1.
func (c *Controller) dispatch(now time.Time) {
	if c.gate.IsBusy() || c.t1.inSequence || c.t2.inSequence {
		return
	}
	if c.cfg.Timer2Enabled && c.t2.pending {
		c.startTimer2(now)
		return
	}
	if c.t1.pending && !c.t1.frozen {
		c.startTimer1()
	}
}

func (c *Controller) startTimer1() {
	armed := c.limit.armed
	c.t1.pending = false
	c.t1.inSequence = true
	c.t1.label = timer1Steps(armed)[0].Label
	c.t1.Park()

	c.wg.Add(1)
	go c.runTimer1(c.ctx, c.epoch)
	c.log.Debug().Bool("limit", armed).Msg("timer1 sequence dispatched")
}

func (c *Controller) runTimer1(ctx context.Context, epoch uint64) {
	defer c.wg.Done()

	err := c.gate.Run(ctx, func(ctx context.Context) error {
		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			return ErrStaleSequence
		}
		armed := c.limit.armed
		c.mu.Unlock()

		if err := c.runner.Run(ctx, timer1Steps(armed), c.publisher(c.t1, epoch)); err != nil {
			return err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch {
			return ErrStaleSequence
		}
		count := c.limit.advance(armed)
		c.stats.recordRepeat(count)
		return nil
	}, c.cooldown)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finishSequence(c.t1, epoch, err, "timer1") {
		return
	}
	c.t1.Arm(c.now(), c.running)
}

func (c *Controller) startTimer2(now time.Time) {
	sc, ok := c.draw.PickScenario(c.scenarios)
	if !ok {
		c.t2.pending = false
		c.t2.Arm(now, c.running)
		c.log.Warn().Msg("no timer2 scenarios configured")
		return
	}
	jitter := c.draw.Jitter(sc.JitterMax)

	c.freezeTimer1(now)
	c.t2.pending = false
	c.t2.inSequence = true
	c.t2.label = LabelWarn
	c.t2.Park()

	c.wg.Add(1)
	go c.runTimer2(c.ctx, c.epoch, sc, jitter)
	c.log.Debug().Str("scenario", sc.Name).Int("jitter", jitter).Msg("timer2 sequence dispatched")
}

func (c *Controller) runTimer2(ctx context.Context, epoch uint64, sc model.Scenario, jitter int) {
	defer c.wg.Done()

	steps := timer2Steps(sc, c.warnDelay, jitter)
	err := c.gate.Run(ctx, func(ctx context.Context) error {
		c.mu.Lock()
		stale := c.epoch != epoch
		c.mu.Unlock()
		if stale {
			return ErrStaleSequence
		}
		return c.runner.Run(ctx, steps, c.publisher(c.t2, epoch))
	}, c.cooldown)

	c.mu.Lock()
	defer c.mu.Unlock()
	completed := c.finishSequence(c.t2, epoch, err, "timer2")
	if c.epoch != epoch {
		return
	}
	now := c.now()
	if completed {
		c.t2.Arm(now, c.running)
		c.stats.recordTimer2(sc, c.warnDelay, jitter)
	}
	c.unfreezeTimer1(now)
}

// finishSequence clears the in-sequence state of t and reports whether the
// completion may re-arm timers and record statistics. Callers hold c.mu.
func (c *Controller) finishSequence(t *IntervalTimer, epoch uint64, err error, name string) bool {
	if c.epoch != epoch {
		c.log.Debug().Str("timer", name).Msg("stale sequence finished")
		return false
	}
	t.inSequence = false
	t.label = ""
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.log.Debug().Str("timer", name).Msg("sequence cancelled")
		} else {
			c.log.Warn().Err(err).Str("timer", name).Msg("sequence aborted")
		}
		return false
	}
	return true
}

func (c *Controller) freezeTimer1(now time.Time) {
	if c.t1.frozen {
		return
	}
	if c.running && c.t1.counting() {
		c.t1.CaptureRemaining(now)
	}
	c.t1.stored = max(0, c.t1.stored)
	c.t1.frozen = true
	c.t1.label = LabelWait
	c.t1.Park()
}

func (c *Controller) unfreezeTimer1(now time.Time) {
	if !c.t1.frozen {
		return
	}
	c.t1.frozen = false
	c.t1.label = ""
	if c.running && c.t1.counting() {
		c.t1.RestoreFromStored(now)
	} else {
		c.t1.Park()
	}
}

func (c *Controller) publisher(t *IntervalTimer, epoch uint64) func(string) {
	return func(label string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch == epoch {
			t.label = label
		}
	}
}

func (c *Controller) view(now time.Time) View {
	v := View{
		Initialized:     true,
		Running:         c.running,
		Timer1:          timerView(c.t1, now, c.running, true),
		Timer2:          timerView(c.t2, now, c.running, c.cfg.Timer2Enabled),
		Repeats:         c.limit.count,
		MaxRepeats:      c.limit.max,
		LimitArmed:      c.limit.armed,
		Timer2Sequences: c.stats.timer2Sequences,
		GateBusy:        c.gate.IsBusy(),
	}
	if until, ok := c.gate.BusyUntil(); ok {
		v.CooldownUntil = until
	}
	return v
}

func timerView(t *IntervalTimer, now time.Time, running, enabled bool) TimerView {
	v := TimerView{
		Enabled:    enabled,
		Pending:    t.pending,
		InSequence: t.inSequence,
		Frozen:     t.frozen,
	}
	if !enabled {
		return v
	}
	v.Seconds = t.RemainingSeconds(now, running)
	v.Label = t.label
	if v.Label == "" && t.inSequence {
		v.Label = LabelWait
	}
	return v
}

func (c *Controller) newScope() {
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
}

func (c *Controller) now() time.Time {
	return c.clock.Now().UTC()
}
