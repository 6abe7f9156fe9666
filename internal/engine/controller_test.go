package engine

import (
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/endure/internal/model"
)

var s2 = model.Scenario{Name: "s2", WarnCue: "pop_warn_s2", DelayAfterSecond: 8, BaseWait: 10, JitterMax: 10}

type harness struct {
	clk   fakeClock
	c     *Controller
	cues  *recordingCues
	stats *recordingSink
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{clk: newFakeClock(), cues: &recordingCues{}, stats: &recordingSink{}}
	opts.Clock = h.clk
	if opts.Draw == nil {
		opts.Draw = fixedDraw{}
	}
	if opts.Cues == nil {
		opts.Cues = h.cues
	}
	opts.Stats = h.stats
	if opts.Cooldown == 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.WarnDelay == 0 {
		opts.WarnDelay = DefaultWarnDelay
	}
	opts.Logger = zerolog.Nop()
	h.c = New(opts)
	t.Cleanup(func() {
		h.c.Close()
		h.c.Wait()
	})
	return h
}

func (h *harness) tick() View {
	return h.c.Advance(h.clk.Now())
}

func TestControllerIgnoresOpsBeforeInitialize(t *testing.T) {
	h := newHarness(t, Options{})

	h.c.StartPause()
	h.c.Reset()
	if v := h.tick(); v.Initialized || v.Running {
		t.Fatalf("uninitialized view %+v", v)
	}
	if h.c.Running() {
		t.Fatalf("controller should not run before Initialize")
	}
	if got := h.c.End(); got != (model.SessionStats{}) {
		t.Fatalf("end before initialize = %+v", got)
	}
	if len(h.stats.Sessions()) != 0 {
		t.Fatalf("stats recorded before initialize")
	}
}

func TestControllerInitializeDisplaysStoppedTimers(t *testing.T) {
	h := newHarness(t, Options{})
	h.c.Initialize(model.SessionConfig{Timer1Range: fixedRange(30), Timer1MaxRepeats: 0})

	h.clk.Advance(time.Minute)
	v := h.tick()
	if v.Running {
		t.Fatalf("session should start stopped")
	}
	if v.Timer1.Seconds != 30 || v.Timer1.Text() != "30s" {
		t.Fatalf("timer1 %+v", v.Timer1)
	}
	if v.Timer2.Text() != "-" {
		t.Fatalf("disabled timer2 shows %q", v.Timer2.Text())
	}
	if v.MaxRepeats != 1 {
		t.Fatalf("max repeats %d, want clamp to 1", v.MaxRepeats)
	}
}

func TestControllerPauseResumeKeepsRemaining(t *testing.T) {
	h := newHarness(t, Options{})
	h.c.Initialize(model.SessionConfig{Timer1Range: fixedRange(40), Timer1MaxRepeats: 12})

	h.c.StartPause()
	h.clk.Advance(10 * time.Second)
	if v := h.tick(); v.Timer1.Seconds != 30 {
		t.Fatalf("running remaining %d, want 30", v.Timer1.Seconds)
	}

	h.c.StartPause()
	h.clk.Advance(10 * time.Second)
	if v := h.tick(); v.Running || v.Timer1.Seconds != 30 {
		t.Fatalf("paused view %+v", v.Timer1)
	}

	h.c.StartPause()
	if v := h.tick(); !v.Running || v.Timer1.Seconds != 30 {
		t.Fatalf("resumed view %+v", v.Timer1)
	}
	h.clk.Advance(29 * time.Second)
	if v := h.tick(); v.Timer1.Seconds != 1 || v.Timer1.InSequence {
		t.Fatalf("timer1 near due %+v", v.Timer1)
	}
	h.clk.Advance(time.Second)
	if v := h.tick(); !v.Timer1.InSequence || v.Timer1.Text() != LabelGo {
		t.Fatalf("timer1 should be in its sequence, got %+v", v.Timer1)
	}
}

func TestControllerRepeatLimitRatchets(t *testing.T) {
	ctrl := gomock.NewController(t)
	cues := NewMockCueSink(ctrl)
	gomock.InOrder(
		cues.EXPECT().Play(gomock.Any(), CueTick).Return(nil).Times(3),
		cues.EXPECT().Play(gomock.Any(), CueLimit).Return(nil),
		cues.EXPECT().Play(gomock.Any(), CueTick).Return(nil),
	)

	h := newHarness(t, Options{Cues: cues})
	h.c.Initialize(model.SessionConfig{Timer1Range: fixedRange(10), Timer1MaxRepeats: 3})
	h.c.StartPause()

	want := []struct {
		repeats int
		max     int
		armed   bool
	}{
		{1, 3, false},
		{2, 3, false},
		{3, 3, true},
		{0, 4, false},
		{1, 4, false},
	}
	for i, w := range want {
		h.clk.Advance(10 * time.Second)
		if v := h.tick(); !v.Timer1.InSequence {
			t.Fatalf("run %d: timer1 not dispatched", i)
		}
		step(h.clk, DefaultCooldown)
		h.c.Wait()

		v := h.tick()
		if v.Repeats != w.repeats || v.MaxRepeats != w.max || v.LimitArmed != w.armed {
			t.Fatalf("run %d: repeats=%d max=%d armed=%v, want %+v", i, v.Repeats, v.MaxRepeats, v.LimitArmed, w)
		}
		if v.Timer1.Seconds != 10 || v.GateBusy {
			t.Fatalf("run %d: timer1 not re-armed %+v busy=%v", i, v.Timer1, v.GateBusy)
		}
	}

	st := h.c.End()
	if st.Timer1MaxRepeatsReached != 3 || st.Timer1FinalMaxRepeats != 4 {
		t.Fatalf("stats %+v", st)
	}
}

func TestControllerTimer2FreezesTimer1(t *testing.T) {
	sc := model.Scenario{Name: "long", WarnCue: "pop_warn_s2", DelayAfterSecond: 8, BaseWait: 10, JitterMax: 15}
	h := newHarness(t, Options{Draw: fixedDraw{jitter: 11}, Scenarios: []model.Scenario{sc}})
	h.c.Initialize(model.SessionConfig{
		Timer1Range:      fixedRange(40),
		Timer1MaxRepeats: 12,
		Timer2Enabled:    true,
		Timer2Range:      fixedRange(28),
	})
	h.c.StartPause()

	h.clk.Advance(28 * time.Second)
	v := h.tick()
	if !v.Timer2.InSequence || v.Timer2.Text() != LabelWarn {
		t.Fatalf("timer2 not dispatched %+v", v.Timer2)
	}
	if !v.Timer1.Frozen || v.Timer1.Text() != LabelWait || v.Timer1.Seconds != 12 {
		t.Fatalf("timer1 not frozen at 12s %+v", v.Timer1)
	}

	// warn, go, wait (base plus jitter), cooldown: 40s in total
	step(h.clk, 6*time.Second, 8*time.Second, 21*time.Second, DefaultCooldown)
	h.c.Wait()

	v = h.tick()
	if v.Timer1.Frozen || v.Timer1.Seconds != 12 || v.Timer1.Label != "" {
		t.Fatalf("timer1 after unfreeze %+v", v.Timer1)
	}
	if v.Timer2.InSequence || v.Timer2.Seconds != 28 {
		t.Fatalf("timer2 after sequence %+v", v.Timer2)
	}
	if v.Timer2Sequences != 1 {
		t.Fatalf("timer2 sequences %d", v.Timer2Sequences)
	}

	want := []string{"pop_warn_s2", CueGo, CueWait, CueEnd}
	got := h.cues.Played()
	if len(got) != len(want) {
		t.Fatalf("cues %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cues %v, want %v", got, want)
		}
	}
}

func TestControllerTimer2HasPriority(t *testing.T) {
	sc := model.Scenario{Name: "short", WarnCue: "w", DelayAfterSecond: 8, BaseWait: 10}
	h := newHarness(t, Options{Scenarios: []model.Scenario{sc}})
	h.c.Initialize(model.SessionConfig{
		Timer1Range:      fixedRange(20),
		Timer1MaxRepeats: 12,
		Timer2Enabled:    true,
		Timer2Range:      fixedRange(20),
	})
	h.c.StartPause()

	h.clk.Advance(20 * time.Second)
	v := h.tick()
	if !v.Timer2.InSequence || v.Timer1.InSequence {
		t.Fatalf("timer2 should run first: t1=%+v t2=%+v", v.Timer1, v.Timer2)
	}
	if !v.Timer1.Pending || !v.Timer1.Frozen {
		t.Fatalf("timer1 should stay pending while frozen %+v", v.Timer1)
	}

	step(h.clk, 6*time.Second, 8*time.Second, 10*time.Second, DefaultCooldown)
	h.c.Wait()

	if v := h.tick(); !v.Timer1.InSequence {
		t.Fatalf("pending timer1 should run after timer2 %+v", v.Timer1)
	}
}

func TestControllerEndRecordsCompletedSequences(t *testing.T) {
	h := newHarness(t, Options{Scenarios: []model.Scenario{s2}})
	cfg := model.SessionConfig{
		Timer1Range:      fixedRange(300),
		Timer1MaxRepeats: 12,
		Timer2Enabled:    true,
		Timer2Range:      fixedRange(5),
	}
	h.c.Initialize(cfg)
	h.c.StartPause()
	h.c.Reset()

	h.clk.Advance(5 * time.Second)
	h.tick()
	step(h.clk, 6*time.Second, 8*time.Second, 10*time.Second, DefaultCooldown)
	h.c.Wait()

	st := h.c.End()
	if st.Timer2SequenceCount != 1 || st.Timer2DelayAfter2Sum != 8 || st.Timer2BaseAfter3Sum != 10 {
		t.Fatalf("stats %+v", st)
	}
	if st.Timer2WarnDelaySum != 6 || st.Timer2JitterSum != 0 || !st.Timer2Enabled {
		t.Fatalf("stats %+v", st)
	}
	if !st.StartedAt.Equal(epochStart) || st.Duration() != 34*time.Second {
		t.Fatalf("session span %v..%v", st.StartedAt, st.EndedAt)
	}
	if st.Config != cfg {
		t.Fatalf("config %+v", st.Config)
	}
	if h.c.Running() {
		t.Fatalf("end should pause the session")
	}
	recorded := h.stats.Sessions()
	if len(recorded) != 1 || recorded[0].Timer2SequenceCount != 1 {
		t.Fatalf("sink received %+v", recorded)
	}
}

func TestControllerCloseCancelsSequence(t *testing.T) {
	h := newHarness(t, Options{Scenarios: []model.Scenario{s2}})
	h.c.Initialize(model.SessionConfig{
		Timer1Range:      fixedRange(300),
		Timer1MaxRepeats: 12,
		Timer2Enabled:    true,
		Timer2Range:      fixedRange(5),
	})
	h.c.StartPause()
	h.clk.Advance(5 * time.Second)
	h.tick()

	h.clk.BlockUntil(1)
	if !h.c.GateBusy() {
		t.Fatalf("gate should be busy mid-sequence")
	}
	h.c.Close()
	h.c.Wait()

	if h.c.GateBusy() {
		t.Fatalf("gate should be free after cancellation")
	}
	v := h.tick()
	if v.Timer2.InSequence || v.Timer1.Frozen {
		t.Fatalf("cancelled sequence left flags t1=%+v t2=%+v", v.Timer1, v.Timer2)
	}
	if st := h.c.End(); st.Timer2SequenceCount != 0 {
		t.Fatalf("cancelled sequence counted %+v", st)
	}
}

func TestControllerPauseLetsSequenceFinishResetCancels(t *testing.T) {
	h := newHarness(t, Options{Scenarios: []model.Scenario{s2}})
	h.c.Initialize(model.SessionConfig{
		Timer1Range:      fixedRange(300),
		Timer1MaxRepeats: 12,
		Timer2Enabled:    true,
		Timer2Range:      fixedRange(5),
	})
	h.c.StartPause()
	h.clk.Advance(5 * time.Second)
	h.tick()

	h.c.StartPause()
	step(h.clk, 6*time.Second)
	h.clk.BlockUntil(1)
	if v := h.tick(); v.Running || v.Timer2.Text() != LabelGo {
		t.Fatalf("paused sequence should keep going %+v", v.Timer2)
	}

	h.c.Reset()
	if v := h.tick(); v.Timer2.InSequence || v.Timer2.Seconds != 5 || v.Timer1.Seconds != 300 {
		t.Fatalf("reset view t1=%+v t2=%+v", v.Timer1, v.Timer2)
	}
	h.c.StartPause()
	h.c.Wait()

	v := h.tick()
	if v.GateBusy || v.Timer2Sequences != 0 {
		t.Fatalf("stale sequence should be cancelled %+v", v)
	}
	if !v.Running || v.Timer2.Seconds != 5 {
		t.Fatalf("session after restart %+v", v.Timer2)
	}
}

func TestControllerResetKeepsStats(t *testing.T) {
	h := newHarness(t, Options{})
	h.c.Initialize(model.SessionConfig{Timer1Range: fixedRange(10), Timer1MaxRepeats: 5})
	h.c.StartPause()

	h.clk.Advance(10 * time.Second)
	h.tick()
	step(h.clk, DefaultCooldown)
	h.c.Wait()

	h.c.Reset()
	v := h.tick()
	if v.Repeats != 0 || v.Timer1.Seconds != 10 || !v.Running {
		t.Fatalf("after reset %+v", v)
	}
	if st := h.c.End(); st.Timer1MaxRepeatsReached != 1 {
		t.Fatalf("reset dropped stats %+v", st)
	}
}
