package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/endure/internal/model"
)

func TestRunnerPlaysStepsInOrder(t *testing.T) {
	clk := newFakeClock()
	cues := &recordingCues{}
	haptics := &countingHaptics{}
	r := NewRunner(clk, cues, haptics, zerolog.Nop())

	sc := model.Scenario{Name: "s1", WarnCue: "pop_warn_s1", DelayAfterSecond: 4, BaseWait: 6, JitterMax: 4}
	var labels []string
	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), timer2Steps(sc, 6*time.Second, 2), func(l string) {
			labels = append(labels, l)
		})
	}()
	step(clk, 6*time.Second, 4*time.Second, 8*time.Second)

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	wantCues := []string{"pop_warn_s1", CueGo, CueWait, CueEnd}
	if got := cues.Played(); !reflect.DeepEqual(got, wantCues) {
		t.Fatalf("cues %v, want %v", got, wantCues)
	}
	wantLabels := []string{LabelWarn, LabelGo, LabelWait, LabelEnd}
	if !reflect.DeepEqual(labels, wantLabels) {
		t.Fatalf("labels %v, want %v", labels, wantLabels)
	}
	if haptics.Count() != 4 {
		t.Fatalf("pulses %d, want 4", haptics.Count())
	}
}

func TestRunnerSwallowsCueFailures(t *testing.T) {
	cues := &recordingCues{fail: map[string]error{CueTick: errors.New("device gone")}}
	r := NewRunner(newFakeClock(), cues, nil, zerolog.Nop())

	if err := r.Run(context.Background(), timer1Steps(false), nil); err != nil {
		t.Fatalf("cue failure should not abort the script: %v", err)
	}
	if got := cues.Played(); len(got) != 1 || got[0] != CueTick {
		t.Fatalf("cues %v", got)
	}
}

func TestRunnerCancelledDuringWait(t *testing.T) {
	clk := newFakeClock()
	cues := &recordingCues{}
	r := NewRunner(clk, cues, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	steps := []Step{
		{Label: LabelWarn, Cue: "a", Wait: 10 * time.Second},
		{Label: LabelGo, Cue: "b"},
	}
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, steps, nil) }()
	clk.BlockUntil(1)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if got := cues.Played(); len(got) != 1 {
		t.Fatalf("cues after cancel %v, want only the first", got)
	}
}

func TestTimer1StepsFollowLimit(t *testing.T) {
	if got := timer1Steps(false); got[0].Cue != CueTick || got[0].Label != LabelGo {
		t.Fatalf("regular step %+v", got[0])
	}
	if got := timer1Steps(true); got[0].Cue != CueLimit || got[0].Label != LabelReset {
		t.Fatalf("limit step %+v", got[0])
	}
}
