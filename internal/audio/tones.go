package audio

import (
	"strings"
	"time"
)

// tone is the synthesized fallback for a cue without a sound file.
type tone struct {
	freq float64
	dur  time.Duration
}

var cueTones = map[string]tone{
	"inf_tick":    {freq: 880, dur: 120 * time.Millisecond},
	"inf_limit":   {freq: 440, dur: 450 * time.Millisecond},
	"pop_warn_s1": {freq: 587.33, dur: 250 * time.Millisecond},
	"pop_warn_s2": {freq: 659.25, dur: 250 * time.Millisecond},
	"pop_warn_s3": {freq: 698.46, dur: 250 * time.Millisecond},
	"pop_go":      {freq: 1046.5, dur: 180 * time.Millisecond},
	"pop_wait":    {freq: 523.25, dur: 300 * time.Millisecond},
	"pop_end":     {freq: 392, dur: 500 * time.Millisecond},
}

// pulseFreq is low enough to read as a thump rather than a note.
const pulseFreq = 70

// defaultWarnTone covers warn cues of custom scenarios.
var defaultWarnTone = tone{freq: 622.25, dur: 250 * time.Millisecond}

func toneFor(cue string) (tone, bool) {
	if t, ok := cueTones[cue]; ok {
		return t, true
	}
	if strings.HasPrefix(cue, "pop_warn_") {
		return defaultWarnTone, true
	}
	return tone{}, false
}
