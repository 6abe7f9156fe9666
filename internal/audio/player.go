// Package audio plays session cues and haptic pulses through the system
// speaker.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	"github.com/rs/zerolog"
)

// SampleRate is the speaker rate every cue is resampled to.
const SampleRate = beep.SampleRate(44100)

// ErrUnknownCue is returned for a cue with neither a file nor a tone.
var ErrUnknownCue = errors.New("unknown cue")

// Options configures a Player.
type Options struct {
	// CuesDir holds optional <cue>.wav or <cue>.ogg files overriding the
	// built-in tones.
	CuesDir string
	Mute    bool
	Haptics bool
	Logger  zerolog.Logger
}

// Player implements the cue and haptic sinks. When the speaker cannot be
// opened it stays silent instead of failing the session.
type Player struct {
	dir     string
	mute    bool
	haptics bool
	log     zerolog.Logger
	ready   bool

	mu      sync.Mutex
	buffers map[string]*beep.Buffer
	missing map[string]bool
}

// Open initializes the speaker unless muted.
func Open(opts Options) *Player {
	p := newPlayer(opts)
	if p.mute {
		return p
	}
	if err := speaker.Init(SampleRate, SampleRate.N(time.Second/10)); err != nil {
		p.log.Warn().Err(err).Msg("audio disabled: failed to initialize speaker")
		return p
	}
	p.ready = true
	return p
}

func newPlayer(opts Options) *Player {
	return &Player{
		dir:     opts.CuesDir,
		mute:    opts.Mute,
		haptics: opts.Haptics,
		log:     opts.Logger,
		buffers: make(map[string]*beep.Buffer),
		missing: make(map[string]bool),
	}
}

// Play blocks until cue has played or ctx is done.
func (p *Player) Play(ctx context.Context, cue string) error {
	s, err := p.streamer(cue)
	if err != nil {
		return err
	}
	if !p.ready {
		return ctx.Err()
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() { close(done) })))
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Pulse plays a short low thump without waiting for it.
func (p *Player) Pulse(d time.Duration) {
	if !p.ready || !p.haptics || d <= 0 {
		return
	}
	s, err := generators.SineTone(SampleRate, pulseFreq)
	if err != nil {
		return
	}
	speaker.Play(beep.Take(SampleRate.N(d), s))
}

// Close stops playback and releases the speaker.
func (p *Player) Close() {
	if p.ready {
		speaker.Clear()
		speaker.Close()
		p.ready = false
	}
}

// streamer resolves cue to a file buffer when one exists and to its tone
// otherwise.
func (p *Player) streamer(cue string) (beep.Streamer, error) {
	buf, err := p.buffer(cue)
	if err != nil {
		p.log.Warn().Err(err).Str("cue", cue).Msg("failed to load cue file, using tone")
	}
	if buf != nil {
		return buf.Streamer(0, buf.Len()), nil
	}
	t, ok := toneFor(cue)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCue, cue)
	}
	s, err := generators.SineTone(SampleRate, t.freq)
	if err != nil {
		return nil, fmt.Errorf("cue %s: %w", cue, err)
	}
	return beep.Take(SampleRate.N(t.dur), s), nil
}

// buffer returns the decoded file for cue, caching both hits and misses.
func (p *Player) buffer(cue string) (*beep.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.buffers[cue]; ok {
		return b, nil
	}
	if p.dir == "" || p.missing[cue] {
		return nil, nil
	}
	path, ok := findCueFile(p.dir, cue)
	if !ok {
		p.missing[cue] = true
		return nil, nil
	}
	b, err := decodeFile(path)
	if err != nil {
		p.missing[cue] = true
		return nil, err
	}
	p.buffers[cue] = b
	p.log.Debug().Str("cue", cue).Str("path", path).Int("samples", b.Len()).Msg("cue file loaded")
	return b, nil
}

func findCueFile(dir, cue string) (string, bool) {
	for _, ext := range []string{".wav", ".ogg"} {
		path := filepath.Join(dir, cue+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func decodeFile(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch filepath.Ext(path) {
	case ".ogg":
		stream, format, err = vorbis.Decode(f)
	default:
		stream, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	defer stream.Close()

	buf := beep.NewBuffer(beep.Format{SampleRate: SampleRate, NumChannels: 2, Precision: 2})
	var src beep.Streamer = stream
	if format.SampleRate != SampleRate {
		src = beep.Resample(4, format.SampleRate, SampleRate, stream)
	}
	buf.Append(src)
	if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buf, nil
}
