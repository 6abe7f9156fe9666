// Package generator draws the random durations and scenarios of a session.
package generator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/verte-zerg/endure/internal/model"
)

// Generator produces uniform random draws. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a Generator with a fixed seed.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// SecondsInRange draws uniformly from [MinSeconds, MaxSeconds]. An invalid
// range yields MinSeconds, and a degenerate range never touches the source.
func (g *Generator) SecondsInRange(r model.TimeRange) int {
	if !r.Valid() || r.MinSeconds == r.MaxSeconds {
		return r.MinSeconds
	}
	return r.MinSeconds + g.intn(r.MaxSeconds-r.MinSeconds+1)
}

// PickScenario selects one scenario uniformly. It returns false when the
// slice is empty.
func (g *Generator) PickScenario(scenarios []model.Scenario) (model.Scenario, bool) {
	switch len(scenarios) {
	case 0:
		return model.Scenario{}, false
	case 1:
		return scenarios[0], true
	}
	return scenarios[g.intn(len(scenarios))], true
}

// Jitter draws uniformly from [0, maxSeconds], or 0 if maxSeconds <= 0.
func (g *Generator) Jitter(maxSeconds int) int {
	if maxSeconds <= 0 {
		return 0
	}
	return g.intn(maxSeconds + 1)
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(n)
}
