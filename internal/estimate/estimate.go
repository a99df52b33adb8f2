// Package estimate converts a self-reported electricity bill tier into a
// bounded monthly savings figure for the results stage.
package estimate

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Bill tier labels as presented by the hearing flow.
const (
	TierHighest = "20,000円以上"
	TierHigh    = "15,000円〜19,999円"
	TierMiddle  = "10,000円〜14,999円"
	TierLow     = "9,999円以下"
)

// tierRange bounds the uniform draw for one tier, inclusive.
type tierRange struct {
	min, max int
}

var rangeByTier = map[string]tierRange{
	TierHighest: {10000, 19999},
	TierHigh:    {7500, 12499},
	TierMiddle:  {5000, 7999},
}

// defaultRange absorbs the lowest tier and any unrecognized label,
// including the "not provided" sentinel. Unknown input is a policy branch
// here, never an error.
var defaultRange = tierRange{3000, 4999}

// Engine draws savings estimates. Each call may yield a different value;
// callers needing stability across re-renders must hold the result.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an Engine with a time-seeded randomness source.
func New() *Engine {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource creates an Engine drawing from src, letting tests pin
// fixtures without changing the bounds.
func NewWithSource(src rand.Source) *Engine {
	return &Engine{rng: rand.New(src)}
}

// Monthly returns a uniform estimate within the tier's bounds.
func (e *Engine) Monthly(billTier string) int {
	r, ok := rangeByTier[billTier]
	if !ok {
		slog.Debug("Estimate falling back to default range", "tier", billTier)
		r = defaultRange
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.min + e.rng.Intn(r.max-r.min+1)
}

// Annual projects a monthly estimate over twelve months. It is computed
// per call, never cached.
func Annual(monthly int) int {
	return monthly * 12
}
