package pricing

import (
	"math/rand"
	"sync"

	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/shopspring/decimal"
)

const pricePrecision = 2

// Rand is the source of uniform draws in [0, 1).
type Rand interface {
	Float64() float64
}

// LockedRand makes a *rand.Rand safe to share.
type LockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewLockedRand(seed int64) *LockedRand {
	return &LockedRand{rng: rand.New(rand.NewSource(seed))}
}

func (r *LockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

type GeneratorConfig struct {
	MaxChange decimal.Decimal // fraction, 0.02 for ±2%
	Floor     decimal.Decimal
}

// Generator advances every price in the store by a bounded random walk.
type Generator struct {
	store *PriceStore
	rand  Rand
	cfg   GeneratorConfig
}

func NewGenerator(store *PriceStore, rnd Rand, cfg GeneratorConfig) *Generator {
	return &Generator{
		store: store,
		rand:  rnd,
		cfg:   cfg,
	}
}

// Tick draws an independent change in [-MaxChange, +MaxChange) per
// instrument, applies it to the current price, rounds to cents and clamps to
// the floor.
func (g *Generator) Tick() {
	g.store.update(func(_ entity.Instrument, current decimal.Decimal) decimal.Decimal {
		return g.next(current, g.rand.Float64())
	})
}

func (g *Generator) next(current decimal.Decimal, draw float64) decimal.Decimal {
	change := decimal.NewFromFloat(draw*2 - 1).Mul(g.cfg.MaxChange)
	next := current.Mul(decimal.NewFromInt(1).Add(change)).Round(pricePrecision)
	if next.LessThan(g.cfg.Floor) {
		return g.cfg.Floor
	}

	return next
}
