package entity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot maps an instrument to its price at one point in time.
type PriceSnapshot map[Instrument]decimal.Decimal

// PriceTick is the result of one generator step, handed to tick sinks.
type PriceTick struct {
	Sequence int64         `json:"sequence"`
	Time     time.Time     `json:"time"`
	Prices   PriceSnapshot `json:"prices"`
}

// TickSink receives every tick after it has been broadcast.
type TickSink interface {
	Name() string
	PublishTick(ctx context.Context, tick PriceTick) error
}
