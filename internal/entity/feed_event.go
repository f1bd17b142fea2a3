package entity

import "github.com/goccy/go-json"

// FeedEvent is one websocket frame in either direction.
type FeedEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PriceUpdate is the priceUpdate payload, symbol to price.
type PriceUpdate map[Instrument]float64

func NewFeedEvent(event string, data any) (FeedEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return FeedEvent{}, err
	}

	return FeedEvent{Event: event, Data: raw}, nil
}

// NewPriceUpdate converts a snapshot to the wire payload. Prices are already
// rounded to two places so the float conversion is exact enough for display.
func NewPriceUpdate(snapshot PriceSnapshot) PriceUpdate {
	update := make(PriceUpdate, len(snapshot))
	for instrument, price := range snapshot {
		update[instrument] = price.InexactFloat64()
	}

	return update
}
