package pricesink

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/price-feed-service/internal/constant"
	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/redis/go-redis/v9"
)

const defaultPriceKeyTTL = time.Minute

var _ entity.TickSink = (*RedisSink)(nil)

// RedisSink keeps the latest price per instrument under an expiring key and
// fans every change out on a per-instrument channel.
type RedisSink struct {
	client *redis.Client
	keyTTL time.Duration
}

type priceMessage struct {
	Symbol   entity.Instrument `json:"symbol"`
	Price    string            `json:"price"`
	Sequence int64             `json:"sequence"`
	Time     time.Time         `json:"time"`
}

func NewRedisSink(client *redis.Client, keyTTL time.Duration) *RedisSink {
	if keyTTL <= 0 {
		keyTTL = defaultPriceKeyTTL
	}

	return &RedisSink{
		client: client,
		keyTTL: keyTTL,
	}
}

func (s *RedisSink) Name() string {
	return "redis"
}

func (s *RedisSink) PublishTick(ctx context.Context, tick entity.PriceTick) error {
	pipe := s.client.Pipeline()

	for instrument, price := range tick.Prices {
		value := price.StringFixed(2)
		pipe.Set(ctx, PriceCacheKey(instrument), value, s.keyTTL)

		payload, err := json.Marshal(priceMessage{
			Symbol:   instrument,
			Price:    value,
			Sequence: tick.Sequence,
			Time:     tick.Time,
		})
		if err != nil {
			return err
		}
		pipe.Publish(ctx, PriceChannel(instrument), payload)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func PriceCacheKey(instrument entity.Instrument) string {
	return constant.PriceCacheKeyPrefix + string(instrument)
}

func PriceChannel(instrument entity.Instrument) string {
	return constant.PriceCacheChannelPrefix + string(instrument)
}
