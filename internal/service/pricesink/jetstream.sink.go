package pricesink

import (
	"context"
	"errors"
	"time"

	"github.com/krobus00/price-feed-service/internal/constant"
	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/krobus00/price-feed-service/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

var (
	_ entity.TickSink  = (*JetstreamSink)(nil)
	_ entity.Publisher = (*JetstreamSink)(nil)
)

type JetstreamSink struct {
	js nats.JetStreamContext
}

func NewJetstreamSink(js nats.JetStreamContext) *JetstreamSink {
	return &JetstreamSink{js: js}
}

func (s *JetstreamSink) Name() string {
	return "jetstream"
}

// priceFeedStreamConfig is a short lived live fan-out, not a price history.
func priceFeedStreamConfig() *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:      constant.PriceFeedStreamName,
		Subjects:  []string{constant.PriceFeedStreamSubjectAll},
		Storage:   nats.MemoryStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Minute,
		Replicas:  1,
	}
}

func (s *JetstreamSink) JetstreamEventInit(ctx context.Context) error {
	streamConfig := priceFeedStreamConfig()

	stream, err := s.js.StreamInfo(constant.PriceFeedStreamName)
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		logrus.Error(err)
		return err
	}

	if stream == nil {
		logrus.Infof("creating stream: %s", constant.PriceFeedStreamName)
		_, err = s.js.AddStream(streamConfig, nats.Context(ctx))
		return err
	}

	logrus.Infof("updating stream: %s", constant.PriceFeedStreamName)
	_, err = s.js.UpdateStream(streamConfig, nats.Context(ctx))
	if err != nil {
		logrus.Error(err)
		return err
	}

	logrus.Infof("stream %s is ready", constant.PriceFeedStreamName)

	return nil
}

func (s *JetstreamSink) PublishTick(ctx context.Context, tick entity.PriceTick) error {
	return util.PublishEvent(ctx, s.js, constant.PriceFeedStreamSubjectTick, tick)
}
