package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/krobus00/price-feed-service/internal/constant"
	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/krobus00/price-feed-service/internal/metrics"
	"github.com/krobus00/price-feed-service/internal/service/pricing"
	"github.com/krobus00/price-feed-service/internal/service/subscription"
	"github.com/sirupsen/logrus"
)

type BroadcastEngine struct {
	registry  *subscription.SessionRegistry
	directory *subscription.IdentityDirectory
	store     *pricing.PriceStore
	transport entity.PushTransport
}

func NewBroadcastEngine(registry *subscription.SessionRegistry, directory *subscription.IdentityDirectory, store *pricing.PriceStore, transport entity.PushTransport) *BroadcastEngine {
	return &BroadcastEngine{
		registry:  registry,
		directory: directory,
		store:     store,
		transport: transport,
	}
}

// Broadcast pushes one priceUpdate to every bound connection whose identity
// has at least one subscription. The payload only carries the subscribed
// instruments. It returns the number of connections that accepted the push.
func (e *BroadcastEngine) Broadcast(ctx context.Context) int {
	delivered := 0

	for _, conn := range e.transport.ActiveConnections() {
		if ctx.Err() != nil {
			break
		}

		identity, ok := e.registry.IdentityOf(conn)
		if !ok {
			continue
		}

		subs := e.directory.Get(identity)
		if len(subs) == 0 {
			continue
		}

		event, err := entity.NewFeedEvent(constant.FeedEventPriceUpdate, entity.NewPriceUpdate(e.store.Snapshot(subs)))
		if err != nil {
			logrus.WithField("connection", conn).Error(err)
			metrics.DeliveryFailuresTotal.WithLabelValues("encode").Inc()
			continue
		}

		err = e.push(conn, event)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"connection": conn,
				"identity":   identity,
			}).Warn(err)
			metrics.DeliveryFailuresTotal.WithLabelValues(failureReason(err)).Inc()
			continue
		}

		delivered++
		metrics.DeliveriesTotal.Inc()
	}

	return delivered
}

// push isolates a misbehaving transport so one connection cannot abort the
// rest of the fan-out.
func (e *BroadcastEngine) push(conn entity.ConnectionID, event entity.FeedEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPushPanic, r)
		}
	}()

	return e.transport.Push(conn, event)
}

var errPushPanic = errors.New("push panicked")

func failureReason(err error) string {
	switch {
	case errors.Is(err, entity.ErrSendBufferFull):
		return "buffer_full"
	case errors.Is(err, entity.ErrConnectionNotFound):
		return "not_found"
	case errors.Is(err, errPushPanic):
		return "panic"
	default:
		return "error"
	}
}
