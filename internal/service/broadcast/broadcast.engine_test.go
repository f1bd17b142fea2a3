package broadcast

import (
	"context"
	"testing"

	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/krobus00/price-feed-service/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastEngine_PayloadRestrictedToSubscriptions(t *testing.T) {
	f := newFixture(t, fixedRand(0.75), "c1", "c2")
	f.bind(t, "c1", "alice", "GOOG")
	f.bind(t, "c2", "bob", "TSLA")

	f.generator.Tick()
	delivered := f.engine.Broadcast(context.Background())
	assert.Equal(t, 2, delivered)

	c1 := f.transport.events("c1")
	require.Len(t, c1, 1)
	assert.Equal(t, entity.PriceUpdate{"GOOG": 101}, decodePriceUpdate(t, c1[0]))

	c2 := f.transport.events("c2")
	require.Len(t, c2, 1)
	assert.Equal(t, entity.PriceUpdate{"TSLA": 101}, decodePriceUpdate(t, c2[0]))
}

func TestBroadcastEngine_SkipsUnboundAndEmpty(t *testing.T) {
	f := newFixture(t, fixedRand(0.5), "anon", "idle", "active")
	f.bind(t, "idle", "carol")
	f.bind(t, "active", "dave", "NVDA")

	for range 10 {
		f.generator.Tick()
		f.engine.Broadcast(context.Background())
	}

	assert.Empty(t, f.transport.events("anon"))
	assert.Empty(t, f.transport.events("idle"))
	assert.Len(t, f.transport.events("active"), 10)
}

func TestBroadcastEngine_ReflectsLatestSubscriptions(t *testing.T) {
	f := newFixture(t, fixedRand(0.5), "c1")
	f.bind(t, "c1", "alice", "GOOG")

	f.engine.Broadcast(context.Background())
	f.service.Subscribe("c1", "AMZN")
	f.engine.Broadcast(context.Background())
	f.service.Unsubscribe("c1", "GOOG")
	f.service.Unsubscribe("c1", "AMZN")
	f.engine.Broadcast(context.Background())

	events := f.transport.events("c1")
	require.Len(t, events, 2)
	assert.Equal(t, entity.PriceUpdate{"GOOG": 100}, decodePriceUpdate(t, events[0]))
	assert.Equal(t, entity.PriceUpdate{"AMZN": 100, "GOOG": 100}, decodePriceUpdate(t, events[1]))
}

func TestBroadcastEngine_SharedIdentityReachesEveryConnection(t *testing.T) {
	f := newFixture(t, fixedRand(0.5), "phone", "laptop")
	f.bind(t, "phone", "alice", "META")
	f.bind(t, "laptop", "alice")

	assert.Equal(t, 2, f.engine.Broadcast(context.Background()))
	assert.Len(t, f.transport.events("laptop"), 1)
}

func TestBroadcastEngine_FailedPushDoesNotStopOthers(t *testing.T) {
	f := newFixture(t, fixedRand(0.5), "a", "b", "c")
	f.bind(t, "a", "alice", "GOOG")
	f.bind(t, "b", "bob", "GOOG")
	f.bind(t, "c", "carol", "GOOG")
	f.transport.failing["a"] = entity.ErrSendBufferFull
	f.transport.panicking["b"] = true

	bufferFull := testutil.ToFloat64(metrics.DeliveryFailuresTotal.WithLabelValues("buffer_full"))
	panics := testutil.ToFloat64(metrics.DeliveryFailuresTotal.WithLabelValues("panic"))

	delivered := f.engine.Broadcast(context.Background())

	assert.Equal(t, 1, delivered)
	assert.Len(t, f.transport.events("c"), 1)
	assert.Equal(t, bufferFull+1, testutil.ToFloat64(metrics.DeliveryFailuresTotal.WithLabelValues("buffer_full")))
	assert.Equal(t, panics+1, testutil.ToFloat64(metrics.DeliveryFailuresTotal.WithLabelValues("panic")))
}

func TestBroadcastEngine_DisconnectedIdentityResumes(t *testing.T) {
	f := newFixture(t, fixedRand(0.5), "c2")
	f.bind(t, "c1", "alice", "GOOG")
	f.service.Disconnect("c1")

	subs, err := f.service.Bind("c2", "alice")
	require.NoError(t, err)
	assert.Equal(t, []entity.Instrument{"GOOG"}, subs)

	f.engine.Broadcast(context.Background())
	events := f.transport.events("c2")
	require.Len(t, events, 1)
	assert.Equal(t, entity.PriceUpdate{"GOOG": 100}, decodePriceUpdate(t, events[0]))
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "buffer_full", failureReason(entity.ErrSendBufferFull))
	assert.Equal(t, "not_found", failureReason(entity.ErrConnectionNotFound))
	assert.Equal(t, "panic", failureReason(errPushPanic))
	assert.Equal(t, "error", failureReason(errBroken))
}
