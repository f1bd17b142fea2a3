package subscription

import (
	"testing"

	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*SubscriptionService, *IdentityDirectory, *SessionRegistry) {
	directory := NewIdentityDirectory(entity.NewInstrumentSet("GOOG", "TSLA", "AMZN", "META", "NVDA"))
	registry := NewSessionRegistry(directory)
	return NewSubscriptionService(directory, registry), directory, registry
}

func TestSubscriptionService_BindNewIdentity(t *testing.T) {
	svc, directory, registry := newTestService()

	subs, err := svc.Bind("c1", "alice")
	require.NoError(t, err)
	assert.Empty(t, subs)

	identity, ok := registry.IdentityOf("c1")
	require.True(t, ok)
	assert.Equal(t, entity.Identity("alice"), identity)
	assert.Equal(t, 1, directory.Len())
}

func TestSubscriptionService_BindRejectsEmptyIdentity(t *testing.T) {
	svc, directory, registry := newTestService()

	_, err := svc.Bind("c1", "")
	require.ErrorIs(t, err, ErrEmptyIdentity)

	_, ok := registry.IdentityOf("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, directory.Len())
}

func TestSubscriptionService_SubscriptionsFollowIdentity(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Bind("c1", "alice")
	require.NoError(t, err)
	svc.Subscribe("c1", "GOOG")
	svc.Subscribe("c1", "TSLA")
	svc.Disconnect("c1")

	subs, err := svc.Bind("c2", "alice")
	require.NoError(t, err)
	assert.Equal(t, []entity.Instrument{"GOOG", "TSLA"}, subs)
}

func TestSubscriptionService_DisconnectKeepsSubscriptions(t *testing.T) {
	svc, directory, registry := newTestService()

	_, err := svc.Bind("c1", "alice")
	require.NoError(t, err)
	svc.Subscribe("c1", "GOOG")

	svc.Disconnect("c1")

	_, ok := registry.IdentityOf("c1")
	assert.False(t, ok)
	assert.Equal(t, []entity.Instrument{"GOOG"}, directory.Get("alice"))

	subs, err := svc.Bind("c9", "alice")
	require.NoError(t, err)
	assert.Contains(t, subs, entity.Instrument("GOOG"))
}

func TestSubscriptionService_SubscribeIsIdempotent(t *testing.T) {
	svc, directory, _ := newTestService()

	_, err := svc.Bind("c1", "alice")
	require.NoError(t, err)
	svc.Subscribe("c1", "GOOG")
	svc.Subscribe("c1", "GOOG")

	assert.Equal(t, []entity.Instrument{"GOOG"}, directory.Get("alice"))
}

func TestSubscriptionService_UnsubscribeNotSubscribed(t *testing.T) {
	svc, directory, _ := newTestService()

	_, err := svc.Bind("c1", "alice")
	require.NoError(t, err)
	svc.Subscribe("c1", "GOOG")
	svc.Unsubscribe("c1", "NVDA")

	assert.Equal(t, []entity.Instrument{"GOOG"}, directory.Get("alice"))

	svc.Unsubscribe("c1", "GOOG")
	assert.Empty(t, directory.Get("alice"))
}

func TestSubscriptionService_UnknownInstrumentIgnored(t *testing.T) {
	svc, directory, _ := newTestService()

	_, err := svc.Bind("c1", "alice")
	require.NoError(t, err)
	svc.Subscribe("c1", "AAPL")
	svc.Subscribe("c1", "goog")

	assert.Empty(t, directory.Get("alice"))
}

func TestSubscriptionService_UnboundConnectionIgnored(t *testing.T) {
	svc, directory, _ := newTestService()

	svc.Subscribe("ghost", "GOOG")
	svc.Unsubscribe("ghost", "GOOG")
	svc.Disconnect("ghost")

	assert.Equal(t, 0, directory.Len())
}

func TestSubscriptionService_RebindReplacesIdentity(t *testing.T) {
	svc, directory, registry := newTestService()

	_, err := svc.Bind("c1", "alice")
	require.NoError(t, err)
	svc.Subscribe("c1", "GOOG")

	subs, err := svc.Bind("c1", "bob")
	require.NoError(t, err)
	assert.Empty(t, subs)

	svc.Subscribe("c1", "TSLA")

	identity, _ := registry.IdentityOf("c1")
	assert.Equal(t, entity.Identity("bob"), identity)
	assert.Equal(t, []entity.Instrument{"GOOG"}, directory.Get("alice"))
	assert.Equal(t, []entity.Instrument{"TSLA"}, directory.Get("bob"))
}

func TestSubscriptionService_SharedIdentityAcrossConnections(t *testing.T) {
	svc, directory, _ := newTestService()

	_, err := svc.Bind("c1", "alice")
	require.NoError(t, err)
	_, err = svc.Bind("c2", "alice")
	require.NoError(t, err)

	svc.Subscribe("c1", "GOOG")
	svc.Subscribe("c2", "META")

	assert.Equal(t, []entity.Instrument{"GOOG", "META"}, directory.Get("alice"))
}
