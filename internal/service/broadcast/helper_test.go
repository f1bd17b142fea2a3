package broadcast

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/krobus00/price-feed-service/internal/constant"
	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/krobus00/price-feed-service/internal/service/pricing"
	"github.com/krobus00/price-feed-service/internal/service/subscription"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

type fakeTransport struct {
	mu          sync.Mutex
	connections []entity.ConnectionID
	pushed      map[entity.ConnectionID][]entity.FeedEvent
	failing     map[entity.ConnectionID]error
	panicking   map[entity.ConnectionID]bool
	listPanics  int
}

func newFakeTransport(connections ...entity.ConnectionID) *fakeTransport {
	return &fakeTransport{
		connections: connections,
		pushed:      make(map[entity.ConnectionID][]entity.FeedEvent),
		failing:     make(map[entity.ConnectionID]error),
		panicking:   make(map[entity.ConnectionID]bool),
	}
}

func (t *fakeTransport) ActiveConnections() []entity.ConnectionID {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listPanics > 0 {
		t.listPanics--
		panic("connection list unavailable")
	}

	connections := make([]entity.ConnectionID, len(t.connections))
	copy(connections, t.connections)
	sort.Slice(connections, func(i, j int) bool { return connections[i] < connections[j] })
	return connections
}

func (t *fakeTransport) Push(conn entity.ConnectionID, event entity.FeedEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.panicking[conn] {
		panic("socket exploded")
	}
	if err, ok := t.failing[conn]; ok {
		return err
	}
	t.pushed[conn] = append(t.pushed[conn], event)
	return nil
}

func (t *fakeTransport) events(conn entity.ConnectionID) []entity.FeedEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]entity.FeedEvent(nil), t.pushed[conn]...)
}

func (t *fakeTransport) total() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, events := range t.pushed {
		total += len(events)
	}
	return total
}

type fixture struct {
	store     *pricing.PriceStore
	generator *pricing.Generator
	directory *subscription.IdentityDirectory
	registry  *subscription.SessionRegistry
	service   *subscription.SubscriptionService
	transport *fakeTransport
	engine    *BroadcastEngine
}

func newFixture(t *testing.T, rnd pricing.Rand, connections ...entity.ConnectionID) *fixture {
	t.Helper()

	listings := make([]entity.InstrumentListing, 0, 5)
	for _, symbol := range []entity.Instrument{"GOOG", "TSLA", "AMZN", "META", "NVDA"} {
		listings = append(listings, entity.InstrumentListing{Symbol: symbol, BasePrice: decimal.NewFromInt(100)})
	}

	f := &fixture{store: pricing.NewPriceStore(listings)}
	f.generator = pricing.NewGenerator(f.store, rnd, pricing.GeneratorConfig{
		MaxChange: decimal.RequireFromString("0.02"),
		Floor:     decimal.RequireFromString("0.01"),
	})
	f.directory = subscription.NewIdentityDirectory(f.store.InstrumentSet())
	f.registry = subscription.NewSessionRegistry(f.directory)
	f.service = subscription.NewSubscriptionService(f.directory, f.registry)
	f.transport = newFakeTransport(connections...)
	f.engine = NewBroadcastEngine(f.registry, f.directory, f.store, f.transport)

	return f
}

func (f *fixture) bind(t *testing.T, conn entity.ConnectionID, identity entity.Identity, instruments ...entity.Instrument) {
	t.Helper()

	_, err := f.service.Bind(conn, identity)
	require.NoError(t, err)
	for _, instrument := range instruments {
		f.service.Subscribe(conn, instrument)
	}
}

func decodePriceUpdate(t *testing.T, event entity.FeedEvent) entity.PriceUpdate {
	t.Helper()

	require.Equal(t, constant.FeedEventPriceUpdate, event.Event)

	var update entity.PriceUpdate
	require.NoError(t, json.Unmarshal(event.Data, &update))
	return update
}

type recordingSink struct {
	mu    sync.Mutex
	ticks []entity.PriceTick
	err   error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) PublishTick(_ context.Context, tick entity.PriceTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticks = append(s.ticks, tick)
	return s.err
}

func (s *recordingSink) received() []entity.PriceTick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.PriceTick(nil), s.ticks...)
}

var errBroken = errors.New("broken pipe")
