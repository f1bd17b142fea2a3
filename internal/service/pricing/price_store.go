package pricing

import (
	"sync"

	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/shopspring/decimal"
)

// PriceStore holds the current price per instrument. Only the Generator
// writes to it.
type PriceStore struct {
	mu          sync.RWMutex
	prices      map[entity.Instrument]decimal.Decimal
	instruments []entity.Instrument
}

func NewPriceStore(listings []entity.InstrumentListing) *PriceStore {
	store := &PriceStore{
		prices:      make(map[entity.Instrument]decimal.Decimal, len(listings)),
		instruments: make([]entity.Instrument, 0, len(listings)),
	}

	for _, listing := range listings {
		if _, ok := store.prices[listing.Symbol]; !ok {
			store.instruments = append(store.instruments, listing.Symbol)
		}
		store.prices[listing.Symbol] = listing.BasePrice.Round(2)
	}
	entity.SortInstruments(store.instruments)

	return store
}

// Instruments returns the instrument set ordered by symbol.
func (s *PriceStore) Instruments() []entity.Instrument {
	instruments := make([]entity.Instrument, len(s.instruments))
	copy(instruments, s.instruments)
	return instruments
}

func (s *PriceStore) InstrumentSet() entity.InstrumentSet {
	return entity.NewInstrumentSet(s.instruments...)
}

func (s *PriceStore) Get(instrument entity.Instrument) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[instrument]
	return price, ok
}

// Snapshot returns the current prices of the given instruments. Instruments
// outside the set are left out.
func (s *PriceStore) Snapshot(instruments []entity.Instrument) entity.PriceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(entity.PriceSnapshot, len(instruments))
	for _, instrument := range instruments {
		if price, ok := s.prices[instrument]; ok {
			snapshot[instrument] = price
		}
	}

	return snapshot
}

func (s *PriceStore) All() entity.PriceSnapshot {
	return s.Snapshot(s.instruments)
}

// update applies fn to every price under a single write lock.
func (s *PriceStore) update(fn func(instrument entity.Instrument, current decimal.Decimal) decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, instrument := range s.instruments {
		s.prices[instrument] = fn(instrument, s.prices[instrument])
	}
}
