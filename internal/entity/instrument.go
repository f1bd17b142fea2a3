package entity

import (
	"sort"

	"github.com/shopspring/decimal"
)

type Instrument string

// InstrumentSet is the closed set of instruments known at startup.
type InstrumentSet map[Instrument]struct{}

func NewInstrumentSet(instruments ...Instrument) InstrumentSet {
	set := make(InstrumentSet, len(instruments))
	for _, instrument := range instruments {
		set[instrument] = struct{}{}
	}

	return set
}

func (s InstrumentSet) Contains(instrument Instrument) bool {
	_, ok := s[instrument]
	return ok
}

// Sorted returns the members ordered by symbol.
func (s InstrumentSet) Sorted() []Instrument {
	instruments := make([]Instrument, 0, len(s))
	for instrument := range s {
		instruments = append(instruments, instrument)
	}
	SortInstruments(instruments)

	return instruments
}

func SortInstruments(instruments []Instrument) {
	sort.Slice(instruments, func(i, j int) bool {
		return instruments[i] < instruments[j]
	})
}

// InstrumentListing is one row of the instrument catalog.
type InstrumentListing struct {
	Symbol    Instrument
	BasePrice decimal.Decimal
}
