package subscription

import (
	"sync"

	"github.com/krobus00/price-feed-service/internal/entity"
)

// IdentityDirectory maps an identity to its subscribed instruments. Entries
// live for the lifetime of the process; nothing here is ever deleted, so a
// returning identity always finds its previous subscriptions.
type IdentityDirectory struct {
	mu          sync.RWMutex
	instruments entity.InstrumentSet
	identities  map[entity.Identity]entity.InstrumentSet
}

func NewIdentityDirectory(instruments entity.InstrumentSet) *IdentityDirectory {
	return &IdentityDirectory{
		instruments: instruments,
		identities:  make(map[entity.Identity]entity.InstrumentSet),
	}
}

// Ensure returns the subscriptions of identity, creating an empty set the
// first time the identity is seen.
func (d *IdentityDirectory) Ensure(identity entity.Identity) []entity.Instrument {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs, ok := d.identities[identity]
	if !ok {
		subs = make(entity.InstrumentSet)
		d.identities[identity] = subs
	}

	return subs.Sorted()
}

// Add reports whether instrument was inserted. Unknown instruments and
// instruments already present are ignored.
func (d *IdentityDirectory) Add(identity entity.Identity, instrument entity.Instrument) bool {
	if !d.instruments.Contains(instrument) {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	subs, ok := d.identities[identity]
	if !ok {
		subs = make(entity.InstrumentSet)
		d.identities[identity] = subs
	}
	if _, exists := subs[instrument]; exists {
		return false
	}
	subs[instrument] = struct{}{}

	return true
}

// Remove reports whether instrument was present.
func (d *IdentityDirectory) Remove(identity entity.Identity, instrument entity.Instrument) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs, ok := d.identities[identity]
	if !ok {
		return false
	}
	if _, exists := subs[instrument]; !exists {
		return false
	}
	delete(subs, instrument)

	return true
}

// Get never creates an entry; unknown identities have no subscriptions.
func (d *IdentityDirectory) Get(identity entity.Identity) []entity.Instrument {
	d.mu.RLock()
	defer d.mu.RUnlock()

	subs, ok := d.identities[identity]
	if !ok {
		return []entity.Instrument{}
	}

	return subs.Sorted()
}

func (d *IdentityDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.identities)
}
