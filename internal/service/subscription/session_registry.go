package subscription

import (
	"sync"

	"github.com/krobus00/price-feed-service/internal/entity"
)

// SessionRegistry binds open connections to identities. A binding only lives
// as long as its connection.
type SessionRegistry struct {
	mu        sync.RWMutex
	directory *IdentityDirectory
	sessions  map[entity.ConnectionID]entity.Identity
}

func NewSessionRegistry(directory *IdentityDirectory) *SessionRegistry {
	return &SessionRegistry{
		directory: directory,
		sessions:  make(map[entity.ConnectionID]entity.Identity),
	}
}

// Bind sets or replaces the identity of conn and returns the identity's
// current subscriptions.
func (r *SessionRegistry) Bind(conn entity.ConnectionID, identity entity.Identity) []entity.Instrument {
	r.mu.Lock()
	r.sessions[conn] = identity
	r.mu.Unlock()

	return r.directory.Ensure(identity)
}

func (r *SessionRegistry) IdentityOf(conn entity.ConnectionID) (entity.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.sessions[conn]
	return identity, ok
}

// Unbind forgets the session only. The identity's subscriptions stay in the
// directory.
func (r *SessionRegistry) Unbind(conn entity.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conn)
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
