package entity

import "errors"

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSendBufferFull     = errors.New("send buffer full")
)

// Identity is the durable user key a client logs in with, e.g. an email
// address. Compared by exact string match only.
type Identity string

// ConnectionID is issued by the transport per open connection.
type ConnectionID string

// SubscriptionService is the set of operations a transport adapter calls
// for connection lifecycle events.
type SubscriptionService interface {
	Bind(conn ConnectionID, identity Identity) ([]Instrument, error)
	Subscribe(conn ConnectionID, instrument Instrument)
	Unsubscribe(conn ConnectionID, instrument Instrument)
	Disconnect(conn ConnectionID)
}

// PushTransport owns the set of open connections. The broadcast engine only
// enumerates it and pushes events to single connections.
type PushTransport interface {
	ActiveConnections() []ConnectionID
	Push(conn ConnectionID, event FeedEvent) error
}
