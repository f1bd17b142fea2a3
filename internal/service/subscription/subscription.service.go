package subscription

import (
	"errors"

	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/krobus00/price-feed-service/internal/metrics"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyIdentity = errors.New("identity is required")
)

var _ entity.SubscriptionService = (*SubscriptionService)(nil)

type SubscriptionService struct {
	directory *IdentityDirectory
	registry  *SessionRegistry
}

func NewSubscriptionService(directory *IdentityDirectory, registry *SessionRegistry) *SubscriptionService {
	return &SubscriptionService{
		directory: directory,
		registry:  registry,
	}
}

func (s *SubscriptionService) Bind(conn entity.ConnectionID, identity entity.Identity) ([]entity.Instrument, error) {
	if identity == "" {
		return nil, ErrEmptyIdentity
	}

	subs := s.registry.Bind(conn, identity)

	metrics.BoundSessions.Set(float64(s.registry.Len()))
	metrics.KnownIdentities.Set(float64(s.directory.Len()))
	logrus.WithFields(logrus.Fields{
		"connection":    conn,
		"identity":      identity,
		"subscriptions": len(subs),
	}).Info("session bound")

	return subs, nil
}

// Subscribe is a silent no-op for unbound connections and unknown
// instruments.
func (s *SubscriptionService) Subscribe(conn entity.ConnectionID, instrument entity.Instrument) {
	logger := logrus.WithFields(logrus.Fields{
		"connection": conn,
		"instrument": instrument,
	})

	identity, ok := s.registry.IdentityOf(conn)
	if !ok {
		logger.Debug("subscribe ignored: connection not bound")
		return
	}

	if !s.directory.Add(identity, instrument) {
		logger.WithField("identity", identity).Debug("subscribe ignored: unknown or already subscribed")
		return
	}

	logger.WithField("identity", identity).Debug("subscribed")
}

func (s *SubscriptionService) Unsubscribe(conn entity.ConnectionID, instrument entity.Instrument) {
	logger := logrus.WithFields(logrus.Fields{
		"connection": conn,
		"instrument": instrument,
	})

	identity, ok := s.registry.IdentityOf(conn)
	if !ok {
		logger.Debug("unsubscribe ignored: connection not bound")
		return
	}

	if !s.directory.Remove(identity, instrument) {
		logger.WithField("identity", identity).Debug("unsubscribe ignored: not subscribed")
		return
	}

	logger.WithField("identity", identity).Debug("unsubscribed")
}

// Disconnect drops the session binding. Subscriptions of the identity are
// kept and come back on the next Bind with the same identity.
func (s *SubscriptionService) Disconnect(conn entity.ConnectionID) {
	s.registry.Unbind(conn)
	metrics.BoundSessions.Set(float64(s.registry.Len()))
	logrus.WithField("connection", conn).Debug("session unbound")
}
