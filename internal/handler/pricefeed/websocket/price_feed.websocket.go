package websocket

import (
	"errors"
	"net/http"
	"slices"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/krobus00/price-feed-service/internal/config"
	"github.com/krobus00/price-feed-service/internal/constant"
	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/krobus00/price-feed-service/internal/metrics"
	"github.com/sirupsen/logrus"
)

var (
	errMalformedFrame = errors.New("malformed frame")
	errUnknownEvent   = errors.New("unknown event")
)

var _ entity.PushTransport = (*Handler)(nil)

// Handler upgrades /ws requests and owns the set of active connections.
type Handler struct {
	service  entity.SubscriptionService
	cfg      config.WebsocketConfig
	clock    clockwork.Clock
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[entity.ConnectionID]*client
}

func NewPriceFeedWebsocketHandler(service entity.SubscriptionService, cfg config.WebsocketConfig, clock clockwork.Clock) *Handler {
	h := &Handler{
		service: service,
		cfg:     cfg,
		clock:   clock,
		clients: make(map[entity.ConnectionID]*client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.Serve)
}

// checkOrigin accepts clients that send no Origin header, such as the watch
// command. Browsers must match allowed_origins unless it contains "*".
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	return slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin)
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithField("origin", r.Header.Get("Origin")).Warnf("websocket upgrade failed: %v", err)
		return
	}

	c := newClient(entity.ConnectionID(uuid.NewString()), conn, h.clock, h.cfg)
	h.register(c)

	logger := logrus.WithField("connection", c.id)
	logger.Info("client connected")

	h.readPump(c)

	h.unregister(c.id)
	h.service.Disconnect(c.id)
	c.stop(websocket.CloseNormalClosure, "")

	logger.Info("client disconnected")
}

func (h *Handler) readPump(c *client) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logrus.WithField("connection", c.id).Debugf("read failed: %v", err)
			}
			return
		}

		if !c.limiter.Allow() {
			metrics.InboundEventsTotal.WithLabelValues("", "rate_limited").Inc()
			continue
		}

		var event entity.FeedEvent
		if err := json.Unmarshal(message, &event); err != nil {
			metrics.InboundEventsTotal.WithLabelValues("", "malformed").Inc()
			logrus.WithField("connection", c.id).Debugf("%v: %v", errMalformedFrame, err)
			continue
		}

		err = h.handleEvent(c, event)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"connection": c.id,
				"event":      event.Event,
			}).Debug(err)
			metrics.InboundEventsTotal.WithLabelValues(eventLabel(event.Event), statusLabel(err)).Inc()
			continue
		}

		metrics.InboundEventsTotal.WithLabelValues(event.Event, "success").Inc()
	}
}

func (h *Handler) handleEvent(c *client, event entity.FeedEvent) error {
	switch event.Event {
	case constant.FeedEventLogin:
		identity, err := decodeString(event.Data)
		if err != nil {
			return err
		}

		subs, err := h.service.Bind(c.id, entity.Identity(identity))
		if err != nil {
			return err
		}

		reply, err := entity.NewFeedEvent(constant.FeedEventSubscriptionsLoaded, subs)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(reply)
		if err != nil {
			return err
		}

		// the client resumes from a fresh login once it reconnects
		err = c.enqueueWait(payload)
		if err != nil {
			c.stop(websocket.CloseTryAgainLater, "subscriptions not delivered")
			return err
		}

		return nil
	case constant.FeedEventSubscribe:
		symbol, err := decodeString(event.Data)
		if err != nil {
			return err
		}

		h.service.Subscribe(c.id, entity.Instrument(symbol))
		return nil
	case constant.FeedEventUnsubscribe:
		symbol, err := decodeString(event.Data)
		if err != nil {
			return err
		}

		h.service.Unsubscribe(c.id, entity.Instrument(symbol))
		return nil
	default:
		return errUnknownEvent
	}
}

func decodeString(data json.RawMessage) (string, error) {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return "", errMalformedFrame
	}

	return value, nil
}

func (h *Handler) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectedClients.Set(float64(count))
}

func (h *Handler) unregister(id entity.ConnectionID) {
	h.mu.Lock()
	delete(h.clients, id)
	count := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectedClients.Set(float64(count))
}

func (h *Handler) ActiveConnections() []entity.ConnectionID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]entity.ConnectionID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}

	return ids
}

// Push encodes event and queues it on the connection's send buffer. A slow
// client gets ErrSendBufferFull and stays connected.
func (h *Handler) Push(conn entity.ConnectionID, event entity.FeedEvent) error {
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return entity.ErrConnectionNotFound
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return c.enqueue(payload)
}

// CloseAll sends a going away frame to every client. Their read loops then
// run the normal disconnect path.
func (h *Handler) CloseAll(reason string) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.stop(websocket.CloseGoingAway, reason)
	}
}

func eventLabel(event string) string {
	switch event {
	case constant.FeedEventLogin, constant.FeedEventSubscribe, constant.FeedEventUnsubscribe:
		return event
	default:
		return "unknown"
	}
}

func statusLabel(err error) string {
	switch {
	case errors.Is(err, errMalformedFrame):
		return "malformed"
	case errors.Is(err, errUnknownEvent):
		return "unknown"
	case errors.Is(err, entity.ErrSendBufferFull):
		return "buffer_full"
	default:
		return "rejected"
	}
}
