package infrastructure

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/krobus00/price-feed-service/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	defaultNatsMaxRetries   = 10
	natsConnectTimeout      = 5 * time.Second
	tickPublishMaxWait      = 5 * time.Second
	natsFlushTimeout        = 5 * time.Second
	tickSinkConnectionLabel = "tick-sink"
)

var ErrNatsURLRequired = errors.New("nats jetstream url is required")

type natsOptions struct {
	url           string
	maxRetries    int
	backoffFactor float64
	minJitter     time.Duration
	maxJitter     time.Duration
}

func resolveNatsOptions(cfg config.NatsJetstreamConfig) (natsOptions, error) {
	opts := natsOptions{
		url:           strings.TrimSpace(cfg.URL),
		maxRetries:    cfg.MaxRetries,
		backoffFactor: cfg.ReconnectFactor,
		minJitter:     cfg.MinJitter,
		maxJitter:     cfg.MaxJitter,
	}
	if opts.url == "" {
		return opts, ErrNatsURLRequired
	}

	if opts.maxRetries <= 0 {
		opts.maxRetries = defaultNatsMaxRetries
	}
	if opts.backoffFactor < 1 {
		opts.backoffFactor = defaultBackoffFactor
	}
	if opts.minJitter <= 0 {
		opts.minJitter = defaultMinJitter
	}
	if opts.maxJitter <= 0 {
		opts.maxJitter = defaultMaxJitter
	}
	if opts.maxJitter < opts.minJitter {
		opts.maxJitter = opts.minJitter
	}

	return opts, nil
}

// NewJetstream connects the tick sink. Ticks are published one at a time
// with a synchronous ack, so only MaxWait is tuned on the context.
func NewJetstream(cfg config.NatsJetstreamConfig) (*nats.Conn, nats.JetStreamContext, error) {
	opts, err := resolveNatsOptions(cfg)
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	logger := logrus.WithField("nats_url", opts.url)

	nc, err := nats.Connect(opts.url,
		nats.Name(config.ServiceName+"-"+tickSinkConnectionLabel),
		nats.Timeout(natsConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(opts.maxRetries),
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			return BackoffWithJitter(attempts, opts.backoffFactor, opts.minJitter, opts.maxJitter, rng)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, disErr error) {
			logger.WithError(disErr).Warn("tick sink disconnected from nats")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("tick sink reconnected to nats")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream(nats.MaxWait(tickPublishMaxWait))
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}

	logger.WithField("max_retries", opts.maxRetries).Info("tick sink connected to nats jetstream")

	return nc, js, nil
}

// CloseJetstream flushes buffered writes before closing. Tick publishes wait
// for their ack, so nothing else is pending.
func CloseJetstream(nc *nats.Conn) error {
	if nc == nil {
		return nil
	}
	defer nc.Close()

	err := nc.FlushTimeout(natsFlushTimeout)
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("flush nats connection: %w", err)
	}

	return nil
}
