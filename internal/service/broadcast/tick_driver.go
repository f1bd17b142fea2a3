package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/krobus00/price-feed-service/internal/metrics"
	"github.com/krobus00/price-feed-service/internal/service/pricing"
	"github.com/sirupsen/logrus"
)

const sinkPublishTimeout = 5 * time.Second

type TickDriverConfig struct {
	Interval       time.Duration
	SinkBufferSize int
}

// TickDriver runs generate then broadcast on a fixed interval. At most one
// tick is in flight at any time.
type TickDriver struct {
	mu        sync.Mutex
	generator *pricing.Generator
	store     *pricing.PriceStore
	engine    *BroadcastEngine
	clock     clockwork.Clock
	interval  time.Duration
	sequence  int64
	sinks     []entity.TickSink
	sinkQueue chan entity.PriceTick
	closed    bool
}

func NewTickDriver(generator *pricing.Generator, store *pricing.PriceStore, engine *BroadcastEngine, clock clockwork.Clock, cfg TickDriverConfig, sinks ...entity.TickSink) *TickDriver {
	bufferSize := cfg.SinkBufferSize
	if bufferSize <= 0 {
		bufferSize = 1
	}

	return &TickDriver{
		generator: generator,
		store:     store,
		engine:    engine,
		clock:     clock,
		interval:  cfg.Interval,
		sinks:     sinks,
		sinkQueue: make(chan entity.PriceTick, bufferSize),
	}
}

// Tick advances every price once and pushes the result to subscribers.
func (d *TickDriver) Tick(ctx context.Context) entity.PriceTick {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := d.clock.Now()

	d.generator.Tick()
	delivered := d.engine.Broadcast(ctx)

	d.sequence++
	tick := entity.PriceTick{
		Sequence: d.sequence,
		Time:     start.UTC(),
		Prices:   d.store.All(),
	}
	d.enqueueSink(tick)

	metrics.TicksTotal.Inc()
	metrics.TickDuration.Observe(d.clock.Since(start).Seconds())
	logrus.WithFields(logrus.Fields{
		"sequence":  tick.Sequence,
		"delivered": delivered,
	}).Debug("tick")

	return tick
}

// enqueueSink never blocks the tick loop. Must be called with mu held.
func (d *TickDriver) enqueueSink(tick entity.PriceTick) {
	if len(d.sinks) == 0 || d.closed {
		return
	}

	select {
	case d.sinkQueue <- tick:
	default:
		metrics.SinkDroppedTicksTotal.Inc()
		logrus.WithField("sequence", tick.Sequence).Warn("sink queue full, tick dropped")
	}
}

// Run blocks until ctx is cancelled. Pending sink ticks are flushed before
// it returns.
func (d *TickDriver) Run(ctx context.Context) {
	var wg sync.WaitGroup
	if len(d.sinks) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.runSinks(ctx)
		}()
	}

	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	logrus.WithField("interval", d.interval).Info("tick loop started")

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			d.closed = true
			close(d.sinkQueue)
			d.mu.Unlock()

			wg.Wait()
			logrus.Info("tick loop stopped")
			return
		case <-ticker.Chan():
			d.safeTick(ctx)
		}
	}
}

func (d *TickDriver) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TickPanicsTotal.Inc()
			logrus.Error(fmt.Sprintf("tick panic recovered: %v", r))
		}
	}()

	d.Tick(ctx)
}

func (d *TickDriver) runSinks(ctx context.Context) {
	publishCtx := context.WithoutCancel(ctx)

	for tick := range d.sinkQueue {
		for _, sink := range d.sinks {
			d.publish(publishCtx, sink, tick)
		}
	}
}

func (d *TickDriver) publish(ctx context.Context, sink entity.TickSink, tick entity.PriceTick) {
	ctx, cancel := context.WithTimeout(ctx, sinkPublishTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.SinkPublishTotal.WithLabelValues(sink.Name(), "panic").Inc()
			logrus.WithField("sink", sink.Name()).Error(fmt.Sprintf("sink panic recovered: %v", r))
		}
	}()

	err := sink.PublishTick(ctx, tick)
	if err != nil {
		metrics.SinkPublishTotal.WithLabelValues(sink.Name(), "error").Inc()
		logrus.WithFields(logrus.Fields{
			"sink":     sink.Name(),
			"sequence": tick.Sequence,
		}).Error(err)
		return
	}

	metrics.SinkPublishTotal.WithLabelValues(sink.Name(), "success").Inc()
}
