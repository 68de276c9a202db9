package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/metrics"
)

// Recorder consumes events in-process.
type Recorder interface {
	Record(Event)
}

// Collector buffers events off the request path and flushes them in batches
// to Kafka and to an optional local Recorder. Track never blocks; events are
// dropped when the buffer is full.
type Collector struct {
	publisher     kafka.Publisher
	local         Recorder
	eventCh       chan Event
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
	quit          chan struct{}
	done          chan struct{}
	started       atomic.Bool
	closeOnce     sync.Once
}

type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// NewCollector creates a Collector. publisher, local and m may each be nil.
func NewCollector(publisher kafka.Publisher, local Recorder, m *metrics.Metrics, cfg CollectorConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		local:         local,
		eventCh:       make(chan Event, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		metrics:       m,
		logger:        slog.Default().With("component", "analytics-collector"),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. It stops when ctx is done or Close is
// called, flushing what is buffered first.
func (c *Collector) Start(ctx context.Context) {
	c.started.Store(true)
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]Event, 0, c.batchSize)
		for {
			select {
			case event := <-c.eventCh:
				batch = append(batch, event)
				if len(batch) >= c.batchSize {
					c.flush(ctx, batch)
					batch = batch[:0]
				}
			case <-ticker.C:
				c.flush(ctx, batch)
				batch = batch[:0]
			case <-c.quit:
				c.flush(context.Background(), c.drainInto(batch))
				return
			case <-ctx.Done():
				batch = c.drainInto(batch)
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx, batch)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh), "batch_size", c.batchSize)
}

func (c *Collector) Track(event Event) {
	select {
	case <-c.quit:
		return
	default:
	}
	select {
	case c.eventCh <- event:
	default:
		if c.metrics != nil {
			c.metrics.AnalyticsDropped.Inc()
		}
		c.logger.Warn("analytics event dropped (buffer full)", "type", event.Type)
	}
}

// Close stops accepting events and waits for the final flush. Events tracked
// afterwards are discarded.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
	if c.started.Load() {
		<-c.done
	}
}

func (c *Collector) drainInto(batch []Event) []Event {
	for {
		select {
		case event := <-c.eventCh:
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []Event) {
	if len(batch) == 0 {
		return
	}
	if c.local != nil {
		for _, e := range batch {
			c.local.Record(e)
		}
	}
	if c.publisher == nil {
		return
	}
	events := make([]kafka.Event, len(batch))
	for i, e := range batch {
		events[i] = kafka.Event{Key: string(e.Type), Type: string(e.Type), Value: e}
	}
	if err := c.publisher.PublishBatch(ctx, events); err != nil {
		c.logger.Error("failed to publish analytics batch", "count", len(events), "error", err)
	}
}
