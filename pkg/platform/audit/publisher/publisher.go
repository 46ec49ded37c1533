// Package publisher provides the buffered, fire-and-forget audit pipeline.
//
// Emit enqueues into a bounded ring buffer and returns immediately; a single
// dispatcher goroutine drains the buffer in batches to a Sink. Failed batches
// are retried with backoff and end up in a bounded dead-letter buffer once
// the attempt budget is exhausted. The request path is never blocked and
// never fails because of auditing.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"trafficase/pkg/platform/audit"
	"trafficase/pkg/requestcontext"
)

// Config tunes the dispatcher.
type Config struct {
	QueueSize      int
	BatchSize      int
	MaxAttempts    int
	RetryBackoff   time.Duration
	FlushInterval  time.Duration
	DeadLetterSize int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:      10000,
		BatchSize:      100,
		MaxAttempts:    5,
		RetryBackoff:   500 * time.Millisecond,
		FlushInterval:  time.Second,
		DeadLetterSize: 1000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.DeadLetterSize <= 0 {
		c.DeadLetterSize = d.DeadLetterSize
	}
	return c
}

// Publisher is the buffered audit publisher.
type Publisher struct {
	sink       audit.Sink
	buffer     *audit.RingBuffer
	deadLetter *audit.RingBuffer
	cfg        Config
	logger     *slog.Logger
	metrics    *Metrics

	stop chan struct{}
	done chan struct{}
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New creates a publisher and starts its dispatcher goroutine. Callers own
// the lifecycle and must Close to drain.
func New(sink audit.Sink, cfg Config, opts ...Option) *Publisher {
	cfg = cfg.withDefaults()
	p := &Publisher{
		sink:       sink,
		buffer:     audit.NewRingBuffer(cfg.QueueSize),
		deadLetter: audit.NewRingBuffer(cfg.DeadLetterSize),
		cfg:        cfg,
		logger:     slog.Default(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.loop()
	return p
}

// Emit enqueues an event without blocking. The timestamp, request id, and
// idempotency key are filled from the context when absent.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.IdempotencyKey == "" {
		event.IdempotencyKey = requestcontext.IdempotencyKey(ctx)
	}
	p.buffer.Enqueue(event)
	if p.metrics != nil {
		p.metrics.Emitted.Inc()
	}
}

// DeadLetters returns the events that exhausted their delivery attempts.
func (p *Publisher) DeadLetters() []audit.Event {
	return p.deadLetter.DequeueBatch(p.cfg.DeadLetterSize)
}

// Close stops the dispatcher, drains remaining events, and closes the sink.
func (p *Publisher) Close() error {
	close(p.stop)
	<-p.done
	return p.sink.Close()
}

func (p *Publisher) loop() {
	defer close(p.done)
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			p.drain()
			return
		case <-ticker.C:
			p.flush()
		}
	}
}

func (p *Publisher) flush() {
	for {
		batch := p.buffer.DequeueBatch(p.cfg.BatchSize)
		if len(batch) == 0 {
			return
		}
		if !p.deliver(batch) {
			return
		}
	}
}

// drain flushes everything left in the buffer on shutdown. Dead-lettered
// batches are not retried here.
func (p *Publisher) drain() {
	for {
		batch := p.buffer.DequeueBatch(p.cfg.BatchSize)
		if len(batch) == 0 {
			return
		}
		p.deliver(batch)
	}
}

// deliver publishes one batch with retry. Returns false when the batch could
// not be delivered, after moving it to the dead-letter buffer.
func (p *Publisher) deliver(batch []audit.Event) bool {
	ctx := context.Background()
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := p.sink.Publish(ctx, batch); err == nil {
			if p.metrics != nil {
				p.metrics.Published.Add(float64(len(batch)))
			}
			return true
		} else {
			lastErr = err
		}
		if p.metrics != nil {
			p.metrics.PublishRetries.Inc()
		}
		time.Sleep(p.cfg.RetryBackoff * time.Duration(attempt))
	}

	p.logger.Error("audit batch dead-lettered",
		"batch_size", len(batch),
		"attempts", p.cfg.MaxAttempts,
		"error", lastErr,
	)
	for _, event := range batch {
		p.deadLetter.Enqueue(event)
	}
	if p.metrics != nil {
		p.metrics.DeadLettered.Add(float64(len(batch)))
	}
	return false
}
