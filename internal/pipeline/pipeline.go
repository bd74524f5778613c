package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/observability"
)

// ErrOutboxFull is returned by Publish when the queue has no room.
var ErrOutboxFull = errors.New("event outbox is full")

// drainTimeout bounds the final flush after Run's context is cancelled.
const drainTimeout = 5 * time.Second

// BatchLoader writes multiple polygon events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.PolygonEvent) error
}

// Outbox decouples event producers from the broker. Publish enqueues without
// blocking; Run drains the queue in batches and retries failed writes with
// exponential backoff. It implements dashboard.EventPublisher.
type Outbox struct {
	loader        BatchLoader
	queue         chan domain.PolygonEvent
	logger        *slog.Logger
	metrics       *observability.Metrics
	batchSize     int
	flushInterval time.Duration
}

// NewOutbox creates an Outbox holding up to bufferSize pending events.
func NewOutbox(l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, bufferSize, batchSize int, flushInterval time.Duration) *Outbox {
	return &Outbox{
		loader:        l,
		queue:         make(chan domain.PolygonEvent, bufferSize),
		logger:        logger,
		metrics:       metrics,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Publish enqueues event. It never blocks, so events raised while the caller's
// context is being cancelled are still accepted.
func (o *Outbox) Publish(_ context.Context, event domain.PolygonEvent) error {
	select {
	case o.queue <- event:
		o.metrics.EventsQueued.Set(float64(len(o.queue)))
		return nil
	default:
		o.metrics.EventsDropped.Inc()
		return ErrOutboxFull
	}
}

// Run delivers queued events until ctx is cancelled, then makes one bounded
// attempt to flush whatever is still queued.
func (o *Outbox) Run(ctx context.Context) error {
	o.logger.Info("event outbox started", "batch_size", o.batchSize, "flush_interval", o.flushInterval)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		batch, ok := o.collect(ctx)
		if len(batch) > 0 && !o.deliver(ctx, batch, &backoff, maxBackoff) {
			o.drain(batch)
			return nil
		}
		if !ok {
			o.drain(nil)
			return nil
		}
	}
}

// collect waits for the first event, then gathers more until the batch is
// full or the flush interval elapses. It returns false once ctx is done.
func (o *Outbox) collect(ctx context.Context) ([]domain.PolygonEvent, bool) {
	var batch []domain.PolygonEvent
	select {
	case <-ctx.Done():
		return nil, false
	case e := <-o.queue:
		batch = append(batch, e)
	}

	timer := time.NewTimer(o.flushInterval)
	defer timer.Stop()
	for len(batch) < o.batchSize {
		select {
		case <-ctx.Done():
			return batch, false
		case <-timer.C:
			return batch, true
		case e := <-o.queue:
			batch = append(batch, e)
		}
	}
	return batch, true
}

// deliver writes batch, retrying until it succeeds. Returns false if ctx was
// cancelled before the batch was written.
func (o *Outbox) deliver(ctx context.Context, batch []domain.PolygonEvent, backoff *time.Duration, maxBackoff time.Duration) bool {
	o.metrics.EventsQueued.Set(float64(len(o.queue)))
	for {
		err := o.loader.LoadBatch(ctx, batch)
		if err == nil {
			o.delivered(batch)
			*backoff = 200 * time.Millisecond
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		o.metrics.PublishErrors.Inc()
		o.logger.Error("load event batch failed", "error", err, "batch_size", len(batch), "retry_in", *backoff)

		if !sleepWithContext(ctx, *backoff) {
			return false
		}
		*backoff = nextBackoff(*backoff, maxBackoff)
	}
}

// drain makes a single attempt to write pending plus everything left in the
// queue, detached from the cancelled run context.
func (o *Outbox) drain(pending []domain.PolygonEvent) {
	for drained := false; !drained; {
		select {
		case e := <-o.queue:
			pending = append(pending, e)
		default:
			drained = true
		}
	}
	o.metrics.EventsQueued.Set(0)
	if len(pending) == 0 {
		o.logger.Info("event outbox stopped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := o.loader.LoadBatch(ctx, pending); err != nil {
		o.metrics.PublishErrors.Inc()
		o.logger.Error("final event flush failed", "error", err, "lost", len(pending))
		return
	}
	o.delivered(pending)
	o.logger.Info("event outbox stopped", "flushed", len(pending))
}

func (o *Outbox) delivered(batch []domain.PolygonEvent) {
	o.metrics.EventsDelivered.Add(float64(len(batch)))
	o.metrics.EventBatchSize.Observe(float64(len(batch)))
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
