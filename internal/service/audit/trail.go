package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
)

const (
	defaultFlushInterval    = 5 * time.Second
	defaultFailureThreshold = 3
	detectTimeout           = 5 * time.Second
)

// Config tunes the trail's buffering behavior. Zero values take defaults.
type Config struct {
	// FlushInterval is the background flush cadence.
	FlushInterval time.Duration

	// FailureThreshold is the number of consecutive flush failures after
	// which a critical flush-failure alert fires.
	FailureThreshold int
}

// LogInput is the caller-facing description of one auditable action.
type LogInput struct {
	Type       audit.EventType
	EntityType string
	EntityID   string
	Action     string
	ActorID    string
	SourceAddr string
	Changes    []audit.ChangeRecord
	Metadata   map[string]interface{}
}

// Trail is the write path of the audit log. Events are buffered in memory
// and flushed on a fixed cadence; high-risk events flush synchronously.
// A failed flush requeues the batch at the front of the buffer, so the
// trail never drops an accepted event.
type Trail struct {
	store     EventStore
	directory Directory
	detector  *Detector
	metrics   *Metrics
	logger    *zap.Logger
	tracer    trace.Tracer

	flushInterval    time.Duration
	failureThreshold int

	// flushMu serializes whole flush attempts, drain through requeue.
	// A synchronous high-risk flush therefore waits for any in-flight
	// timer flush instead of seeing an emptied buffer and returning
	// before that batch is durable.
	flushMu sync.Mutex

	mu          sync.Mutex
	buffer      []*audit.Event
	consecFails int

	hmu      sync.RWMutex
	handlers map[int]AlertHandler
	nextID   int

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stop      chan struct{}
	done      chan struct{}
}

// NewTrail wires the trail. The detector may be nil to disable anomaly
// detection; nil metrics register on a private throwaway registry.
func NewTrail(store EventStore, directory Directory, detector *Detector, metrics *Metrics, logger *zap.Logger, cfg Config) *Trail {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}

	t := &Trail{
		store:            store,
		directory:        directory,
		detector:         detector,
		metrics:          metrics,
		logger:           logger,
		tracer:           otel.Tracer("audit.trail"),
		flushInterval:    cfg.FlushInterval,
		failureThreshold: cfg.FailureThreshold,
		handlers:         make(map[int]AlertHandler),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
	if detector != nil {
		detector.emit = t.Emit
		detector.metrics = metrics
	}
	return t
}

// Start launches the background flush loop.
func (t *Trail) Start() {
	t.startOnce.Do(func() {
		t.started = true
		go t.flushLoop()
	})
}

// Close stops the flush loop and drains the buffer one final time.
func (t *Trail) Close(ctx context.Context) error {
	t.stopOnce.Do(func() {
		close(t.stop)
		if t.started {
			<-t.done
		}
	})
	return t.Flush(ctx)
}

// LogEvent validates, enriches, and buffers one audit event, returning its
// ID. Identity lookup failures degrade to the unknown sentinel rather than
// blocking the write. High-risk actions flush synchronously and alert
// before returning; a failed high-risk flush returns the error with the
// event still queued for retry.
func (t *Trail) LogEvent(ctx context.Context, input LogInput) (uuid.UUID, error) {
	ctx, span := t.tracer.Start(ctx, "audit.trail.log_event",
		trace.WithAttributes(
			attribute.String("event.type", string(input.Type)),
			attribute.String("event.action", input.Action),
		))
	defer span.End()

	event, err := audit.NewEvent(input.Type, input.EntityType, input.EntityID, input.Action, input.ActorID)
	if err != nil {
		return uuid.Nil, err
	}

	identity := t.resolveIdentity(ctx, input.ActorID)
	event.ActorEmail = identity.Email
	event.ActorRole = identity.Role
	event.SourceAddr = input.SourceAddr
	event.Changes = input.Changes
	event.Metadata = input.Metadata

	t.mu.Lock()
	t.buffer = append(t.buffer, event)
	depth := len(t.buffer)
	t.mu.Unlock()

	t.metrics.EventsLogged.WithLabelValues(string(event.Type)).Inc()
	t.metrics.BufferDepth.Set(float64(depth))

	if t.detector != nil {
		go t.inspect(event)
	}

	if event.IsHighRisk() {
		t.metrics.HighRiskEvents.Inc()
		t.Emit(Alert{
			Kind:     AlertHighRisk,
			Severity: "high",
			Message:  fmt.Sprintf("high-risk action %q by actor %s on %s", event.Action, event.ActorID, event.EntityType),
			Event:    event,
			At:       time.Now().UTC(),
		})
		if err := t.Flush(ctx); err != nil {
			return event.ID, err
		}
	}

	return event.ID, nil
}

// Flush drains the buffer into the event store. On failure the whole batch
// is requeued ahead of anything logged meanwhile, preserving order for the
// next attempt. Flushes are serialized: a caller always waits out any
// in-flight flush, so a requeued failure is visible to its retry.
func (t *Trail) Flush(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "audit.trail.flush")
	defer span.End()

	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	t.mu.Lock()
	if len(t.buffer) == 0 {
		t.mu.Unlock()
		return nil
	}
	batch := t.buffer
	t.buffer = nil
	t.mu.Unlock()

	start := time.Now()
	err := t.store.InsertBatch(ctx, batch)
	t.metrics.FlushDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		t.mu.Lock()
		t.buffer = append(batch, t.buffer...)
		t.consecFails++
		fails := t.consecFails
		depth := len(t.buffer)
		t.mu.Unlock()

		t.metrics.FlushFailures.Inc()
		t.metrics.BufferDepth.Set(float64(depth))
		t.logger.Error("audit flush failed, batch requeued",
			zap.Int("batch_size", len(batch)),
			zap.Int("consecutive_failures", fails),
			zap.Error(err),
		)
		if fails >= t.failureThreshold {
			t.Emit(Alert{
				Kind:     AlertFlushFailure,
				Severity: "critical",
				Message:  fmt.Sprintf("audit flush has failed %d consecutive times, %d events buffered", fails, depth),
				At:       time.Now().UTC(),
			})
		}
		return errors.NewInternalError("audit event flush failed").WithCause(err)
	}

	t.mu.Lock()
	t.consecFails = 0
	depth := len(t.buffer)
	t.mu.Unlock()

	t.metrics.FlushBatches.Inc()
	t.metrics.BufferDepth.Set(float64(depth))
	span.SetAttributes(attribute.Int("batch.size", len(batch)))
	return nil
}

// BufferLen reports the events currently buffered.
func (t *Trail) BufferLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffer)
}

// Subscribe registers an alert handler and returns its unsubscribe func.
func (t *Trail) Subscribe(handler AlertHandler) func() {
	t.hmu.Lock()
	id := t.nextID
	t.nextID++
	t.handlers[id] = handler
	t.hmu.Unlock()

	return func() {
		t.hmu.Lock()
		delete(t.handlers, id)
		t.hmu.Unlock()
	}
}

// Emit delivers an alert to every subscribed handler. A panicking handler
// is contained and does not affect the others.
func (t *Trail) Emit(alert Alert) {
	t.hmu.RLock()
	handlers := make([]AlertHandler, 0, len(t.handlers))
	for _, h := range t.handlers {
		handlers = append(handlers, h)
	}
	t.hmu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error("alert handler panicked",
						zap.String("kind", string(alert.Kind)),
						zap.Any("panic", r),
					)
				}
			}()
			handler(alert)
		}()
	}
}

func (t *Trail) flushLoop() {
	defer close(t.done)

	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Failures are logged and the batch requeued; nothing to do here.
			_ = t.Flush(context.Background())
		case <-t.stop:
			return
		}
	}
}

func (t *Trail) resolveIdentity(ctx context.Context, actorID string) Identity {
	identity, err := t.directory.Lookup(ctx, actorID)
	if err != nil {
		t.logger.Warn("actor identity lookup failed",
			zap.String("actor_id", actorID),
			zap.Error(err),
		)
		return UnknownIdentity
	}
	return identity
}

// inspect runs anomaly detection off the logging path. Detection failures
// never affect the event itself.
func (t *Trail) inspect(event *audit.Event) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("anomaly detection panicked",
				zap.String("event_id", event.ID.String()),
				zap.Any("panic", r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
	defer cancel()

	if _, err := t.detector.Inspect(ctx, event); err != nil {
		t.logger.Warn("anomaly detection failed",
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
	}
}
