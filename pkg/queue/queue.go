// Package queue buffers enriched signals and delivers them in batches.
//
// A Queue cuts a batch as soon as the buffer reaches the configured batch
// size and also flushes when its periodic timer fires or the owner asks.
// Failed batches are put back at the head of the buffer so previously-failed
// signals always precede newer ones. Sends are serialised; at most one
// delivery call is in flight.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/hawkeye-go/pkg/domain"
	"github.com/polisai/hawkeye-go/pkg/logging"
	"github.com/polisai/hawkeye-go/pkg/metrics"
	"github.com/polisai/hawkeye-go/pkg/telemetry"
)

// Sender performs one delivery call.
type Sender interface {
	Send(ctx context.Context, req *domain.IngestRequest) (*domain.IngestResponse, error)
}

// Filter admits, rewrites or rejects raw signals before enrichment.
type Filter interface {
	Admit(ctx context.Context, sig domain.Signal) (domain.Signal, bool)
}

// Options configure a Queue.
type Options struct {
	APIKey        string
	Environment   string
	BatchSize     int
	BatchInterval time.Duration

	// Endpoint is only used to annotate spans and metrics.
	Endpoint string

	Filter  Filter
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

const (
	defaultBatchSize     = 10
	defaultBatchInterval = 5 * time.Second
)

// Queue is an ordered pending buffer with size and time triggered delivery.
type Queue struct {
	sender Sender
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	buf     []domain.Signal
	ready   [][]domain.Signal // detached full batches, oldest first
	counter uint64

	// sendSem serialises sends; a buffered channel lets Flush callers give
	// up when their context ends.
	sendSem   chan struct{}
	inflight  sync.WaitGroup
	scheduled atomic.Bool
	timerMu   sync.Mutex
	timerStop chan struct{}
	timerDone chan struct{}
}

// New builds a queue around sender. The periodic timer is not running until
// Start is called.
func New(sender Sender, opts Options) *Queue {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = defaultBatchInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}

	return &Queue{
		sender:  sender,
		opts:    opts,
		logger:  logger,
		tracer:  tracer,
		sendSem: make(chan struct{}, 1),
	}
}

// Add filters, enriches and buffers a raw signal. When the buffer reaches the
// batch size it is detached as one batch and delivered asynchronously;
// signals added afterwards start a new buffer. Add never blocks on I/O.
func (q *Queue) Add(raw domain.Signal) {
	sig := raw
	if q.opts.Filter != nil {
		var ok bool
		sig, ok = q.opts.Filter.Admit(context.Background(), raw)
		if !ok {
			q.opts.Metrics.RecordDropped(metrics.DropReasonPolicy)
			q.logger.Debug("signal rejected by admission filter", "event_type", raw.EventType)
			return
		}
	}

	q.mu.Lock()
	q.counter++
	sig.Environment = q.opts.Environment
	sig.IdempotencyKey = fmt.Sprintf("%s-%s-%d", sig.SessionID, sig.Timestamp, q.counter)
	q.buf = append(q.buf, sig)
	detached := len(q.buf) >= q.opts.BatchSize
	if detached {
		q.ready = append(q.ready, q.buf)
		q.buf = nil
	}
	depth := len(q.buf)
	q.mu.Unlock()

	q.opts.Metrics.RecordEnqueued(depth)

	if detached && q.scheduled.CompareAndSwap(false, true) {
		q.inflight.Add(1)
		go func() {
			defer q.inflight.Done()
			q.drain()
		}()
	}
}

// drain delivers detached batches until none are left. Only one drain
// goroutine runs at a time.
func (q *Queue) drain() {
	for {
		q.sendSem <- struct{}{}
		q.sendReady(context.Background())
		<-q.sendSem

		q.scheduled.Store(false)
		q.mu.Lock()
		more := len(q.ready) > 0
		q.mu.Unlock()
		if !more || !q.scheduled.CompareAndSwap(false, true) {
			return
		}
	}
}

// sendReady delivers detached batches oldest first. It must be called with
// sendSem held and reports false when a send failed.
func (q *Queue) sendReady(ctx context.Context) bool {
	for {
		q.mu.Lock()
		if len(q.ready) == 0 {
			q.mu.Unlock()
			return true
		}
		batch := q.ready[0]
		q.ready[0] = nil
		q.ready = q.ready[1:]
		q.mu.Unlock()

		if err := q.deliver(ctx, batch); err != nil {
			q.requeue(batch)
			return false
		}
	}
}

// requeue puts a failed batch back at the head of the buffer. Detached
// batches still waiting are newer than it and are merged in behind it.
func (q *Queue) requeue(batch []domain.Signal) {
	q.mu.Lock()
	n := len(batch) + len(q.buf)
	for _, b := range q.ready {
		n += len(b)
	}
	merged := make([]domain.Signal, 0, n)
	merged = append(merged, batch...)
	for _, b := range q.ready {
		merged = append(merged, b...)
	}
	merged = append(merged, q.buf...)
	q.buf = merged
	q.ready = nil
	depth := len(q.buf)
	q.mu.Unlock()

	q.opts.Metrics.SetQueueDepth(depth)
}

// Flush delivers detached batches and then everything currently buffered as
// one batch. Delivery errors are never returned; a failed batch is put back
// ahead of newer signals.
//
// The delivery call itself is not cancelled by ctx. Cancelling ctx only
// abandons waiting for a flush that is already in progress.
func (q *Queue) Flush(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	select {
	case q.sendSem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-q.sendSem }()

	sendCtx := context.WithoutCancel(ctx)
	if !q.sendReady(sendCtx) {
		return
	}

	q.mu.Lock()
	if len(q.buf) == 0 {
		q.mu.Unlock()
		return
	}
	batch := q.buf
	q.buf = nil
	q.mu.Unlock()

	q.opts.Metrics.SetQueueDepth(0)

	if err := q.deliver(sendCtx, batch); err != nil {
		q.requeue(batch)
	}
}

func (q *Queue) deliver(ctx context.Context, batch []domain.Signal) error {
	req := &domain.IngestRequest{
		APIKey:     q.opts.APIKey,
		SDKVersion: domain.SDKVersion,
		Events:     batch,
	}

	ctx, span := q.tracer.Start(ctx, "hawkeye.flush",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.BatchAttributes(q.opts.Endpoint, batch)...),
	)
	defer span.End()

	start := time.Now()
	resp, err := q.sender.Send(ctx, req)
	elapsed := time.Since(start)

	q.opts.Metrics.RecordBatch(len(batch), err, elapsed)

	dm := telemetry.DeliveryMetrics{
		Endpoint:    q.opts.Endpoint,
		Environment: q.opts.Environment,
		Signals:     len(batch),
		Outcome:     telemetry.OutcomeSuccess,
		Duration:    elapsed,
	}

	logAttrs := append(logging.TraceAttrs(ctx),
		slog.Int("count", len(batch)),
		slog.Duration("duration", elapsed),
	)

	if err != nil {
		dm.Outcome = telemetry.OutcomeFailure
		var te *domain.TransportError
		if errors.As(err, &te) {
			dm.StatusCode = te.StatusCode
		}
		telemetry.RecordDelivery(ctx, dm)

		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")

		logAttrs = append(logAttrs, slog.String("error", err.Error()))
		q.logger.LogAttrs(ctx, slog.LevelDebug, "failed to send events; batch requeued", logAttrs...)
		return err
	}

	telemetry.RecordDelivery(ctx, dm)
	span.SetStatus(codes.Ok, "")

	if resp != nil && resp.Message != "" {
		logAttrs = append(logAttrs, slog.String("message", resp.Message))
	}
	q.logger.LogAttrs(ctx, slog.LevelDebug, "events delivered", logAttrs...)
	return nil
}

// Start launches the periodic flush timer. Calling Start on a running queue
// has no effect.
func (q *Queue) Start() {
	q.timerMu.Lock()
	defer q.timerMu.Unlock()

	if q.timerStop != nil {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	q.timerStop, q.timerDone = stop, done

	go q.runTimer(stop, done)
}

func (q *Queue) runTimer(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(q.opts.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			q.Flush(ctx)
		}
	}
}

// Stop cancels the periodic timer and waits for its goroutine to exit. The
// buffer is left untouched. No timer flush starts after Stop returns.
func (q *Queue) Stop() {
	q.timerMu.Lock()
	stop, done := q.timerStop, q.timerDone
	q.timerStop, q.timerDone = nil, nil
	q.timerMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Wait blocks until every detached batch has been sent or requeued.
func (q *Queue) Wait() {
	q.inflight.Wait()
}

// Len reports the number of buffered signals. Full batches already handed to
// the sender are not counted.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Pending returns a copy of the buffered signals in delivery order.
func (q *Queue) Pending() []domain.Signal {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Signal, len(q.buf))
	copy(out, q.buf)
	return out
}
