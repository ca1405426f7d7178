package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/citahub/appchain-go/pkg/log"
)

const tracerName = "github.com/citahub/appchain-go/pkg/rpc"

// Policy decides whether calls are coalesced into batches.
type Policy struct {
	capacity int
}

// NoBatching sends every call in its own round trip.
func NoBatching() Policy {
	return Policy{}
}

// Batch coalesces up to capacity calls per round trip. A capacity of zero
// or less is the same as NoBatching.
func Batch(capacity int) Policy {
	if capacity < 0 {
		capacity = 0
	}
	return Policy{capacity: capacity}
}

// Batching reports whether calls are coalesced.
func (p Policy) Batching() bool {
	return p.capacity > 0
}

// Capacity returns the maximum batch size, or 0 without batching.
func (p Policy) Capacity() int {
	return p.capacity
}

func (p Policy) String() string {
	if !p.Batching() {
		return "none"
	}
	return fmt.Sprintf("batch(%d)", p.capacity)
}

// DispatcherConfig contains configuration options for the Dispatcher
type DispatcherConfig struct {
	// Policy selects batching
	Policy Policy

	// MaxWait is how long an open batch waits for more calls before it is sent
	MaxWait time.Duration

	// RoundTripTimeout bounds the exchange of one batch with the node
	RoundTripTimeout time.Duration
}

// DefaultDispatcherConfig batches up to 32 calls and waits at most 100ms
var DefaultDispatcherConfig = DispatcherConfig{
	Policy:           Batch(32),
	MaxWait:          100 * time.Millisecond,
	RoundTripTimeout: 30 * time.Second,
}

// DispatcherOption configures optional dependencies of a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger of the dispatcher.
func WithLogger(lg log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if lg != nil {
			d.lg = lg.WithName("dispatcher")
		}
	}
}

// WithMetrics makes the dispatcher record its activity in m.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithIDGenerator replaces the dispatcher's own id generator.
func WithIDGenerator(g *IDGenerator) DispatcherOption {
	return func(d *Dispatcher) {
		if g != nil {
			d.ids = g
		}
	}
}

// WithTracer sets the tracer used for round trip spans.
func WithTracer(tracer trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// Dispatcher turns logical calls into wire round trips. Under a batching
// policy concurrent calls share one round trip; each call still gets exactly
// one result, matched by id.
type Dispatcher struct {
	transport Transport
	cfg       DispatcherConfig
	ids       *IDGenerator
	lg        log.Logger
	metrics   *Metrics
	tracer    trace.Tracer

	mu       sync.Mutex // Protects open, inflight and closed
	open     *batch
	inflight map[uint64]struct{}
	closed   bool
}

// NewDispatcher returns a dispatcher sending through transport. Zero
// durations in cfg fall back to DefaultDispatcherConfig.
func NewDispatcher(transport Transport, cfg DispatcherConfig, opts ...DispatcherOption) *Dispatcher {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultDispatcherConfig.MaxWait
	}
	if cfg.RoundTripTimeout <= 0 {
		cfg.RoundTripTimeout = DefaultDispatcherConfig.RoundTripTimeout
	}

	d := &Dispatcher{
		transport: transport,
		cfg:       cfg,
		ids:       NewIDGenerator(0),
		lg:        log.NewNoopLogger(),
		tracer:    otel.Tracer(tracerName),
		inflight:  make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call sends method with params under a fresh id and waits for the response.
// The returned response may carry a node error; see Decode.
func (d *Dispatcher) Call(ctx context.Context, method Method, params ...any) (*Response, error) {
	return d.Dispatch(ctx, NewRequest(d.ids.Next(), method, params...))
}

// Dispatch sends a prepared request. Invalid requests fail before any network
// activity, and an id that is already in flight fails with ErrDuplicateID.
// Cancelling ctx abandons the call: it is removed from a batch that is still
// open, and its result is dropped if the batch was already sent.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		d.metrics.countFailures(FailureInvalidRequest, 1)
		return nil, err
	}
	d.metrics.countCall(req.Method)

	resp, err := d.dispatch(ctx, req)
	if err != nil {
		d.metrics.countFailures(failureReason(err), 1)
	}
	return resp, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !d.cfg.Policy.Batching() {
		if err := d.track(req.ID); err != nil {
			return nil, err
		}
		defer d.untrack(req.ID)
		return d.roundTrip(ctx, req)
	}

	slot, b, err := d.enqueue(req)
	if err != nil {
		return nil, err
	}
	defer d.untrack(req.ID)

	select {
	case res := <-slot:
		return res.resp, res.err
	case <-ctx.Done():
		b.cancel(req.ID)
		return nil, ctx.Err()
	}
}

// Flush seals the open batch and sends it without waiting for its timer.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	b := d.open
	d.open = nil
	d.mu.Unlock()

	if b == nil {
		return
	}
	if reqs := b.seal(); len(reqs) > 0 {
		go b.send(reqs)
	}
}

// Close flushes the open batch and rejects further calls with
// ErrDispatcherClosed. Calls already in flight are still resolved.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.Flush()
	return nil
}

// Policy returns the batching policy in use.
func (d *Dispatcher) Policy() Policy {
	return d.cfg.Policy
}

func (d *Dispatcher) enqueue(req Request) (<-chan callResult, *batch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.trackLocked(req.ID); err != nil {
		return nil, nil, err
	}
	for {
		if d.open == nil {
			d.open = newBatch(d)
		}
		slot, err := d.open.add(req)
		if err == nil {
			return slot, d.open, nil
		}
		if !errors.Is(err, errBatchSealed) {
			delete(d.inflight, req.ID)
			return nil, nil, err
		}
		d.open = nil
	}
}

func (d *Dispatcher) track(id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trackLocked(id)
}

func (d *Dispatcher) trackLocked(id uint64) error {
	if d.closed {
		return ErrDispatcherClosed
	}
	if _, ok := d.inflight[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	d.inflight[id] = struct{}{}
	return nil
}

func (d *Dispatcher) untrack(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, id)
}

// roundTrip sends a single request outside any batch.
func (d *Dispatcher) roundTrip(ctx context.Context, req Request) (*Response, error) {
	ctx, span := d.tracer.Start(ctx, "rpc.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.method", req.Method.String()),
			attribute.Int("rpc.batch_size", 1),
		))
	defer span.End()
	lg := log.FromContext(log.SetContextLogger(ctx, d.lg))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	start := time.Now()
	raw, err := d.transport.Post(ctx, body)
	d.metrics.observeRoundTrip(1, time.Since(start))
	if err != nil {
		lg.Warn("call failed", "method", req.Method, "id", req.ID, "error", err)
		return nil, transportError(err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		lg.Warn("malformed response", "method", req.Method, "id", req.ID, "error", err)
		return nil, transportError(fmt.Errorf("malformed response: %w", err))
	}
	if !resp.hasID(req.ID) {
		err := mismatchError(req.ID, &resp)
		lg.Error("response does not match request", "method", req.Method, "id", req.ID, "error", err)
		return nil, err
	}

	lg.Debug("call resolved", "method", req.Method, "id", req.ID, "took", time.Since(start))
	return &resp, nil
}

// exchange sends a batch and parses the reply without checking correlation.
func (d *Dispatcher) exchange(ctx context.Context, reqs []Request) ([]Response, error) {
	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	raw, err := d.transport.Post(ctx, body)
	if err != nil {
		return nil, transportError(err)
	}

	var resps []Response
	if err := json.Unmarshal(raw, &resps); err != nil {
		// A node that rejects the whole batch answers with a single error object.
		var single Response
		if json.Unmarshal(raw, &single) == nil && single.Error != nil {
			return nil, fmt.Errorf("%w: batch rejected: %w", ErrProtocolMismatch, single.Error)
		}
		return nil, transportError(fmt.Errorf("malformed batch response: %w", err))
	}
	return resps, nil
}

func mismatchError(sent uint64, resp *Response) error {
	if resp.ID == nil {
		if resp.Error != nil {
			return fmt.Errorf("%w: sent id %d, got unattributed error: %w", ErrProtocolMismatch, sent, resp.Error)
		}
		return fmt.Errorf("%w: sent id %d, got no id", ErrProtocolMismatch, sent)
	}
	return fmt.Errorf("%w: sent id %d, got %d", ErrProtocolMismatch, sent, *resp.ID)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCancelled
	case errors.Is(err, ErrDispatcherClosed):
		return FailureClosed
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrDuplicateID):
		return FailureInvalidRequest
	case errors.Is(err, ErrTransport):
		return FailureTransport
	default:
		return FailureProtocol
	}
}
