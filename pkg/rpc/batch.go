package rpc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/citahub/appchain-go/pkg/log"
)

var errBatchSealed = errors.New("batch sealed")

// callResult is the single result delivered to a waiting call.
type callResult struct {
	resp *Response
	err  error
}

// batch collects calls until capacity, its timer or a flush seals it. A
// sealed batch accepts no calls and is sent exactly once; then every slot
// receives exactly one result.
type batch struct {
	d *Dispatcher

	mu       sync.Mutex
	requests []Request
	slots    map[uint64]chan callResult
	timer    *time.Timer
	sealed   bool
}

func newBatch(d *Dispatcher) *batch {
	return &batch{
		d:     d,
		slots: make(map[uint64]chan callResult),
	}
}

// add appends req and returns its result slot. The first call arms the
// timer; the call that reaches capacity seals the batch and sends it.
func (b *batch) add(req Request) (<-chan callResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return nil, errBatchSealed
	}
	if _, ok := b.slots[req.ID]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateID, req.ID)
	}

	slot := make(chan callResult, 1)
	b.slots[req.ID] = slot
	b.requests = append(b.requests, req)

	if b.timer == nil {
		b.timer = time.AfterFunc(b.d.cfg.MaxWait, b.expire)
	}
	if len(b.requests) >= b.d.cfg.Policy.Capacity() {
		go b.send(b.sealLocked())
	}
	return slot, nil
}

func (b *batch) expire() {
	if reqs := b.seal(); len(reqs) > 0 {
		b.send(reqs)
	}
}

func (b *batch) seal() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sealLocked()
}

// sealLocked returns the requests to send, or nil if the batch was already sealed.
func (b *batch) sealLocked() []Request {
	if b.sealed {
		return nil
	}
	b.sealed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	return b.requests
}

// cancel removes an abandoned call from an open batch. A batch left empty is
// sealed and never sent. Once sealed the call stays, and its result is
// dropped in the buffered slot.
func (b *batch) cancel(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return
	}
	if _, ok := b.slots[id]; !ok {
		return
	}
	delete(b.slots, id)
	b.requests = slices.DeleteFunc(b.requests, func(r Request) bool { return r.ID == id })
	if len(b.requests) == 0 {
		b.sealLocked()
	}
}

func (b *batch) send(reqs []Request) {
	d := b.d
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.RoundTripTimeout)
	defer cancel()

	ctx, span := d.tracer.Start(ctx, "rpc.batch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("rpc.batch_size", len(reqs))))
	defer span.End()
	lg := log.FromContext(log.SetContextLogger(ctx, d.lg))

	start := time.Now()
	resps, err := d.exchange(ctx, reqs)
	d.metrics.observeRoundTrip(len(reqs), time.Since(start))
	if err == nil {
		err = b.check(resps)
	}
	if err != nil {
		lg.Warn("batch failed", "size", len(reqs), "error", err)
		b.fail(err)
		return
	}

	lg.Debug("batch resolved", "size", len(reqs), "took", time.Since(start))
	b.resolve(resps)
}

// check accepts a reply only if it answers every sent id exactly once.
func (b *batch) check(resps []Response) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(resps) != len(b.slots) {
		return fmt.Errorf("%w: sent %d calls, got %d responses", ErrProtocolMismatch, len(b.slots), len(resps))
	}
	seen := make(map[uint64]struct{}, len(resps))
	for _, r := range resps {
		if r.ID == nil {
			return fmt.Errorf("%w: response without id", ErrProtocolMismatch)
		}
		if _, ok := b.slots[*r.ID]; !ok {
			return fmt.Errorf("%w: unknown id %d", ErrProtocolMismatch, *r.ID)
		}
		if _, dup := seen[*r.ID]; dup {
			return fmt.Errorf("%w: id %d answered twice", ErrProtocolMismatch, *r.ID)
		}
		seen[*r.ID] = struct{}{}
	}
	return nil
}

func (b *batch) resolve(resps []Response) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range resps {
		resp := resps[i]
		b.slots[*resp.ID] <- callResult{resp: &resp}
	}
}

func (b *batch) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, slot := range b.slots {
		slot <- callResult{err: err}
	}
}
