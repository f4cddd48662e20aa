// Package bus implements the three bounded-channel classes and the
// supervisor described in spec.md §4.7: a lossless blocking channel for
// causal-path events, a lossy drop-oldest channel for telemetry
// broadcast, and a one-shot overwrite channel for control commands.
package bus

import (
	"context"
	"sync"

	"github.com/distractedCoding/market-latency-risk-lab/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// LosslessCapacity is the minimum buffer depth for the causal-path
	// channel, spec.md §4.7.
	LosslessCapacity = 1024
	// LossyCapacity is the minimum buffer depth for the broadcast channel.
	LossyCapacity = 256
)

// Lossless is a plain buffered channel: publishers block once full rather
// than drop, matching the "never drop a fill or a risk reject" language
// of spec.md §4.7.
type Lossless struct {
	ch chan telemetry.RuntimeEvent
}

// NewLossless builds a lossless channel with at least LosslessCapacity
// slots.
func NewLossless(capacity int) *Lossless {
	if capacity < LosslessCapacity {
		capacity = LosslessCapacity
	}
	return &Lossless{ch: make(chan telemetry.RuntimeEvent, capacity)}
}

// Publish blocks until there is room or ctx is cancelled.
func (l *Lossless) Publish(ctx context.Context, e telemetry.RuntimeEvent) error {
	select {
	case l.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events exposes the receive side for a single consumer.
func (l *Lossless) Events() <-chan telemetry.RuntimeEvent { return l.ch }

// Lossy is a drop-oldest bounded queue for telemetry broadcast. Standard
// Go channels have no drop-oldest semantics, so publish evicts the head
// under a mutex before appending, counting every eviction on a
// prometheus.CounterVec labelled by consumer, per spec.md §4.7 and §8
// property 8 ("a lossy telemetry channel ... must never block the
// causal path").
type Lossy struct {
	mu       sync.Mutex
	items    []telemetry.RuntimeEvent
	capacity int
	notify   chan struct{}
	dropped  *prometheus.CounterVec
	consumer string
}

// NewLossy builds a lossy queue with at least LossyCapacity slots.
func NewLossy(capacity int, dropped *prometheus.CounterVec, consumer string) *Lossy {
	if capacity < LossyCapacity {
		capacity = LossyCapacity
	}
	return &Lossy{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		dropped:  dropped,
		consumer: consumer,
	}
}

// Publish never blocks: once full, the oldest queued event is evicted and
// counted as dropped.
func (q *Lossy) Publish(e telemetry.RuntimeEvent) {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		if q.dropped != nil {
			q.dropped.WithLabelValues(q.consumer).Inc()
		}
	}
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available or ctx is cancelled.
func (q *Lossy) Next(ctx context.Context) (telemetry.RuntimeEvent, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return e, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Len reports the current queue depth, for tests and health reporting.
func (q *Lossy) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// OneShot is a capacity-1 overwrite channel for control commands: a new
// Send replaces any unconsumed prior value rather than queueing behind
// it, spec.md §4.7 ("the latest command always wins").
type OneShot struct {
	mu  sync.Mutex
	val any
	set bool
	ch  chan struct{}
}

// NewOneShot builds an empty one-shot control channel.
func NewOneShot() *OneShot {
	return &OneShot{ch: make(chan struct{}, 1)}
}

// Send overwrites any pending, unconsumed value.
func (o *OneShot) Send(v any) {
	o.mu.Lock()
	o.val = v
	o.set = true
	o.mu.Unlock()

	select {
	case o.ch <- struct{}{}:
	default:
	}
}

// Recv blocks until a value is available or ctx is cancelled, then
// consumes it.
func (o *OneShot) Recv(ctx context.Context) (any, bool) {
	for {
		o.mu.Lock()
		if o.set {
			v := o.val
			o.val = nil
			o.set = false
			o.mu.Unlock()
			return v, true
		}
		o.mu.Unlock()

		select {
		case <-o.ch:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Bus bundles the three channel classes, spec.md §4.7. Only the Telemetry
// queue counts drops, on the counter New builds for it.
type Bus struct {
	Causal   *Lossless
	Telemetry *Lossy
	Control  *OneShot
}

// New wires a Bus with default capacities. namespace names the dropped
// counter the same way the metrics package names its own.
func New(namespace string) *Bus {
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_dropped_total",
		Help:      "Events dropped from the lossy telemetry queue, by consumer.",
	}, []string{"consumer"})
	return &Bus{
		Causal:    NewLossless(LosslessCapacity),
		Telemetry: NewLossy(LossyCapacity, dropped, "telemetry"),
		Control:   NewOneShot(),
	}
}
