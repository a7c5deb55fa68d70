package pipeline

import (
	"sync"

	"github.com/fossabot/zenoh/internal/proto"
	"github.com/fossabot/zenoh/internal/zerror"
)

// DefaultBatchesPerLane bounds each lane's batch pool.
const DefaultBatchesPerLane = 2

// Config parameterizes a pipeline.
type Config struct {
	// BatchSize is the maximum payload size of one batch. Capped by the
	// link MTU and by 65535.
	BatchSize uint16
	// Streamed selects the 16-bit length prefix of stream-oriented links.
	Streamed bool
	// BatchesPerLane is the bounded pool size of each priority lane.
	BatchesPerLane int
}

type lane struct {
	notFull *sync.Cond
	free    []*Batch
	ready   []*Batch
	current *Batch
	pool    int
}

// Pipeline is the multi-priority batching egress queue of one link.
// Any number of writers push serialized messages; a single TX task pulls
// sealed batches in strict priority order. When every batch of a lane is
// in flight, blocking writers park until the TX task refills the pool.
//
// Priority is strict: higher lanes always overtake lower ones, and the
// lowest lane can starve under sustained high-priority load.
type Pipeline struct {
	mu        sync.Mutex
	dataReady chan struct{}
	lanes     [proto.NumPriorities]lane
	enabled   bool
	batchSize uint16
	streamed  bool
}

// New creates an enabled pipeline.
func New(cfg Config) *Pipeline {
	if cfg.BatchesPerLane <= 0 {
		cfg.BatchesPerLane = DefaultBatchesPerLane
	}
	p := &Pipeline{
		dataReady: make(chan struct{}, 1),
		enabled:   true,
		batchSize: cfg.BatchSize,
		streamed:  cfg.Streamed,
	}
	for i := range p.lanes {
		l := &p.lanes[i]
		l.notFull = sync.NewCond(&p.mu)
		l.pool = cfg.BatchesPerLane
		for j := 0; j < cfg.BatchesPerLane; j++ {
			l.free = append(l.free, newBatch(cfg.BatchSize, cfg.Streamed))
		}
	}
	return p
}

// signalData wakes the consumer without blocking the producer.
func (p *Pipeline) signalData() {
	select {
	case p.dataReady <- struct{}{}:
	default:
	}
}

// DataReady returns the channel pulsed whenever a lane gains data or the
// pipeline is disabled. The TX task races it against its keep-alive
// timer.
func (p *Pipeline) DataReady() <-chan struct{} { return p.dataReady }

// Push serializes an application message into the lane derived from its
// channel. With CongestionDrop a full lane drops the message silently;
// with CongestionBlock the caller parks until space is available or the
// pipeline is disabled. A message that cannot fit even an empty batch
// fails with a buffer overflow error.
func (p *Pipeline) Push(m *proto.Message, cc proto.CongestionControl) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := &p.lanes[m.Channel.Priority]

	for p.enabled {
		if l.current == nil {
			if len(l.free) == 0 {
				if cc == proto.CongestionDrop {
					return nil
				}
				l.notFull.Wait()
				continue
			}
			l.current = l.free[len(l.free)-1]
			l.free = l.free[:len(l.free)-1]
		}

		err := l.current.Encode(m)
		if err == nil {
			p.signalData()
			return nil
		}
		if !zerror.IsKind(err, zerror.KindBufferOverflow) {
			return err
		}
		if l.current.IsEmpty() {
			// The message does not fit a whole batch.
			return err
		}
		// Seal the current batch and retry on a fresh one.
		l.ready = append(l.ready, l.current)
		l.current = nil
	}
	return nil
}

// PushTransport serializes a transport message into the given lane. This
// path always admits: when the pool is exhausted it spills one extra
// batch, which the refill path later discards to restore the bound.
func (p *Pipeline) PushTransport(m *proto.Message, prio proto.Priority) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return nil
	}
	l := &p.lanes[prio]

	for {
		if l.current == nil {
			if len(l.free) > 0 {
				l.current = l.free[len(l.free)-1]
				l.free = l.free[:len(l.free)-1]
			} else {
				l.current = newBatch(p.batchSize, p.streamed)
			}
		}

		err := l.current.Encode(m)
		if err == nil {
			p.signalData()
			return nil
		}
		if !zerror.IsKind(err, zerror.KindBufferOverflow) || l.current.IsEmpty() {
			return err
		}
		l.ready = append(l.ready, l.current)
		l.current = nil
	}
}

// TryPull produces the next batch in lane-priority order, or reports that
// no lane holds data. The TX task combines it with DataReady and its
// keep-alive timer.
func (p *Pipeline) TryPull() (*Batch, proto.Priority, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for prio := range p.lanes {
		l := &p.lanes[prio]
		if len(l.ready) > 0 {
			b := l.ready[0]
			l.ready = l.ready[1:]
			return b, proto.Priority(prio), true
		}
		if l.current != nil && !l.current.IsEmpty() {
			b := l.current
			l.current = nil
			return b, proto.Priority(prio), true
		}
	}
	return nil, 0, false
}

// Refill returns a drained batch to its lane's pool and wakes one parked
// writer. Spilled batches beyond the pool bound are dropped.
func (p *Pipeline) Refill(b *Batch, prio proto.Priority) {
	b.reset()
	p.mu.Lock()
	defer p.mu.Unlock()
	l := &p.lanes[prio]
	if len(l.free) < l.pool {
		l.free = append(l.free, b)
	}
	l.notFull.Signal()
}

// Disable wakes all suspended producers and consumers; subsequent pulls
// drain what is left and then report no data. Calling Disable more than
// once is a no-op.
func (p *Pipeline) Disable() {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return
	}
	p.enabled = false
	for i := range p.lanes {
		p.lanes[i].notFull.Broadcast()
	}
	p.mu.Unlock()
	p.signalData()
}

// IsEnabled reports whether the pipeline still accepts messages.
func (p *Pipeline) IsEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Drain collects every batch still holding data, in priority order, for
// the final flush at close.
func (p *Pipeline) Drain() []*Batch {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Batch
	for prio := range p.lanes {
		l := &p.lanes[prio]
		out = append(out, l.ready...)
		l.ready = nil
		if l.current != nil && !l.current.IsEmpty() {
			out = append(out, l.current)
			l.current = nil
		}
	}
	return out
}
