package pipeline

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/fossabot/zenoh/internal/proto"
	"github.com/fossabot/zenoh/internal/zerror"
)

func dataMsg(prio proto.Priority, payload []byte) *proto.Message {
	return proto.MakeData(
		proto.ResKey{Suffix: "/test"},
		proto.Payload{Data: payload},
		proto.Channel{Priority: prio, Reliability: proto.Reliable},
		proto.CongestionBlock, nil, nil,
	)
}

// pullAll drains the pipeline, decoding every message of every batch in
// pull order.
func pullAll(p *Pipeline) []*proto.Message {
	var out []*proto.Message
	for {
		b, prio, ok := p.TryPull()
		if !ok {
			return out
		}
		r := proto.NewReadBuffer(b.Bytes())
		for r.CanRead() {
			msg, err := proto.DecodeMessage(r)
			if err != nil {
				panic(err)
			}
			out = append(out, msg)
		}
		p.Refill(b, prio)
	}
}

func TestLaneFIFO(t *testing.T) {
	p := New(Config{BatchSize: 1024, Streamed: false})
	for i := byte(0); i < 10; i++ {
		if err := p.Push(dataMsg(proto.PriorityData, []byte{i}), proto.CongestionBlock); err != nil {
			t.Fatalf("push %d failed: %v", i, err)
		}
	}
	msgs := pullAll(p)
	if len(msgs) != 10 {
		t.Fatalf("pulled %d messages, want 10", len(msgs))
	}
	for i, m := range msgs {
		if m.Payload.Data[0] != byte(i) {
			t.Errorf("message %d out of order: got payload %d", i, m.Payload.Data[0])
		}
	}
}

func TestStrictPriority(t *testing.T) {
	p := New(Config{BatchSize: 1024})
	// Push low first, then high: high must come out first.
	p.Push(dataMsg(proto.PriorityBackground, []byte{1}), proto.CongestionBlock)
	p.Push(dataMsg(proto.PriorityDataLow, []byte{2}), proto.CongestionBlock)
	p.Push(dataMsg(proto.PriorityRealTime, []byte{3}), proto.CongestionBlock)

	msgs := pullAll(p)
	if len(msgs) != 3 {
		t.Fatalf("pulled %d messages, want 3", len(msgs))
	}
	wantOrder := []byte{3, 2, 1}
	for i, m := range msgs {
		if m.Payload.Data[0] != wantOrder[i] {
			t.Errorf("position %d: got payload %d, want %d", i, m.Payload.Data[0], wantOrder[i])
		}
	}
}

func TestPerLaneOrderAcrossLanes(t *testing.T) {
	p := New(Config{BatchSize: 4096})
	lanes := []proto.Priority{proto.PriorityData, proto.PriorityControl, proto.PriorityBackground}
	for i := byte(0); i < 9; i++ {
		p.Push(dataMsg(lanes[i%3], []byte{i}), proto.CongestionBlock)
	}
	perLane := make(map[proto.Priority][]byte)
	for _, m := range pullAll(p) {
		perLane[m.Channel.Priority] = append(perLane[m.Channel.Priority], m.Payload.Data[0])
	}
	// Filtered to one lane, the pull order equals the push order.
	for i, lane := range lanes {
		got := perLane[lane]
		for j, b := range got {
			if want := byte(i + 3*j); b != want {
				t.Errorf("lane %s position %d: got %d, want %d", lane, j, b, want)
			}
		}
	}
}

func TestStreamedFramePrefix(t *testing.T) {
	p := New(Config{BatchSize: 1024, Streamed: true})
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	p.Push(dataMsg(proto.PriorityData, payload), proto.CongestionBlock)

	b, _, ok := p.TryPull()
	if !ok {
		t.Fatal("no batch ready")
	}
	wire := b.Bytes()
	n := binary.LittleEndian.Uint16(wire[:2])
	if int(n) != len(wire)-2 {
		t.Errorf("length prefix %d does not match payload length %d", n, len(wire)-2)
	}
	if int(n) > 65535 {
		t.Errorf("frame exceeds the 16-bit bound: %d", n)
	}
}

func TestOversizedMessageFails(t *testing.T) {
	p := New(Config{BatchSize: 128})
	err := p.Push(dataMsg(proto.PriorityData, make([]byte, 1024)), proto.CongestionBlock)
	if !zerror.IsKind(err, zerror.KindBufferOverflow) {
		t.Fatalf("expected buffer overflow, got %v", err)
	}
}

func TestBatchSealingOnOverflow(t *testing.T) {
	p := New(Config{BatchSize: 64, BatchesPerLane: 4})
	// Each message takes ~40 bytes; every push seals the previous batch.
	for i := 0; i < 4; i++ {
		if err := p.Push(dataMsg(proto.PriorityData, make([]byte, 30)), proto.CongestionBlock); err != nil {
			t.Fatalf("push %d failed: %v", i, err)
		}
	}
	if got := len(pullAll(p)); got != 4 {
		t.Fatalf("pulled %d messages, want 4", got)
	}
}

func TestCongestionDrop(t *testing.T) {
	p := New(Config{BatchSize: 64, BatchesPerLane: 2})
	// Each push fills one batch; the third finds the pool exhausted.
	big := dataMsg(proto.PriorityData, make([]byte, 40))
	if err := p.Push(big, proto.CongestionDrop); err != nil {
		t.Fatalf("first push failed: %v", err)
	}
	// Seals the only batch; the lane has no free batch left.
	if err := p.Push(big, proto.CongestionDrop); err != nil {
		t.Fatalf("second push failed: %v", err)
	}
	if err := p.Push(big, proto.CongestionDrop); err != nil {
		t.Fatalf("dropped push must not error: %v", err)
	}
	if got := len(pullAll(p)); got != 2 {
		t.Errorf("pulled %d messages, want 2 (third dropped)", got)
	}
}

func TestCongestionBlockWakesOnRefill(t *testing.T) {
	p := New(Config{BatchSize: 64, BatchesPerLane: 2})
	big := dataMsg(proto.PriorityData, make([]byte, 40))
	p.Push(big, proto.CongestionBlock)
	p.Push(big, proto.CongestionBlock) // seals the only batch

	done := make(chan error, 1)
	go func() {
		// Blocks until the consumer refills the lane.
		done <- p.Push(big, proto.CongestionBlock)
	}()

	select {
	case <-done:
		t.Fatal("push returned before refill")
	case <-time.After(50 * time.Millisecond):
	}

	b, prio, ok := p.TryPull()
	if !ok {
		t.Fatal("no batch ready")
	}
	p.Refill(b, prio)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked push failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked push not woken by refill")
	}
}

func TestDisableWakesBlockedProducers(t *testing.T) {
	p := New(Config{BatchSize: 64, BatchesPerLane: 2})
	big := dataMsg(proto.PriorityData, make([]byte, 40))
	p.Push(big, proto.CongestionBlock)
	p.Push(big, proto.CongestionBlock)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Push(big, proto.CongestionBlock)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	p.Disable()

	waited := make(chan struct{})
	go func() { wg.Wait(); close(waited) }()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("disable left producers parked")
	}
}

func TestDisableIdempotent(t *testing.T) {
	p := New(Config{BatchSize: 64})
	p.Disable()
	p.Disable()
	p.Disable()
	if p.IsEnabled() {
		t.Error("pipeline still enabled after Disable")
	}
	if err := p.Push(dataMsg(proto.PriorityData, []byte{1}), proto.CongestionBlock); err != nil {
		t.Errorf("push on disabled pipeline must be a silent no-op, got %v", err)
	}
	if _, _, ok := p.TryPull(); ok {
		t.Error("disabled empty pipeline produced a batch")
	}
}

func TestDrainCollectsResiduals(t *testing.T) {
	p := New(Config{BatchSize: 1024})
	p.Push(dataMsg(proto.PriorityControl, []byte{1}), proto.CongestionBlock)
	p.Push(dataMsg(proto.PriorityData, []byte{2}), proto.CongestionBlock)
	p.Disable()

	batches := p.Drain()
	if len(batches) != 2 {
		t.Fatalf("drained %d batches, want 2", len(batches))
	}
	// Drain leaves nothing behind.
	if rest := p.Drain(); len(rest) != 0 {
		t.Errorf("second drain found %d batches", len(rest))
	}
}

func TestPushTransportSpillsBeyondPool(t *testing.T) {
	p := New(Config{BatchSize: 64, BatchesPerLane: 1})
	ka := proto.MakeKeepAlive(nil)
	// Each keep-alive takes 2 bytes; 40 of them overflow one 64-byte batch.
	for i := 0; i < 40; i++ {
		if err := p.PushTransport(ka, proto.PriorityControl); err != nil {
			t.Fatalf("transport push %d failed: %v", i, err)
		}
	}
	if got := len(pullAll(p)); got != 40 {
		t.Errorf("pulled %d keep-alives, want 40", got)
	}
}
