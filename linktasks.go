package zenoh

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fossabot/zenoh/internal/link"
	"github.com/fossabot/zenoh/internal/pipeline"
	"github.com/fossabot/zenoh/internal/proto"
	"github.com/fossabot/zenoh/internal/zerror"
)

// transportLink pairs one link with its transmission pipeline and the
// TX/RX tasks driving it.
type transportLink struct {
	transport *TransportUnicast
	inner     link.Link
	pipeline  *pipeline.Pipeline

	started    bool // guarded by transport.mu
	activeRx   atomic.Bool
	signalRx   chan struct{}
	signalOnce sync.Once
	doneTx     chan struct{}
	doneRx     chan struct{}
}

func (l *transportLink) startTx(keepAlive time.Duration) {
	go func() {
		defer close(l.doneTx)
		if err := l.txTask(keepAlive); err != nil {
			l.transport.log.Debug("tx task failed",
				"link", l.inner.RemoteEndpoint(), "err", err)
			// Detached: removing the link joins this very task.
			go l.transport.DelLink(l.inner)
		}
	}()
}

func (l *transportLink) startRx(lease time.Duration, rxBuffSize int) {
	l.activeRx.Store(true)
	go func() {
		defer close(l.doneRx)
		err := l.rxTask(lease, rxBuffSize)
		l.activeRx.Store(false)
		if err != nil {
			l.transport.log.Debug("rx task failed",
				"link", l.inner.RemoteEndpoint(), "err", err)
			// Detached: removing the link joins this very task.
			go l.transport.DelLink(l.inner)
		}
	}()
}

func (l *transportLink) stopTx() {
	l.pipeline.Disable()
}

func (l *transportLink) stopRx() {
	l.activeRx.Store(false)
	l.signalOnce.Do(func() { close(l.signalRx) })
	// Expire any in-flight read.
	l.inner.SetReadDeadline(time.Now())
}

// close stops both tasks, joins them and closes the link. Idempotent.
func (l *transportLink) close() {
	l.transport.mu.Lock()
	started := l.started
	l.transport.mu.Unlock()

	l.stopRx()
	l.stopTx()
	if started {
		<-l.doneRx
		<-l.doneTx
	}
	l.inner.Close()
}

// txTask drains the pipeline onto the link. An idle keep-alive period
// emits a probe on the background lane. On pipeline disable the residual
// batches are flushed with a bounded per-batch deadline.
func (l *transportLink) txTask(keepAlive time.Duration) error {
	p := l.pipeline
	lk := l.inner
	stats := l.transport.stats

	idle := time.NewTimer(keepAlive)
	defer idle.Stop()
	resetIdle := func() {
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(keepAlive)
	}

	for {
		if b, prio, ok := p.TryPull(); ok {
			wire := b.Bytes()
			if err := lk.WriteAll(wire); err != nil {
				p.Refill(b, prio)
				return err
			}
			stats.TxBytes.Add(uint64(len(wire)))
			stats.TxMsgs.Add(uint64(b.Messages()))
			p.Refill(b, prio)
			resetIdle()
			continue
		}
		if !p.IsEnabled() {
			break
		}
		select {
		case <-p.DataReady():
		case <-idle.C:
			p.PushTransport(proto.MakeKeepAlive(l.transport.manager.cfg.PeerID), proto.PriorityBackground)
			stats.TxKeepAlives.Add(1)
			idle.Reset(keepAlive)
		}
	}

	// Final flush of whatever still holds data.
	for _, b := range p.Drain() {
		lk.SetWriteDeadline(time.Now().Add(keepAlive))
		if err := lk.WriteAll(b.Bytes()); err != nil {
			lk.SetWriteDeadline(time.Time{})
			return zerror.Wrapf(zerror.KindIO, err,
				"%s: flush failed after %s", lk.RemoteEndpoint(), keepAlive)
		}
		stats.TxBytes.Add(uint64(len(b.Bytes())))
		stats.TxMsgs.Add(uint64(b.Messages()))
	}
	lk.SetWriteDeadline(time.Time{})
	return nil
}

// rxTask reads transmission units from the link, decodes them and feeds
// the transport. Variant selected by the link's framing.
func (l *transportLink) rxTask(lease time.Duration, rxBuffSize int) error {
	if l.inner.IsStreamed() {
		return l.rxTaskStream(lease, rxBuffSize)
	}
	return l.rxTaskDgram(lease, rxBuffSize)
}

// classifyReadErr folds a read failure into the task outcome: nil for a
// cooperative stop, a lease expiration, or the I/O error itself. Every
// outcome ends the task.
func (l *transportLink) classifyReadErr(err error, lease time.Duration) error {
	if !l.activeRx.Load() {
		return nil
	}
	select {
	case <-l.signalRx:
		return nil
	default:
	}
	if link.IsTimeout(err) {
		return zerror.Newf(zerror.KindIO,
			"%s: lease expired after %s", l.inner.RemoteEndpoint(), lease)
	}
	return err
}

// rxBufferPool is the bounded recycling pool of one RX task, sized
// 1 + rxBuffSize/mtu. Beyond the bound, fresh buffers are allocated and
// never recycled, bounding steady-state memory.
type rxBufferPool struct {
	pool chan []byte
	mtu  int
}

func newRxBufferPool(rxBuffSize, mtu int) *rxBufferPool {
	return &rxBufferPool{
		pool: make(chan []byte, 1+rxBuffSize/mtu),
		mtu:  mtu,
	}
}

func (p *rxBufferPool) take() []byte {
	select {
	case b := <-p.pool:
		return b
	default:
		return make([]byte, p.mtu)
	}
}

func (p *rxBufferPool) put(b []byte) {
	select {
	case p.pool <- b:
	default:
	}
}

// decodeAndDispatch decodes every message of one transmission unit. A
// batch holds a whole number of messages: a decode failure, including a
// message straddling the unit boundary, is fatal for the link.
func (l *transportLink) decodeAndDispatch(unit []byte) error {
	r := proto.NewReadBuffer(unit)
	for r.CanRead() {
		msg, err := proto.DecodeMessage(r)
		if err != nil {
			return zerror.Wrapf(zerror.KindIO, err,
				"%s: decoding error", l.inner.RemoteEndpoint())
		}
		if err := l.transport.receiveMessage(msg, l.inner); err != nil {
			return err
		}
	}
	return nil
}

func (l *transportLink) rxTaskStream(lease time.Duration, rxBuffSize int) error {
	lk := l.inner
	stats := l.transport.stats
	pool := newRxBufferPool(rxBuffSize, int(lk.MTU()))
	var hdr [proto.FrameHeaderSize]byte

	for l.activeRx.Load() {
		// One lease covers the frame header and its body.
		if err := lk.SetReadDeadline(time.Now().Add(lease)); err != nil {
			return err
		}
		if err := lk.ReadExact(hdr[:]); err != nil {
			return l.classifyReadErr(err, lease)
		}
		n := int(uint16(hdr[0]) | uint16(hdr[1])<<8)
		buf := pool.take()
		if err := lk.ReadExact(buf[:n]); err != nil {
			return l.classifyReadErr(err, lease)
		}
		stats.RxBytes.Add(uint64(proto.FrameHeaderSize + n))
		if err := l.decodeAndDispatch(buf[:n]); err != nil {
			return err
		}
		pool.put(buf)
	}
	return nil
}

func (l *transportLink) rxTaskDgram(lease time.Duration, rxBuffSize int) error {
	lk := l.inner
	stats := l.transport.stats
	pool := newRxBufferPool(rxBuffSize, int(lk.MTU()))

	for l.activeRx.Load() {
		if err := lk.SetReadDeadline(time.Now().Add(lease)); err != nil {
			return err
		}
		buf := pool.take()
		n, err := lk.Read(buf)
		if err != nil {
			return l.classifyReadErr(err, lease)
		}
		if n == 0 {
			// A zero-sized datagram means the peer is gone.
			return zerror.Newf(zerror.KindIO, "%s: zero bytes reading", lk.RemoteEndpoint())
		}
		stats.RxBytes.Add(uint64(n))
		if err := l.decodeAndDispatch(buf[:n]); err != nil {
			return err
		}
		pool.put(buf)
	}
	return nil
}
