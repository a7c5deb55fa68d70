package zenoh

import "sync/atomic"

// TransportStats tracks per-transport traffic counters. The TX and RX
// tasks update them; readers may sample them at any time.
type TransportStats struct {
	TxMsgs       atomic.Uint64 // messages serialized into sent batches
	TxBytes      atomic.Uint64 // bytes written on links, framing included
	TxKeepAlives atomic.Uint64 // keep-alive probes emitted

	RxMsgs       atomic.Uint64 // data-plane messages decoded from received batches
	RxBytes      atomic.Uint64 // bytes read from links, framing included
	RxKeepAlives atomic.Uint64 // keep-alive probes received
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	TxMsgs       uint64
	TxBytes      uint64
	TxKeepAlives uint64
	RxMsgs       uint64
	RxBytes      uint64
	RxKeepAlives uint64
}

// Snapshot copies the counters.
func (s *TransportStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TxMsgs:       s.TxMsgs.Load(),
		TxBytes:      s.TxBytes.Load(),
		TxKeepAlives: s.TxKeepAlives.Load(),
		RxMsgs:       s.RxMsgs.Load(),
		RxBytes:      s.RxBytes.Load(),
		RxKeepAlives: s.RxKeepAlives.Load(),
	}
}
