package mailbox

import "sync/atomic"

// Capacity is the fixed ring size (spec §4.1: "fixed-capacity (1024)
// power-of-two ring").
const Capacity = 1024

const indexMask = Capacity - 1

// Ring is a single-producer/single-consumer lossy queue of Messages. Push
// never blocks and always succeeds; under sustained overflow the oldest
// undrained message is dropped, which is the documented "latest wins"
// contract for parameter streams (spec §4.1).
type Ring struct {
	buf  [Capacity]Message
	head atomic.Uint64 // next write slot; producer-owned
	tail atomic.Uint64 // next read slot; consumer-owned, except overflow drops
}

// Push enqueues m. If the ring is full, the oldest message is dropped by
// advancing tail before the new message is written.
func (r *Ring) Push(m Message) {
	head := r.head.Load()
	for {
		tail := r.tail.Load()
		if head-tail < Capacity {
			break
		}
		// Overflow: drop the oldest message. CAS guards against the consumer
		// concurrently advancing tail during its own Drain.
		if r.tail.CompareAndSwap(tail, tail+1) {
			break
		}
	}
	r.buf[head&indexMask] = m
	r.head.Store(head + 1)
}

// Drain walks every message pushed before this call, in FIFO order, passing
// each to apply. Intended to be called exactly once per processing block by
// the audio thread, before any channel generates samples (spec §4.1).
func (r *Ring) Drain(apply func(*Message)) {
	head := r.head.Load()
	tail := r.tail.Load()
	for tail < head {
		apply(&r.buf[tail&indexMask])
		tail++
	}
	r.tail.Store(tail)
}

// Pending reports how many messages are currently queued; diagnostic only.
func (r *Ring) Pending() int {
	head := r.head.Load()
	tail := r.tail.Load()
	return int(head - tail)
}
