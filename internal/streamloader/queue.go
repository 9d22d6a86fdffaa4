package streamloader

import (
	"sync/atomic"

	"github.com/cbegin/sionfm-go/internal/streamdata"
)

// queue is the shared MPSC work queue every streaming clip enqueues refill
// requests onto (spec §4.5/§5: "a Treiber stack with CAS on the head plus
// per-instance enqueued deduplication"). Many audio-thread calls may push
// concurrently; a single loader goroutine drains it in batches.
type queue struct {
	head atomic.Pointer[node]
}

type node struct {
	clip *streamdata.Clip
	next *node
}

// push enqueues c unless it's already queued (spec: "enqueue() fails fast
// if already enqueued — an in-flight request subsumes new ones").
func (q *queue) push(c *streamdata.Clip) bool {
	if !c.MarkEnqueued() {
		return false
	}
	n := &node{clip: c}
	for {
		old := q.head.Load()
		n.next = old
		if q.head.CompareAndSwap(old, n) {
			return true
		}
	}
}

// drainAll atomically swaps the head with nil ("exchange(nullptr)" per
// spec) and returns every clip that was queued, in LIFO order; callers
// don't depend on FIFO ordering across distinct instances, only on the
// per-instance enqueued dedup above.
func (q *queue) drainAll() []*streamdata.Clip {
	n := q.head.Swap(nil)
	var out []*streamdata.Clip
	for n != nil {
		out = append(out, n.clip)
		n = n.next
	}
	return out
}
