package streamloader

import (
	"testing"

	"github.com/cbegin/sionfm-go/internal/streamdata"
)

func newTestClip() *streamdata.Clip {
	return streamdata.NewClip("test", 48000, 2, streamdata.FormatFP32, 0, 0, 0)
}

func TestPushDedupesAlreadyEnqueuedClip(t *testing.T) {
	var q queue
	c := newTestClip()
	if !q.push(c) {
		t.Fatal("first push should succeed")
	}
	if q.push(c) {
		t.Fatal("second push of an already-enqueued clip should fail fast")
	}
}

func TestDrainAllReturnsEveryPushedClipAndClearsHead(t *testing.T) {
	var q queue
	a, b := newTestClip(), newTestClip()
	q.push(a)
	q.push(b)

	drained := q.drainAll()
	if len(drained) != 2 {
		t.Fatalf("drained %d clips, want 2", len(drained))
	}
	if len(q.drainAll()) != 0 {
		t.Fatal("second drainAll should see an empty queue")
	}
}

func TestPushAfterDrainSucceedsAgain(t *testing.T) {
	var q queue
	c := newTestClip()
	q.push(c)
	q.drainAll()
	c.ClearEnqueued()
	if !q.push(c) {
		t.Fatal("push should succeed again once the clip is no longer marked enqueued")
	}
}
