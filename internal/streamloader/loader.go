// Package streamloader implements the background streaming-clip loader
// (spec §4.5): a single process-global thread that pops a lock-free MPSC
// work queue in batches, decodes WAV source audio, resamples it to 48kHz,
// and fills each clip's ring buffer, while the audio thread only ever reads
// the ring and its own granular playback cursors.
package streamloader

import (
	"time"

	"github.com/cbegin/sionfm-go/internal/streamdata"
)

// idleSleep is how long the loader parks when its queue is empty (spec §5:
// "The loader thread suspends only on an empty queue (1 ms sleep)").
const idleSleep = time.Millisecond

// Loader is the single process-global streaming loader thread. Exactly one
// should run per process (spec §5 "a single static loader thread").
type Loader struct {
	q    queue
	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// New creates a Loader; call Run in its own goroutine to start it.
func New() *Loader {
	return &Loader{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Enqueue requests a refill of c. Safe to call concurrently from any number
// of audio-thread or control-thread callers (spec §5 "MPSC: many
// enqueuers, one loader consumer").
func (l *Loader) Enqueue(c *streamdata.Clip) {
	if l.q.push(c) {
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
}

// Run drains the queue until Stop is called. Intended to run as the single
// process-global loader goroutine.
func (l *Loader) Run() {
	defer close(l.done)
	for {
		select {
		case <-l.stop:
			return
		default:
		}

		clips := l.q.drainAll()
		if len(clips) == 0 {
			select {
			case <-l.wake:
			case <-time.After(idleSleep):
			case <-l.stop:
				return
			}
			continue
		}
		for _, c := range clips {
			c.MarkProcessing()
			fill(c)
			c.ClearProcessing()
			c.ClearEnqueued()
		}
	}
}

// Stop signals Run to exit and blocks until it has.
func (l *Loader) Stop() {
	close(l.stop)
	<-l.done
}

// LoadWAV opens and parses a WAV file's header, then performs a synchronous
// prefill so playback can begin immediately without waiting on the loader
// goroutine (spec §6: "load_wav... performs a synchronous prefill").
// Subsequent refills are requested via Enqueue as the audio thread consumes
// the ring.
func (l *Loader) LoadWAV(path string) (*streamdata.Clip, error) {
	c, err := openWAV(path)
	if err != nil {
		return nil, err
	}
	c.MarkProcessing()
	fill(c)
	c.ClearProcessing()
	c.SetActive(true)
	return c, nil
}

// WaitUntilIdle spins until neither a queued nor an in-progress fill
// remains for c, establishing exclusive control-thread access to its
// loader-owned fields (spec §4.5 "wait_until_idle... used by the
// destructor and by load_wav() to establish exclusive access").
func WaitUntilIdle(c *streamdata.Clip) {
	for !c.Idle() {
		time.Sleep(time.Microsecond * 100)
	}
}
