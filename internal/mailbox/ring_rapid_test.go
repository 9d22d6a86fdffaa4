package mailbox

import (
	"testing"

	"pgregory.net/rapid"
)

// TestRingPushDrainPreservesOrderAndCount property-tests the ring against
// arbitrary push/drain interleavings: every drained sequence is contiguous
// and increasing, and Pending never exceeds Capacity (spec §4.1 "fixed-
// capacity (1024) power-of-two ring... latest wins").
func TestRingPushDrainPreservesOrderAndCount(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var r Ring
		next := 0
		var lastDrained = -1

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "drain") {
				r.Drain(func(m *Message) {
					if m.TrackID <= lastDrained {
						t.Fatalf("drained out of order: %d after %d", m.TrackID, lastDrained)
					}
					lastDrained = m.TrackID
				})
				continue
			}
			batch := rapid.IntRange(1, 5).Draw(t, "batch")
			for j := 0; j < batch; j++ {
				r.Push(Message{TrackID: next})
				next++
			}
			if p := r.Pending(); p < 0 || p > Capacity {
				t.Fatalf("Pending() = %d, out of [0, %d]", p, Capacity)
			}
		}
	})
}
