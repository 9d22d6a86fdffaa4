// Package pipe implements the inter-operator communication buffer used
// inside one FM channel. A Pipe is a contiguous ring sized to exactly one
// processing block with a single integer cursor; operators own, share, or
// read a pipe according to the channel's algorithm wiring (spec §3 "Pipe").
package pipe

// Pipe is a per-block sample buffer with a movable write/read cursor. It is
// reused for the lifetime of the owning channel; Reset rewinds the cursor to
// the start of a new block without reallocating.
type Pipe struct {
	buf    []int32
	cursor int
}

// New allocates a pipe sized to blockLen samples.
func New(blockLen int) *Pipe {
	return &Pipe{buf: make([]int32, blockLen)}
}

// Resize grows the backing buffer if blockLen exceeds the current capacity;
// called only when the driver's block length changes, never mid-block.
func (p *Pipe) Resize(blockLen int) {
	if cap(p.buf) < blockLen {
		p.buf = make([]int32, blockLen)
	} else {
		p.buf = p.buf[:blockLen]
	}
}

// Reset rewinds the cursor to the start of the block. It does not clear the
// buffer: owning writes with Write overwrite every sample exactly once per
// block per the per-sample-loop invariant (spec §3).
func (p *Pipe) Reset() {
	p.cursor = 0
}

// Write stores v at the cursor (exclusive-owner write) and advances by one.
func (p *Pipe) Write(v int32) {
	p.buf[p.cursor] = v
	p.cursor++
}

// Add sums v into the sample at the cursor (shared read-modify-write write)
// and advances by one.
func (p *Pipe) Add(v int32) {
	p.buf[p.cursor] += v
	p.cursor++
}

// Read returns the sample at the cursor and advances by one.
func (p *Pipe) Read() int32 {
	v := p.buf[p.cursor]
	p.cursor++
	return v
}

// Peek returns the sample at the cursor without advancing it; used by an
// operator reading its own feedback pipe before writing this sample's value.
func (p *Pipe) Peek() int32 {
	return p.buf[p.cursor]
}

// Zero clears the backing buffer to silence; used to initialize a pipe that
// will only ever be summed into (input mode "zero", spec §3 Channel).
func (p *Pipe) Zero() {
	for i := range p.buf {
		p.buf[i] = 0
	}
}

// Len reports the configured block length.
func (p *Pipe) Len() int {
	return len(p.buf)
}
