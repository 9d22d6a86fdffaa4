package effect

import "sort"

// Graph holds every stream in the routing topology and runs them in depth
// order each block (spec §4.7 "Depth ordering": deepest first, master is
// depth 0).
type Graph struct {
	streams []*Stream
	sorted  []*Stream
	dirty   bool
}

// NewGraph creates an empty graph seeded with the master stream at depth 0.
func NewGraph(master *Stream) *Graph {
	g := &Graph{}
	g.Register(master)
	return g
}

// Register adds a stream to the graph. Call once per track insert chain and
// once per global effect slot at construction time.
func (g *Graph) Register(s *Stream) {
	g.streams = append(g.streams, s)
	g.dirty = true
}

func (g *Graph) resort() {
	g.sorted = append(g.sorted[:0], g.streams...)
	sort.SliceStable(g.sorted, func(i, j int) bool {
		return g.sorted[i].Depth > g.sorted[j].Depth
	})
	g.dirty = false
}

// ClearAll zeroes every stream's accumulator; call once per block before
// channels mix into them.
func (g *Graph) ClearAll() {
	for _, s := range g.streams {
		s.Clear()
	}
}

// Process runs every stream's effect chain and send fan-out in
// deepest-first order over [start, start+length) of the block.
func (g *Graph) Process(start, length int) {
	if g.dirty {
		g.resort()
	}
	for _, s := range g.sorted {
		s.Process(start, length)
	}
}

// Master returns the depth-0 stream, which should be the sole entry without
// any downstream send after Process runs (its output feeds the driver).
func (g *Graph) Master() *Stream {
	for _, s := range g.streams {
		if s.Depth == 0 {
			return s
		}
	}
	return nil
}
