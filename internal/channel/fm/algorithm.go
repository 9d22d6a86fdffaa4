package fm

// wireKind selects which pipe (if any) an operator reads as its FM input,
// and which pipe it writes its output into. pipeNone means "zero buffer" in
// the original (no modulation in / output discarded except as carrier).
type wireKind int

const (
	pipeNone wireKind = iota
	pipe0
	pipe1
)

// opWire describes one operator's routing for one algorithm: which pipe (if
// any) feeds it FM input, which pipe it writes its output into, and whether
// it is a carrier (summed directly into the channel's audible output).
// Grounded on siopm_channel_fm.cpp's per-algorithm set_pipes() calls.
type opWire struct {
	in      wireKind
	out     wireKind
	carrier bool
}

// algorithmTable holds the wiring for every operator slot of one algorithm.
type algorithmTable [4]opWire

// algorithms1Op has a single topology: the lone operator is always a carrier
// feeding only itself (no modulation chain possible with one operator).
var algorithms1Op = [1]algorithmTable{
	0: {{in: pipeNone, out: pipe0, carrier: true}},
}

// algorithms2Op mirrors _set_algorithm_operator2: only algorithms 0-2 are
// meaningfully distinct; anything else (3-15, to fill the spec's 16-entry
// table) falls back to the "o0+o1" parallel-carrier default, matching the
// original's switch default case.
var algorithms2Op = [16]algorithmTable{
	0: { // o1(o0)
		{in: pipeNone, out: pipe0},
		{in: pipe0, out: pipe0, carrier: true},
	},
	1: { // o0+o1
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe0, carrier: true},
	},
	2: { // o0+o1(o0), o1 also reads pipe0 as its base/feedback pipe
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipe0, out: pipe0, carrier: true},
	},
}

// algorithms3Op mirrors _set_algorithm_operator3 (cases 0-6); 7-15 fall back
// to the "o0+o1+o2" default.
var algorithms3Op = [16]algorithmTable{
	0: { // o2(o1(o0))
		{in: pipeNone, out: pipe0},
		{in: pipe0, out: pipe0},
		{in: pipe0, out: pipe0, carrier: true},
	},
	1: { // o2(o0+o1)
		{in: pipeNone, out: pipe0},
		{in: pipeNone, out: pipe0},
		{in: pipe0, out: pipe0, carrier: true},
	},
	2: { // o0+o2(o1)
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe1},
		{in: pipe1, out: pipe0, carrier: true},
	},
	3: { // o1(o0)+o2
		{in: pipeNone, out: pipe0},
		{in: pipe0, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe0, carrier: true},
	},
	4: { // o1(o0)+o2(o0)
		{in: pipeNone, out: pipe1},
		{in: pipe1, out: pipe0, carrier: true},
		{in: pipe1, out: pipe0, carrier: true},
	},
	5: { // o0+o1+o2
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe0, carrier: true},
	},
	6: { // o0+o1(o0)+o2
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipe0, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe0, carrier: true},
	},
}

// algorithms4Op mirrors _set_algorithm_operator4 (cases 0-12); 13-15 fall
// back to the "o0+o1+o2+o3" default.
var algorithms4Op = [16]algorithmTable{
	0: { // o3(o2(o1(o0)))
		{in: pipeNone, out: pipe0},
		{in: pipe0, out: pipe0},
		{in: pipe0, out: pipe0},
		{in: pipe0, out: pipe0, carrier: true},
	},
	1: { // o3(o2(o0+o1))
		{in: pipeNone, out: pipe0},
		{in: pipeNone, out: pipe0},
		{in: pipe0, out: pipe0},
		{in: pipe0, out: pipe0, carrier: true},
	},
	2: { // o3(o0+o2(o1))
		{in: pipeNone, out: pipe0},
		{in: pipeNone, out: pipe1},
		{in: pipe1, out: pipe0},
		{in: pipe0, out: pipe0, carrier: true},
	},
	3: { // o3(o1(o0)+o2)
		{in: pipeNone, out: pipe0},
		{in: pipe0, out: pipe0},
		{in: pipeNone, out: pipe0},
		{in: pipe0, out: pipe0, carrier: true},
	},
	4: { // o1(o0)+o3(o2)
		{in: pipeNone, out: pipe0},
		{in: pipe0, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe1},
		{in: pipe1, out: pipe0, carrier: true},
	},
	5: { // o1(o0)+o2(o0)+o3(o0)
		{in: pipeNone, out: pipe1},
		{in: pipe1, out: pipe0, carrier: true},
		{in: pipe1, out: pipe0, carrier: true},
		{in: pipe1, out: pipe0, carrier: true},
	},
	6: { // o1(o0)+o2+o3
		{in: pipeNone, out: pipe0},
		{in: pipe0, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe0, carrier: true},
	},
	7: { // o0+o1+o2+o3
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe0, carrier: true},
	},
	8: { // o0+o3(o2(o1))
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe1},
		{in: pipe1, out: pipe1},
		{in: pipe1, out: pipe0, carrier: true},
	},
	9: { // o0+o2(o1)+o3
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe1},
		{in: pipe1, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe0, carrier: true},
	},
	10: { // o3(o0+o1+o2), DX7-style
		{in: pipeNone, out: pipe0},
		{in: pipeNone, out: pipe0},
		{in: pipeNone, out: pipe0},
		{in: pipe0, out: pipe0, carrier: true},
	},
	11: { // o0+o3(o1+o2)
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe1},
		{in: pipeNone, out: pipe1},
		{in: pipe1, out: pipe0, carrier: true},
	},
	12: { // o0+o1(o0)+o3(o2)
		{in: pipeNone, out: pipe0, carrier: true},
		{in: pipe0, out: pipe0, carrier: true},
		{in: pipeNone, out: pipe1},
		{in: pipe1, out: pipe0, carrier: true},
	},
}

var defaultTable = [4]algorithmTable{
	0: algorithms1Op[0],
	1: algorithms2Op[1],
	2: algorithms3Op[5],
	3: algorithms4Op[7],
}

// wiringFor returns the operator wiring for operatorCount (1-4) and
// algorithm (0-15, out-of-range folds to the parallel-carrier default),
// mirroring set_algorithm's per-count dispatch.
func wiringFor(operatorCount, algorithm int) algorithmTable {
	switch operatorCount {
	case 1:
		return algorithms1Op[0]
	case 2:
		if algorithm >= 0 && algorithm < len(algorithms2Op) && hasWiring(algorithms2Op[algorithm]) {
			return algorithms2Op[algorithm]
		}
		return defaultTable[1]
	case 3:
		if algorithm >= 0 && algorithm < len(algorithms3Op) && hasWiring(algorithms3Op[algorithm]) {
			return algorithms3Op[algorithm]
		}
		return defaultTable[2]
	case 4:
		if algorithm >= 0 && algorithm < len(algorithms4Op) && hasWiring(algorithms4Op[algorithm]) {
			return algorithms4Op[algorithm]
		}
		return defaultTable[3]
	default:
		return defaultTable[0]
	}
}

func hasWiring(t algorithmTable) bool {
	for _, w := range t {
		if w.out != pipeNone || w.carrier {
			return true
		}
	}
	return false
}

// carrierMasks is the spec's "4x16 carrier-mask lookup table": bit i set
// means operator i is a carrier, indexed by [operatorCount-1][algorithm].
var carrierMasks [4][16]int

func init() {
	fill := func(count int, tables []algorithmTable, fallback algorithmTable) {
		for alg := 0; alg < 16; alg++ {
			t := fallback
			if alg < len(tables) && hasWiring(tables[alg]) {
				t = tables[alg]
			}
			mask := 0
			for i := 0; i < count; i++ {
				if t[i].carrier {
					mask |= 1 << uint(i)
				}
			}
			carrierMasks[count-1][alg] = mask
		}
	}
	fill(1, algorithms1Op[:], defaultTable[0])
	fill(2, algorithms2Op[:], defaultTable[1])
	fill(3, algorithms3Op[:], defaultTable[2])
	fill(4, algorithms4Op[:], defaultTable[3])
}

// CarrierMask returns the carrier bitmask for operatorCount (1-4) and
// algorithm (0-15).
func CarrierMask(operatorCount, algorithm int) int {
	if operatorCount < 1 || operatorCount > 4 {
		return 0
	}
	if algorithm < 0 || algorithm > 15 {
		return 1<<uint(operatorCount) - 1 // parallel-carrier default, as wiringFor
	}
	return carrierMasks[operatorCount-1][algorithm]
}

// firstWriteFlags reports, for each operator with a fresh (non-feedback,
// non-read-modify-write) output target, whether it is the first operator in
// index order to target that pipe this pass. The first writer establishes
// the pipe's block contents with Write; later writers to the same
// already-established pipe must Add instead, to realize parallel-carrier
// sums like "o0+o1" (spec: Pipe's Add is the "shared read-modify-write"
// entry point, Write the "exclusive-owner" one).
func firstWriteFlags(t algorithmTable, count int) [4]bool {
	var established [2]bool // index 0 = pipe0, index 1 = pipe1
	var first [4]bool
	for i := 0; i < count; i++ {
		w := t[i]
		if w.out == pipeNone || w.in == w.out {
			continue
		}
		idx := int(w.out) - 1
		first[i] = !established[idx]
		established[idx] = true
	}
	return first
}
