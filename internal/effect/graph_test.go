package effect

import "testing"

func TestGraphProcessesDeepestFirst(t *testing.T) {
	master := New("master", 0, 4, 2, nil)
	mid := New("mid", 1, 4, 2, nil)
	deep := New("deep", 2, 4, 2, nil)

	var order []string
	master.AddEffect(&orderEffect{name: "master", order: &order})
	mid.AddEffect(&orderEffect{name: "mid", order: &order})
	deep.AddEffect(&orderEffect{name: "deep", order: &order})

	g := NewGraph(master)
	g.Register(mid)
	g.Register(deep)
	g.Process(0, 4)

	if len(order) != 3 || order[0] != "deep" || order[1] != "mid" || order[2] != "master" {
		t.Fatalf("processing order = %v, want [deep mid master]", order)
	}
}

func TestGraphMasterReturnsDepthZero(t *testing.T) {
	master := New("master", 0, 4, 2, nil)
	g := NewGraph(master)
	g.Register(New("track", 1, 4, 2, nil))
	if g.Master() != master {
		t.Fatal("Master() did not return the depth-0 stream")
	}
}

type orderEffect struct {
	name  string
	order *[]string
}

func (e *orderEffect) PrepareProcess() int { return 2 }
func (e *orderEffect) Process(channels int, buf []float32, start, length int) int {
	*e.order = append(*e.order, e.name)
	return channels
}
func (e *orderEffect) SetParam(string, []float64) {}
func (e *orderEffect) Bypassed() bool             { return false }
func (e *orderEffect) SetBypass(bool)             {}
func (e *orderEffect) Reset()                     {}
