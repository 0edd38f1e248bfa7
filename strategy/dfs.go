package strategy

import "sort"

type dfsChoice struct {
	numAlts int
	chosen  int
}

// DFS enumerates every enabled-operation sequence up to maxSteps choice
// points, one iteration at a time, via depth-first backtracking over a
// choice tree (spec §4.4: "must be deterministic and
// complete for a given bound").
//
// DFS only branches on scheduling choices (NextOperation); NextBool and
// NextInt return fixed values so that the search space stays the
// interleaving space the strategy is meant to enumerate, not the product
// of interleavings and data choices.
type DFS struct {
	maxSteps  int
	trace     []dfsChoice
	pos       int
	iteration int
	exhausted bool
}

// NewDFS returns a DFS strategy bounded to maxSteps choice points per
// iteration; 0 means unbounded (bounded only by quiescence/deadlock).
func NewDFS(maxSteps int) *DFS {
	return &DFS{maxSteps: maxSteps}
}

func (d *DFS) NextOperation(enabled []OpID, _ SchedContext) (OpID, error) {
	if len(enabled) == 0 {
		return "", ErrNoEnabledOperations
	}
	sorted := append([]OpID(nil), enabled...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if d.pos < len(d.trace) {
		c := d.trace[d.pos]
		idx := c.chosen
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		d.pos++
		return sorted[idx], nil
	}
	if d.maxSteps > 0 && d.pos >= d.maxSteps {
		return sorted[0], nil
	}
	d.trace = append(d.trace, dfsChoice{numAlts: len(sorted), chosen: 0})
	d.pos++
	return sorted[0], nil
}

func (d *DFS) NextBool(uint32) bool  { return false }
func (d *DFS) NextInt(uint32) uint32 { return 0 }

// PrepareNextIteration is called once an iteration has completed (never
// before the first); it backtracks to the next unexplored choice in the
// tree built by the iteration just finished.
func (d *DFS) PrepareNextIteration() bool {
	d.iteration++
	d.pos = 0
	for len(d.trace) > 0 {
		last := &d.trace[len(d.trace)-1]
		last.chosen++
		if last.chosen < last.numAlts {
			return true
		}
		d.trace = d.trace[:len(d.trace)-1]
	}
	d.exhausted = true
	return false
}

func (d *DFS) Seed() uint64    { return 0 }
func (d *DFS) Name() string    { return "dfs" }
func (d *DFS) Exhausted() bool { return d.exhausted }
