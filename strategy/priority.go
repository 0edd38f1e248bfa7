package strategy

import "sort"

// Priority is a PCT-style (probabilistic concurrency testing) strategy:
// it assigns each operation a random priority rank at first sight, always
// runs the highest-priority enabled operation, and at a small number of
// randomly chosen step indices ("priority-change points") demotes the
// operation it is about to run to the back of the ranking. Concentrating
// a search budget on a handful of priority changes per iteration finds
// ordering bugs far more efficiently than uniform random search, which is
// why spec §4.4 calls this class out as part of the core contract.
type Priority struct {
	seed         uint64
	rnd          *Random
	maxChanges   int
	maxSteps     int
	priorities   map[OpID]int
	order        []OpID // discovery order, used to keep priority assignment deterministic
	changePoints map[int]bool
	stepIdx      int
	iteration    int
	nextRank     int
}

// NewPriority returns a Priority strategy seeded with seed. maxChanges
// bounds how many priority-change points are injected per iteration;
// maxSteps bounds the step indices those points are drawn from.
func NewPriority(seed uint64, maxChanges, maxSteps int) *Priority {
	p := &Priority{
		seed:       seed,
		rnd:        NewRandom(seed, 0),
		maxChanges: maxChanges,
		maxSteps:   maxSteps,
		priorities: make(map[OpID]int),
	}
	p.drawChangePoints()
	return p
}

func (p *Priority) drawChangePoints() {
	p.changePoints = make(map[int]bool, p.maxChanges)
	bound := p.maxSteps
	if bound <= 0 {
		bound = 1000
	}
	for i := 0; i < p.maxChanges; i++ {
		p.changePoints[int(p.rnd.NextInt(uint32(bound)))] = true
	}
}

func (p *Priority) rankOf(op OpID) int {
	if r, ok := p.priorities[op]; ok {
		return r
	}
	// Assign a fresh, randomly-ordered rank the first time an operation
	// is observed: new machines created mid-run slot in at a random
	// point in the existing ranking rather than always-lowest.
	r := int(p.rnd.NextInt(uint32(p.nextRank + 1)))
	for o, pr := range p.priorities {
		if pr >= r {
			p.priorities[o] = pr + 1
		}
	}
	p.nextRank++
	p.priorities[op] = r
	p.order = append(p.order, op)
	return r
}

func (p *Priority) NextOperation(enabled []OpID, _ SchedContext) (OpID, error) {
	if len(enabled) == 0 {
		return "", ErrNoEnabledOperations
	}
	ranked := append([]OpID(nil), enabled...)
	for _, op := range ranked {
		p.rankOf(op) // ensure every enabled op has a rank before sorting
	}
	sort.Slice(ranked, func(i, j int) bool {
		ri, rj := p.priorities[ranked[i]], p.priorities[ranked[j]]
		if ri != rj {
			return ri < rj
		}
		return ranked[i] < ranked[j]
	})
	chosen := ranked[0]
	p.stepIdx++
	if p.changePoints[p.stepIdx] {
		p.demote(chosen)
	}
	return chosen, nil
}

// demote pushes op to the back of the current ranking, simulating a PCT
// priority-change point.
func (p *Priority) demote(op OpID) {
	worst := p.nextRank
	p.nextRank++
	p.priorities[op] = worst
}

func (p *Priority) NextBool(max uint32) bool  { return p.rnd.NextBool(max) }
func (p *Priority) NextInt(max uint32) uint32 { return p.rnd.NextInt(max) }

func (p *Priority) PrepareNextIteration() bool {
	p.iteration++
	p.stepIdx = 0
	p.priorities = make(map[OpID]int)
	p.order = nil
	p.nextRank = 0
	p.rnd.reseed()
	p.rnd.state += uint64(p.iteration) * 0x2545F4914F6CDD1D
	p.drawChangePoints()
	return true
}

func (p *Priority) Seed() uint64 { return p.seed }
func (p *Priority) Name() string { return "pct" }
