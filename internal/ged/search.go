package ged

import (
	"context"
	"math"

	"alertrank/internal/graph"
)

// Searcher finds minimum cost edit paths by depth-first branch and bound.
// Node and edge insertions, deletions and relabelings each cost 1; weights are
// not part of the cost.
type Searcher struct {
	maxSteps int
}

// NewSearcher creates a searcher. maxSteps <= 0 uses DefaultMaxSteps.
func NewSearcher(maxSteps int) *Searcher {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Searcher{maxSteps: maxSteps}
}

// Distance implements Oracle.
func (s *Searcher) Distance(ctx context.Context, a, b *graph.Canonical, maxCost float64) Result {
	if maxCost <= 0 {
		maxCost = DefaultMaxCost
	}
	if a.Validate() != nil || b.Validate() != nil {
		return maximal(OutcomeUnparsable)
	}
	if a.Fingerprint() == b.Fingerprint() {
		return Result{Outcome: OutcomeOK}
	}

	p := newProblem(ctx, a, b, s.maxSteps)
	cost, found := p.solve(maxCost)
	if !found {
		return maximal(OutcomeBudgetExceeded)
	}
	return Result{
		Cost:        cost,
		Distance:    math.Min(cost/maxCost, 1),
		Outcome:     OutcomeOK,
		Approximate: p.exhausted,
	}
}

type edgeKey [2]int

type problem struct {
	ctx    context.Context
	a, b   *graph.Canonical
	aEdges map[edgeKey]string
	bEdges map[edgeKey]string
	bIndex map[string]int

	// mapping[i] is the b node substituted for a node i, or -1 for deletion.
	mapping []int
	usedB   []bool

	best      float64
	found     bool
	steps     int
	maxSteps  int
	exhausted bool
}

func edgeIndex(c *graph.Canonical) map[edgeKey]string {
	m := make(map[edgeKey]string, len(c.Edges))
	for _, e := range c.Edges {
		k := edgeKey{e.Source, e.Target}
		if _, ok := m[k]; !ok {
			m[k] = e.Label
		}
	}
	return m
}

func newProblem(ctx context.Context, a, b *graph.Canonical, maxSteps int) *problem {
	p := &problem{
		ctx:      ctx,
		a:        a,
		b:        b,
		aEdges:   edgeIndex(a),
		bEdges:   edgeIndex(b),
		bIndex:   make(map[string]int, len(b.Nodes)),
		mapping:  make([]int, len(a.Nodes)),
		usedB:    make([]bool, len(b.Nodes)),
		maxSteps: maxSteps,
	}
	for j, n := range b.Nodes {
		p.bIndex[n.Label] = j
	}
	for i := range p.mapping {
		p.mapping[i] = -1
	}
	return p
}

// solve returns the cheapest cost found that does not exceed maxCost.
func (p *problem) solve(maxCost float64) (float64, bool) {
	p.best = math.Nextafter(maxCost, math.Inf(1))
	if g := p.greedy(); g <= maxCost {
		p.best = g
		p.found = true
	}
	p.search(0, 0)
	return p.best, p.found
}

// greedy maps equal labels onto each other and deletes the rest. Its cost is
// the initial upper bound.
func (p *problem) greedy() float64 {
	cost := 0.0
	for i, n := range p.a.Nodes {
		j, ok := p.bIndex[n.Label]
		if !ok {
			j = -1
		}
		p.assign(i, j)
		cost += p.nodeCost(i, j) + p.edgeCost(i)
	}
	cost += p.completion()
	for i := range p.mapping {
		p.unassign(i)
	}
	return cost
}

func (p *problem) assign(i, j int) {
	p.mapping[i] = j
	if j >= 0 {
		p.usedB[j] = true
	}
}

func (p *problem) unassign(i int) {
	if j := p.mapping[i]; j >= 0 {
		p.usedB[j] = false
	}
	p.mapping[i] = -1
}

func (p *problem) search(i int, cost float64) {
	if p.exhausted {
		return
	}
	p.steps++
	if p.steps > p.maxSteps || (p.steps&1023 == 0 && p.ctx.Err() != nil) {
		p.exhausted = true
		return
	}

	if i == len(p.a.Nodes) {
		if total := cost + p.completion(); total < p.best {
			p.best = total
			p.found = true
		}
		return
	}

	for _, j := range p.candidates(i) {
		p.assign(i, j)
		c := cost + p.nodeCost(i, j) + p.edgeCost(i)
		if c+p.lowerBound(i+1) < p.best {
			p.search(i+1, c)
		}
		p.unassign(i)
		if p.exhausted {
			return
		}
	}
}

// candidates lists the same-labelled b node first, then every other free b
// node, then deletion.
func (p *problem) candidates(i int) []int {
	out := make([]int, 0, len(p.b.Nodes)+1)
	same, ok := p.bIndex[p.a.Nodes[i].Label]
	if ok && !p.usedB[same] {
		out = append(out, same)
	}
	for j := range p.b.Nodes {
		if !p.usedB[j] && !(ok && j == same) {
			out = append(out, j)
		}
	}
	return append(out, -1)
}

func (p *problem) nodeCost(i, j int) float64 {
	if j < 0 || p.a.Nodes[i].Label != p.b.Nodes[j].Label {
		return 1
	}
	return 0
}

// edgeCost prices the edges between node i and every node assigned before it,
// including a self loop on i.
func (p *problem) edgeCost(i int) float64 {
	cost := 0.0
	for k := 0; k <= i; k++ {
		cost += p.pairCost(i, k)
		if k != i {
			cost += p.pairCost(k, i)
		}
	}
	return cost
}

func (p *problem) pairCost(u, v int) float64 {
	la, okA := p.aEdges[edgeKey{u, v}]
	var lb string
	okB := false
	if mu, mv := p.mapping[u], p.mapping[v]; mu >= 0 && mv >= 0 {
		lb, okB = p.bEdges[edgeKey{mu, mv}]
	}
	switch {
	case okA && okB:
		if la != lb {
			return 1
		}
		return 0
	case okA || okB:
		return 1
	default:
		return 0
	}
}

// completion inserts every unused b node and every b edge touching one.
func (p *problem) completion() float64 {
	cost := 0.0
	for _, used := range p.usedB {
		if !used {
			cost++
		}
	}
	for k := range p.bEdges {
		if !p.usedB[k[0]] || !p.usedB[k[1]] {
			cost++
		}
	}
	return cost
}

// lowerBound is an admissible estimate of the node edits left once the first
// `from` a nodes are assigned. Labels are unique within a canonical graph, so
// at most one free b node can absorb each remaining a node for free.
func (p *problem) lowerBound(from int) float64 {
	remainingA := len(p.a.Nodes) - from
	freeB := 0
	for _, used := range p.usedB {
		if !used {
			freeB++
		}
	}
	common := 0
	for i := from; i < len(p.a.Nodes); i++ {
		if j, ok := p.bIndex[p.a.Nodes[i].Label]; ok && !p.usedB[j] {
			common++
		}
	}
	return float64(max(remainingA, freeB) - common)
}
