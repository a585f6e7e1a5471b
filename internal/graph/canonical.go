package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// CanonicalNode is the aggregate of all nodes sharing one label.
type CanonicalNode struct {
	Label  string
	Weight float64
}

// CanonicalEdge is the aggregate of all edges sharing one label.
type CanonicalEdge struct {
	Label  string
	Source int
	Target int
	Weight float64
}

// Canonical is an order-independent view of a graph: nodes merged by label,
// edges merged by label, both sorted by label.
type Canonical struct {
	Key   string
	Nodes []CanonicalNode
	Edges []CanonicalEdge
}

// Canonicalize merges nodes and edges by label, summing their weights.
func (g *Graph[T]) Canonicalize() *Canonical {
	nodeWeights := make(map[string]float64, len(g.nodes))
	for _, n := range g.nodes {
		nodeWeights[n.Label] += n.Weight
	}
	labels := make([]string, 0, len(nodeWeights))
	for label := range nodeWeights {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	index := make(map[string]int, len(labels))
	c := &Canonical{Key: g.Key, Nodes: make([]CanonicalNode, 0, len(labels))}
	for i, label := range labels {
		index[label] = i
		c.Nodes = append(c.Nodes, CanonicalNode{Label: label, Weight: nodeWeights[label]})
	}

	edges := make(map[string]*CanonicalEdge, len(g.edges))
	for _, e := range g.edges {
		if ce, ok := edges[e.Label]; ok {
			ce.Weight += e.Weight
			continue
		}
		edges[e.Label] = &CanonicalEdge{
			Label:  e.Label,
			Source: index[e.Source.Label],
			Target: index[e.Target.Label],
			Weight: e.Weight,
		}
	}
	c.Edges = make([]CanonicalEdge, 0, len(edges))
	for _, ce := range edges {
		c.Edges = append(c.Edges, *ce)
	}
	sort.Slice(c.Edges, func(i, j int) bool {
		return c.Edges[i].Label < c.Edges[j].Label
	})
	return c
}

// Validate checks that every edge endpoint refers to a canonical node.
func (c *Canonical) Validate() error {
	if c == nil || len(c.Nodes) == 0 {
		return fmt.Errorf("canonical graph has no nodes")
	}
	for _, e := range c.Edges {
		if e.Source < 0 || e.Source >= len(c.Nodes) || e.Target < 0 || e.Target >= len(c.Nodes) {
			return fmt.Errorf("edge %q references unknown node", e.Label)
		}
	}
	return nil
}

// DOT renders the canonical graph in Graphviz syntax. Node ids are label ranks.
func (c *Canonical) DOT() string {
	var b strings.Builder
	b.WriteString("digraph ")
	b.WriteString(strconv.Quote(c.Key))
	b.WriteString(" {")
	for i, n := range c.Nodes {
		fmt.Fprintf(&b, " %d [label=%s frequency=\"%s\"];", i, strconv.Quote(n.Label), strconv.FormatFloat(n.Weight, 'g', -1, 64))
	}
	for _, e := range c.Edges {
		fmt.Fprintf(&b, " %d -> %d [weight=\"%s\"];", e.Source, e.Target, strconv.FormatFloat(e.Weight, 'g', -1, 64))
	}
	b.WriteString(" }")
	return b.String()
}

// Fingerprint hashes the structure and weights, ignoring the graph key.
func (c *Canonical) Fingerprint() uint64 {
	var b strings.Builder
	for _, n := range c.Nodes {
		b.WriteString(n.Label)
		b.WriteByte(0)
		b.WriteString(strconv.FormatFloat(n.Weight, 'g', -1, 64))
		b.WriteByte(1)
	}
	for _, e := range c.Edges {
		fmt.Fprintf(&b, "%d>%d:%s", e.Source, e.Target, strconv.FormatFloat(e.Weight, 'g', -1, 64))
		b.WriteByte(2)
	}
	return xxhash.Sum64String(b.String())
}
