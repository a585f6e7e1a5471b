// Package graph holds the generic meta-alert graph container: an ordered list
// of nodes and the directed edges between them.
package graph

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrInvalidKey is returned for empty node keys or keys containing whitespace.
	ErrInvalidKey = errors.New("invalid node key")
	// ErrForeignNode is returned when an edge references a node owned by another graph.
	ErrForeignNode = errors.New("node does not belong to graph")
	// ErrEmptyGraph is returned when a graph is created without a first node.
	ErrEmptyGraph = errors.New("graph requires at least one node")
)

// Node wraps exactly one element.
type Node[T any] struct {
	Element T
	Key     string
	Label   string
	Weight  float64

	owner *Graph[T]
}

// Edge is a directed, weighted link between two nodes of the same graph.
type Edge[T any] struct {
	Key    string
	Label  string
	Weight float64
	Source *Node[T]
	Target *Node[T]
}

// Graph owns an ordered sequence of nodes (discovery order) and its edges.
// Nodes are never removed.
type Graph[T any] struct {
	Key   string
	Tags  map[string]string
	nodes []*Node[T]
	edges []*Edge[T]
}

// NewNode validates the key and builds a detached node.
func NewNode[T any](element T, key, label string, weight float64) (*Node[T], error) {
	if key == "" || strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return &Node[T]{Element: element, Key: key, Label: label, Weight: weight}, nil
}

// New creates a graph holding a single first node.
func New[T any](key string, first *Node[T]) (*Graph[T], error) {
	if first == nil {
		return nil, ErrEmptyGraph
	}
	g := &Graph[T]{Key: key, Tags: make(map[string]string)}
	if err := g.AddNode(first); err != nil {
		return nil, err
	}
	return g, nil
}

// AddNode appends a node; it becomes the last node.
func (g *Graph[T]) AddNode(n *Node[T]) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrForeignNode)
	}
	if n.owner == g {
		return fmt.Errorf("node %s already in graph %s", n.Key, g.Key)
	}
	if n.owner != nil {
		return fmt.Errorf("%w: %s", ErrForeignNode, n.Key)
	}
	n.owner = g
	g.nodes = append(g.nodes, n)
	return nil
}

// AddEdge adds an edge whose endpoints are already in the graph.
func (g *Graph[T]) AddEdge(e *Edge[T]) error {
	if e == nil || e.Source == nil || e.Target == nil {
		return fmt.Errorf("%w: incomplete edge", ErrForeignNode)
	}
	if e.Source.owner != g || e.Target.owner != g {
		return fmt.Errorf("%w: edge %s", ErrForeignNode, e.Key)
	}
	g.edges = append(g.edges, e)
	return nil
}

// Connect appends next after the current last node and links them with an
// edge carrying weight.
func (g *Graph[T]) Connect(next *Node[T], weight float64) (*Edge[T], error) {
	prev := g.LastNode()
	if err := g.AddNode(next); err != nil {
		return nil, err
	}
	e := &Edge[T]{
		Key:    prev.Key + "->" + next.Key,
		Label:  prev.Label + "->" + next.Label,
		Weight: weight,
		Source: prev,
		Target: next,
	}
	if err := g.AddEdge(e); err != nil {
		return nil, err
	}
	return e, nil
}

// FirstNode returns the earliest discovered node.
func (g *Graph[T]) FirstNode() *Node[T] {
	return g.nodes[0]
}

// LastNode returns the most recently appended node.
func (g *Graph[T]) LastNode() *Node[T] {
	return g.nodes[len(g.nodes)-1]
}

// Nodes returns the nodes in discovery order. The slice must not be modified.
func (g *Graph[T]) Nodes() []*Node[T] {
	return g.nodes
}

// Edges returns the edges in insertion order. The slice must not be modified.
func (g *Graph[T]) Edges() []*Edge[T] {
	return g.edges
}

// Len returns the number of nodes.
func (g *Graph[T]) Len() int {
	return len(g.nodes)
}
