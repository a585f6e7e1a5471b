// Package ged computes normalised graph edit distances between canonical
// meta-alert graphs.
package ged

import (
	"context"

	"alertrank/internal/graph"
)

const (
	// DefaultMaxCost is the acceptance limit an edit path may not exceed.
	DefaultMaxCost = 100.0
	// DefaultMaxSteps bounds the number of search states expanded per pair.
	DefaultMaxSteps = 100000
)

// Outcome tags how a distance was obtained.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeBudgetExceeded means no edit path within the acceptance limit was found.
	OutcomeBudgetExceeded
	// OutcomeUnparsable means one of the inputs is not a well-formed graph.
	OutcomeUnparsable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeBudgetExceeded:
		return "budget_exceeded"
	case OutcomeUnparsable:
		return "unparsable"
	default:
		return "unknown"
	}
}

// Result is the answer for one pair.
type Result struct {
	// Cost is the edit path cost. Only meaningful for OutcomeOK.
	Cost float64
	// Distance is Cost / maxCost, in [0,1].
	Distance float64
	Outcome  Outcome
	// Approximate is set when the step budget ran out before the search
	// proved the returned path optimal.
	Approximate bool
}

// Value returns the distance to use for ranking. Every failed outcome maps to
// the maximal distance 1.
func (r Result) Value() float64 {
	if r.Outcome != OutcomeOK {
		return 1
	}
	return r.Distance
}

func maximal(o Outcome) Result {
	return Result{Distance: 1, Outcome: o}
}

// Oracle returns the normalised edit distance between two graphs.
type Oracle interface {
	Distance(ctx context.Context, a, b *graph.Canonical, maxCost float64) Result
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, a, b *graph.Canonical, maxCost float64) Result

// Distance calls f.
func (f OracleFunc) Distance(ctx context.Context, a, b *graph.Canonical, maxCost float64) Result {
	return f(ctx, a, b, maxCost)
}
