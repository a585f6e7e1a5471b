package prioritiser

import (
	"fmt"
	"math"
	"sort"
)

// DistanceFloor is the minimum distance between two different meta-alerts.
const DistanceFloor = 0.1

// Mapping selects how a normalised outlier factor becomes a priority.
type Mapping string

const (
	// MappingQuartile maps l >= 0.75 to 4, >= 0.5 to 3, >= 0.25 to 2, else 1.
	MappingQuartile Mapping = "quartile"
	// MappingRounded maps l to round(l*4), in 0..4.
	MappingRounded Mapping = "rounded"
)

// PriorityFor maps a normalised outlier factor l in (0,1] to a priority.
// Higher is more anomalous.
func PriorityFor(l float64, m Mapping) int {
	if m == MappingRounded {
		return int(math.Round(l * 4))
	}
	switch {
	case l >= 0.75:
		return 4
	case l >= 0.5:
		return 3
	case l >= 0.25:
		return 2
	default:
		return 1
	}
}

// Factors holds the intermediate and final LOF values for one matrix.
type Factors struct {
	KDistance []float64
	Neighbors [][]int
	LRD       []float64
	LOF       []float64
	MaxLOF    float64
}

// Normalised returns lof[i]/maxLof.
func (f *Factors) Normalised(i int) float64 {
	return f.LOF[i] / f.MaxLOF
}

// OutlierFactors computes local outlier factors over a symmetric distance
// matrix. The diagonal is ignored: a meta-alert is never its own neighbour.
func OutlierFactors(dist [][]float64, k int) (*Factors, error) {
	n := len(dist)
	for i, row := range dist {
		if len(row) != n {
			return nil, fmt.Errorf("distance row %d has %d columns, want %d", i, len(row), n)
		}
	}
	if k < 1 || k >= n {
		return nil, fmt.Errorf("%w: k=%d needs 1 <= k < %d", ErrInvalidConfiguration, k, n)
	}

	f := &Factors{
		KDistance: make([]float64, n),
		Neighbors: make([][]int, n),
		LRD:       make([]float64, n),
		LOF:       make([]float64, n),
	}

	others := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		others = others[:0]
		for j, d := range dist[i] {
			if j != i {
				others = append(others, d)
			}
		}
		sort.Float64s(others)
		f.KDistance[i] = others[k-1]
	}

	for i := 0; i < n; i++ {
		for j, d := range dist[i] {
			if j != i && d <= f.KDistance[i] {
				f.Neighbors[i] = append(f.Neighbors[i], j)
			}
		}
		if len(f.Neighbors[i]) == 0 {
			return nil, fmt.Errorf("meta-alert %d has no neighbours within k-distance %g", i, f.KDistance[i])
		}
	}

	for i := 0; i < n; i++ {
		sum := 0.0
		for _, j := range f.Neighbors[i] {
			sum += math.Max(f.KDistance[j], dist[i][j])
		}
		mean := sum / float64(len(f.Neighbors[i]))
		if mean <= 0 {
			return nil, fmt.Errorf("meta-alert %d has zero mean reachability distance", i)
		}
		f.LRD[i] = 1 / mean
	}

	for i := 0; i < n; i++ {
		sum := 0.0
		for _, j := range f.Neighbors[i] {
			sum += f.LRD[j] / f.LRD[i]
		}
		f.LOF[i] = sum / float64(len(f.Neighbors[i]))
		f.MaxLOF = math.Max(f.MaxLOF, f.LOF[i])
	}
	if f.MaxLOF <= 0 || math.IsInf(f.MaxLOF, 0) || math.IsNaN(f.MaxLOF) {
		return nil, fmt.Errorf("degenerate maximum outlier factor %g", f.MaxLOF)
	}
	return f, nil
}
