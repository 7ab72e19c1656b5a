package train

import (
	"math"
	"sort"
)

// Selector keeps the k candidate features most correlated with the label
// by one-way ANOVA F-score. Selected column order follows the original
// candidate order, and the fitted selection serializes to JSON.
type Selector struct {
	Candidates []string  `json:"candidates"`
	Selected   []string  `json:"selected"`
	Scores     []float64 `json:"scores"`
	indices    []int
}

// Fit scores every candidate column against the labels and keeps the top
// k. Degenerate columns score zero and lose to anything informative.
func (s *Selector) Fit(x [][]float64, y []int, names []string, k int) {
	s.Candidates = names
	s.Scores = make([]float64, len(names))
	for j := range names {
		col := make([]float64, len(x))
		for i := range x {
			col[i] = x[i][j]
		}
		s.Scores[j] = fScore(col, y)
	}

	if k > len(names) {
		k = len(names)
	}
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.Scores[order[a]] > s.Scores[order[b]]
	})

	s.indices = append([]int(nil), order[:k]...)
	sort.Ints(s.indices)
	s.Selected = make([]string, len(s.indices))
	for i, idx := range s.indices {
		s.Selected[i] = names[idx]
	}
}

// Transform projects a matrix onto the selected columns.
func (s *Selector) Transform(x [][]float64) [][]float64 {
	s.restoreIndices()
	out := make([][]float64, len(x))
	for i := range x {
		row := make([]float64, len(s.indices))
		for j, idx := range s.indices {
			row[j] = x[i][idx]
		}
		out[i] = row
	}
	return out
}

// restoreIndices rebuilds the index list after JSON round-trips, where
// only the name lists survive.
func (s *Selector) restoreIndices() {
	if len(s.indices) == len(s.Selected) {
		return
	}
	pos := make(map[string]int, len(s.Candidates))
	for i, name := range s.Candidates {
		pos[name] = i
	}
	s.indices = make([]int, 0, len(s.Selected))
	for _, name := range s.Selected {
		s.indices = append(s.indices, pos[name])
	}
}

// fScore is the one-way ANOVA F statistic: between-class variance over
// within-class variance. Non-finite inputs and degenerate groupings
// score zero.
func fScore(col []float64, y []int) float64 {
	groups := map[int][]float64{}
	var total float64
	for i, v := range col {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		groups[y[i]] = append(groups[y[i]], v)
		total += v
	}
	if len(groups) < 2 {
		return 0
	}

	n := float64(len(col))
	grandMean := total / n

	var ssBetween, ssWithin float64
	for _, g := range groups {
		var sum float64
		for _, v := range g {
			sum += v
		}
		mean := sum / float64(len(g))
		ssBetween += float64(len(g)) * (mean - grandMean) * (mean - grandMean)
		for _, v := range g {
			ssWithin += (v - mean) * (v - mean)
		}
	}

	dfBetween := float64(len(groups) - 1)
	dfWithin := n - float64(len(groups))
	if dfWithin <= 0 || ssWithin == 0 {
		return 0
	}
	return (ssBetween / dfBetween) / (ssWithin / dfWithin)
}
