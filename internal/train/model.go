package train

import (
	"fmt"
	"math/rand"
	"sort"
)

const numClasses = 3

// Stump is a single-feature threshold rule with class distributions on
// each side. Distributions are Laplace-smoothed at fit time.
type Stump struct {
	Feature   int                   `json:"feature"`
	Threshold float64               `json:"threshold"`
	Left      [numClasses]float64   `json:"left"`
	Right     [numClasses]float64   `json:"right"`
}

// Ensemble is a bagged collection of decision stumps with soft voting.
// Each stump is fit on a bootstrap sample over a randomly chosen feature,
// so the ensemble averages many weak, decorrelated views of the data.
type Ensemble struct {
	Stumps []Stump `json:"stumps"`
	Seed   int64   `json:"seed"`
}

// FitEnsemble trains size stumps on bootstrap resamples of (x, y).
// Deterministic for a fixed seed.
func FitEnsemble(x [][]float64, y []int, size int, seed int64) (*Ensemble, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("ensemble: bad training set shape (%d rows, %d labels)", len(x), len(y))
	}
	nFeatures := len(x[0])
	rng := rand.New(rand.NewSource(seed))

	ens := &Ensemble{Seed: seed, Stumps: make([]Stump, 0, size)}
	for s := 0; s < size; s++ {
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = rng.Intn(len(x))
		}
		feature := rng.Intn(nFeatures)
		ens.Stumps = append(ens.Stumps, fitStump(x, y, idx, feature))
	}
	return ens, nil
}

// fitStump finds the gini-minimizing threshold for the chosen feature
// over the bootstrap sample, scanning decile cut points.
func fitStump(x [][]float64, y []int, sample []int, feature int) Stump {
	values := make([]float64, len(sample))
	for i, idx := range sample {
		values[i] = x[idx][feature]
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	bestThreshold := sorted[len(sorted)/2]
	bestImpurity := 2.0
	for d := 1; d < 10; d++ {
		threshold := sorted[len(sorted)*d/10]
		imp := splitImpurity(values, y, sample, threshold)
		if imp < bestImpurity {
			bestImpurity = imp
			bestThreshold = threshold
		}
	}

	var left, right [numClasses]float64
	for i := range left {
		left[i], right[i] = 1, 1
	}
	for i, idx := range sample {
		if values[i] <= bestThreshold {
			left[y[idx]]++
		} else {
			right[y[idx]]++
		}
	}
	normalize(&left)
	normalize(&right)
	return Stump{Feature: feature, Threshold: bestThreshold, Left: left, Right: right}
}

func splitImpurity(values []float64, y []int, sample []int, threshold float64) float64 {
	var leftCounts, rightCounts [numClasses]float64
	var nLeft, nRight float64
	for i, idx := range sample {
		if values[i] <= threshold {
			leftCounts[y[idx]]++
			nLeft++
		} else {
			rightCounts[y[idx]]++
			nRight++
		}
	}
	n := nLeft + nRight
	return nLeft/n*gini(leftCounts, nLeft) + nRight/n*gini(rightCounts, nRight)
}

func gini(counts [numClasses]float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func normalize(dist *[numClasses]float64) {
	var sum float64
	for _, v := range dist {
		sum += v
	}
	for i := range dist {
		dist[i] /= sum
	}
}

// PredictProba soft-votes the stump leaf distributions.
func (e *Ensemble) PredictProba(row []float64) [numClasses]float64 {
	var proba [numClasses]float64
	for _, st := range e.Stumps {
		dist := st.Right
		if row[st.Feature] <= st.Threshold {
			dist = st.Left
		}
		for i := range proba {
			proba[i] += dist[i]
		}
	}
	for i := range proba {
		proba[i] /= float64(len(e.Stumps))
	}
	return proba
}

// Predict returns the argmax class for a feature vector.
func (e *Ensemble) Predict(row []float64) int {
	proba := e.PredictProba(row)
	best := 0
	for i := 1; i < numClasses; i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return best
}
