// Package selector chooses which input clip fills the next segment slot.
package selector

import (
	"math/rand/v2"

	"github.com/ZacxDev/scrambleclip/internal/analysis"
)

// DefaultTopN is the number of random candidates compared per pick
const DefaultTopN = 3

// Selector picks clips, preferring ones that look unlike recent picks
type Selector struct {
	rng  *rand.Rand
	topN int
}

// New creates a selector drawing from rng
func New(rng *rand.Rand, topN int) *Selector {
	if topN < 1 {
		topN = DefaultTopN
	}
	return &Selector{rng: rng, topN: topN}
}

// Pick returns one of available. With no recent picks or no signatures the
// choice is uniform. Otherwise up to topN random candidates are compared by
// mean signature dissimilarity to the recent clips and the most dissimilar
// wins; ties go to the candidate drawn first. available must not be empty.
func (s *Selector) Pick(available, recent []int, signatures map[int][]float64) int {
	if len(recent) == 0 || len(signatures) == 0 {
		return available[s.rng.IntN(len(available))]
	}

	n := min(s.topN, len(available))
	order := s.rng.Perm(len(available))[:n]

	best, bestScore := available[order[0]], -1.0
	for _, idx := range order {
		candidate := available[idx]
		score := dissimilarity(candidate, recent, signatures)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best
}

// dissimilarity is the mean (1 - cosine) between the candidate's signature
// and those of the recent clips. Unscored candidates get 0.
func dissimilarity(candidate int, recent []int, signatures map[int][]float64) float64 {
	sig, ok := signatures[candidate]
	if !ok {
		return 0
	}

	var total float64
	var count int
	for _, id := range recent {
		other, ok := signatures[id]
		if !ok {
			continue
		}
		total += 1 - analysis.Cosine(sig, other)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// Pool returns the clips eligible for the next slot: available minus the
// recent ones, or all of available when that would leave nothing.
func Pool(available []int, recent *Recency) []int {
	pool := make([]int, 0, len(available))
	for _, id := range available {
		if !recent.Contains(id) {
			pool = append(pool, id)
		}
	}
	if len(pool) == 0 {
		return append(pool, available...)
	}
	return pool
}
