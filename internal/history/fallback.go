package history

import "math/rand/v2"

const (
	fallbackAttempts = 10
	fallbackProbes   = 20
)

// LeastOverlapStart picks a start for a segment of length desired when the
// strict gap scan has nothing left. It first tries a few random starts that
// avoid every used segment, then settles for the probe with the least total
// overlap. A clip shorter than desired starts at 0.
func LeastOverlapStart(rng *rand.Rand, desired, clipDuration float64, used []Interval) float64 {
	maxStart := clipDuration - desired
	if maxStart <= 0 {
		return 0
	}

	for i := 0; i < fallbackAttempts; i++ {
		start := rng.Float64() * maxStart
		if overlap(start, start+desired, used) == 0 {
			return start
		}
	}

	best, bestOverlap := 0.0, -1.0
	for i := 0; i < fallbackProbes; i++ {
		start := rng.Float64() * maxStart
		o := overlap(start, start+desired, used)
		if bestOverlap < 0 || o < bestOverlap {
			best, bestOverlap = start, o
		}
	}
	return best
}

func overlap(start, end float64, used []Interval) float64 {
	var total float64
	for _, iv := range used {
		if end > iv.Start && start < iv.End {
			total += min(end, iv.End) - max(start, iv.Start)
		}
	}
	return total
}
