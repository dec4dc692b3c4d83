package crx_arm

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// squaredDistance is the squared euclidean distance over all six axes.
func squaredDistance(a, b JointVector) float64 {
	diff := make([]float64, NumJoints)
	floats.SubTo(diff, a[:], b[:])
	return floats.Dot(diff, diff)
}

// BestIndex returns the index of the candidate closest to reference in joint space,
// or -1 when there are no candidates. The first minimum wins, so equal distances
// resolve to the earliest candidate.
func BestIndex(candidates []JointVector, reference JointVector) int {
	best := -1
	minDist := math.Inf(1)
	for i, c := range candidates {
		if d := squaredDistance(c, reference); d < minDist {
			minDist = d
			best = i
		}
	}
	if best < 0 && len(candidates) > 0 {
		// every distance was NaN
		best = 0
	}
	return best
}

// SelectBest picks the candidate nearest to reference. This keeps small handle motions
// on the same IK branch instead of flipping to a distant configuration.
func SelectBest(candidates []JointVector, reference JointVector) (JointVector, bool) {
	i := BestIndex(candidates, reference)
	if i < 0 {
		return JointVector{}, false
	}
	return candidates[i], true
}

// SelectBestSolution is SelectBest over a labeled solution set.
func SelectBestSolution(set SolutionSet, reference JointVector) (Solution, bool) {
	i := BestIndex(set.Joints(), reference)
	if i < 0 {
		return Solution{}, false
	}
	return set[i], true
}
