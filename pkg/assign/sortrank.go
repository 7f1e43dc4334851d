package assign

import (
	"sort"

	"github.com/cellmorph/cellmorph/pkg/grid"
)

// solveSort matches cells rank-by-rank without a cost matrix: source and
// target indices are independently ordered by ascending (luminance, y, x)
// and the k-th ranked source is paired with the k-th ranked target.
//
// The positional tie-break keeps spatial coherence among cells of similar
// brightness. Proximity importance is deliberately ignored: this strategy
// approximates visual coherence rather than minimizing the cost model.
func solveSort(p Problem) Assignment {
	n := len(p.SrcFeatures)
	srcRank := rankByLuminance(p.SrcFeatures, p.SrcPositions)
	tgtRank := rankByLuminance(p.TgtFeatures, p.TgtPositions)

	result := make(Assignment, n)
	for k := 0; k < n; k++ {
		result[srcRank[k]] = tgtRank[k]
	}
	return result
}

// rankByLuminance returns cell indices ordered by ascending (luminance, y, x).
// Positions are distinct grid centers, so the ordering is total and the
// result deterministic.
func rankByLuminance(feats []grid.Feature, pos []grid.Position) []int {
	idx := make([]int, len(feats))
	lum := make([]float64, len(feats))
	for i := range feats {
		idx[i] = i
		lum[i] = feats[i].Luminance()
	}
	sort.Slice(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if lum[ia] != lum[ib] {
			return lum[ia] < lum[ib]
		}
		if pos[ia].Y != pos[ib].Y {
			return pos[ia].Y < pos[ib].Y
		}
		return pos[ia].X < pos[ib].X
	})
	return idx
}
