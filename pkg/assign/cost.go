package assign

import (
	"gonum.org/v1/gonum/mat"
)

// CostMatrix builds the N×N cost matrix for a validated problem:
//
//	cost[i][j] = (1-p)·colorDist(i,j) + p·spatialDist(i,j)
//
// where colorDist is the squared Euclidean RGB distance (range [0, 3]),
// spatialDist the squared Euclidean distance between normalized centers
// (range [0, 2]), and p the proximity importance. The two terms are left
// unnormalized: their ranges are close enough that p gives a usable dial.
//
// O(N²) memory; only built for the algorithms that need it.
func CostMatrix(p Problem) *mat.Dense {
	n := len(p.SrcFeatures)
	cost := mat.NewDense(n, n, nil)
	colorW := 1 - p.Proximity
	spatialW := p.Proximity
	for i := 0; i < n; i++ {
		sf := p.SrcFeatures[i]
		sp := p.SrcPositions[i]
		row := cost.RawRowView(i)
		for j := 0; j < n; j++ {
			tf := p.TgtFeatures[j]
			dr := sf[0] - tf[0]
			dg := sf[1] - tf[1]
			db := sf[2] - tf[2]
			tp := p.TgtPositions[j]
			dy := sp.Y - tp.Y
			dx := sp.X - tp.X
			row[j] = colorW*(dr*dr+dg*dg+db*db) + spatialW*(dy*dy+dx*dx)
		}
	}
	return cost
}
