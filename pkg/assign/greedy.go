package assign

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// solveGreedy visits source indices in the given order; each visited source
// claims its lowest-cost unclaimed target. The result depends on the
// visitation order: a shuffled order gives the randomized "greedy" strategy,
// the identity order the deterministic "approx" strategy.
//
// Cost ties within a row are broken by ascending target index, so the result
// is fully determined by the visitation order.
func solveGreedy(cost *mat.Dense, order []int) Assignment {
	n := len(order)
	result := make(Assignment, n)
	taken := make([]bool, n)

	ranked := make([]int, n)
	for _, i := range order {
		row := cost.RawRowView(i)
		for j := range ranked {
			ranked[j] = j
		}
		sort.SliceStable(ranked, func(a, b int) bool {
			return row[ranked[a]] < row[ranked[b]]
		})
		for _, j := range ranked {
			if !taken[j] {
				result[i] = j
				taken[j] = true
				break
			}
		}
	}
	return result
}
