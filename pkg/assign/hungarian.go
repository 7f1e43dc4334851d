package assign

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cellmorph/cellmorph/pkg/errors"
)

// solveOptimal finds the exact minimum-cost bijection using the Hungarian
// algorithm in its O(N³) shortest-augmenting-path form (Jonker-Volgenant
// potentials). The result is deterministic: ties are broken by the scan
// order over target indices.
//
// The context is checked once per augmented source row, so cancellation
// latency is bounded by a single O(N²) augmentation.
func solveOptimal(ctx context.Context, cost *mat.Dense) (Assignment, error) {
	n, _ := cost.Dims()

	// Potentials for rows (u) and columns (v); matchedRow[j] is the source
	// currently matched to target j-1, with index 0 as the virtual unmatched
	// slot. All arrays are 1-based to keep the augmentation loop simple.
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	matchedRow := make([]int, n+1)
	way := make([]int, n+1)

	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "optimal assignment canceled")
		default:
		}

		matchedRow[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}

		// Grow an alternating tree from source i until a free target is found.
		for {
			used[j0] = true
			i0 := matchedRow[j0]
			delta := math.Inf(1)
			j1 := 0
			row := cost.RawRowView(i0 - 1)
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := row[j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[matchedRow[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if matchedRow[j0] == 0 {
				break
			}
		}

		// Unwind the augmenting path.
		for j0 != 0 {
			j1 := way[j0]
			matchedRow[j0] = matchedRow[j1]
			j0 = j1
		}
	}

	result := make(Assignment, n)
	for j := 1; j <= n; j++ {
		result[matchedRow[j]-1] = j - 1
	}
	return result, nil
}
