// Package assign computes one-to-one correspondences between source and
// target cell sets.
//
// Given N source and N target cells with average-color features and
// normalized center positions, a solver returns a permutation of [0, N):
// assignment[i] = j pairs source cell i with target cell j.
//
// Four algorithms are provided with different speed/quality tradeoffs:
//
//   - [AlgorithmSort]: O(N log N) luminance rank matching, no cost matrix.
//   - [AlgorithmOptimal]: exact minimum-cost bijection under the cost model,
//     O(N³) time and O(N²) memory.
//   - [AlgorithmGreedy]: randomized greedy claiming, reproducible under a
//     fixed seed.
//   - [AlgorithmApprox]: deterministic greedy claiming in ascending source
//     order.
//
// Unknown algorithm names are rejected at the boundary by [ParseAlgorithm];
// the solvers themselves only see the closed [Algorithm] enum.
package assign

import (
	"context"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/cellmorph/cellmorph/pkg/errors"
	"github.com/cellmorph/cellmorph/pkg/grid"
)

// Algorithm selects the assignment strategy.
type Algorithm int

const (
	AlgorithmOptimal Algorithm = iota
	AlgorithmGreedy
	AlgorithmApprox
	AlgorithmSort
)

// String returns the algorithm's wire name.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmOptimal:
		return "optimal"
	case AlgorithmGreedy:
		return "greedy"
	case AlgorithmApprox:
		return "approx"
	case AlgorithmSort:
		return "sort"
	}
	return "unknown"
}

// ParseAlgorithm maps a name to an Algorithm, rejecting unknown values.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "optimal":
		return AlgorithmOptimal, nil
	case "greedy":
		return AlgorithmGreedy, nil
	case "approx":
		return AlgorithmApprox, nil
	case "sort":
		return AlgorithmSort, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidArgument,
		"unknown algorithm: %q (must be one of: optimal, greedy, approx, sort)", s)
}

// Algorithms lists the valid algorithm names for CLI help and validation.
func Algorithms() []string {
	return []string{"optimal", "greedy", "approx", "sort"}
}

// Assignment is a permutation of [0, N): Assignment[i] = j maps source cell i
// to target cell j. Every value in [0, N) appears exactly once.
type Assignment []int

// Valid reports whether the assignment is a bijection onto [0, len).
func (a Assignment) Valid() bool {
	seen := make([]bool, len(a))
	for _, j := range a {
		if j < 0 || j >= len(a) || seen[j] {
			return false
		}
		seen[j] = true
	}
	return true
}

// TotalCost sums cost[i][a[i]] over all sources.
func (a Assignment) TotalCost(cost *mat.Dense) float64 {
	var total float64
	for i, j := range a {
		total += cost.At(i, j)
	}
	return total
}

// Problem bundles the solver inputs.
type Problem struct {
	SrcFeatures  []grid.Feature
	TgtFeatures  []grid.Feature
	SrcPositions []grid.Position
	TgtPositions []grid.Position

	// Proximity blends color distance against spatial distance:
	// 0 = color only, 1 = position only. Must lie in [0, 1].
	Proximity float64

	// Rand drives the greedy visitation shuffle. Required for
	// AlgorithmGreedy; other algorithms never touch it, so concurrent
	// invocations cannot perturb each other.
	Rand *rand.Rand

	// OptimalCeiling caps the cell count accepted by AlgorithmOptimal.
	// Zero means no ceiling. Exceeding it is RESOURCE_EXHAUSTED; any
	// fallback to a cheaper algorithm is the caller's policy.
	OptimalCeiling int
}

func (p *Problem) validate() error {
	n := len(p.SrcFeatures)
	if len(p.TgtFeatures) != n || len(p.SrcPositions) != n || len(p.TgtPositions) != n {
		return errors.New(errors.ErrCodeInvalidInput,
			"mismatched input lengths: src features %d, tgt features %d, src positions %d, tgt positions %d",
			n, len(p.TgtFeatures), len(p.SrcPositions), len(p.TgtPositions))
	}
	if p.Proximity < 0 || p.Proximity > 1 {
		return errors.New(errors.ErrCodeInvalidArgument,
			"proximity importance must be in [0, 1], got %v", p.Proximity)
	}
	return nil
}

// Solve computes a bijection between source and target cells using the given
// algorithm. The returned assignment is always a full permutation, including
// the degenerate N=0 and N=1 cases.
//
// The context bounds the optimal solver, which is the only potentially
// expensive strategy; the others complete quickly and check ctx only at entry.
func Solve(ctx context.Context, algo Algorithm, p Problem) (Assignment, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCanceled, err, "assignment canceled")
	}

	n := len(p.SrcFeatures)
	if n == 0 {
		return Assignment{}, nil
	}

	switch algo {
	case AlgorithmSort:
		return solveSort(p), nil
	case AlgorithmOptimal:
		if p.OptimalCeiling > 0 && n > p.OptimalCeiling {
			return nil, errors.New(errors.ErrCodeResourceExhausted,
				"optimal assignment refused: %d cells exceeds ceiling of %d", n, p.OptimalCeiling)
		}
		cost := CostMatrix(p)
		return solveOptimal(ctx, cost)
	case AlgorithmGreedy:
		if p.Rand == nil {
			return nil, errors.New(errors.ErrCodeInvalidArgument,
				"greedy algorithm requires a seeded random source")
		}
		cost := CostMatrix(p)
		return solveGreedy(cost, p.Rand.Perm(n)), nil
	case AlgorithmApprox:
		cost := CostMatrix(p)
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return solveGreedy(cost, order), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidArgument, "unknown algorithm: %d", int(algo))
}
