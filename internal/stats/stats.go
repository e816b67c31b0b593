// Package stats wraps the gonum routines the pipeline scores with.
// All helpers are NaN-aware: observation pairs with a missing side are
// dropped before the statistic is computed, matching the pairwise
// treatment of the stored sentinel values.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// dropNaNPairs returns the observations where both sides are present.
func dropNaNPairs(xs, ys []float64) ([]float64, []float64) {
	var ox, oy []float64
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		ox = append(ox, xs[i])
		oy = append(oy, ys[i])
	}
	return ox, oy
}

// Pearson 皮尔逊相关系数
func Pearson(xs, ys []float64) float64 {
	x, y := dropNaNPairs(xs, ys)
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// Spearman computes the rank correlation using average ranks for ties.
func Spearman(xs, ys []float64) float64 {
	x, y := dropNaNPairs(xs, ys)
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(Ranks(x), Ranks(y), nil)
}

// Ranks returns 1-based ranks, ties averaged.
func Ranks(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	ranks := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		// 并列取平均秩
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// ArgSortDesc returns the indices ordering xs descending, missing
// values last and ties keeping input order.
func ArgSortDesc(xs []float64) []int {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		x, y := xs[idx[a]], xs[idx[b]]
		if math.IsNaN(y) {
			return !math.IsNaN(x)
		}
		if math.IsNaN(x) {
			return false
		}
		return x > y
	})
	return idx
}

// Mean 均值 (NaN 跳过); 无有效观测时为 NaN
func Mean(xs []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range xs {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Std 样本标准差 (N-1), NaN 跳过
func Std(xs []float64) float64 {
	var clean []float64
	for _, v := range xs {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) < 2 {
		return math.NaN()
	}
	return stat.StdDev(clean, nil)
}

// MeanVector returns the column means of an observation matrix
// (rows = dates, cols = series).
func MeanVector(obs *mat.Dense) []float64 {
	_, c := obs.Dims()
	out := make([]float64, c)
	for j := 0; j < c; j++ {
		out[j] = stat.Mean(mat.Col(nil, j, obs), nil)
	}
	return out
}

// CovMatrix returns the sample covariance matrix of the observation
// matrix's columns.
func CovMatrix(obs *mat.Dense) *mat.SymDense {
	_, c := obs.Dims()
	cov := mat.NewSymDense(c, nil)
	stat.CovarianceMatrix(cov, obs, nil)
	return cov
}

// MaxUtilityWeights solves the mean-variance weight vector maximizing
// mu'w - lbd/2 * w'Sigma*w. The first-order condition gives
// Sigma*w = mu/lbd, solved by Cholesky when Sigma is positive
// definite, otherwise by a dense solve. Callers are expected to reject
// rank-deficient samples before asking for a model.
func MaxUtilityWeights(mu []float64, sigma *mat.SymDense, lbd float64) ([]float64, error) {
	n := len(mu)
	rhs := mat.NewVecDense(n, nil)
	for i, v := range mu {
		rhs.SetVec(i, v/lbd)
	}

	var w mat.VecDense
	var chol mat.Cholesky
	if chol.Factorize(sigma) {
		if err := chol.SolveVecTo(&w, rhs); err != nil {
			return nil, err
		}
	} else {
		if err := w.SolveVec(sigma, rhs); err != nil {
			return nil, err
		}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = w.AtVec(i)
	}
	return out, nil
}

// MatrixRank returns the numerical rank of the observation matrix.
func MatrixRank(obs *mat.Dense) int {
	var svd mat.SVD
	if !svd.Factorize(obs, mat.SVDNone) {
		return 0
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return 0
	}
	r, c := obs.Dims()
	n := r
	if c > n {
		n = c
	}
	// numpy 风格的容差: max(m, n) * eps * sigma_max
	tol := float64(n) * 2.220446049250313e-16 * values[0]
	rank := 0
	for _, s := range values {
		if s > tol {
			rank++
		}
	}
	return rank
}
