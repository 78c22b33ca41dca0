// Package cluster implements k-means clustering and the country clustering
// analyses built on it.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrNoData is returned when there are no observations to cluster.
var ErrNoData = errors.New("no observations to cluster")

// KMeans configures Lloyd's algorithm with k-means++ seeding.
type KMeans struct {
	K       int
	Seed    int64
	NInit   int
	MaxIter int
	// Tol is relative to the mean feature variance.
	Tol float64
}

// DefaultKMeans returns k=3 with a fixed seed.
func DefaultKMeans() KMeans {
	return KMeans{K: 3, Seed: 42, NInit: 10, MaxIter: 300, Tol: 1e-4}
}

// Result is the best of NInit runs.
type Result struct {
	Labels    []int
	Centroids *mat.Dense
	Inertia   float64
	Iter      int
}

// Fit clusters the rows of X. Labels are renumbered so clusters are ordered by
// their centroid's first coordinate. K is clamped to the number of rows.
func (km KMeans) Fit(X mat.Matrix) (*Result, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return nil, ErrNoData
	}
	k := km.K
	if k <= 0 {
		return nil, fmt.Errorf("invalid k: %d", k)
	}
	if k > n {
		k = n
	}
	nInit := max(km.NInit, 1)
	maxIter := km.MaxIter
	if maxIter <= 0 {
		maxIter = 300
	}
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
		for _, v := range rows[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("row %d: non-finite feature", i)
			}
		}
	}
	tol := km.Tol * meanVariance(X)

	rng := rand.New(rand.NewPCG(uint64(km.Seed), 0x9e3779b97f4a7c15))
	var best *Result
	for run := 0; run < nInit; run++ {
		res := lloyd(rows, seedPlusPlus(rows, k, rng), maxIter, tol)
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}
	best.relabel()
	return best, nil
}

func meanVariance(X mat.Matrix) float64 {
	_, d := X.Dims()
	var sum float64
	for j := 0; j < d; j++ {
		_, v := stat.PopMeanVariance(mat.Col(nil, j, X), nil)
		sum += v
	}
	return sum / float64(d)
}

// seedPlusPlus picks k initial centers, each sampled with probability
// proportional to its squared distance from the nearest chosen center.
func seedPlusPlus(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centers := [][]float64{clone(rows[rng.IntN(n)])}
	d2 := make([]float64, n)
	for len(centers) < k {
		var total float64
		for i, r := range rows {
			d2[i] = math.Inf(1)
			for _, c := range centers {
				d2[i] = math.Min(d2[i], sqDist(r, c))
			}
			total += d2[i]
		}
		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			for i, v := range d2 {
				target -= v
				if target <= 0 {
					next = i
					break
				}
			}
		}
		centers = append(centers, clone(rows[next]))
	}
	return centers
}

func lloyd(rows [][]float64, centers [][]float64, maxIter int, tol float64) *Result {
	n, k, d := len(rows), len(centers), len(rows[0])
	labels := make([]int, n)
	iter := 0
	for iter < maxIter {
		iter++
		for i, r := range rows {
			labels[i] = nearest(r, centers)
		}
		next := make([][]float64, k)
		counts := make([]int, k)
		for c := range next {
			next[c] = make([]float64, d)
		}
		for i, r := range rows {
			floats.Add(next[labels[i]], r)
			counts[labels[i]]++
		}
		// Empty clusters take the point farthest from its center, each a
		// different one, and only from clusters that keep at least one member.
		moved := make([]bool, n)
		for c := range next {
			if counts[c] > 0 {
				continue
			}
			far := farthest(rows, labels, centers, counts, moved)
			if far < 0 {
				copy(next[c], centers[c])
				continue
			}
			old := labels[far]
			floats.Sub(next[old], rows[far])
			counts[old]--
			copy(next[c], rows[far])
			counts[c] = 1
			labels[far] = c
			moved[far] = true
		}
		for c := range next {
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), next[c])
			}
		}
		var shift float64
		for c := range centers {
			shift += sqDist(centers[c], next[c])
		}
		centers = next
		if shift <= tol {
			break
		}
	}
	var inertia float64
	for i, r := range rows {
		labels[i] = nearest(r, centers)
		inertia += sqDist(r, centers[labels[i]])
	}
	cm := mat.NewDense(k, d, nil)
	for c := range centers {
		cm.SetRow(c, centers[c])
	}
	return &Result{Labels: labels, Centroids: cm, Inertia: inertia, Iter: iter}
}

func (r *Result) relabel() {
	k, _ := r.Centroids.Dims()
	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return r.Centroids.At(order[a], 0) < r.Centroids.At(order[b], 0)
	})
	newID := make([]int, k)
	sorted := mat.NewDense(k, r.Centroids.RawMatrix().Cols, nil)
	for to, from := range order {
		newID[from] = to
		sorted.SetRow(to, r.Centroids.RawRowView(from))
	}
	for i, l := range r.Labels {
		r.Labels[i] = newID[l]
	}
	r.Centroids = sorted
}

func nearest(p []float64, centers [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, ctr := range centers {
		if d := sqDist(p, ctr); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

// farthest returns the row farthest from its center among rows not yet moved
// whose cluster has another member, or -1 when there is none.
func farthest(rows [][]float64, labels []int, centers [][]float64, counts []int, moved []bool) int {
	idx, far := -1, -1.0
	for i, r := range rows {
		if moved[i] || counts[labels[i]] < 2 {
			continue
		}
		if d := sqDist(r, centers[labels[i]]); d > far {
			idx, far = i, d
		}
	}
	return idx
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }

// Elbow returns the inertia for k = 1..maxK (clamped to the number of rows).
func Elbow(X mat.Matrix, maxK int, km KMeans) ([]float64, error) {
	n, _ := X.Dims()
	if n == 0 {
		return nil, ErrNoData
	}
	maxK = min(maxK, n)
	out := make([]float64, 0, maxK)
	for k := 1; k <= maxK; k++ {
		km.K = k
		res, err := km.Fit(X)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Inertia)
	}
	return out, nil
}

// StandardScale centers each column to zero mean and unit population variance.
// Constant columns become zero.
func StandardScale(X mat.Matrix) *mat.Dense {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, X)
		mean, variance := stat.PopMeanVariance(col, nil)
		sd := math.Sqrt(variance)
		for i, v := range col {
			if sd == 0 {
				out.Set(i, j, 0)
				continue
			}
			out.Set(i, j, (v-mean)/sd)
		}
	}
	return out
}
