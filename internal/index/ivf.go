package index

import (
	"sort"

	"sift/internal/mathutil"
)

// kmeansIters bounds training cost; assignments stabilize well before this
// on manual-sized corpora.
const kmeansIters = 10

// IVF is an inverted-file index: vectors are clustered at build time and a
// query scans only the lists of the nprobe nearest centroids. Training is
// seeded deterministically (centroids start at evenly spaced rows), so a
// given matrix always produces the same clustering and Search is idempotent
// for the lifetime of the index. The tradeoff versus Flat is recall:
// neighbors assigned to unprobed clusters are missed.
type IVF struct {
	vectors   [][]float32
	dims      int
	centroids [][]float32
	lists     [][]int // lists[c] = rows assigned to centroid c
	nprobe    int
}

func newIVF(embeddings [][]float32, dims, nlist, nprobe int) *IVF {
	idx := &IVF{
		vectors: embeddings,
		dims:    dims,
		nprobe:  min(nprobe, nlist),
	}
	idx.train(nlist)
	return idx
}

func (ivf *IVF) train(nlist int) {
	n := len(ivf.vectors)

	// Deterministic init: evenly spaced rows as starting centroids.
	ivf.centroids = make([][]float32, nlist)
	for c := 0; c < nlist; c++ {
		src := ivf.vectors[c*n/nlist]
		centroid := make([]float32, ivf.dims)
		copy(centroid, src)
		ivf.centroids[c] = centroid
	}

	assign := make([]int, n)
	for iter := 0; iter < kmeansIters; iter++ {
		changed := false
		for row, v := range ivf.vectors {
			c := ivf.nearestCentroid(v)
			if assign[row] != c || iter == 0 {
				assign[row] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		// Recompute centroids as normalized means of their members.
		sums := make([][]float32, nlist)
		counts := make([]int, nlist)
		for c := range sums {
			sums[c] = make([]float32, ivf.dims)
		}
		for row, v := range ivf.vectors {
			c := assign[row]
			counts[c]++
			for d := range v {
				sums[c][d] += v[d]
			}
		}
		for c := range sums {
			if counts[c] == 0 {
				continue // empty cluster keeps its previous centroid
			}
			for d := range sums[c] {
				sums[c][d] /= float32(counts[c])
			}
			ivf.centroids[c] = mathutil.Normalize(sums[c])
		}
	}

	ivf.lists = make([][]int, nlist)
	for row := range ivf.vectors {
		c := assign[row]
		ivf.lists[c] = append(ivf.lists[c], row)
	}
}

func (ivf *IVF) nearestCentroid(v []float32) int {
	best := 0
	bestDot := mathutil.Dot(v, ivf.centroids[0])
	for c := 1; c < len(ivf.centroids); c++ {
		if dot := mathutil.Dot(v, ivf.centroids[c]); dot > bestDot {
			best, bestDot = c, dot
		}
	}
	return best
}

// Search scans the nprobe nearest clusters and returns the k best rows
// found, ordered by ascending cosine distance.
func (ivf *IVF) Search(query []float32, k int) []Hit {
	if k <= 0 || len(ivf.vectors) == 0 {
		return nil
	}

	// Rank centroids by distance to the query.
	order := make([]int, len(ivf.centroids))
	for c := range order {
		order[c] = c
	}
	sort.Slice(order, func(i, j int) bool {
		return mathutil.Dot(query, ivf.centroids[order[i]]) > mathutil.Dot(query, ivf.centroids[order[j]])
	})

	var hits []Hit
	for _, c := range order[:ivf.nprobe] {
		for _, row := range ivf.lists[c] {
			hits = append(hits, Hit{Row: row, Distance: mathutil.CosineDistance(query, ivf.vectors[row])})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Row < hits[j].Row
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Len returns the number of indexed vectors.
func (ivf *IVF) Len() int { return len(ivf.vectors) }

// Dims returns the embedding dimensionality.
func (ivf *IVF) Dims() int { return ivf.dims }

// Kind reports the implementation kind.
func (ivf *IVF) Kind() Kind { return KindIVF }
