package index

import (
	"sort"

	"sift/internal/mathutil"
)

// Flat is an exact brute-force index. Every query scans the full matrix,
// so results are deterministic: identical queries always produce the
// identical ordered hit list.
type Flat struct {
	vectors [][]float32
	dims    int
}

func newFlat(embeddings [][]float32, dims int) *Flat {
	return &Flat{vectors: embeddings, dims: dims}
}

// Search returns the k nearest rows by cosine distance.
func (f *Flat) Search(query []float32, k int) []Hit {
	if k <= 0 || len(f.vectors) == 0 {
		return nil
	}

	hits := make([]Hit, len(f.vectors))
	for row, v := range f.vectors {
		hits[row] = Hit{Row: row, Distance: mathutil.CosineDistance(query, v)}
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
func (f *Flat) Len() int { return len(f.vectors) }

// Dims returns the embedding dimensionality.
func (f *Flat) Dims() int { return f.dims }

// Kind reports the implementation kind.
func (f *Flat) Kind() Kind { return KindFlat }
