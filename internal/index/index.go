// Package index provides nearest-neighbor search over a fixed matrix of
// embedding vectors. Two implementations exist: an exact brute-force scan
// (Flat) and a clustered approximate index (IVF). Both assume unit-length
// embeddings and rank by cosine distance, ascending (lower = more similar).
package index

import (
	"fmt"
	"log"
)

// Kind selects an index implementation.
type Kind string

const (
	KindAuto Kind = "auto"
	KindFlat Kind = "flat"
	KindIVF  Kind = "ivf"
)

// flatCutoff is the corpus size below which clustering buys nothing and the
// exact scan is used regardless of the requested kind.
const flatCutoff = 100

// Hit is a single nearest-neighbor match.
type Hit struct {
	Row      int     // position in the embedding matrix
	Distance float32 // cosine distance, lower is better
}

// Index is a read-only nearest-neighbor search structure.
//
// Search returns at most k hits ordered by ascending distance. Queries of
// the wrong dimensionality are a caller contract violation and produce
// unspecified rankings. An empty index returns no hits, never an error.
type Index interface {
	Search(query []float32, k int) []Hit
	Len() int
	Dims() int
	Kind() Kind
}

// Options tunes index construction.
type Options struct {
	NProbe int // IVF clusters scanned per query (default 8)
}

// New builds an index over the embedding matrix. KindAuto picks Flat below
// flatCutoff vectors and IVF otherwise. IVF falls back to Flat when the
// matrix is too small to train the requested cluster count.
func New(embeddings [][]float32, kind Kind, opts Options) (Index, error) {
	n := len(embeddings)
	dims := 0
	if n > 0 {
		dims = len(embeddings[0])
	}
	for i, v := range embeddings {
		if len(v) != dims {
			return nil, fmt.Errorf("index: row %d has %d dims, want %d", i, len(v), dims)
		}
	}

	if kind == "" {
		kind = KindAuto
	}
	if kind == KindFlat || n < flatCutoff {
		return newFlat(embeddings, dims), nil
	}

	nlist := min(100, max(1, n/10))
	if n < nlist {
		log.Printf("[Index] %d vectors too few to train %d clusters, using flat scan", n, nlist)
		return newFlat(embeddings, dims), nil
	}

	nprobe := opts.NProbe
	if nprobe <= 0 {
		nprobe = 8
	}
	return newIVF(embeddings, dims, nlist, nprobe), nil
}
