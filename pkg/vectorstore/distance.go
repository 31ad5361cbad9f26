// Package vectorstore stores one embedding per note and answers
// nearest-neighbor distance queries over them.
//
// Distances are computed with Gonum BLAS kernels (SIMD-dispatched internally).
// Embeddings can be held at full or half precision; half precision halves
// memory at the cost of a small, bounded quantization error.
package vectorstore

import (
	"errors"
	"math"
	"sync"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/blas/gonum"
)

// Metric selects the distance function used store-wide. It must stay
// consistent for the lifetime of a store: mixing metrics would make ranked
// results meaningless.
type Metric string

// Precision selects the in-memory representation of stored embeddings.
type Precision string

const (
	// Euclidean is the squared Euclidean distance.
	Euclidean Metric = "euclidean"
	// Cosine is 1 - cosine similarity. Vectors are L2-normalized on insert
	// so the similarity reduces to a dot product.
	Cosine Metric = "cosine"

	// Float32 stores embeddings at full precision.
	Float32 Precision = "float32"
	// Float16 stores embeddings at half precision.
	Float16 Precision = "float16"
)

var errDimMismatch = errors.New("vectors must have the same length")

var blasEngine = gonum.Implementation{}

// diffPool recycles scratch slices for the Euclidean kernel so distance
// queries do not allocate per comparison.
var diffPool = sync.Pool{
	New: func() any {
		s := make([]float32, 768)
		return &s
	},
}

// squaredEuclidean computes ||a-b||² via Saxpy + Sdot.
func squaredEuclidean(a, b []float32) (float64, error) {
	n := len(a)
	if n != len(b) {
		return 0, errDimMismatch
	}
	if n == 0 {
		return 0, nil
	}

	scratch := diffPool.Get().(*[]float32)
	defer diffPool.Put(scratch)
	if cap(*scratch) < n {
		*scratch = make([]float32, n)
	}
	diff := (*scratch)[:n]

	copy(diff, a)
	blasEngine.Saxpy(n, -1, b, 1, diff, 1)
	return float64(blasEngine.Sdot(n, diff, 1, diff, 1)), nil
}

// cosineDistance computes 1 - a·b. Inputs are expected to be normalized.
func cosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errDimMismatch
	}
	return 1 - float64(blasEngine.Sdot(len(a), a, 1, b, 1)), nil
}

func distanceFunc(m Metric) (func(a, b []float32) (float64, error), error) {
	switch m {
	case Euclidean:
		return squaredEuclidean, nil
	case Cosine:
		return cosineDistance, nil
	default:
		return nil, errors.New("unsupported metric: " + string(m))
	}
}

// normalize scales v to unit L2 norm in place. Zero vectors are left alone.
func normalize(v []float32) {
	dot := blasEngine.Sdot(len(v), v, 1, v, 1)
	if dot <= 0 {
		return
	}
	blasEngine.Sscal(len(v), float32(1/math.Sqrt(float64(dot))), v, 1)
}

// toHalf converts a float32 vector to its packed float16 representation.
func toHalf(v []float32) []uint16 {
	out := make([]uint16, len(v))
	for i, f := range v {
		out[i] = float16.Fromfloat32(f).Bits()
	}
	return out
}

// fromHalf expands a packed float16 vector back to float32.
func fromHalf(v []uint16) []float32 {
	out := make([]float32, len(v))
	for i, h := range v {
		out[i] = float16.Frombits(h).Float32()
	}
	return out
}
