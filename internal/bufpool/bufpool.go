// Package bufpool provides bucketed sync.Pool instances for the scratch
// and ping-pong buffers used by volume smoothing and separable convolution
// (each buffer holds a whole volume's samples). Buffers are organized by size class
// to minimize waste, the way a hot encoding path reuses a handful of size
// classes instead of allocating per call.
package bufpool

import "sync"

// Size classes, in elements, for the bucketed pools. A convolution scratch
// buffer holds a whole volume (nslices*nrows*ncols*nchannels samples), so
// the classes run from a small volume up to a few million samples; larger
// requests are served by a fresh allocation.
const (
	Size1K  = 1024
	Size4K  = 4096
	Size16K = 16384
	Size64K = 65536
	Size256K = 262144
	Size1M  = 1048576
	Size4M  = 4194304
)

var classes = [7]int{Size1K, Size4K, Size16K, Size64K, Size256K, Size1M, Size4M}

func bucketIndex(n int) int {
	for i, c := range classes {
		if n <= c {
			return i
		}
	}
	return len(classes) - 1
}

var float64Pools [7]sync.Pool
var float32Pools [7]sync.Pool

func init() {
	for i := range classes {
		n := classes[i]
		float64Pools[i] = sync.Pool{New: func() any {
			b := make([]float64, n)
			return &b
		}}
		float32Pools[i] = sync.Pool{New: func() any {
			b := make([]float32, n)
			return &b
		}}
	}
}

// GetFloat64 returns a []float64 of length n from the pool. The caller must
// call PutFloat64 when done; the contents are not zeroed on return.
func GetFloat64(n int) []float64 {
	idx := bucketIndex(n)
	bp := float64Pools[idx].Get().(*[]float64)
	b := *bp
	if cap(b) < n {
		b = make([]float64, n)
		*bp = b
		return b
	}
	return b[:n]
}

// PutFloat64 returns a []float64 to the pool. The slice must have been
// obtained from GetFloat64. Slices smaller than Size1K are not pooled.
func PutFloat64(b []float64) {
	c := cap(b)
	if c < Size1K {
		return
	}
	idx := bucketIndex(c)
	b = b[:c]
	float64Pools[idx].Put(&b)
}

// GetFloat32 returns a []float32 of length n from the pool.
func GetFloat32(n int) []float32 {
	idx := bucketIndex(n)
	bp := float32Pools[idx].Get().(*[]float32)
	b := *bp
	if cap(b) < n {
		b = make([]float32, n)
		*bp = b
		return b
	}
	return b[:n]
}

// PutFloat32 returns a []float32 to the pool. Slices smaller than Size1K
// are not pooled.
func PutFloat32(b []float32) {
	c := cap(b)
	if c < Size1K {
		return
	}
	idx := bucketIndex(c)
	b = b[:c]
	float32Pools[idx].Put(&b)
}

// Number is the sample-type constraint shared with the volume package.
// Duplicated here (rather than imported) to keep bufpool leaf-level and
// free of a dependency on volume.
type Number interface{ ~float32 | ~float64 }

// Get returns a slice of length n from the pool matching T's underlying
// type. Types other than float32/float64 fall back to a fresh allocation.
func Get[T Number](n int) []T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(GetFloat32(n)).([]T)
	case float64:
		return any(GetFloat64(n)).([]T)
	default:
		return make([]T, n)
	}
}

// Put returns a slice obtained from Get to the pool.
func Put[T Number](b []T) {
	switch s := any(b).(type) {
	case []float32:
		PutFloat32(s)
	case []float64:
		PutFloat64(s)
	}
}
