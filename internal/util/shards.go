package util

import (
	"math/bits"
	"runtime"
)

// maxDefaultSegments caps DefaultSegmentCount.
const maxDefaultSegments = 256

// IsPowerOfTwo reports whether x is a power of two (> 0).
func IsPowerOfTwo(x uint64) bool {
	return x != 0 && x&(x-1) == 0
}

// NextPow2 returns the smallest power of two >= x; 0 and 1 map to 1 and
// values above 1<<63 clamp to 1<<63.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	n := bits.Len64(x - 1)
	if n >= 64 {
		return 1 << 63
	}
	return 1 << n
}

// DefaultSegmentCount is nextPow2(2*GOMAXPROCS) clamped to [1..256].
func DefaultSegmentCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	return int(min(NextPow2(uint64(2*p)), maxDefaultSegments))
}

// SegmentsForWorkers returns ceil(1.5*workers), the server's default segment
// count. Workers below 1 count as 1.
func SegmentsForWorkers(workers int) int {
	if workers < 1 {
		workers = 1
	}
	return (3*workers + 1) / 2
}

// ShardIndex maps a 64-bit hash to one of n segments: a mask when n is a
// power of two, modulo otherwise.
func ShardIndex(hash uint64, n int) int {
	if n <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(n)) {
		return int(hash & uint64(n-1))
	}
	return int(hash % uint64(n))
}

// SplitBudget divides total across n segments: every segment gets total/n and
// the first total%n segments get one extra unit, so the parts sum to total.
func SplitBudget(total uint64, n int) []uint64 {
	if n <= 0 {
		return nil
	}
	parts := make([]uint64, n)
	base, rem := total/uint64(n), total%uint64(n)
	for i := range parts {
		parts[i] = base
		if uint64(i) < rem {
			parts[i]++
		}
	}
	return parts
}
