package cache

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/IvanBrykalov/memstore/policy"
)

// benchKeys pre-renders string keys so the loop measures the cache, not strconv.
func benchKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = "k:" + strconv.Itoa(i)
	}
	return keys
}

// BenchmarkCache_Mix runs a parallel read/write mix over a keyspace twice
// the budget, so writes keep the eviction hand moving.
func BenchmarkCache_Mix(b *testing.B) {
	const budget = 1 << 16
	keys := benchKeys(2 * budget)

	for _, segs := range []int{1, 12, 16, 64} {
		for _, reads := range []int{90, 50} {
			b.Run("segments="+strconv.Itoa(segs)+"/reads="+strconv.Itoa(reads), func(b *testing.B) {
				c := New[string, int](Options[string, int]{Segments: segs, MaxWeight: budget})
				b.Cleanup(func() { _ = c.Close() })
				for i := 0; i < budget/2; i++ {
					c.Put(keys[i], i)
				}

				var seed atomic.Int64
				b.ReportAllocs()
				b.ResetTimer()
				b.RunParallel(func(pb *testing.PB) {
					r := rand.New(rand.NewSource(seed.Add(1)))
					for pb.Next() {
						k := keys[r.Intn(len(keys))]
						if r.Intn(100) < reads {
							c.Get(k)
						} else {
							c.Put(k, 1)
						}
					}
				})
			})
		}
	}
}

// BenchmarkCache_WeightedPut measures Put with a byte weigher and mixed
// value sizes, where one insert may evict several entries.
func BenchmarkCache_WeightedPut(b *testing.B) {
	c := New[string, []byte](Options[string, []byte]{
		Segments:  DefaultSegments(),
		MaxWeight: 4 << 20,
		Weigher: policy.WeigherFunc[string, []byte](func(k string, v []byte) uint64 {
			return uint64(len(k) + len(v))
		}),
	})
	b.Cleanup(func() { _ = c.Close() })

	keys := benchKeys(1 << 16)
	values := [][]byte{make([]byte, 16), make([]byte, 256), make([]byte, 4096)}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(keys[i&(len(keys)-1)], values[i%len(values)])
	}
}

// BenchmarkCache_IntKeys exercises the maphash routing path.
func BenchmarkCache_IntKeys(b *testing.B) {
	c := New[int, int](Options[int, int]{Segments: DefaultSegments(), MaxWeight: 100_000})
	b.Cleanup(func() { _ = c.Close() })

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			k := i & (1<<17 - 1)
			if _, ok := c.Get(k); !ok {
				c.Put(k, i)
			}
			i++
		}
	})
}
