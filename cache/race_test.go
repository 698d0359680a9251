package cache

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/memstore/policy"
)

// A mixed workload of concurrent Put/Get/Remove on random keys.
// Should pass under `-race` without detector reports.
func TestRace_Basic(t *testing.T) {
	c := New[string, []byte](Options[string, []byte]{
		Segments:  32,
		MaxWeight: 64 << 10,
		Weigher:   bytesWeigher,
	})
	t.Cleanup(func() { _ = c.Close() })

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 50_000
	deadline := time.Now().Add(time.Second)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				switch n := r.Intn(100); {
				case n < 5:
					c.Remove(k)
				case n < 20:
					c.Put(k, make([]byte, r.Intn(64)))
				default:
					c.Get(k)
				}
			}
		}(w)
	}
	wg.Wait()

	if c.Weight() > 64<<10 {
		t.Fatalf("weight %d over budget", c.Weight())
	}
}

// Concurrent writers on disjoint key sets lose no updates while nothing is
// evicted.
func TestRace_DisjointWritersLoseNothing(t *testing.T) {
	const writers, perWriter = 8, 500
	c := New[string, int](Options[string, int]{
		Segments:  16,
		MaxWeight: 16 * writers * perWriter,
	})

	var g errgroup.Group
	for w := 0; w < writers; w++ {
		g.Go(func() error {
			for i := 0; i < perWriter; i++ {
				c.Put("w"+strconv.Itoa(w)+":"+strconv.Itoa(i), i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if c.Len() != writers*perWriter {
		t.Fatalf("len %d, want %d", c.Len(), writers*perWriter)
	}
	for w := 0; w < writers; w++ {
		for i := 0; i < perWriter; i++ {
			if v, ok := c.Get("w" + strconv.Itoa(w) + ":" + strconv.Itoa(i)); !ok || v != i {
				t.Fatalf("lost update w%d:%d (v=%d ok=%v)", w, i, v, ok)
			}
		}
	}
}

// Many goroutines load overlapping keys through a cache too small to hold
// them all. Every call must see the loader's value, and evictions reported
// to Lifecycle and Metrics must agree.
func TestRace_GetOrLoadUnderEviction(t *testing.T) {
	var loads, lifecycleEvicts atomic.Int64
	m := &countingMetrics{}
	c := New[int, string](Options[int, string]{
		Segments:  6,
		MaxWeight: 60,
		Metrics:   m,
		Lifecycle: policy.LifecycleFunc[int, string](func(int, string) { lifecycleEvicts.Add(1) }),
		Loader: func(_ context.Context, k int) (string, error) {
			loads.Add(1)
			return "v" + strconv.Itoa(k), nil
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < 16; w++ {
		g.Go(func() error {
			r := rand.New(rand.NewSource(int64(w)))
			for i := 0; i < 2_000; i++ {
				k := r.Intn(200)
				v, err := c.GetOrLoad(ctx, k)
				if err != nil {
					return err
				}
				if v != "v"+strconv.Itoa(k) {
					return fmt.Errorf("key %d loaded %q", k, v)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if loads.Load() < 200 {
		t.Fatalf("every key must be loaded at least once, loads=%d", loads.Load())
	}
	if got, want := m.evicts.Load(), lifecycleEvicts.Load(); got != want || got == 0 {
		t.Fatalf("metrics evictions %d, lifecycle %d", got, want)
	}
	if c.Len() > 60 {
		t.Fatalf("len %d over budget", c.Len())
	}
}
