// Command bench runs a synthetic Zipf workload against the cache and exposes
// optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/memstore/cache"
	ilog "github.com/IvanBrykalov/memstore/internal/log"
	"github.com/IvanBrykalov/memstore/internal/util"
	pmet "github.com/IvanBrykalov/memstore/metrics/prom"
	"github.com/IvanBrykalov/memstore/policy"
)

func main() {
	// ---- Flags ----
	var (
		budget   = flag.Uint64("bytes", 64<<20, "cache budget in bytes")
		segments = flag.Int("segments", 0, "number of segments (0 = ceil(1.5*workers))")
		valSize  = flag.Int("value_size", 128, "value size in bytes")
		visited  = flag.Bool("insert_visited", false, "admit new keys already marked visited")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = half the budget)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", "", "serve Prometheus metrics at addr (e.g. :8080); empty = disabled")
		logLevel    = flag.String("log_level", "info", "debug|info|warn|error")
	)
	flag.Parse()

	logger, err := ilog.New(ilog.Config{Level: *logLevel}, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			logger.Info("pprof: serving", "addr", *pprofAddr)
			logger.Error("pprof: stopped", "err", http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (own registry and mux) ----
	reg := prometheus.NewRegistry()
	metrics := pmet.New(reg, "memstore", "bench", nil)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("metrics: serving", "addr", *metricsAddr)
			logger.Error("metrics: stopped", "err", http.ListenAndServe(*metricsAddr, mux))
		}()
	}

	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}
	segs := *segments
	if segs <= 0 {
		segs = util.SegmentsForWorkers(workersN)
	}

	// ---- Build cache ----
	c := cache.New[string, []byte](cache.Options[string, []byte]{
		Segments:  segs,
		MaxWeight: *budget,
		Weigher: policy.WeigherFunc[string, []byte](func(k string, v []byte) uint64 {
			return uint64(len(k) + len(v))
		}),
		InsertVisited: *visited,
		Metrics:       metrics,
		Logger:        logger,
	})
	defer func() { _ = c.Close() }()

	value := make([]byte, *valSize)

	// ---- Preload half the budget to get a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = int(*budget / uint64(*valSize+8) / 2)
	}
	for i := 0; i < pl; i++ {
		c.Put("k:"+strconv.Itoa(i), value)
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV

	// ---- Load generation ----
	var reads, writes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var g errgroup.Group
	for w := 0; w < workersN; w++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(w)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for ctx.Err() == nil {
				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					if _, ok := c.Get(keyByZipf()); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					c.Put(keyByZipf(), value)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}
	st := c.Stats()

	fmt.Printf("bytes=%d segments=%d workers=%d keys=%d dur=%v seed=%d\n",
		*budget, segs, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
	fmt.Printf("evictions=%d  stale=%d  entries=%d  weight=%d/%d\n",
		st.Evictions, st.StaleRecords, st.Entries, st.Weight, st.MaxWeight)
}
