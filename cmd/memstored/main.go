// Command memstored serves a segmented SIEVE key/value store over HTTP/JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/IvanBrykalov/memstore/internal/api/http"
	"github.com/IvanBrykalov/memstore/internal/config"
	ilog "github.com/IvanBrykalov/memstore/internal/log"
	"github.com/IvanBrykalov/memstore/internal/store"
	pmet "github.com/IvanBrykalov/memstore/metrics/prom"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], nil); err != nil {
		fmt.Fprintln(os.Stderr, "memstored:", err)
		os.Exit(1)
	}
}

// run serves until ctx is done. ready, if set, receives the bound address.
func run(ctx context.Context, args []string, ready func(addr string)) error {
	cfg, err := config.Load("memstored", args)
	if err != nil {
		return err
	}
	logger, err := ilog.New(cfg.Log, nil)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := pmet.New(reg, "memstore", "", nil)

	st := store.New(store.Options{
		Segments:      cfg.Segments,
		CacheBytes:    cfg.CacheBytes,
		InsertVisited: cfg.InsertVisited,
		Metrics:       metrics,
		Logger:        logger,
	})
	defer func() { _ = st.Close() }()

	var draining atomic.Bool
	srv := &http.Server{
		Handler: apihttp.NewRouter(st, apihttp.Options{
			Logger:          logger,
			MaxRequestBytes: cfg.MaxRequestBytes,
			Metrics:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			Draining:        draining.Load,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	logger.Info("memstored: serving",
		"addr", ln.Addr().String(),
		"segments", cfg.Segments,
		"cache_bytes", cfg.CacheBytes,
		"workers", cfg.Workers,
	)
	if ready != nil {
		ready(ln.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		draining.Store(true)
		logger.Info("memstored: shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("memstored: stopped")
	return nil
}
