// Package config loads memstored settings: built-in defaults, then an
// optional TOML file, then command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	ilog "github.com/IvanBrykalov/memstore/internal/log"
	"github.com/IvanBrykalov/memstore/internal/util"
)

// Config is the complete server configuration.
type Config struct {
	Listen string `toml:"listen"`

	// Segments is the cache segment count. Zero derives it from Workers.
	Segments int `toml:"segments"`
	// CacheBytes is the total byte budget across all segments.
	CacheBytes uint64 `toml:"cache_bytes"`
	// Workers is the expected request concurrency; defaults to GOMAXPROCS.
	Workers int `toml:"workers"`
	// InsertVisited admits new keys already marked visited.
	InsertVisited bool `toml:"insert_visited"`

	MaxRequestBytes int64         `toml:"max_request_bytes"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	Log ilog.Config `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:          "0.0.0.0:9001",
		CacheBytes:      2 << 20,
		MaxRequestBytes: 1 << 20,
		ShutdownTimeout: 5 * time.Second,
		Log: ilog.Config{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 1,
			MaxAgeDays: 7,
		},
	}
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Load parses args (without the program name). A -config flag names a TOML
// file applied over the defaults; flags given explicitly win over both.
func Load(name string, args []string) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var (
		path          = fs.String("config", "", "path to a TOML configuration file")
		listen        = fs.String("listen", cfg.Listen, "HTTP listen address")
		segments      = fs.Int("segments", 0, "cache segments (0 = ceil(1.5*workers))")
		cacheBytes    = fs.Uint64("cache-bytes", cfg.CacheBytes, "total cache budget in bytes")
		workers       = fs.Int("workers", 0, "expected request concurrency (0 = GOMAXPROCS)")
		insertVisited = fs.Bool("insert-visited", false, "admit new keys already marked visited")
		maxReq        = fs.Int64("max-request-bytes", cfg.MaxRequestBytes, "request body size limit")
		logLevel      = fs.String("log-level", cfg.Log.Level, "debug|info|warn|error")
		logFormat     = fs.String("log-format", cfg.Log.Format, "text|json")
		logFile       = fs.String("log-file", "", "log file path (empty = stderr)")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *path != "" {
		md, err := toml.DecodeFile(*path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", *path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return Config{}, fmt.Errorf("%w: unknown keys in %s: %s",
				ErrInvalid, *path, strings.Join(keys, ", "))
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "segments":
			cfg.Segments = *segments
		case "cache-bytes":
			cfg.CacheBytes = *cacheBytes
		case "workers":
			cfg.Workers = *workers
		case "insert-visited":
			cfg.InsertVisited = *insertVisited
		case "max-request-bytes":
			cfg.MaxRequestBytes = *maxReq
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "log-file":
			cfg.Log.File = *logFile
		}
	})

	cfg.fillDerived()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fillDerived computes Workers and Segments when left at zero.
func (c *Config) fillDerived() {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Segments == 0 {
		c.Segments = util.SegmentsForWorkers(c.Workers)
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Listen == "":
		return fmt.Errorf("%w: listen address is empty", ErrInvalid)
	case c.Segments <= 0:
		return fmt.Errorf("%w: segments must be > 0, got %d", ErrInvalid, c.Segments)
	case c.CacheBytes < uint64(c.Segments):
		return fmt.Errorf("%w: cache_bytes %d is smaller than segments %d",
			ErrInvalid, c.CacheBytes, c.Segments)
	case c.MaxRequestBytes <= 0:
		return fmt.Errorf("%w: max_request_bytes must be > 0", ErrInvalid)
	case c.ShutdownTimeout < 0:
		return fmt.Errorf("%w: shutdown_timeout must not be negative", ErrInvalid)
	}
	if _, err := ilog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
