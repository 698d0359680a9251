// Package store is the value-aware key/value store served by memstored:
// a segmented SIEVE cache of Values weighed by their byte size, driven by a
// single request/response entry point.
package store

import (
	"log/slog"

	"github.com/IvanBrykalov/memstore/cache"
	"github.com/IvanBrykalov/memstore/policy"
)

// Op is the operation a Request asks for.
type Op uint8

const (
	OpPut Op = iota + 1
	OpGet
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpGet:
		return "get"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// RespKind classifies a Response.
type RespKind uint8

const (
	RespOK RespKind = iota + 1
	RespValue
	RespMiss
	RespError
)

// Code qualifies a RespError response.
type Code uint8

const (
	CodeNone Code = iota
	CodeMissingValue
	CodeUnknownOp
	CodeTooLarge
)

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeMissingValue:
		return "missing value"
	case CodeUnknownOp:
		return "unknown operation"
	case CodeTooLarge:
		return "entry too large"
	default:
		return "unknown"
	}
}

// Request is one client command. Key is an arbitrary byte sequence.
type Request struct {
	ID    uint64
	Op    Op
	Key   []byte
	Value *Value // required for OpPut
}

// Response answers the Request with the same ID.
type Response struct {
	ID    uint64
	Kind  RespKind
	Code  Code  // set when Kind == RespError
	Value Value // set when Kind == RespValue
}

// Weigher prices an entry at len(key) plus the value payload size.
var Weigher = policy.WeigherFunc[string, Value](func(k string, v Value) uint64 {
	return uint64(len(k)) + v.Size()
})

// Options configures a Store.
type Options struct {
	Segments      int
	CacheBytes    uint64
	InsertVisited bool
	Metrics       cache.Metrics
	Logger        *slog.Logger
}

// Store serves Requests against a segmented cache.
// Safe for concurrent use.
type Store struct {
	c        cache.Cache[string, Value]
	maxEntry uint64
	log      *slog.Logger
}

// New builds a Store. It panics on the same preconditions as cache.New.
func New(opt Options) *Store {
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	c := cache.New[string, Value](cache.Options[string, Value]{
		Segments:      opt.Segments,
		MaxWeight:     opt.CacheBytes,
		Weigher:       Weigher,
		InsertVisited: opt.InsertVisited,
		Clone:         Value.Clone,
		Metrics:       opt.Metrics,
		Logger:        opt.Logger,
	})
	return &Store{
		c: c,
		// The smallest segment gets the floor of the split.
		maxEntry: opt.CacheBytes / uint64(opt.Segments),
		log:      opt.Logger,
	}
}

// Handle executes req and returns its response. It never fails: problems
// are reported as RespError responses.
func (s *Store) Handle(req Request) Response {
	resp := Response{ID: req.ID}
	key := string(req.Key)

	switch req.Op {
	case OpPut:
		if req.Value == nil {
			s.log.Error("store: put with no value", "id", req.ID)
			resp.Kind, resp.Code = RespError, CodeMissingValue
			return resp
		}
		// The cache keeps its own copy so the caller cannot change its weight.
		v := req.Value.Clone()
		if w := Weigher.Weigh(key, v); w > s.maxEntry {
			// Same outcome as a segment rejection: the old value goes too.
			s.c.Remove(key)
			s.log.Warn("store: entry exceeds segment budget",
				"id", req.ID, "weight", w, "max_entry", s.maxEntry)
			resp.Kind, resp.Code = RespError, CodeTooLarge
			return resp
		}
		s.c.Put(key, v)
		resp.Kind = RespOK
	case OpGet:
		v, ok := s.c.Get(key)
		if !ok {
			resp.Kind = RespMiss
			return resp
		}
		resp.Kind, resp.Value = RespValue, v
	case OpRemove:
		v, ok := s.c.Remove(key)
		if !ok {
			resp.Kind = RespMiss
			return resp
		}
		resp.Kind, resp.Value = RespValue, v
	default:
		s.log.Error("store: unknown operation", "id", req.ID, "op", uint8(req.Op))
		resp.Kind, resp.Code = RespError, CodeUnknownOp
	}
	return resp
}

// Stats returns the underlying cache counters.
func (s *Store) Stats() cache.Stats { return s.c.Stats() }

// MaxEntry is the largest entry weight every segment can hold.
func (s *Store) MaxEntry() uint64 { return s.maxEntry }

// Close releases the store. Later requests miss.
func (s *Store) Close() error { return s.c.Close() }
