// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"github.com/dolthub/maphash"
	"github.com/zeebo/xxh3"
)

// Hasher maps keys to 64-bit hashes for segment routing.
// String keys go through xxh3 (no allocation, stable across processes);
// every other comparable key type uses a seeded maphash.Hasher, so its
// routing is fixed for the lifetime of one Hasher but not across processes.
type Hasher[K comparable] struct {
	keyIsString bool
	mh          maphash.Hasher[K]
}

// NewHasher builds a hasher specialised for K.
func NewHasher[K comparable]() Hasher[K] {
	var zero K
	if _, ok := any(zero).(string); ok {
		return Hasher[K]{keyIsString: true}
	}
	return Hasher[K]{mh: maphash.NewHasher[K]()}
}

// Hash returns the 64-bit hash of k.
func (h Hasher[K]) Hash(k K) uint64 {
	if h.keyIsString {
		return xxh3.HashString(any(k).(string))
	}
	return h.mh.Hash(k)
}
