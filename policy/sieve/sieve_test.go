package sieve

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/IvanBrykalov/memstore/policy"
)

// --- helpers ---

type eviction struct {
	k string
	v string
}

type recorder struct{ got []eviction }

func (r *recorder) OnEviction(k, v string) { r.got = append(r.got, eviction{k, v}) }

// byteWeigher charges len(key)+len(value), like the store does.
var byteWeigher = policy.WeigherFunc[string, string](func(k, v string) uint64 {
	return uint64(len(k) + len(v))
})

// recomputed sums the weigher over every live entry.
func recomputed[K comparable, V any](s *Segment[K, V], w policy.Weigher[K, V]) uint64 {
	var total uint64
	s.Range(func(k K, v V) bool {
		total += w.Weigh(k, v)
		return true
	})
	return total
}

// checkInvariants verifies weight accounting and the hand cursor.
func checkInvariants[K comparable, V any](t *testing.T, s *Segment[K, V], w policy.Weigher[K, V]) {
	t.Helper()
	if got, want := s.Weight(), recomputed(s, w); got != want {
		t.Fatalf("tracked weight %d != recomputed %d", got, want)
	}
	if s.Weight() > s.MaxWeight() {
		t.Fatalf("weight %d exceeds max %d", s.Weight(), s.MaxWeight())
	}
	if s.Records() == 0 && s.hand != 0 {
		t.Fatalf("hand must be 0 on empty queue, got %d", s.hand)
	}
	if s.Records() > 0 && (s.hand < 0 || s.hand >= s.Records()) {
		t.Fatalf("hand %d out of range [0,%d)", s.hand, s.Records())
	}
	if s.Records() < s.Len() {
		t.Fatalf("records %d < live entries %d", s.Records(), s.Len())
	}
}

// --- tests ---

func TestNew_PanicsOnZeroBudget(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("New with MaxWeight=0 must panic")
		}
	}()
	New[string, string](Config[string, string]{})
}

// Put then Get returns the value; replacing keeps a single entry and record.
func TestSegment_PutGetReplace(t *testing.T) {
	t.Parallel()

	s := New[string, string](Config[string, string]{MaxWeight: 100})
	s.Put("key1", "value1")
	if v, ok := s.Get("key1"); !ok || v != "value1" {
		t.Fatalf("Get key1 want value1, got %q ok=%v", v, ok)
	}
	s.Put("key1", "value2")
	if v, ok := s.Get("key1"); !ok || v != "value2" {
		t.Fatalf("Get key1 want value2, got %q ok=%v", v, ok)
	}
	if s.Weight() != 1 || s.Len() != 1 || s.Records() != 1 {
		t.Fatalf("want weight=1 len=1 records=1, got %d/%d/%d", s.Weight(), s.Len(), s.Records())
	}
}

func TestSegment_MissHasNoSideEffects(t *testing.T) {
	t.Parallel()

	s := New[string, string](Config[string, string]{MaxWeight: 4})
	if _, ok := s.Get("nope"); ok {
		t.Fatal("miss expected")
	}
	if _, ok := s.Remove("nope"); ok {
		t.Fatal("remove miss expected")
	}
	if s.Len() != 0 || s.Records() != 0 || s.Weight() != 0 {
		t.Fatal("miss must not change state")
	}
}

// Count-based capacity: filling past N evicts unvisited entries first.
func TestSegment_EvictsUnvisited(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New[string, string](Config[string, string]{MaxWeight: 3, Lifecycle: rec})
	s.Put("a", "1")
	s.Put("b", "2")
	s.Put("c", "3")
	s.Get("a")
	s.Put("d", "4") // hand at a (visited) -> demote, then b is evicted

	if len(rec.got) != 1 || rec.got[0] != (eviction{"b", "2"}) {
		t.Fatalf("want eviction of b, got %+v", rec.got)
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := s.Peek(k); !ok {
			t.Fatalf("%s must be present", k)
		}
	}
	checkInvariants[string, string](t, s, policy.One[string, string]{})
}

// Scan resistance: a key read once survives a full scan of new keys.
func TestSegment_ScanResistance(t *testing.T) {
	t.Parallel()

	const n = 8
	rec := &recorder{}
	s := New[string, string](Config[string, string]{MaxWeight: n, Lifecycle: rec})
	for i := 1; i <= n; i++ {
		s.Put("k"+strconv.Itoa(i), "v")
	}
	s.Get("k1")
	for i := n + 1; i <= 2*n; i++ {
		s.Put("k"+strconv.Itoa(i), "v")
		if s.Len() > n {
			t.Fatalf("len %d exceeds capacity %d", s.Len(), n)
		}
	}
	if _, ok := s.Peek("k1"); !ok {
		t.Fatal("k1 was visited and must survive the scan")
	}
	firstBatchEvicted := 0
	for _, e := range rec.got {
		i, _ := strconv.Atoi(e.k[1:])
		if i <= n {
			firstBatchEvicted++
		}
	}
	if firstBatchEvicted == 0 {
		t.Fatal("some unvisited keys of the first batch must be evicted")
	}
}

// With InsertVisited every fresh key gets a free pass, so after one full
// demotion sweep the oldest record is evicted first.
func TestSegment_InsertVisited(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New[string, string](Config[string, string]{MaxWeight: 3, Lifecycle: rec, InsertVisited: true})
	s.Put("a", "1")
	s.Put("b", "2")
	s.Put("c", "3")
	s.Put("d", "4")
	if len(rec.got) != 1 || rec.got[0].k != "a" {
		t.Fatalf("want eviction of a, got %+v", rec.got)
	}
	checkInvariants[string, string](t, s, policy.One[string, string]{})
}

// Removed keys leave a stale record that is discarded silently.
func TestSegment_StaleRecordCleanupIsSilent(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New[string, string](Config[string, string]{MaxWeight: 4, Lifecycle: rec})
	s.Put("gone", "x")
	if v, ok := s.Remove("gone"); !ok || v != "x" {
		t.Fatalf("Remove want x, got %q ok=%v", v, ok)
	}
	if s.Records() != 1 {
		t.Fatalf("record must stay until swept, records=%d", s.Records())
	}
	for i := 0; i < 20; i++ {
		s.Put("k"+strconv.Itoa(i), "v")
		checkInvariants[string, string](t, s, policy.One[string, string]{})
	}
	for _, e := range rec.got {
		if e.k == "gone" {
			t.Fatal("removed key must not be reported as evicted")
		}
	}
	if s.Stats().StaleRecords != 1 {
		t.Fatalf("want 1 stale record, got %d", s.Stats().StaleRecords)
	}
}

// A key removed and re-added owns a fresh record; the stale one must not
// evict the new entry.
func TestSegment_StaleRecordDoesNotEvictReinsertedKey(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New[string, string](Config[string, string]{MaxWeight: 2, Lifecycle: rec})
	s.Put("a", "1")
	s.Remove("a")
	s.Put("a", "2")
	s.Get("a")
	s.Put("b", "x")
	s.Put("c", "y") // sweep: stale a discarded, then b evicted

	if v, ok := s.Peek("a"); !ok || v != "2" {
		t.Fatalf("re-added a must survive, got %q ok=%v", v, ok)
	}
	for _, e := range rec.got {
		if e.k == "a" {
			t.Fatalf("a must not be evicted: %+v", rec.got)
		}
	}
	checkInvariants[string, string](t, s, policy.One[string, string]{})
}

// Weighted capacity: replacing a value reconciles weight without evicting
// the entry being updated.
func TestSegment_ReplaceReconcilesWeight(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New[string, string](Config[string, string]{MaxWeight: 10, Weigher: byteWeigher, Lifecycle: rec})
	s.Put("a", "1234") // 5
	s.Put("b", "1234") // 10, full
	s.Put("a", "12")   // shrink in place, no eviction needed
	if len(rec.got) != 0 {
		t.Fatalf("shrinking update must not evict: %+v", rec.got)
	}
	if s.Weight() != 8 {
		t.Fatalf("want weight 8, got %d", s.Weight())
	}
	s.Put("a", "123456") // 7 + 5 > 10: b must go, not a
	if _, ok := s.Peek("a"); !ok {
		t.Fatal("updated key must be present")
	}
	if len(rec.got) != 1 || rec.got[0].k != "b" {
		t.Fatalf("want eviction of b, got %+v", rec.got)
	}
	checkInvariants[string, string](t, s, byteWeigher)
}

// Growing a never-read key in a full segment evicts only what the new
// weight needs, even when the hand starts on the key's own record.
func TestSegment_GrowingUpdateNeverEvictsItself(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New[string, string](Config[string, string]{MaxWeight: 10, Weigher: byteWeigher, Lifecycle: rec})
	s.Put("a", "1234")   // 5, unvisited, hand points at it
	s.Put("b", "1234")   // 10, full
	s.Put("a", "123456") // 7 + 5 > 10

	if len(rec.got) != 1 || rec.got[0] != (eviction{"b", "1234"}) {
		t.Fatalf("want only b evicted, got %+v", rec.got)
	}
	if v, ok := s.Peek("a"); !ok || v != "123456" {
		t.Fatalf("a must hold the new value, got %q ok=%v", v, ok)
	}
	if s.Weight() != 7 || s.Stats().Evictions != 1 {
		t.Fatalf("want weight=7 evictions=1, got %d/%d", s.Weight(), s.Stats().Evictions)
	}
	checkInvariants[string, string](t, s, byteWeigher)
}

// With several unvisited neighbours the update still stops after evicting
// just enough of them.
func TestSegment_GrowingUpdateEvictsOnlyWhatItNeeds(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New[string, string](Config[string, string]{MaxWeight: 12, Weigher: byteWeigher, Lifecycle: rec})
	s.Put("a", "12") // 3
	s.Put("b", "12") // 3
	s.Put("c", "12") // 3
	s.Put("d", "12") // 3, full
	s.Put("a", "12345")

	if len(rec.got) != 1 || rec.got[0].k != "b" {
		t.Fatalf("want only b evicted, got %+v", rec.got)
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := s.Peek(k); !ok {
			t.Fatalf("%s must be present", k)
		}
	}
	checkInvariants[string, string](t, s, byteWeigher)
}

// Entries heavier than the whole budget are rejected without evicting.
func TestSegment_RejectsOversize(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := New[string, string](Config[string, string]{MaxWeight: 6, Weigher: byteWeigher, Lifecycle: rec})
	s.Put("a", "1")
	s.Put("k", "22")
	if s.Put("big", "0123456789") {
		t.Fatal("oversize put must be rejected")
	}
	if len(rec.got) != 0 || s.Len() != 2 {
		t.Fatalf("rejection must not evict, got %+v len=%d", rec.got, s.Len())
	}
	// Oversize replacement drops the old value.
	if s.Put("a", "0123456789") {
		t.Fatal("oversize replace must be rejected")
	}
	if _, ok := s.Peek("a"); ok {
		t.Fatal("old value must not stay readable after oversize replace")
	}
	if s.Stats().Rejected != 2 {
		t.Fatalf("want 2 rejections, got %d", s.Stats().Rejected)
	}
	checkInvariants[string, string](t, s, byteWeigher)
}

// An inconsistent weigher must not drive weight below zero.
func TestSegment_WeightUnderflowClamps(t *testing.T) {
	t.Parallel()

	calls := 0
	flaky := policy.WeigherFunc[string, string](func(string, string) uint64 {
		calls++
		if calls == 1 {
			return 1
		}
		return 5
	})
	s := New[string, string](Config[string, string]{MaxWeight: 10, Weigher: flaky})
	s.Put("a", "1")
	s.Remove("a")
	if s.Weight() != 0 {
		t.Fatalf("weight must clamp at zero, got %d", s.Weight())
	}
	if s.Stats().Underflows != 1 {
		t.Fatalf("want 1 underflow, got %d", s.Stats().Underflows)
	}
}

// Randomized operations keep every invariant and lifecycle bookkeeping
// consistent with what remains retrievable.
func TestSegment_RandomOpsInvariants(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(42))
	evicted := map[string]bool{}
	lc := policy.LifecycleFunc[string, string](func(k, _ string) { evicted[k] = true })
	s := New[string, string](Config[string, string]{MaxWeight: 64, Weigher: byteWeigher, Lifecycle: lc})

	for i := 0; i < 5_000; i++ {
		k := "k" + strconv.Itoa(r.Intn(100))
		switch r.Intn(10) {
		case 0, 1:
			s.Remove(k)
			delete(evicted, k)
		case 2, 3, 4:
			s.Get(k)
		default:
			s.Put(k, strconv.Itoa(r.Intn(100_000)))
			delete(evicted, k)
		}
		checkInvariants[string, string](t, s, byteWeigher)
	}
	for k := range evicted {
		if _, ok := s.Peek(k); ok {
			t.Fatalf("%s is both retrievable and recorded as evicted", k)
		}
	}
}

func BenchmarkSegment_PutGet(b *testing.B) {
	s := New[int, int](Config[int, int]{MaxWeight: 1 << 14})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := i & (1<<15 - 1)
		if _, ok := s.Get(k); !ok {
			s.Put(k, i)
		}
	}
}
