// Package dedup implements the membership filters spec.md §5 describes
// for dedup steps: "either an exact set or an approximate membership
// filter seeded reproducibly". Both are run-scoped only — spec.md's
// Non-goals exclude persistent state across runs, so unlike the
// teacher's pkg/deduplication (an LRU+TTL cache meant to survive across
// many log-shipping sessions) neither filter here evicts or expires.
package dedup

import (
	"math"
	"math/bits"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Filter is the membership-test contract a DedupByHash step depends
// on. A step that mutates shared Filter state must either be serial
// or shard internally (spec.md §5); ExactSet and Approximate both
// serialize internally via a mutex so either usage is safe.
type Filter interface {
	// SeenOrAdd reports whether key was already present, inserting it
	// if not (an atomic test-and-set).
	SeenOrAdd(key []byte) bool
}

// HashKey reduces an arbitrary byte string to a 64-bit key using
// xxhash, the same fast non-cryptographic hash the teacher's
// deduplication manager uses for cache keys.
func HashKey(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// ExactSet is an exact membership filter: a mutex-guarded set of
// 64-bit keys. Grounded on the teacher's DeduplicationManager.cache
// map, minus the LRU/TTL eviction machinery (no persistent state
// across runs to bound the size of).
type ExactSet struct {
	mu   sync.Mutex
	seen map[uint64]struct{}
}

// NewExactSet returns an empty exact set sized for an expected
// cardinality hint (0 is a valid "no hint").
func NewExactSet(sizeHint int) *ExactSet {
	return &ExactSet{seen: make(map[uint64]struct{}, sizeHint)}
}

// SeenOrAdd implements Filter.
func (s *ExactSet) SeenOrAdd(key []byte) bool {
	h := HashKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[h]; ok {
		return true
	}
	s.seen[h] = struct{}{}
	return false
}

// Len reports the number of distinct keys recorded so far.
func (s *ExactSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Approximate is a reproducibly-seeded Bloom filter: a fixed-size bit
// array addressed by k independent hash probes derived from a single
// xxhash value via double hashing (Kirsch-Mitzenmacher). False
// positives are possible (an unseen key may report "seen"); false
// negatives are not.
type Approximate struct {
	mu   sync.Mutex
	bits []uint64
	m    uint64 // number of bits
	k    int    // number of probes
	seed uint64
}

// NewApproximate builds a Bloom filter sized for expectedItems at the
// given falsePositiveRate, seeded reproducibly so that two runs over
// the same input and configuration produce byte-identical dedup
// decisions (spec.md §5, Testable Property 7).
func NewApproximate(expectedItems int, falsePositiveRate float64, seed uint64) *Approximate {
	m, k := bloomParams(expectedItems, falsePositiveRate)
	return &Approximate{
		bits: make([]uint64, (m+63)/64),
		m:    uint64(m),
		k:    k,
		seed: seed,
	}
}

func bloomParams(n int, p float64) (m int, k int) {
	if n <= 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	// Standard optimal-size formulas: m = -n*ln(p)/(ln2)^2, k = (m/n)*ln2.
	mf := -float64(n) * math.Log(p) / (ln2 * ln2)
	m = int(mf) + 1
	if m < 64 {
		m = 64
	}
	kf := (float64(m) / float64(n)) * ln2
	k = int(kf + 0.5)
	if k < 1 {
		k = 1
	}
	if k > 30 {
		k = 30
	}
	return m, k
}

const ln2 = 0.6931471805599453

func (a *Approximate) probe(key []byte, i int) uint64 {
	h1 := xxhash.Sum64(key) ^ a.seed
	h2 := bits.RotateLeft64(h1, 17) + uint64(i)*0x9E3779B97F4A7C15
	return (h1 + uint64(i)*h2) % a.m
}

// SeenOrAdd implements Filter.
func (a *Approximate) SeenOrAdd(key []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make([]uint64, a.k)
	allSet := true
	for i := 0; i < a.k; i++ {
		pos := a.probe(key, i)
		positions[i] = pos
		if a.bits[pos/64]&(1<<(pos%64)) == 0 {
			allSet = false
		}
	}
	if allSet {
		return true
	}
	for _, pos := range positions {
		a.bits[pos/64] |= 1 << (pos % 64)
	}
	return false
}
