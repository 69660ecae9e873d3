package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactSetSeenOrAdd(t *testing.T) {
	s := NewExactSet(0)
	assert.False(t, s.SeenOrAdd([]byte("ACGT")))
	assert.True(t, s.SeenOrAdd([]byte("ACGT")))
	assert.False(t, s.SeenOrAdd([]byte("TTTT")))
	assert.Equal(t, 2, s.Len())
}

func TestApproximateNoFalseNegatives(t *testing.T) {
	a := NewApproximate(1000, 0.01, 42)
	keys := make([][]byte, 200)
	for i := range keys {
		keys[i] = []byte{byte(i), byte(i >> 8), 'x'}
	}
	for _, k := range keys {
		assert.False(t, a.SeenOrAdd(k))
	}
	for _, k := range keys {
		assert.True(t, a.SeenOrAdd(k), "a previously added key must never report unseen")
	}
}

func TestApproximateReproducible(t *testing.T) {
	a1 := NewApproximate(100, 0.01, 7)
	a2 := NewApproximate(100, 0.01, 7)
	key := []byte("reproducible")
	assert.Equal(t, a1.SeenOrAdd(key), a2.SeenOrAdd(key))
	assert.Equal(t, a1.SeenOrAdd(key), a2.SeenOrAdd(key))
}
