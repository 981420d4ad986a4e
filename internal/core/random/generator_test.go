package random

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsTo128Bits(t *testing.T) {
	g := New(0)
	assert.Equal(t, DefaultBits, g.Bits())

	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	for i := 0; i < 1000; i++ {
		v := g.Next()
		require.GreaterOrEqual(t, v.Sign(), 0)
		require.Equal(t, -1, v.Cmp(limit), "value %s out of range", v)
	}
}

func TestNext_SmallWidthStaysInRange(t *testing.T) {
	g := NewSeeded(3, 42)
	seen := make(map[int64]bool)
	for i := 0; i < 500; i++ {
		v := g.Next().Int64()
		require.True(t, v >= 0 && v < 8, "value %d out of range", v)
		seen[v] = true
	}
	// 500 draws over 8 values should hit every one of them.
	assert.Len(t, seen, 8)
}

func TestNewSeeded_Reproducible(t *testing.T) {
	a := NewSeeded(128, 7)
	b := NewSeeded(128, 7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 0, a.Next().Cmp(b.Next()))
	}
}

func TestNext_UsesFullWidth(t *testing.T) {
	g := NewSeeded(128, 1)
	threshold := new(big.Int).Lsh(big.NewInt(1), 120)
	var large int
	for i := 0; i < 100; i++ {
		if g.Next().Cmp(threshold) >= 0 {
			large++
		}
	}
	// P(value < 2^120) is 1/256 per draw.
	assert.Greater(t, large, 90)
}

func TestNext_ConcurrentUse(t *testing.T) {
	g := New(128)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = g.Next()
			}
		}()
	}
	wg.Wait()
}
