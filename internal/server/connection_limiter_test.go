package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionLimits_GlobalCap(t *testing.T) {
	limits := NewConnectionLimits(2, 10, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	require.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.2")
	require.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.3")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	limits.Release("10.0.0.1")
	ok, _ = limits.Acquire("10.0.0.3")
	assert.True(t, ok)
}

func TestConnectionLimits_PerIPCap(t *testing.T) {
	limits := NewConnectionLimits(100, 2, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	require.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.1")
	require.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	// Other IPs are unaffected.
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)
}

func TestConnectionLimits_PerIPRejectionRollsBackGlobal(t *testing.T) {
	limits := NewConnectionLimits(100, 1, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	require.True(t, ok)
	before := limits.GlobalCurrent()

	ok, reason := limits.Acquire("10.0.0.1")
	require.False(t, ok)
	require.Equal(t, LimitReasonPerIP, reason)

	assert.Equal(t, before, limits.GlobalCurrent())
}

func TestConnectionLimits_RateLimit(t *testing.T) {
	limits := NewConnectionLimits(100, 100, 0.001, 2)

	for i := 0; i < 2; i++ {
		ok, _ := limits.Acquire("10.0.0.1")
		require.True(t, ok, "burst attempt %d", i)
	}

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)

	// Rate limiting is per source.
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)
}

func TestConnectionLimits_ReleaseFreesPerIPSlot(t *testing.T) {
	limits := NewConnectionLimits(100, 1, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	require.True(t, ok)
	limits.Release("10.0.0.1")

	ok, _ = limits.Acquire("10.0.0.1")
	assert.True(t, ok)
}

func TestConnectionLimits_ConcurrentAcquire(t *testing.T) {
	limits := NewConnectionLimits(50, 100, 100000, 100000)

	results := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		go func(n int) {
			ok, _ := limits.Acquire(fmt.Sprintf("10.0.0.%d", n%10))
			results <- ok
		}(i)
	}

	granted := 0
	for i := 0; i < 100; i++ {
		if <-results {
			granted++
		}
	}
	assert.Equal(t, 50, granted)
	assert.Equal(t, int64(50), limits.GlobalCurrent())
}
