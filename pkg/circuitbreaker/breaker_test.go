package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 3, OpenTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Allow())
		cb.Record(false)
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 3, OpenTimeout: time.Hour})

	cb.Record(false)
	cb.Record(false)
	cb.Record(true)
	cb.Record(false)
	cb.Record(false)

	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 10 * time.Millisecond})

	cb.Record(false)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.Record(true)
	assert.Equal(t, StateHalfOpen, cb.State())
	cb.Record(true)
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond})

	cb.Record(false)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow())

	cb.Record(false)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestReset(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 1, OpenTimeout: time.Hour})

	cb.Record(false)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Allow())
}
