package workflow

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDelayRespectsCapAndJitterBand(t *testing.T) {
	p := DefaultRetryPolicy()
	rng := rand.New(rand.NewSource(1))

	for attempt := 0; attempt < 10; attempt++ {
		d := p.Delay(attempt, rng)
		require.LessOrEqual(t, d, p.Cap)
		require.GreaterOrEqual(t, d, time.Duration(0))
	}
}

func TestDelayGrowsExponentiallyBeforeCap(t *testing.T) {
	p := DefaultRetryPolicy()
	rng := rand.New(rand.NewSource(42))

	d0 := p.Delay(0, rng)
	d3 := p.Delay(3, rng)
	require.Greater(t, d3, d0)
}

func TestExhausted(t *testing.T) {
	p := DefaultRetryPolicy()
	require.False(t, p.Exhausted(0))
	require.False(t, p.Exhausted(4))
	require.True(t, p.Exhausted(5))
}
