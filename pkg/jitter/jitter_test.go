package jitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration_Bounds(t *testing.T) {
	base := time.Second
	for i := 0; i < 100; i++ {
		d := Duration(base, DefaultJitter)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
}

func TestDuration_ZeroFactor(t *testing.T) {
	assert.Equal(t, time.Second, Duration(time.Second, 0))
}

func TestExponentialBackoff_GrowsAndCaps(t *testing.T) {
	base := time.Second
	max := 10 * time.Second

	// без джиттера легко проверить точные значения
	assert.Equal(t, time.Second, ExponentialBackoff(base, max, 0, 0))
	assert.Equal(t, 2*time.Second, ExponentialBackoff(base, max, 1, 0))
	assert.Equal(t, 4*time.Second, ExponentialBackoff(base, max, 2, 0))
	assert.Equal(t, 8*time.Second, ExponentialBackoff(base, max, 3, 0))
	assert.Equal(t, max, ExponentialBackoff(base, max, 4, 0))
	assert.Equal(t, max, ExponentialBackoff(base, max, 50, 0))
}
