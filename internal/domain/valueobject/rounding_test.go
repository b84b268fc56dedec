package valueobject

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	assert.Equal(t, 1.563, Round(1.5625, 3))
	assert.Equal(t, 3.0, Round(2.5, 0))
	assert.Equal(t, -1.0, Round(-1.5, 0))
	assert.Equal(t, 0.13, Round2(0.125))
	assert.Equal(t, 264.123, Round(264.123123, CanonicalDecimalPlaces))
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
	assert.True(t, math.IsInf(Round(math.Inf(1), 2), 1))
}
