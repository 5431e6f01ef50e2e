package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCenterPoint(t *testing.T) {
	assert.Equal(t, uint16(500), Normalize(500))
}

func TestNormalizeZeroScore(t *testing.T) {
	assert.Equal(t, uint16(15), Normalize(0))
}

func TestNormalizeIsMonotonicallyNonDecreasing(t *testing.T) {
	prev := Normalize(-2000)
	for raw := int32(-2000); raw <= 2000; raw += 25 {
		cur := Normalize(raw)
		assert.GreaterOrEqual(t, cur, prev, "raw=%d regressed canonical score", raw)
		prev = cur
	}
}

func TestNormalizeSaturatesWithinRange(t *testing.T) {
	assert.LessOrEqual(t, Normalize(1_000_000), uint16(1000))
	assert.GreaterOrEqual(t, Normalize(-1_000_000), uint16(0))
}

func TestNormalizeHighAndLowScores(t *testing.T) {
	assert.Equal(t, uint16(34), Normalize(100))
	assert.Equal(t, uint16(107), Normalize(245))
}
