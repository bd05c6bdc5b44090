package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWithinTolerance(t *testing.T) {
	a := decimal.RequireFromString("1200.50")

	assert.True(t, WithinTolerance(a, decimal.RequireFromString("1200.50")))
	assert.True(t, WithinTolerance(a, decimal.RequireFromString("1200.49")))  // 差恰好 0.01：算相等
	assert.True(t, WithinTolerance(a, decimal.RequireFromString("1200.51")))
	assert.False(t, WithinTolerance(a, decimal.RequireFromString("1200.48")))
	assert.False(t, WithinTolerance(a, decimal.RequireFromString("1100")))
}

func TestIsPositive(t *testing.T) {
	assert.True(t, IsPositive(decimal.RequireFromString("0.01")))
	assert.False(t, IsPositive(decimal.Zero))
	assert.False(t, IsPositive(decimal.RequireFromString("-5")))
}
