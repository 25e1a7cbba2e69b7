package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCostAtLevel(t *testing.T) {
	card := Card{BaseCost: 100, CostIncrease: 1.5}

	assert.Equal(t, int64(100), CostAtLevel(card, 0))
	assert.Equal(t, int64(150), CostAtLevel(card, 1))
	assert.Equal(t, int64(225), CostAtLevel(card, 2))
	assert.Equal(t, int64(337), CostAtLevel(card, 3))
}

func TestProfitAtLevel(t *testing.T) {
	card := Card{BaseProfit: 60, ProfitIncrease: 1.25}

	assert.Equal(t, int64(60), ProfitAtLevel(card, 0))
	assert.Equal(t, int64(75), ProfitAtLevel(card, 1))
	assert.Equal(t, int64(93), ProfitAtLevel(card, 2))
	assert.Equal(t, int64(117), ProfitAtLevel(card, 3))
}

func TestFormulaFloorsFractions(t *testing.T) {
	card := Card{BaseCost: 10, CostIncrease: 1.5, BaseProfit: 10, ProfitIncrease: 1.5}

	// 10 * 1.5^1 = 15, 10 * 1.5^3 = 33.75 -> 33
	assert.Equal(t, int64(15), CostAtLevel(card, 1))
	assert.Equal(t, int64(33), CostAtLevel(card, 3))
	assert.Equal(t, int64(33), ProfitAtLevel(card, 3))
}
