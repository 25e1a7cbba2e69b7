package economy

import "math"

// CostAtLevel returns the coin price of taking a card from level to
// level+1. Level 0 is the initial purchase price.
func CostAtLevel(c Card, level int) int64 {
	return int64(math.Floor(float64(c.BaseCost) * math.Pow(c.CostIncrease, float64(level))))
}

// ProfitAtLevel returns the hourly profit a card yields at the given
// level step of its geometric curve.
func ProfitAtLevel(c Card, level int) int64 {
	return int64(math.Floor(float64(c.BaseProfit) * math.Pow(c.ProfitIncrease, float64(level))))
}
