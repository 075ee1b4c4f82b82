package core

import (
	"math"

	"github.com/shopspring/decimal"
)

// MaxPoints caps the points a single purchase can earn.
const MaxPoints = math.MaxInt32

var (
	upperTierThreshold = decimal.NewFromInt(100)
	lowerTierThreshold = decimal.NewFromInt(50)
	upperTierRate      = decimal.NewFromInt(2)
	maxPoints          = decimal.NewFromInt(MaxPoints)
)

// Points returns the reward points earned by a single purchase amount.
//
// Every whole unit spent above 100 earns 2 points and every unit between 50
// and 100 earns 1 point, so 120 earns 2*20 + 50 = 90. Fractions are truncated
// toward zero per tier. Amounts below 50, including negative ones, earn nothing.
// The result saturates at MaxPoints.
func Points(amount decimal.Decimal) int {
	total := decimal.Zero
	if amount.GreaterThan(upperTierThreshold) {
		total = amount.Sub(upperTierThreshold).Mul(upperTierRate).Truncate(0)
		amount = upperTierThreshold
	}
	if amount.GreaterThanOrEqual(lowerTierThreshold) {
		total = total.Add(amount.Sub(lowerTierThreshold).Truncate(0))
	}
	if total.GreaterThan(maxPoints) {
		return MaxPoints
	}
	return int(total.IntPart())
}
