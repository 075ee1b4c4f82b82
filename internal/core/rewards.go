package core

type (
	// MonthlyPoints maps a month label such as "JANUARY" to the points earned in it.
	MonthlyPoints map[string]int

	// RewardResult is the points summary of one customer over a window.
	RewardResult struct {
		MonthlyPoints MonthlyPoints `json:"monthlyPoints"`
		TotalPoints   int           `json:"totalPoints"`
	}

	// CustomerRewards maps a customer id to its RewardResult.
	CustomerRewards map[int64]RewardResult
)

// Aggregate sums the points of txs per month and overall. Month buckets are
// keyed by month name only, so the same month of different years shares a
// bucket; a normalized window never spans such a pair.
func Aggregate(txs []Transaction) RewardResult {
	result := RewardResult{MonthlyPoints: make(MonthlyPoints)}
	for _, tx := range txs {
		result.add(tx)
	}
	return result
}

// AggregateAll groups txs by customer and aggregates each group. Customers
// without transactions are absent from the result.
func AggregateAll(txs []Transaction) CustomerRewards {
	out := make(CustomerRewards)
	for _, tx := range txs {
		result, ok := out[tx.CustomerID]
		if !ok {
			result = RewardResult{MonthlyPoints: make(MonthlyPoints)}
		}
		result.add(tx)
		out[tx.CustomerID] = result
	}
	return out
}

func (r *RewardResult) add(tx Transaction) {
	points := Points(tx.Amount)
	r.MonthlyPoints[tx.Date.MonthLabel()] += points
	r.TotalPoints += points
}

// Merge folds other into r. Both results must come from disjoint transaction sets.
func (r *RewardResult) Merge(other RewardResult) {
	if r.MonthlyPoints == nil {
		r.MonthlyPoints = make(MonthlyPoints)
	}
	for month, points := range other.MonthlyPoints {
		r.MonthlyPoints[month] += points
	}
	r.TotalPoints += other.TotalPoints
}
