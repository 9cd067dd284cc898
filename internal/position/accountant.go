package position

import "fmt"

// Accountant maintains one bot's running position: open quantity, weighted
// average cost, realised profit and win statistics. It is owned by a single
// bot's decision pipeline and is not safe for concurrent use.
type Accountant struct {
	openQty float64
	avgCost float64

	realised     float64
	totalBuys    int
	totalSells   int
	basisSells   int
	winningSells int
	largestGain  float64
	largestLoss  float64
}

// NewAccountant returns an empty accountant with no position and no history.
func NewAccountant() *Accountant {
	return &Accountant{}
}

// OnBuy folds a fill into the weighted average cost.
func (a *Accountant) OnBuy(qty, price float64) {
	if qty <= 0 {
		return
	}
	a.avgCost = (a.openQty*a.avgCost + qty*price) / (a.openQty + qty)
	a.openQty += qty
	a.totalBuys++
}

// OnSell books a sell against the open position and returns the realised
// delta. A sell while no position is open is tracked as a trade but
// contributes nothing to realised profit, since there is no cost basis. A
// sell quantity exceeding a non-zero open position is rejected: it indicates
// a logic defect or corrupted persisted state, and clamping it would
// misreport profit.
func (a *Accountant) OnSell(qty, price float64) (float64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("sell quantity must be positive, got %v", qty)
	}

	if a.openQty == 0 {
		// No cost basis: tracked as a trade only, excluded from the win
		// rate since there is nothing to win against.
		a.totalSells++
		return 0, nil
	}

	if qty > a.openQty {
		return 0, fmt.Errorf("oversell: quantity %v exceeds open position %v", qty, a.openQty)
	}

	delta := qty * (price - a.avgCost)
	a.openQty -= qty
	a.realised += delta

	a.totalSells++
	a.basisSells++
	if price > a.avgCost {
		a.winningSells++
	}
	if delta > a.largestGain {
		a.largestGain = delta
	}
	if delta < a.largestLoss {
		a.largestLoss = delta
	}

	if a.openQty == 0 {
		a.avgCost = 0
	}
	return delta, nil
}

// UnrealisedPnl values the open position against the given price.
func (a *Accountant) UnrealisedPnl(lastPrice float64) float64 {
	if a.openQty <= 0 {
		return 0
	}
	return a.openQty * (lastPrice - a.avgCost)
}

// RealisedPnl returns the accumulated realised profit.
func (a *Accountant) RealisedPnl() float64 {
	return a.realised
}

// WinRate returns the percentage of sells whose price exceeded the average
// cost at the time of sale, or 0 when no sells have occurred. Sells booked
// without an open position carry no cost basis and are left out entirely.
func (a *Accountant) WinRate() float64 {
	if a.basisSells == 0 {
		return 0
	}
	return 100 * float64(a.winningSells) / float64(a.basisSells)
}

// OpenQuantity returns the currently open quantity.
func (a *Accountant) OpenQuantity() float64 {
	return a.openQty
}

// AvgCost returns the weighted average cost of the open position.
func (a *Accountant) AvgCost() float64 {
	return a.avgCost
}

// TotalBuys returns the number of booked buys.
func (a *Accountant) TotalBuys() int {
	return a.totalBuys
}

// TotalSells returns the number of booked sells.
func (a *Accountant) TotalSells() int {
	return a.totalSells
}

// LargestGain returns the largest single-sell realised gain.
func (a *Accountant) LargestGain() float64 {
	return a.largestGain
}

// LargestLoss returns the largest single-sell realised loss as a negative
// number, or 0 when no sell has lost.
func (a *Accountant) LargestLoss() float64 {
	return a.largestLoss
}
