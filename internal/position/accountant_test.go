package position

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestWeightedAverageCost(t *testing.T) {
	a := NewAccountant()
	a.OnBuy(1, 100)
	a.OnBuy(1, 200)
	if got := a.AvgCost(); !almostEqual(got, 150) {
		t.Errorf("avg cost = %v, want 150", got)
	}
	if got := a.OpenQuantity(); !almostEqual(got, 2) {
		t.Errorf("open quantity = %v, want 2", got)
	}
	a.OnBuy(2, 300)
	if got := a.AvgCost(); !almostEqual(got, 225) {
		t.Errorf("avg cost after third buy = %v, want 225", got)
	}
}

func TestRealisedPnl(t *testing.T) {
	a := NewAccountant()
	a.OnBuy(0.025, 40_000)
	delta, err := a.OnSell(0.025, 50_000)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !almostEqual(delta, 250) {
		t.Errorf("realised delta = %v, want 250", delta)
	}
	if !almostEqual(a.RealisedPnl(), 250) {
		t.Errorf("realised pnl = %v, want 250", a.RealisedPnl())
	}
	if got := a.OpenQuantity(); got != 0 {
		t.Errorf("open quantity after full sell = %v, want 0", got)
	}
}

func TestUnrealisedPnl(t *testing.T) {
	a := NewAccountant()
	a.OnBuy(0.5, 40_000)
	if got := a.UnrealisedPnl(44_000); !almostEqual(got, 2000) {
		t.Errorf("unrealised = %v, want 2000", got)
	}
	if _, err := a.OnSell(0.5, 44_000); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if got := a.UnrealisedPnl(48_000); got != 0 {
		t.Errorf("unrealised with no position = %v, want 0", got)
	}
}

func TestOversellRejected(t *testing.T) {
	a := NewAccountant()
	a.OnBuy(0.02, 50_000)
	if _, err := a.OnSell(0.025, 40_000); err == nil {
		t.Fatal("expected oversell error, got nil")
	}
	// The failed sell must not mutate the position.
	if got := a.OpenQuantity(); !almostEqual(got, 0.02) {
		t.Errorf("open quantity after rejected sell = %v, want 0.02", got)
	}
	if a.RealisedPnl() != 0 {
		t.Errorf("realised pnl after rejected sell = %v, want 0", a.RealisedPnl())
	}
}

func TestSellWithoutPriorBuy(t *testing.T) {
	a := NewAccountant()
	delta, err := a.OnSell(1, 100)
	if err != nil {
		t.Fatalf("no-position sell: %v", err)
	}
	if delta != 0 || a.RealisedPnl() != 0 {
		t.Errorf("no-position sell contributed pnl: delta=%v total=%v", delta, a.RealisedPnl())
	}
	if a.TotalSells() != 1 {
		t.Errorf("total sells = %d, want 1", a.TotalSells())
	}
}

func TestWinRateBoundaries(t *testing.T) {
	a := NewAccountant()
	if got := a.WinRate(); got != 0 {
		t.Errorf("win rate with no sells = %v, want 0", got)
	}

	a.OnBuy(2, 100)
	if _, err := a.OnSell(1, 150); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := a.OnSell(1, 120); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if got := a.WinRate(); !almostEqual(got, 100) {
		t.Errorf("win rate with all winning sells = %v, want 100", got)
	}

	a.OnBuy(1, 100)
	if _, err := a.OnSell(1, 50); err != nil {
		t.Fatalf("sell: %v", err)
	}
	want := 100 * 2.0 / 3.0
	if got := a.WinRate(); !almostEqual(got, want) {
		t.Errorf("win rate = %v, want %v", got, want)
	}
}

func TestWinRateIgnoresBasislessSells(t *testing.T) {
	a := NewAccountant()

	// Sell with no position: counted as a trade, but a positive price must
	// not register as a win.
	if _, err := a.OnSell(1, 100); err != nil {
		t.Fatalf("no-position sell: %v", err)
	}
	if got := a.WinRate(); got != 0 {
		t.Errorf("win rate after basis-less sell = %v, want 0", got)
	}
	if a.TotalSells() != 1 {
		t.Errorf("total sells = %d, want 1", a.TotalSells())
	}

	// One losing sell with a real cost basis: the basis-less sell must not
	// dilute (or inflate) the rate.
	a.OnBuy(1, 100)
	if _, err := a.OnSell(1, 50); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if got := a.WinRate(); got != 0 {
		t.Errorf("win rate after losing sell = %v, want 0", got)
	}

	a.OnBuy(1, 100)
	if _, err := a.OnSell(1, 150); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if got := a.WinRate(); !almostEqual(got, 50) {
		t.Errorf("win rate = %v, want 50", got)
	}
}

func TestLargestGainAndLoss(t *testing.T) {
	a := NewAccountant()
	a.OnBuy(3, 100)
	if _, err := a.OnSell(1, 180); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := a.OnSell(1, 90); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := a.OnSell(1, 130); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if got := a.LargestGain(); !almostEqual(got, 80) {
		t.Errorf("largest gain = %v, want 80", got)
	}
	if got := a.LargestLoss(); !almostEqual(got, -10) {
		t.Errorf("largest loss = %v, want -10", got)
	}
}
