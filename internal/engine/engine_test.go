package engine

import (
	"math"
	"testing"
	"time"

	"botflow/models"
)

var (
	alwaysTrue  = &models.ConditionNode{Field: "price", Operator: models.OpGt, Value: "0"}
	alwaysFalse = &models.ConditionNode{Field: "price", Operator: models.OpLt, Value: "0"}
)

func tickAt(ts time.Time, price float64) models.PriceTick {
	return models.PriceTick{Pair: "BTC-USDT", Timestamp: ts, Price: price}
}

func fixedSizing(amount float64) *models.SizingConfig {
	return &models.SizingConfig{Type: models.SizingFixed, Value: amount}
}

func TestOnceAndWaitAlternation(t *testing.T) {
	cfg := models.BotConfig{
		ID:            "bot-1",
		Pair:          "BTC-USDT",
		ExecutionMode: models.ModeOnceAndWait,
		BuyQuery:      alwaysTrue,
		SellQuery:     alwaysTrue,
		BuySizing:     fixedSizing(1000),
		SellSizing:    fixedSizing(1000),
	}

	eng := New(10_000)
	state := models.NewExecutionState()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	want := []models.TradeAction{
		models.ActionBuy, models.ActionSell,
		models.ActionBuy, models.ActionSell,
		models.ActionBuy, models.ActionSell,
	}
	for i, expected := range want {
		tick := tickAt(base.Add(time.Duration(i)*time.Minute), 50_000)
		dec, next, err := eng.Decide(tick, cfg, state)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if dec.Action != expected {
			t.Fatalf("tick %d: action = %s, want %s", i, dec.Action, expected)
		}
		state = next
	}
}

func TestConditionCooldown(t *testing.T) {
	cfg := models.BotConfig{
		ID:              "bot-2",
		Pair:            "BTC-USDT",
		ExecutionMode:   models.ModeConditionCooldown,
		BuyQuery:        alwaysTrue,
		BuySizing:       fixedSizing(500),
		CooldownMinutes: 5,
	}

	eng := New(10_000)
	state := models.NewExecutionState()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	buys := 0
	var buyTicks []int
	for i := 0; i < 11; i++ {
		tick := tickAt(base.Add(time.Duration(i)*time.Minute), 50_000)
		dec, next, err := eng.Decide(tick, cfg, state)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if dec.Action == models.ActionBuy {
			buys++
			buyTicks = append(buyTicks, i)
		}
		state = next
	}
	if buys != 3 {
		t.Fatalf("buys over 11 one-minute ticks with 5m cooldown = %d (at %v), want 3", buys, buyTicks)
	}
	for _, i := range []int{0, 5, 10} {
		found := false
		for _, b := range buyTicks {
			if b == i {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a buy at tick %d, fired at %v", i, buyTicks)
		}
	}
}

func TestIndependentCooldowns(t *testing.T) {
	cfg := models.BotConfig{
		ID:              "bot-3",
		Pair:            "BTC-USDT",
		ExecutionMode:   models.ModeConditionCooldown,
		BuyQuery:        alwaysTrue,
		SellQuery:       alwaysTrue,
		BuySizing:       fixedSizing(1000),
		SellSizing:      fixedSizing(1000),
		CooldownMinutes: 10,
	}

	eng := New(10_000)
	state := models.NewExecutionState()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	// First tick fires the buy. Second tick one minute later is inside the
	// buy cooldown but the sell side has never fired, so it goes through.
	dec, state, err := eng.Decide(tickAt(base, 50_000), cfg, state)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Action != models.ActionBuy {
		t.Fatalf("first action = %s, want buy", dec.Action)
	}

	dec, _, err = eng.Decide(tickAt(base.Add(time.Minute), 50_000), cfg, state)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Action != models.ActionSell {
		t.Fatalf("second action = %s, want sell (independent cooldown)", dec.Action)
	}
}

func TestStopLossPrecedence(t *testing.T) {
	cfg := models.BotConfig{
		ID:            "bot-4",
		Pair:          "BTC-USDT",
		ExecutionMode: models.ModeOnceAndWait,
		BuyQuery:      alwaysFalse,
		SellQuery:     alwaysFalse,
		StopLossPct:   10,
	}

	eng := New(10_000)
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	state := &models.ExecutionState{
		LastAction: models.ActionBuy,
		LastBuyAt:  base,
		OpenPosition: &models.OpenPosition{
			EntryPrice: 50_000,
			Quantity:   0.02,
			EnteredAt:  base,
		},
	}

	dec, next, err := eng.Decide(tickAt(base.Add(time.Minute), 44_000), cfg, state)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Action != models.ActionSell {
		t.Fatalf("action = %s, want sell", dec.Action)
	}
	if dec.Trigger != models.TriggerStopLoss {
		t.Errorf("trigger = %s, want stop_loss", dec.Trigger)
	}
	if dec.Quantity != 0.02 {
		t.Errorf("stop-loss quantity = %v, want full position 0.02", dec.Quantity)
	}
	if next.OpenPosition != nil {
		t.Error("position still open after stop-loss exit")
	}
}

func TestTakeProfitBypassesCooldown(t *testing.T) {
	cfg := models.BotConfig{
		ID:              "bot-5",
		Pair:            "BTC-USDT",
		ExecutionMode:   models.ModeConditionCooldown,
		BuyQuery:        alwaysFalse,
		SellQuery:       alwaysFalse,
		CooldownMinutes: 60,
		TakeProfitPct:   5,
	}

	eng := New(10_000)
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	state := &models.ExecutionState{
		LastAction: models.ActionBuy,
		LastBuyAt:  base,
		// A sell fired seconds ago; the cooldown would normally block
		// another for an hour.
		LastSellAt: base.Add(30 * time.Second),
		OpenPosition: &models.OpenPosition{
			EntryPrice: 40_000,
			Quantity:   0.05,
			EnteredAt:  base,
		},
	}

	dec, _, err := eng.Decide(tickAt(base.Add(time.Minute), 42_100), cfg, state)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Action != models.ActionSell || dec.Trigger != models.TriggerTakeProfit {
		t.Fatalf("decision = %s/%s, want sell/take_profit", dec.Action, dec.Trigger)
	}
}

func TestFixedSizingQuantity(t *testing.T) {
	cfg := models.BotConfig{
		ID:            "bot-6",
		Pair:          "BTC-USDT",
		ExecutionMode: models.ModeOnceAndWait,
		BuyQuery:      alwaysTrue,
		SellQuery:     alwaysFalse,
		BuySizing:     fixedSizing(1000),
	}

	eng := New(10_000)
	dec, _, err := eng.Decide(tickAt(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), 40_000), cfg, models.NewExecutionState())
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dec.Quantity-0.025) > 1e-12 {
		t.Errorf("quantity = %v, want 0.025", dec.Quantity)
	}
	if math.Abs(dec.Total-1000) > 1e-9 {
		t.Errorf("total = %v, want 1000", dec.Total)
	}
	if dec.DefaultSized {
		t.Error("configured sizing flagged as defaulted")
	}
}

func TestPercentageSizingQuantity(t *testing.T) {
	cfg := models.BotConfig{
		ID:            "bot-7",
		Pair:          "BTC-USDT",
		ExecutionMode: models.ModeOnceAndWait,
		BuyQuery:      alwaysTrue,
		BuySizing:     &models.SizingConfig{Type: models.SizingPercentage, Value: 20},
	}

	eng := New(10_000)
	dec, _, err := eng.Decide(tickAt(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), 500), cfg, models.NewExecutionState())
	if err != nil {
		t.Fatal(err)
	}
	// 20% of 10000 = 2000 notional at price 500.
	if math.Abs(dec.Quantity-4) > 1e-12 {
		t.Errorf("quantity = %v, want 4", dec.Quantity)
	}
}

func TestDefaultNotionalFlagged(t *testing.T) {
	cfg := models.BotConfig{
		ID:            "bot-8",
		Pair:          "BTC-USDT",
		ExecutionMode: models.ModeOnceAndWait,
		BuyQuery:      alwaysTrue,
	}

	eng := New(10_000)
	dec, _, err := eng.Decide(tickAt(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), 50_000), cfg, models.NewExecutionState())
	if err != nil {
		t.Fatal(err)
	}
	if !dec.DefaultSized {
		t.Error("missing sizing config not flagged as defaulted")
	}
	if math.Abs(dec.Quantity-0.02) > 1e-12 {
		t.Errorf("quantity = %v, want 0.02 at default notional", dec.Quantity)
	}
}

func TestSellCappedAtOpenPosition(t *testing.T) {
	cfg := models.BotConfig{
		ID:            "bot-9",
		Pair:          "BTC-USDT",
		ExecutionMode: models.ModeOnceAndWait,
		BuyQuery:      alwaysTrue,
		SellQuery:     alwaysTrue,
		BuySizing:     fixedSizing(1000),
		SellSizing:    fixedSizing(1000),
	}

	eng := New(10_000)
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	// Buy 1000 notional at 50000 → 0.02 open.
	dec, state, err := eng.Decide(tickAt(base, 50_000), cfg, models.NewExecutionState())
	if err != nil {
		t.Fatal(err)
	}
	if dec.Action != models.ActionBuy {
		t.Fatalf("first action = %s, want buy", dec.Action)
	}

	// At 40000 the 1000-notional sell would size to 0.025, more than is
	// open; the sell must be capped at 0.02.
	dec, state, err = eng.Decide(tickAt(base.Add(time.Minute), 40_000), cfg, state)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Action != models.ActionSell {
		t.Fatalf("second action = %s, want sell", dec.Action)
	}
	if math.Abs(dec.Quantity-0.02) > 1e-12 {
		t.Errorf("sell quantity = %v, want capped 0.02", dec.Quantity)
	}
	if state.OpenPosition != nil {
		t.Error("position not fully closed by capped sell")
	}
}

func TestOnceAndWaitSellNeedsPosition(t *testing.T) {
	cfg := models.BotConfig{
		ID:            "bot-10",
		Pair:          "BTC-USDT",
		ExecutionMode: models.ModeOnceAndWait,
		SellQuery:     alwaysTrue,
		SellSizing:    fixedSizing(1000),
	}

	eng := New(10_000)
	dec, _, err := eng.Decide(tickAt(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), 50_000), cfg, models.NewExecutionState())
	if err != nil {
		t.Fatal(err)
	}
	if dec.Action != models.ActionNone {
		t.Errorf("action with no position = %s, want none", dec.Action)
	}
}

func TestInputStateNotMutated(t *testing.T) {
	cfg := models.BotConfig{
		ID:            "bot-11",
		Pair:          "BTC-USDT",
		ExecutionMode: models.ModeOnceAndWait,
		BuyQuery:      alwaysTrue,
		BuySizing:     fixedSizing(1000),
	}

	eng := New(10_000)
	state := models.NewExecutionState()
	_, next, err := eng.Decide(tickAt(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), 50_000), cfg, state)
	if err != nil {
		t.Fatal(err)
	}
	if state.LastAction != models.ActionNone || state.OpenPosition != nil {
		t.Error("input state was mutated")
	}
	if next == state {
		t.Error("engine returned the input state instead of a copy")
	}
}

func TestDeterministicReplay(t *testing.T) {
	cfg := models.BotConfig{
		ID:              "bot-12",
		Pair:            "BTC-USDT",
		ExecutionMode:   models.ModeConditionCooldown,
		BuyQuery:        &models.ConditionNode{Field: "price", Operator: models.OpLt, Value: "45000"},
		SellQuery:       &models.ConditionNode{Field: "price", Operator: models.OpGt, Value: "55000"},
		BuySizing:       fixedSizing(1000),
		SellSizing:      fixedSizing(1000),
		CooldownMinutes: 2,
	}

	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	prices := []float64{44_000, 46_000, 43_000, 56_000, 57_000, 44_500, 58_000}

	replay := func() []Decision {
		eng := New(10_000)
		state := models.NewExecutionState()
		var out []Decision
		for i, p := range prices {
			dec, next, err := eng.Decide(tickAt(base.Add(time.Duration(i)*time.Minute), p), cfg, state)
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, dec)
			state = next
		}
		return out
	}

	first, second := replay(), replay()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("replay diverged at tick %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}
