package config

import (
	"os"
	"strings"
	"testing"

	"botflow/models"
)

func priceBelow(value string) *models.ConditionNode {
	return &models.ConditionNode{Field: "price", Operator: models.OpLt, Value: value}
}

func priceAbove(value string) *models.ConditionNode {
	return &models.ConditionNode{Field: "price", Operator: models.OpGt, Value: value}
}

func validBot() models.BotConfig {
	return models.BotConfig{
		ID:            "bot-1",
		Pair:          "BTC-USDT",
		ExecutionMode: models.ModeOnceAndWait,
		BuyQuery:      priceBelow("40000"),
		SellQuery:     priceAbove("50000"),
	}
}

func TestValidateBot(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*models.BotConfig)
		wantErr string
	}{
		{"valid", func(b *models.BotConfig) {}, ""},
		{"missing id", func(b *models.BotConfig) { b.ID = "" }, "id is required"},
		{"missing pair", func(b *models.BotConfig) { b.Pair = "" }, "pair is required"},
		{"once_and_wait without sell query", func(b *models.BotConfig) { b.SellQuery = nil }, "once_and_wait"},
		{"cooldown mode without cooldown", func(b *models.BotConfig) {
			b.ExecutionMode = models.ModeConditionCooldown
			b.CooldownMinutes = 0
		}, "cooldown_minutes"},
		{"unknown execution mode", func(b *models.BotConfig) { b.ExecutionMode = "every_tick" }, "not supported"},
		{"no queries at all", func(b *models.BotConfig) {
			b.ExecutionMode = models.ModeConditionCooldown
			b.CooldownMinutes = 5
			b.BuyQuery = nil
			b.SellQuery = nil
		}, "at least one"},
		{"malformed buy query", func(b *models.BotConfig) {
			b.BuyQuery = &models.ConditionNode{Field: "price", Operator: "~", Value: "1"}
		}, "buy_query"},
		{"fixed sizing must be positive", func(b *models.BotConfig) {
			b.BuySizing = &models.SizingConfig{Type: models.SizingFixed, Value: 0}
		}, "buy_sizing"},
		{"percentage sizing above 100", func(b *models.BotConfig) {
			b.SellSizing = &models.SizingConfig{Type: models.SizingPercentage, Value: 150}
		}, "sell_sizing"},
		{"unknown sizing type", func(b *models.BotConfig) {
			b.BuySizing = &models.SizingConfig{Type: "kelly", Value: 10}
		}, "not supported"},
		{"stop loss out of range", func(b *models.BotConfig) { b.StopLossPct = 120 }, "stop_loss_pct"},
		{"take profit out of range", func(b *models.BotConfig) { b.TakeProfitPct = -5 }, "take_profit_pct"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			bot := validBot()
			c.mutate(&bot)
			err := ValidateBot(&bot)
			if c.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", c.wantErr)
			}
			if !strings.Contains(err.Error(), c.wantErr) {
				t.Errorf("error %q does not mention %q", err, c.wantErr)
			}
		})
	}
}

func TestLoadBots(t *testing.T) {
	content := `bots:
  - id: dip-buyer
    pair: BTC-USDT
    execution_mode: once_and_wait
    buy_query:
      field: price
      operator: "<"
      value: "40000"
    sell_query:
      field: price
      operator: ">"
      value: "50000"
    buy_sizing:
      type: fixed
      value: 1000
  - id: momentum
    pair: ETH-USDT
    execution_mode: condition_cooldown
    cooldown_minutes: 15
    buy_query:
      field: rsi_14
      operator: "<"
      value: "30"
`
	f, err := os.CreateTemp("", "bots-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	f.Close()
	defer os.Remove(f.Name())

	bots, err := LoadBots(f.Name())
	if err != nil {
		t.Fatalf("LoadBots failed: %v", err)
	}
	if len(bots) != 2 {
		t.Fatalf("expected 2 bots, got %d", len(bots))
	}
	if bots[0].ID != "dip-buyer" || bots[1].CooldownMinutes != 15 {
		t.Errorf("unexpected bots: %+v", bots)
	}
}

func TestLoadBotsRejectsDuplicateIDs(t *testing.T) {
	content := `bots:
  - id: twin
    pair: BTC-USDT
    execution_mode: condition_cooldown
    cooldown_minutes: 5
    buy_query:
      field: price
      operator: "<"
      value: "40000"
  - id: twin
    pair: ETH-USDT
    execution_mode: condition_cooldown
    cooldown_minutes: 5
    buy_query:
      field: price
      operator: "<"
      value: "2000"
`
	f, err := os.CreateTemp("", "bots-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	f.Close()
	defer os.Remove(f.Name())

	if _, err := LoadBots(f.Name()); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestLoadBotsEmptyFile(t *testing.T) {
	f, err := os.CreateTemp("", "bots-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	defer os.Remove(f.Name())

	if _, err := LoadBots(f.Name()); err == nil {
		t.Fatal("expected error for empty bots file")
	}
}
