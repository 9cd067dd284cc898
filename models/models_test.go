package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestConditionNodeIsGroup(t *testing.T) {
	group := ConditionNode{
		Combinator: CombinatorAnd,
		Children: []ConditionNode{
			{Field: "rsi_14", Operator: OpLt, Value: "30"},
		},
	}
	if !group.IsGroup() {
		t.Error("node with combinator should be a group")
	}
	leaf := ConditionNode{Field: "price", Operator: OpGt, Value: "100"}
	if leaf.IsGroup() {
		t.Error("leaf node should not be a group")
	}
}

func TestNewExecutionState(t *testing.T) {
	state := NewExecutionState()
	if state.LastAction != ActionNone {
		t.Errorf("expected last action %q, got %q", ActionNone, state.LastAction)
	}
	if state.OpenPosition != nil {
		t.Error("new state should not carry an open position")
	}
	if !state.LastBuyAt.IsZero() || !state.LastSellAt.IsZero() {
		t.Error("new state should have zero action timestamps")
	}
}

func TestTradeJSON(t *testing.T) {
	trade := Trade{
		ID:          "t-1",
		BotID:       "dip-buyer",
		Pair:        "BTC-USDT",
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Action:      ActionBuy,
		Price:       42000.5,
		Quantity:    0.01,
		Total:       420.005,
		TriggeredBy: TriggerRule,
	}
	data, err := json.Marshal(trade)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Trade
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != trade {
		t.Errorf("round trip mismatch: got %+v", out)
	}
}

func TestExecutionStateJSONOmitsEmptyPosition(t *testing.T) {
	data, err := json.Marshal(NewExecutionState())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["open_position"]; ok {
		t.Error("flat state should omit open_position")
	}
}
