package models

import "time"

// TradeAction is the decision emitted by the engine for one tick.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
	ActionNone TradeAction = "none"
)

// TradeTrigger records which path fired the action.
type TradeTrigger string

const (
	TriggerRule       TradeTrigger = "rule"
	TriggerStopLoss   TradeTrigger = "stop_loss"
	TriggerTakeProfit TradeTrigger = "take_profit"
)

// OpenPosition is a bot's current long position.
type OpenPosition struct {
	EntryPrice float64   `json:"entry_price"`
	Quantity   float64   `json:"quantity"`
	EnteredAt  time.Time `json:"entered_at"`
}

// ExecutionState is the mutable per-bot state threaded through the decision
// engine. It is exclusively owned by one bot and mutated only by the
// decision pipeline; live invocations persist it between ticks so that
// mode-timing invariants hold across stateless runs.
type ExecutionState struct {
	LastAction   TradeAction   `json:"last_action"`
	LastBuyAt    time.Time     `json:"last_buy_at"`
	LastSellAt   time.Time     `json:"last_sell_at"`
	OpenPosition *OpenPosition `json:"open_position,omitempty"`
}

// NewExecutionState returns the birth state of a bot: no prior action and
// no open position.
func NewExecutionState() *ExecutionState {
	return &ExecutionState{LastAction: ActionNone}
}

// Trade is one append-only record produced per firing decision.
type Trade struct {
	ID          string       `json:"id"`
	BotID       string       `json:"bot_id"`
	Pair        string       `json:"pair"`
	Timestamp   time.Time    `json:"timestamp"`
	Action      TradeAction  `json:"action"`
	Price       float64      `json:"price"`
	Quantity    float64      `json:"quantity"`
	Total       float64      `json:"total"`
	TriggeredBy TradeTrigger `json:"triggered_by"`
}
