package models

// ExecutionMode governs how often a bot's rules may fire.
type ExecutionMode string

const (
	// ModeOnceAndWait forces strict buy/sell alternation, starting with a buy.
	ModeOnceAndWait ExecutionMode = "once_and_wait"
	// ModeConditionCooldown throttles each action type independently by a
	// per-type cooldown window.
	ModeConditionCooldown ExecutionMode = "condition_cooldown"
)

// SizingType selects how a fire decision is converted into a quantity.
type SizingType string

const (
	SizingFixed      SizingType = "fixed"
	SizingPercentage SizingType = "percentage"
)

// SizingConfig resolves a fire decision into a trade quantity at decision
// time using the tick price. Fixed is a notional amount in quote currency;
// percentage is a fraction (0,100] of the available balance.
type SizingConfig struct {
	Type  SizingType `yaml:"type" json:"type"`
	Value float64    `yaml:"value" json:"value"`
}

// BotConfig is the read-only strategy definition the engine evaluates. At
// least one of BuyQuery/SellQuery must be present; once_and_wait requires
// both. Validation happens in the config package before the tick loop runs.
type BotConfig struct {
	ID              string         `yaml:"id" json:"id"`
	Sub             string         `yaml:"sub" json:"sub"`
	Pair            string         `yaml:"pair" json:"pair"`
	ExecutionMode   ExecutionMode  `yaml:"execution_mode" json:"execution_mode"`
	BuyQuery        *ConditionNode `yaml:"buy_query,omitempty" json:"buy_query,omitempty"`
	SellQuery       *ConditionNode `yaml:"sell_query,omitempty" json:"sell_query,omitempty"`
	BuySizing       *SizingConfig  `yaml:"buy_sizing,omitempty" json:"buy_sizing,omitempty"`
	SellSizing      *SizingConfig  `yaml:"sell_sizing,omitempty" json:"sell_sizing,omitempty"`
	CooldownMinutes int            `yaml:"cooldown_minutes,omitempty" json:"cooldown_minutes,omitempty"`
	StopLossPct     float64        `yaml:"stop_loss_pct,omitempty" json:"stop_loss_pct,omitempty"`
	TakeProfitPct   float64        `yaml:"take_profit_pct,omitempty" json:"take_profit_pct,omitempty"`
}
