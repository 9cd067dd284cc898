package models

import "time"

// SizingMode flags whether a backtest used the bot's configured sizing or
// the default simulated notional, so callers can tell simulated from
// configured results.
type SizingMode string

const (
	SizingConfigured      SizingMode = "configured"
	SizingDefaultNotional SizingMode = "default_1000_notional"
)

// HourlyBucket aggregates one wall-clock hour of a backtest run. Open and
// close are the first and last tick prices inside the hour; high and low are
// the tick extremes.
type HourlyBucket struct {
	HourStart  time.Time `json:"hour_start"`
	OpenPrice  float64   `json:"open_price"`
	ClosePrice float64   `json:"close_price"`
	HighPrice  float64   `json:"high_price"`
	LowPrice   float64   `json:"low_price"`
	Trades     []Trade   `json:"trades"`
}

// ReportSummary holds the aggregate statistics of a backtest run. NetPnl
// folds the unrealised value of any position still open at the final tick
// into the realised total.
type ReportSummary struct {
	TotalBuys          int     `json:"total_buys"`
	TotalSells         int     `json:"total_sells"`
	TotalTrades        int     `json:"total_trades"`
	NetPnl             float64 `json:"net_pnl"`
	RealisedPnl        float64 `json:"realised_pnl"`
	UnrealisedPnl      float64 `json:"unrealised_pnl"`
	WinRate            float64 `json:"win_rate"`
	AvgHoldTimeMinutes float64 `json:"avg_hold_time_minutes"`
	LargestGain        float64 `json:"largest_gain"`
	LargestLoss        float64 `json:"largest_loss"`
}

// BacktestReport is the all-or-nothing result of one backtest run. It is
// written once and read-only afterwards.
type BacktestReport struct {
	ID                string         `json:"id"`
	BotID             string         `json:"bot_id"`
	Sub               string         `json:"sub"`
	WindowStart       time.Time      `json:"window_start"`
	WindowEnd         time.Time      `json:"window_end"`
	BotConfigSnapshot BotConfig      `json:"bot_config_snapshot"`
	SizingMode        SizingMode     `json:"sizing_mode"`
	HourlyBuckets     []HourlyBucket `json:"hourly_buckets"`
	Summary           ReportSummary  `json:"summary"`
}
