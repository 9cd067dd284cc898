package models

import "time"

// MACDSignal classifies the MACD line relative to its signal line.
type MACDSignal string

const (
	MACDBullishCrossover MACDSignal = "bullish_crossover"
	MACDBearishCrossover MACDSignal = "bearish_crossover"
	MACDAboveSignal      MACDSignal = "above_signal"
	MACDBelowSignal      MACDSignal = "below_signal"
)

// BBPosition classifies the last price relative to the Bollinger bands.
type BBPosition string

const (
	BBAboveUpper   BBPosition = "above_upper"
	BBBelowLower   BBPosition = "below_lower"
	BBNearUpper    BBPosition = "near_upper"
	BBNearLower    BBPosition = "near_lower"
	BBBetweenBands BBPosition = "between_bands"
)

// IndicatorSnapshot is the fixed set of technical indicators derived from a
// close-price window plus 24h ticker stats. Indicators whose required period
// exceeds the available window resolve to neutral defaults (RSI 50, MACD
// histogram 0 with below_signal, SMA/EMA 0, Bollinger 0 with between_bands)
// so that early-life bots stay well-defined.
type IndicatorSnapshot struct {
	Price          float64    `json:"price"`
	Volume24h      float64    `json:"volume_24h"`
	PriceChangePct float64    `json:"price_change_pct"`
	RSI14          float64    `json:"rsi_14"`
	RSI7           float64    `json:"rsi_7"`
	MACDHistogram  float64    `json:"macd_histogram"`
	MACDSignal     MACDSignal `json:"macd_signal"`
	SMA20          float64    `json:"sma_20"`
	SMA50          float64    `json:"sma_50"`
	SMA200         float64    `json:"sma_200"`
	EMA12          float64    `json:"ema_12"`
	EMA20          float64    `json:"ema_20"`
	EMA26          float64    `json:"ema_26"`
	BBUpper        float64    `json:"bb_upper"`
	BBLower        float64    `json:"bb_lower"`
	BBPosition     BBPosition `json:"bb_position"`
}

// PriceTick is one timestamped price observation for a trading pair.
// Ticks for a pair are immutable and strictly ordered by timestamp.
type PriceTick struct {
	Pair           string            `json:"pair"`
	Timestamp      time.Time         `json:"timestamp"`
	Price          float64           `json:"price"`
	Volume24h      float64           `json:"volume_24h"`
	PriceChangePct float64           `json:"price_change_pct"`
	Indicators     IndicatorSnapshot `json:"indicators"`
}

// TickerStats carries the 24h rolling ticker fields used to enrich an
// indicator snapshot.
type TickerStats struct {
	LastPrice      float64
	Volume         float64
	PriceChangePct float64
}
