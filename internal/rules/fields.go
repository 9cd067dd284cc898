package rules

import "botflow/models"

// Field lookup is an explicit accessor mapping rather than reflection so
// that unknown fields are a validation-time concern, never a runtime
// surprise inside the tick loop.

var numericFields = map[string]func(models.PriceTick) float64{
	"price":            func(t models.PriceTick) float64 { return t.Price },
	"volume_24h":       func(t models.PriceTick) float64 { return t.Volume24h },
	"price_change_pct": func(t models.PriceTick) float64 { return t.PriceChangePct },
	"rsi_14":           func(t models.PriceTick) float64 { return t.Indicators.RSI14 },
	"rsi_7":            func(t models.PriceTick) float64 { return t.Indicators.RSI7 },
	"macd_histogram":   func(t models.PriceTick) float64 { return t.Indicators.MACDHistogram },
	"sma_20":           func(t models.PriceTick) float64 { return t.Indicators.SMA20 },
	"sma_50":           func(t models.PriceTick) float64 { return t.Indicators.SMA50 },
	"sma_200":          func(t models.PriceTick) float64 { return t.Indicators.SMA200 },
	"ema_12":           func(t models.PriceTick) float64 { return t.Indicators.EMA12 },
	"ema_20":           func(t models.PriceTick) float64 { return t.Indicators.EMA20 },
	"ema_26":           func(t models.PriceTick) float64 { return t.Indicators.EMA26 },
	"bb_upper":         func(t models.PriceTick) float64 { return t.Indicators.BBUpper },
	"bb_lower":         func(t models.PriceTick) float64 { return t.Indicators.BBLower },
}

var enumFields = map[string]func(models.PriceTick) string{
	"macd_signal": func(t models.PriceTick) string { return string(t.Indicators.MACDSignal) },
	"bb_position": func(t models.PriceTick) string { return string(t.Indicators.BBPosition) },
}

var enumValues = map[string]map[string]bool{
	"macd_signal": {
		string(models.MACDBullishCrossover): true,
		string(models.MACDBearishCrossover): true,
		string(models.MACDAboveSignal):      true,
		string(models.MACDBelowSignal):      true,
	},
	"bb_position": {
		string(models.BBAboveUpper):   true,
		string(models.BBBelowLower):   true,
		string(models.BBNearUpper):    true,
		string(models.BBNearLower):    true,
		string(models.BBBetweenBands): true,
	},
}

// Fields returns the names of all rule fields, enum fields included.
func Fields() []string {
	names := make([]string, 0, len(numericFields)+len(enumFields))
	for name := range numericFields {
		names = append(names, name)
	}
	for name := range enumFields {
		names = append(names, name)
	}
	return names
}
