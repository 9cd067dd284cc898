package indicator

import (
	"math"

	"botflow/models"
)

// Calculate derives the fixed indicator snapshot from a close-price window
// (oldest first) plus current 24h ticker stats. It is a pure function of its
// inputs: indicators whose period exceeds the window resolve to neutral
// defaults instead of being omitted.
func Calculate(closes []float64, ticker models.TickerStats) models.IndicatorSnapshot {
	snap := models.IndicatorSnapshot{
		Price:          ticker.LastPrice,
		Volume24h:      ticker.Volume,
		PriceChangePct: ticker.PriceChangePct,
		RSI14:          RSI(closes, 14),
		RSI7:           RSI(closes, 7),
		SMA20:          SMA(closes, 20),
		SMA50:          SMA(closes, 50),
		SMA200:         SMA(closes, 200),
		EMA12:          EMA(closes, 12),
		EMA20:          EMA(closes, 20),
		EMA26:          EMA(closes, 26),
	}

	snap.MACDHistogram, snap.MACDSignal = MACD(closes)
	snap.BBUpper, snap.BBLower, snap.BBPosition = Bollinger(closes, ticker.LastPrice)

	return snap
}

// SMA returns the arithmetic mean of the last period closes, or 0 when the
// window is shorter than the period.
func SMA(closes []float64, period int) float64 {
	if len(closes) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average over the window, seeded with
// the simple average of the first period closes, or 0 when the window is
// shorter than the period.
func EMA(closes []float64, period int) float64 {
	series := emaSeries(closes, period)
	if series == nil {
		return 0
	}
	return series[len(series)-1]
}

// emaSeries computes the EMA value at every index from period-1 onward.
// Index i of the result corresponds to closes[i+period-1]. Returns nil when
// the window is shorter than the period.
func emaSeries(closes []float64, period int) []float64 {
	if len(closes) < period || period <= 0 {
		return nil
	}

	seed := 0.0
	for _, c := range closes[:period] {
		seed += c
	}
	seed /= float64(period)

	k := 2.0 / float64(period+1)
	series := make([]float64, 0, len(closes)-period+1)
	series = append(series, seed)

	ema := seed
	for _, c := range closes[period:] {
		ema = c*k + ema*(1-k)
		series = append(series, ema)
	}
	return series
}

// RSI computes Wilder's smoothed relative strength index. The initial
// average gain/loss covers the first period deltas; subsequent deltas use
// the smoothed recurrence avg = (avg*(period-1) + delta) / period. Fewer
// than period+1 closes resolve to the neutral 50; a zero average loss
// resolves to 100.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return 50
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := 0.0
		loss := 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// MACD computes the 12/26/9 histogram and classifies the MACD line against
// its signal line. Crossovers compare the previous line/signal pair with the
// current one. Until the window covers the slow EMA plus a seedable signal
// EMA (34 closes), the result is histogram 0 with below_signal.
func MACD(closes []float64) (float64, models.MACDSignal) {
	const (
		fast   = 12
		slow   = 26
		signal = 9
	)

	if len(closes) < slow {
		return 0, models.MACDBelowSignal
	}

	fastSeries := emaSeries(closes, fast)
	slowSeries := emaSeries(closes, slow)

	// The MACD line exists wherever the slow EMA does; align the fast
	// series to the slow one's start.
	offset := len(fastSeries) - len(slowSeries)
	line := make([]float64, len(slowSeries))
	for i := range slowSeries {
		line[i] = fastSeries[i+offset] - slowSeries[i]
	}

	// The signal EMA needs 9 MACD-line values to seed; until then the
	// histogram keeps its neutral default rather than degenerating into the
	// raw MACD line.
	signalSeries := emaSeries(line, signal)
	if signalSeries == nil {
		return 0, models.MACDBelowSignal
	}

	curLine := line[len(line)-1]
	curSignal := signalSeries[len(signalSeries)-1]
	hist := curLine - curSignal

	cls := models.MACDBelowSignal
	if curLine > curSignal {
		cls = models.MACDAboveSignal
	}

	if len(line) >= 2 && len(signalSeries) >= 2 {
		prevLine := line[len(line)-2]
		prevSignal := signalSeries[len(signalSeries)-2]
		if prevLine <= prevSignal && curLine > curSignal {
			cls = models.MACDBullishCrossover
		} else if prevLine >= prevSignal && curLine < curSignal {
			cls = models.MACDBearishCrossover
		}
	}

	return hist, cls
}

// Bollinger computes the 20-period, 2-sigma bands and classifies the price
// position within them. Prices within 10% of band width of a boundary are
// classified near_upper/near_lower. Fewer than 20 closes resolve to zero
// bands with between_bands.
func Bollinger(closes []float64, price float64) (float64, float64, models.BBPosition) {
	const (
		period = 20
		sigma  = 2.0
	)

	if len(closes) < period {
		return 0, 0, models.BBBetweenBands
	}

	mid := SMA(closes, period)
	variance := 0.0
	for _, c := range closes[len(closes)-period:] {
		d := c - mid
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(period))

	upper := mid + sigma*stddev
	lower := mid - sigma*stddev

	pos := models.BBBetweenBands
	width := upper - lower
	switch {
	case price > upper:
		pos = models.BBAboveUpper
	case price < lower:
		pos = models.BBBelowLower
	case width > 0 && upper-price <= 0.1*width:
		pos = models.BBNearUpper
	case width > 0 && price-lower <= 0.1*width:
		pos = models.BBNearLower
	}

	return upper, lower, pos
}
