package history

import (
	"context"
	"fmt"
	"time"

	"botflow/config"
	"botflow/internal/cache"
	"botflow/internal/indicator"
	"botflow/logger"
	"botflow/models"
)

// Source loads historical price ticks for a pair over a closed time window,
// ordered by timestamp ascending, with indicators already computed.
type Source interface {
	Ticks(ctx context.Context, pair string, from, to time.Time) ([]models.PriceTick, error)
}

// New builds the historical tick source selected by the configuration.
func New(cfg config.HistoryConfig, log *logger.Log) (Source, error) {
	switch cfg.Provider {
	case "", "binance":
		return NewBinanceSource(cfg.Binance, log), nil
	case "influx":
		return NewInfluxSource(cfg.Influx, log)
	default:
		return nil, fmt.Errorf("history provider '%s' is not supported", cfg.Provider)
	}
}

// candle is the minimal bar shape both providers reduce to before
// enrichment.
type candle struct {
	Timestamp time.Time
	Close     float64
	Volume    float64
}

// enrichTicks folds candles oldest-first into price ticks, computing the
// indicator snapshot from the rolling close window available at each bar.
// The 24h change is measured against the close one day earlier at the given
// bar interval, or the oldest available close when the window is younger
// than a day.
func enrichTicks(pair string, candles []candle, interval time.Duration) []models.PriceTick {
	if interval <= 0 {
		interval = time.Minute
	}
	lookback := int(24 * time.Hour / interval)

	closes := make([]float64, 0, len(candles))
	ticks := make([]models.PriceTick, 0, len(candles))

	for i, c := range candles {
		closes = append(closes, c.Close)
		window := closes
		if len(window) > cache.DefaultWindowSize {
			window = window[len(window)-cache.DefaultWindowSize:]
		}

		ref := candles[0].Close
		if i >= lookback {
			ref = candles[i-lookback].Close
		}
		changePct := 0.0
		if ref > 0 {
			changePct = (c.Close - ref) / ref * 100
		}

		snap := indicator.Calculate(window, models.TickerStats{
			LastPrice:      c.Close,
			Volume:         c.Volume,
			PriceChangePct: changePct,
		})

		ticks = append(ticks, models.PriceTick{
			Pair:           pair,
			Timestamp:      c.Timestamp,
			Price:          c.Close,
			Volume24h:      c.Volume,
			PriceChangePct: changePct,
			Indicators:     snap,
		})
	}

	return ticks
}
