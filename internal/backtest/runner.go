package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"botflow/internal/engine"
	"botflow/internal/position"
	"botflow/internal/rules"
	"botflow/logger"
	"botflow/models"
)

// DefaultBalance is the simulated quote-currency balance percentage sizing
// draws on when the caller does not supply one.
const DefaultBalance = 10_000.0

// reportNamespace seeds the deterministic UUIDs of reports and trades.
// Replaying the same window with the same config must produce a
// byte-for-byte identical report, so random IDs are off the table.
var reportNamespace = uuid.MustParse("7a1c9d1e-4b4f-4c2a-9b6d-2f8e0a3c5d71")

// Runner replays a chronologically ordered tick sequence for one bot
// through the decision engine and aggregates the result into a report.
type Runner struct {
	balance float64
	log     *logger.Log
}

// NewRunner returns a runner drawing percentage sizing on the given
// simulated balance. A balance of 0 falls back to DefaultBalance.
func NewRunner(balance float64, log *logger.Log) *Runner {
	if balance <= 0 {
		balance = DefaultBalance
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Runner{balance: balance, log: log}
}

// Run replays ticks through the engine and returns the aggregate report.
// The tick sequence must be ordered by timestamp and belong to the bot's
// pair. An empty sequence is fatal; a retry over the same window cannot
// produce different data. Cancellation abandons the run with no partial
// report.
func (r *Runner) Run(ctx context.Context, cfg models.BotConfig, ticks []models.PriceTick) (*models.BacktestReport, error) {
	if len(ticks) == 0 {
		return nil, fmt.Errorf("no price data for %s", cfg.Pair)
	}
	if err := validateQueries(cfg); err != nil {
		return nil, fmt.Errorf("bot %s: %w", cfg.ID, err)
	}

	start := time.Now()
	entry := r.log.WithComponent("backtest").WithFields(logger.Fields{
		"bot_id": cfg.ID,
		"pair":   cfg.Pair,
		"ticks":  len(ticks),
	})
	entry.Info("Starting backtest run")

	eng := engine.New(r.balance)
	acct := position.NewAccountant()
	state := models.NewExecutionState()

	var (
		buckets      []models.HourlyBucket
		holdMinutes  float64
		closedSells  int
		defaultSized bool
	)

	for i, tick := range ticks {
		if i%1024 == 0 && ctx.Err() != nil {
			entry.Warn("Backtest abandoned: ", ctx.Err())
			return nil, fmt.Errorf("backtest for bot %s abandoned: %w", cfg.ID, ctx.Err())
		}

		buckets = foldTick(buckets, tick)

		dec, next, err := eng.Decide(tick, cfg, state)
		if err != nil {
			return nil, fmt.Errorf("bot %s at %s: %w", cfg.ID, tick.Timestamp.Format(time.RFC3339), err)
		}
		if dec.DefaultSized {
			defaultSized = true
		}

		switch dec.Action {
		case models.ActionBuy:
			acct.OnBuy(dec.Quantity, tick.Price)
		case models.ActionSell:
			if state.OpenPosition != nil {
				holdMinutes += tick.Timestamp.Sub(state.OpenPosition.EnteredAt).Minutes()
				closedSells++
			}
			if _, err := acct.OnSell(dec.Quantity, tick.Price); err != nil {
				return nil, fmt.Errorf("bot %s at %s: %w", cfg.ID, tick.Timestamp.Format(time.RFC3339), err)
			}
		case models.ActionNone:
			state = next
			continue
		}

		trade := models.Trade{
			ID:          tradeID(cfg.ID, tick.Timestamp, dec.Action),
			BotID:       cfg.ID,
			Pair:        cfg.Pair,
			Timestamp:   tick.Timestamp,
			Action:      dec.Action,
			Price:       tick.Price,
			Quantity:    dec.Quantity,
			Total:       dec.Total,
			TriggeredBy: dec.Trigger,
		}
		buckets[len(buckets)-1].Trades = append(buckets[len(buckets)-1].Trades, trade)
		state = next
	}

	final := ticks[len(ticks)-1]
	unrealised := acct.UnrealisedPnl(final.Price)

	summary := models.ReportSummary{
		TotalBuys:     acct.TotalBuys(),
		TotalSells:    acct.TotalSells(),
		TotalTrades:   acct.TotalBuys() + acct.TotalSells(),
		RealisedPnl:   acct.RealisedPnl(),
		UnrealisedPnl: unrealised,
		NetPnl:        acct.RealisedPnl() + unrealised,
		WinRate:       acct.WinRate(),
		LargestGain:   acct.LargestGain(),
		LargestLoss:   acct.LargestLoss(),
	}
	if closedSells > 0 {
		summary.AvgHoldTimeMinutes = holdMinutes / float64(closedSells)
	}

	sizingMode := models.SizingConfigured
	if defaultSized {
		sizingMode = models.SizingDefaultNotional
	}

	report := &models.BacktestReport{
		ID:                reportID(cfg.ID, ticks[0].Timestamp, final.Timestamp),
		BotID:             cfg.ID,
		Sub:               cfg.Sub,
		WindowStart:       ticks[0].Timestamp,
		WindowEnd:         final.Timestamp,
		BotConfigSnapshot: cfg,
		SizingMode:        sizingMode,
		HourlyBuckets:     buckets,
		Summary:           summary,
	}

	entry.WithFields(logger.Fields{
		"trades":   summary.TotalTrades,
		"net_pnl":  summary.NetPnl,
		"win_rate": summary.WinRate,
		"buckets":  len(buckets),
	}).Info("Backtest run complete in ", time.Since(start))
	r.log.LogMetric("backtest", "runs_completed", 1, "counter", logger.Fields{"bot_id": cfg.ID})

	return report, nil
}

// foldTick updates the OHLC of the bucket covering the tick's wall-clock
// hour, appending a new bucket when the hour rolls over. Ticks arrive in
// order, so only the last bucket is ever live.
func foldTick(buckets []models.HourlyBucket, tick models.PriceTick) []models.HourlyBucket {
	hour := tick.Timestamp.UTC().Truncate(time.Hour)
	n := len(buckets)
	if n == 0 || !buckets[n-1].HourStart.Equal(hour) {
		return append(buckets, models.HourlyBucket{
			HourStart:  hour,
			OpenPrice:  tick.Price,
			ClosePrice: tick.Price,
			HighPrice:  tick.Price,
			LowPrice:   tick.Price,
		})
	}
	b := &buckets[n-1]
	b.ClosePrice = tick.Price
	if tick.Price > b.HighPrice {
		b.HighPrice = tick.Price
	}
	if tick.Price < b.LowPrice {
		b.LowPrice = tick.Price
	}
	return buckets
}

// validateQueries rejects malformed or missing rule trees before the tick
// loop starts. A bot whose rules cannot fire should fail loudly, not sit
// silently inert.
func validateQueries(cfg models.BotConfig) error {
	if cfg.BuyQuery == nil && cfg.SellQuery == nil {
		return fmt.Errorf("bot defines neither a buy nor a sell query")
	}
	if cfg.BuyQuery != nil {
		if err := rules.Validate(cfg.BuyQuery); err != nil {
			return fmt.Errorf("buy query: %w", err)
		}
	}
	if cfg.SellQuery != nil {
		if err := rules.Validate(cfg.SellQuery); err != nil {
			return fmt.Errorf("sell query: %w", err)
		}
	}
	return nil
}

func tradeID(botID string, ts time.Time, action models.TradeAction) string {
	return uuid.NewSHA1(reportNamespace, []byte(fmt.Sprintf("trade|%s|%d|%s", botID, ts.UnixMilli(), action))).String()
}

func reportID(botID string, start, end time.Time) string {
	return uuid.NewSHA1(reportNamespace, []byte(fmt.Sprintf("report|%s|%d|%d", botID, start.UnixMilli(), end.UnixMilli()))).String()
}
