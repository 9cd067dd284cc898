package engine

import (
	"fmt"
	"time"

	"botflow/internal/rules"
	"botflow/models"
)

// DefaultNotional is the quote-currency amount used to size trades when a
// bot carries no sizing config. Runs sized this way are flagged so reports
// can distinguish simulated from configured sizing.
const DefaultNotional = 1000.0

// Decision is the outcome of one tick evaluation. Action is ActionNone when
// nothing fired; Quantity and Total are only meaningful for buy/sell.
type Decision struct {
	Action       models.TradeAction
	Trigger      models.TradeTrigger
	Quantity     float64
	Total        float64
	DefaultSized bool
}

// Engine turns one tick plus a bot's config and execution state into a
// decision. It performs no I/O and reads no clock: given identical inputs
// it returns identical outputs, so backtest replays and live invocations
// behave the same.
type Engine struct {
	balance float64
}

// New returns an engine whose percentage sizing draws on the given
// available balance in quote currency.
func New(balance float64) *Engine {
	return &Engine{balance: balance}
}

// Decide evaluates one tick for one bot. The input state is never mutated;
// the returned state reflects any fired action and is what the caller must
// persist (or thread into the next tick of a replay).
//
// Decision order, first match wins: risk override (stop-loss/take-profit on
// an open position, bypassing mode timing), then the buy rule, then the
// sell rule, then no action.
func (e *Engine) Decide(tick models.PriceTick, cfg models.BotConfig, state *models.ExecutionState) (Decision, *models.ExecutionState, error) {
	if state == nil {
		state = models.NewExecutionState()
	}
	if tick.Price <= 0 {
		return Decision{Action: models.ActionNone}, cloneState(state), fmt.Errorf("non-positive tick price %v for %s", tick.Price, tick.Pair)
	}

	if trigger, ok := riskTrigger(tick.Price, cfg, state); ok {
		// Risk exits close the whole position regardless of sell sizing.
		qty := state.OpenPosition.Quantity
		next := cloneState(state)
		next.LastAction = models.ActionSell
		next.LastSellAt = tick.Timestamp
		next.OpenPosition = nil
		return Decision{
			Action:   models.ActionSell,
			Trigger:  trigger,
			Quantity: qty,
			Total:    qty * tick.Price,
		}, next, nil
	}

	if cfg.BuyQuery != nil && buyPermitted(cfg, state, tick.Timestamp) {
		fired, err := rules.Evaluate(cfg.BuyQuery, tick)
		if err != nil {
			return Decision{Action: models.ActionNone}, cloneState(state), fmt.Errorf("buy query: %w", err)
		}
		if fired {
			qty, defaulted := e.resolveQuantity(cfg.BuySizing, tick.Price)
			next := cloneState(state)
			next.LastAction = models.ActionBuy
			next.LastBuyAt = tick.Timestamp
			next.OpenPosition = mergePosition(next.OpenPosition, qty, tick.Price, tick.Timestamp)
			return Decision{
				Action:       models.ActionBuy,
				Trigger:      models.TriggerRule,
				Quantity:     qty,
				Total:        qty * tick.Price,
				DefaultSized: defaulted,
			}, next, nil
		}
	}

	if cfg.SellQuery != nil && sellPermitted(cfg, state, tick.Timestamp) {
		fired, err := rules.Evaluate(cfg.SellQuery, tick)
		if err != nil {
			return Decision{Action: models.ActionNone}, cloneState(state), fmt.Errorf("sell query: %w", err)
		}
		if fired {
			qty, defaulted := e.resolveQuantity(cfg.SellSizing, tick.Price)
			next := cloneState(state)
			// Never sell more than is open: the sizing config describes
			// intent, the position bounds reality.
			if next.OpenPosition != nil {
				if qty > next.OpenPosition.Quantity {
					qty = next.OpenPosition.Quantity
				}
				next.OpenPosition.Quantity -= qty
				if next.OpenPosition.Quantity <= 0 {
					next.OpenPosition = nil
				}
			}
			next.LastAction = models.ActionSell
			next.LastSellAt = tick.Timestamp
			return Decision{
				Action:       models.ActionSell,
				Trigger:      models.TriggerRule,
				Quantity:     qty,
				Total:        qty * tick.Price,
				DefaultSized: defaulted,
			}, next, nil
		}
	}

	return Decision{Action: models.ActionNone}, cloneState(state), nil
}

// riskTrigger checks stop-loss and take-profit against an open position.
// Stop-loss is checked first so that a pathological config with both bands
// crossed on one tick exits as a loss rather than a win.
func riskTrigger(price float64, cfg models.BotConfig, state *models.ExecutionState) (models.TradeTrigger, bool) {
	pos := state.OpenPosition
	if pos == nil || pos.Quantity <= 0 {
		return "", false
	}
	if cfg.StopLossPct > 0 && price <= pos.EntryPrice*(1-cfg.StopLossPct/100) {
		return models.TriggerStopLoss, true
	}
	if cfg.TakeProfitPct > 0 && price >= pos.EntryPrice*(1+cfg.TakeProfitPct/100) {
		return models.TriggerTakeProfit, true
	}
	return "", false
}

// buyPermitted applies mode timing for the buy side. once_and_wait demands
// alternation starting with a buy; condition_cooldown demands the per-type
// cooldown window since the last buy.
func buyPermitted(cfg models.BotConfig, state *models.ExecutionState, now time.Time) bool {
	switch cfg.ExecutionMode {
	case models.ModeOnceAndWait:
		return state.LastAction != models.ActionBuy
	case models.ModeConditionCooldown:
		return cooldownElapsed(state.LastBuyAt, now, cfg.CooldownMinutes)
	default:
		return false
	}
}

func sellPermitted(cfg models.BotConfig, state *models.ExecutionState, now time.Time) bool {
	switch cfg.ExecutionMode {
	case models.ModeOnceAndWait:
		// A sell only makes sense against an open position, and only
		// directly after a buy.
		return state.LastAction == models.ActionBuy && state.OpenPosition != nil
	case models.ModeConditionCooldown:
		return cooldownElapsed(state.LastSellAt, now, cfg.CooldownMinutes)
	default:
		return false
	}
}

// cooldownElapsed compares the current tick's timestamp against the last
// firing of the same action type. The tick clock, never the wall clock, is
// the time source here.
func cooldownElapsed(last, now time.Time, minutes int) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= time.Duration(minutes)*time.Minute
}

// resolveQuantity turns a sizing config and tick price into a base-asset
// quantity. A missing config falls back to the default notional and is
// flagged to the caller.
func (e *Engine) resolveQuantity(sizing *models.SizingConfig, price float64) (float64, bool) {
	if sizing == nil {
		return DefaultNotional / price, true
	}
	switch sizing.Type {
	case models.SizingFixed:
		return sizing.Value / price, false
	case models.SizingPercentage:
		return (sizing.Value / 100 * e.balance) / price, false
	default:
		return DefaultNotional / price, true
	}
}

// mergePosition folds a buy into an existing position at the weighted
// average entry price, or opens a fresh one. The original entry time is
// kept so hold-time statistics measure from the first fill.
func mergePosition(pos *models.OpenPosition, qty, price float64, at time.Time) *models.OpenPosition {
	if pos == nil || pos.Quantity <= 0 {
		return &models.OpenPosition{EntryPrice: price, Quantity: qty, EnteredAt: at}
	}
	total := pos.Quantity + qty
	return &models.OpenPosition{
		EntryPrice: (pos.Quantity*pos.EntryPrice + qty*price) / total,
		Quantity:   total,
		EnteredAt:  pos.EnteredAt,
	}
}

func cloneState(state *models.ExecutionState) *models.ExecutionState {
	next := *state
	if state.OpenPosition != nil {
		pos := *state.OpenPosition
		next.OpenPosition = &pos
	}
	return &next
}
