package live

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"botflow/internal/engine"
	"botflow/logger"
	"botflow/models"
)

// StateStore persists per-bot execution state between invocations. Load
// returns nil (no error) for a bot that has never fired; the executor
// starts it from the birth state.
type StateStore interface {
	Load(ctx context.Context, botID string) (*models.ExecutionState, error)
	Save(ctx context.Context, botID string, state *models.ExecutionState) error
}

// TradeSink receives every fired trade record.
type TradeSink interface {
	Append(ctx context.Context, trade models.Trade) error
}

// Result is the outcome of one bot's evaluation of one tick. Trade is nil
// when the bot decided to do nothing. Err carries that bot's failure
// without affecting the rest of the batch.
type Result struct {
	BotID string
	Trade *models.Trade
	Err   error
}

// Executor drives the decision engine over a single incoming tick for many
// bots. Bots are independent and evaluated concurrently; invocations for
// the same bot are serialized by a per-bot lock so that mode timing stays
// consistent even when ticks overlap.
type Executor struct {
	engine  *engine.Engine
	states  StateStore
	trades  TradeSink
	log     *logger.Log
	workers int

	botLocks sync.Map // bot id -> *sync.Mutex
}

// NewExecutor wires an executor with the given worker ceiling. A ceiling
// of 0 evaluates all bots at once.
func NewExecutor(balance float64, states StateStore, trades TradeSink, workers int, log *logger.Log) *Executor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Executor{
		engine:  engine.New(balance),
		states:  states,
		trades:  trades,
		log:     log,
		workers: workers,
	}
}

// Process evaluates one tick against every bot subscribed to its pair and
// returns one result per evaluated bot. A bot's failure is logged and
// reported in its result; the batch always runs to completion.
func (e *Executor) Process(ctx context.Context, tick models.PriceTick, bots []models.BotConfig) []Result {
	subscribed := make([]models.BotConfig, 0, len(bots))
	for _, bot := range bots {
		if bot.Pair == tick.Pair {
			subscribed = append(subscribed, bot)
		}
	}
	if len(subscribed) == 0 {
		return nil
	}

	results := make([]Result, len(subscribed))
	var sem chan struct{}
	if e.workers > 0 {
		sem = make(chan struct{}, e.workers)
	}

	var wg sync.WaitGroup
	for i, bot := range subscribed {
		wg.Add(1)
		go func(i int, bot models.BotConfig) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = e.processBot(ctx, tick, bot)
		}(i, bot)
	}
	wg.Wait()

	fired := 0
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		} else if res.Trade != nil {
			fired++
		}
	}
	e.log.LogMetric("live_executor", "ticks_processed", 1, "counter", logger.Fields{
		"pair":   tick.Pair,
		"bots":   len(subscribed),
		"fired":  fired,
		"failed": failed,
	})
	return results
}

func (e *Executor) processBot(ctx context.Context, tick models.PriceTick, bot models.BotConfig) Result {
	lock := e.lockFor(bot.ID)
	lock.Lock()
	defer lock.Unlock()

	res := Result{BotID: bot.ID}

	state, err := e.states.Load(ctx, bot.ID)
	if err != nil {
		res.Err = fmt.Errorf("load state for bot %s: %w", bot.ID, err)
		e.logFailure(tick, bot, res.Err)
		return res
	}
	if state == nil {
		state = models.NewExecutionState()
	}

	dec, next, err := e.engine.Decide(tick, bot, state)
	if err != nil {
		res.Err = fmt.Errorf("decide for bot %s: %w", bot.ID, err)
		e.logFailure(tick, bot, res.Err)
		return res
	}

	if dec.Action != models.ActionNone {
		trade := models.Trade{
			ID:          uuid.New().String(),
			BotID:       bot.ID,
			Pair:        bot.Pair,
			Timestamp:   tick.Timestamp,
			Action:      dec.Action,
			Price:       tick.Price,
			Quantity:    dec.Quantity,
			Total:       dec.Total,
			TriggeredBy: dec.Trigger,
		}
		if err := e.trades.Append(ctx, trade); err != nil {
			// The state is not advanced either, so the decision will be
			// re-derived on the next tick rather than lost.
			res.Err = fmt.Errorf("persist trade for bot %s: %w", bot.ID, err)
			e.logFailure(tick, bot, res.Err)
			return res
		}
		res.Trade = &trade
		e.log.WithComponent("live_executor").WithFields(logger.Fields{
			"bot_id":       bot.ID,
			"pair":         bot.Pair,
			"action":       string(dec.Action),
			"triggered_by": string(dec.Trigger),
			"price":        tick.Price,
			"quantity":     dec.Quantity,
		}).Info("Trade fired")
	}

	if err := e.states.Save(ctx, bot.ID, next); err != nil {
		res.Err = fmt.Errorf("save state for bot %s: %w", bot.ID, err)
		e.logFailure(tick, bot, res.Err)
		return res
	}
	return res
}

func (e *Executor) lockFor(botID string) *sync.Mutex {
	actual, _ := e.botLocks.LoadOrStore(botID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (e *Executor) logFailure(tick models.PriceTick, bot models.BotConfig, err error) {
	e.log.WithComponent("live_executor").WithError(err).WithFields(logger.Fields{
		"bot_id": bot.ID,
		"pair":   bot.Pair,
		"at":     tick.Timestamp,
	}).Error("Bot evaluation failed")
}
