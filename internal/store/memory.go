// Package store provides in-process implementations of the persistence
// boundaries the live path depends on: per-bot execution state and the
// trade ledger. They back single-node deployments and tests; durable
// variants live behind the same method sets.
package store

import (
	"context"
	"sync"

	"botflow/models"
)

// StateStore keeps per-bot execution state in memory. Safe for concurrent
// use across bots; callers serialize access per bot.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]*models.ExecutionState
}

func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]*models.ExecutionState)}
}

// Load returns a copy of the bot's state, or nil when the bot has never
// been seen.
func (s *StateStore) Load(_ context.Context, botID string) (*models.ExecutionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[botID]
	if !ok {
		return nil, nil
	}
	return cloneState(state), nil
}

// Save stores a copy of the state so later mutations by the caller cannot
// leak in.
func (s *StateStore) Save(_ context.Context, botID string, state *models.ExecutionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[botID] = cloneState(state)
	return nil
}

func cloneState(state *models.ExecutionState) *models.ExecutionState {
	if state == nil {
		return nil
	}
	next := *state
	if state.OpenPosition != nil {
		pos := *state.OpenPosition
		next.OpenPosition = &pos
	}
	return &next
}

// TradeLog is an append-only in-memory trade ledger.
type TradeLog struct {
	mu     sync.Mutex
	trades []models.Trade
}

func NewTradeLog() *TradeLog {
	return &TradeLog{}
}

func (l *TradeLog) Append(_ context.Context, trade models.Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades = append(l.trades, trade)
	return nil
}

// Trades returns a snapshot of everything appended so far.
func (l *TradeLog) Trades() []models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}
