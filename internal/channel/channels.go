package channel

import (
	"context"
	"sync"

	"botflow/logger"
	"botflow/models"
)

// ChannelStats counts traffic through the tick and trade buffers.
type ChannelStats struct {
	TicksSent     int64
	TicksDropped  int64
	TradesSent    int64
	TradesDropped int64
}

// Channels carries the buffered streams between the feed, the live
// executor and the writers. Sends never block: when a buffer is full the
// message is dropped and counted, since a stalled consumer must not back
// up the price feed.
type Channels struct {
	Ticks  chan models.PriceTick
	Trades chan models.Trade

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(tickBufferSize, tradeBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Ticks:  make(chan models.PriceTick, tickBufferSize),
		Trades: make(chan models.Trade, tradeBufferSize),
		log:    log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"tick_buffer_size":  tickBufferSize,
		"trade_buffer_size": tradeBufferSize,
	}).Info("Channels initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Ticks)
	close(c.Trades)
	c.log.WithComponent("channels").Info("Channels closed")
}

func (c *Channels) IncrementTicksSent() {
	c.statsMutex.Lock()
	c.stats.TicksSent++
	c.statsMutex.Unlock()
}

func (c *Channels) IncrementTicksDropped() {
	c.statsMutex.Lock()
	c.stats.TicksDropped++
	c.statsMutex.Unlock()
}

func (c *Channels) IncrementTradesSent() {
	c.statsMutex.Lock()
	c.stats.TradesSent++
	c.statsMutex.Unlock()
}

func (c *Channels) IncrementTradesDropped() {
	c.statsMutex.Lock()
	c.stats.TradesDropped++
	c.statsMutex.Unlock()
}

func (c *Channels) SendTick(ctx context.Context, tick models.PriceTick) bool {
	select {
	case c.Ticks <- tick:
		c.IncrementTicksSent()
		return true
	case <-ctx.Done():
		return false
	default:
		c.IncrementTicksDropped()
		return false
	}
}

func (c *Channels) SendTrade(ctx context.Context, trade models.Trade) bool {
	select {
	case c.Trades <- trade:
		c.IncrementTradesSent()
		return true
	case <-ctx.Done():
		return false
	default:
		c.IncrementTradesDropped()
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
