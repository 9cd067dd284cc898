package metrics

import (
	"context"
	"time"

	"botflow/internal/channel"
	"botflow/logger"
)

// StartChannelSizeMetrics emits occupancy metrics for the tick and trade
// channel buffers. Metrics are logged every `interval` until the context is
// cancelled. When interval <=0, a one-second cadence is used.
func StartChannelSizeMetrics(ctx context.Context, channels *channel.Channels, interval time.Duration) {
	if !IsFeatureEnabled(FeatureChannelSize) {
		return
	}
	if channels == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	log := logger.GetLogger()
	ticker := time.NewTicker(interval)
	component := "channel_buffers"

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				EmitMetric(log, component, "tick_buffer_length", len(channels.Ticks), "gauge", logger.Fields{
					"buffer":   "ticks",
					"capacity": cap(channels.Ticks),
				})
				EmitMetric(log, component, "trade_buffer_length", len(channels.Trades), "gauge", logger.Fields{
					"buffer":   "trades",
					"capacity": cap(channels.Trades),
				})
			}
		}
	}()
}
