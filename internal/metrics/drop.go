package metrics

import "botflow/logger"

// DropMetric identifies the metric name emitted when channel messages are dropped.
type DropMetric string

const (
	// DropMetricTick records price ticks dropped on a full buffer.
	DropMetricTick DropMetric = "tick_messages_dropped"
	// DropMetricTrade records trade records dropped on a full buffer.
	DropMetricTrade DropMetric = "trade_messages_dropped"
)

// EmitDropMetric logs and emits a metric representing a dropped channel message.
// The metric value is always incremented by one so callers should invoke this
// helper for each dropped message. Optional metadata (pair, bot, stage) is added
// to the metric fields when provided which enables downstream aggregation per
// pair and stream type.
func EmitDropMetric(log *logger.Log, metric DropMetric, pair, botID, stage string) {
	fields := logger.Fields{}
	if pair != "" {
		fields["pair"] = pair
	}
	if botID != "" {
		fields["bot_id"] = botID
	}
	if stage != "" {
		fields["stage"] = stage
	}

	EmitMetric(log, "channel_drops", string(metric), 1, "counter", fields)
}
