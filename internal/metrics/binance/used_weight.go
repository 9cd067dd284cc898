package binancemetrics

import (
	"net/http"
	"strconv"

	"botflow/internal/metrics"
	"botflow/logger"
)

// ReportUsedWeight inspects Binance used-weight headers and emits a gauge when a
// numeric value is found. The function returns the parsed weight and a boolean
// indicating whether a metric was recorded. Only the caller IP is attached as a
// metric field; symbol and market are logged but kept out of the CloudWatch
// dimensions to bound series cardinality.
func ReportUsedWeight(log *logger.Log, resp *http.Response, component, symbol, market, ip string) (float64, bool) {
	if log == nil || resp == nil {
		return 0, false
	}
	if !metrics.IsFeatureEnabled(metrics.FeatureUsedWeight) {
		return 0, false
	}

	headers := []struct {
		key    string
		window string
	}{
		{"X-MBX-USED-WEIGHT-1M", "1m"},
		{"X-MBX-USED-WEIGHT", "1m"},
		{"X-MBX-USED-WEIGHT-1S", "1s"},
	}

	for _, h := range headers {
		value := resp.Header.Get(h.key)
		if value == "" {
			continue
		}

		used, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.WithComponent(component).WithFields(logger.Fields{
				"symbol": symbol,
				"market": market,
				"header": h.key,
				"value":  value,
			}).WithError(err).Debug("failed to parse used weight header")
			continue
		}

		fields := logger.Fields{}
		if ip != "" {
			fields["ip"] = ip
		}

		metrics.EmitMetric(log, component, "used_weight", used, "gauge", fields)
		return used, true
	}

	return 0, false
}

// EstimateWebsocketWeightPerMinute approximates the number of websocket
// ticker messages received per minute and treats each message as a unit of
// weight. The return value can be divided among symbols or used wholesale to
// project additional load for monitoring purposes.
func EstimateWebsocketWeightPerMinute(symbolCount, intervalMs int) float64 {
	if symbolCount <= 0 || intervalMs <= 0 {
		return 0
	}

	updatesPerSymbolPerSecond := 1000.0 / float64(intervalMs)
	if updatesPerSymbolPerSecond <= 0 {
		return 0
	}

	updatesPerSecond := updatesPerSymbolPerSecond * float64(symbolCount)
	return updatesPerSecond * 60
}
