package rate

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"

	binancemetrics "botflow/internal/metrics/binance"
	"botflow/logger"
)

// FetchRequestWeightLimit queries the Binance exchangeInfo endpoint to retrieve
// the REQUEST_WEIGHT per minute limit. It returns 0 if the limit cannot be
// determined.
func FetchRequestWeightLimit(ctx context.Context, client *binance.Client) (int64, error) {
	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, rl := range info.RateLimits {
		if rl.RateLimitType == "REQUEST_WEIGHT" && rl.Interval == "MINUTE" {
			return rl.Limit, nil
		}
	}
	return 0, nil
}

// ReportKlineWeight reports the used request weight carried by a kline REST
// response. It returns the parsed weight and whether a metric was emitted.
func ReportKlineWeight(log *logger.Log, resp *http.Response, ip string) (float64, bool) {
	return binancemetrics.ReportUsedWeight(log, resp, "history_binance", "", "", ip)
}

// WSWeightTracker tracks the number of outgoing websocket messages and
// connection attempts for the Binance ticker stream.
type WSWeightTracker struct {
	mu       sync.Mutex
	window   time.Time
	msgs     int
	attempts int
}

// NewWSWeightTracker creates a new tracker.
func NewWSWeightTracker() *WSWeightTracker {
	return &WSWeightTracker{window: time.Now()}
}

// RegisterOutgoing records n outgoing client messages (subs/pings).
func (t *WSWeightTracker) RegisterOutgoing(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if now.Sub(t.window) >= time.Second {
		t.msgs = 0
		t.window = now
	}
	t.msgs += n
}

// RegisterConnectionAttempt records a websocket handshake attempt. Each
// attempt consumes weight on the Binance side.
func (t *WSWeightTracker) RegisterConnectionAttempt() {
	t.mu.Lock()
	t.attempts++
	t.mu.Unlock()
}

// Stats returns the current message count within the one second window and the
// total connection attempts.
func (t *WSWeightTracker) Stats() (msgs int, attempts int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs = t.msgs
	attempts = t.attempts
	return
}

// ReportWSWeight emits websocket related weight metrics.
func ReportWSWeight(log *logger.Log, t *WSWeightTracker, ip string) {
	msgs, attempts := t.Stats()
	l := log.WithComponent("feed_binance")
	fields := logger.Fields{"ip": ip}
	l.LogMetric("feed_binance", "outgoing_messages", int64(msgs), "gauge", fields)
	l.LogMetric("feed_binance", "connection_attempts", int64(attempts), "counter", fields)
}
