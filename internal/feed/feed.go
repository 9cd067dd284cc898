package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	appconfig "botflow/config"
	"botflow/internal/cache"
	"botflow/internal/channel"
	"botflow/internal/indicator"
	"botflow/internal/metrics"
	binancemetrics "botflow/internal/metrics/binance"
	ratemetrics "botflow/internal/metrics/rate"
	"botflow/logger"
	"botflow/models"
)

const (
	defaultFeedURL        = "wss://stream.binance.com:9443/ws"
	defaultReconnectDelay = 5 * time.Second
	weightReportInterval  = time.Minute
	pingWriteTimeout      = time.Second
)

// Keepalive cadence. Variables so tests can tighten them.
var (
	keepAliveInterval = 20 * time.Second
	pongTimeout       = 45 * time.Second
)

// Feed streams Binance 24h mini-ticker updates per pair, enriches each
// update with indicators from the close window and publishes the resulting
// tick. One websocket worker runs per configured pair.
type Feed struct {
	config   *appconfig.Config
	channels *channel.Channels
	window   cache.Window
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
	tracker  *ratemetrics.WSWeightTracker
}

func NewFeed(cfg *appconfig.Config, ch *channel.Channels, window cache.Window) *Feed {
	return &Feed{
		config:   cfg,
		channels: ch,
		window:   window,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
		tracker:  ratemetrics.NewWSWeightTracker(),
	}
}

// Start launches one websocket worker per configured pair.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("feed already running")
	}
	f.running = true
	f.ctx = ctx
	f.mu.Unlock()

	cfg := f.config.Feed
	if !cfg.Enabled {
		return fmt.Errorf("feed disabled via configuration")
	}
	if len(cfg.Pairs) == 0 {
		return fmt.Errorf("no pairs configured for feed")
	}

	for _, pair := range cfg.Pairs {
		f.wg.Add(1)
		go f.streamPair(pair)
	}

	f.wg.Add(1)
	go f.reportWeight()

	f.log.WithComponent("feed").WithFields(logger.Fields{
		"pairs": cfg.Pairs,
	}).Info("feed started")
	return nil
}

// Stop waits for all websocket workers to exit.
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.mu.Unlock()

	f.log.WithComponent("feed").Info("stopping feed")
	f.wg.Wait()
	f.log.WithComponent("feed").Info("feed stopped")
}

type miniTickerPayload struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	QuoteVol  string `json:"q"`
}

func (f *Feed) streamPair(pair string) {
	defer f.wg.Done()

	baseURL := strings.TrimSpace(f.config.Feed.URL)
	if baseURL == "" {
		baseURL = defaultFeedURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	retry := f.config.Feed.Retry
	baseDelay := retry.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultReconnectDelay
	}
	maxDelay := retry.MaxDelay
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	multiplier := retry.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 2
	}

	stream := strings.ToLower(strings.ReplaceAll(pair, "-", ""))
	endpoint := fmt.Sprintf("%s/%s@miniTicker", baseURL, stream)

	log := f.log.WithComponent("feed").WithFields(logger.Fields{
		"pair":     pair,
		"endpoint": endpoint,
	})

	minGap := time.Duration(f.config.Feed.IntervalMs) * time.Millisecond
	var lastEmit time.Time

	delay := baseDelay
	attempts := 0

	dialer := websocket.Dialer{}
	for {
		if f.ctx.Err() != nil {
			return
		}

		f.tracker.RegisterConnectionAttempt()
		conn, _, err := dialer.Dial(endpoint, nil)
		if err != nil {
			attempts++
			if retry.MaxAttempts > 0 && attempts >= retry.MaxAttempts {
				log.WithError(err).WithField("attempts", attempts).Error("giving up on ticker websocket")
				return
			}
			log.WithError(err).Warn("failed to connect to ticker websocket")
			select {
			case <-time.After(delay):
				delay *= time.Duration(multiplier)
				if delay > maxDelay {
					delay = maxDelay
				}
				continue
			case <-f.ctx.Done():
				return
			}
		}

		delay = baseDelay
		attempts = 0

		// A half-open connection must break the read: the ping loop probes
		// the peer and the read deadline expires when neither pongs nor data
		// arrive in time.
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		pingCancel := f.startPingLoop(conn, log)

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				pingCancel()
				conn.Close()
				if f.ctx.Err() != nil {
					return
				}
				ratemetrics.ReportLimitFromMessage(f.log, pair, "", "ticker", err.Error())
				log.WithError(err).Warn("ticker stream error, reconnecting")
				break
			}
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			logger.IncrementTickRead(len(raw))
			if emitted := f.handleMessage(pair, raw, &lastEmit, minGap); emitted {
				f.tracker.RegisterOutgoing(1)
			}
		}

		select {
		case <-time.After(delay):
		case <-f.ctx.Done():
			return
		}
	}
}

// startPingLoop pings the peer on a fixed cadence until cancelled. It closes
// the connection on ping failure or context cancellation, which unblocks a
// pending read so the stream worker can reconnect or exit.
func (f *Feed) startPingLoop(conn *websocket.Conn, log *logger.Entry) context.CancelFunc {
	pingCtx, cancel := context.WithCancel(f.ctx)
	ticker := time.NewTicker(keepAliveInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(pingWriteTimeout))
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteTimeout)); err != nil {
					log.WithError(err).Warn("failed to send ticker ping")
					conn.Close()
					cancel()
					return
				}
			}
		}
	}()
	return cancel
}

// handleMessage parses one raw mini-ticker frame and publishes the enriched
// tick. Updates arriving faster than the configured interval are skipped.
func (f *Feed) handleMessage(pair string, raw []byte, lastEmit *time.Time, minGap time.Duration) bool {
	var payload miniTickerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		f.log.WithComponent("feed").WithError(err).Debug("failed to decode ticker payload")
		return false
	}

	close := parseFloat(payload.Close)
	if close <= 0 {
		return false
	}

	eventTime := time.UnixMilli(payload.EventTime).UTC()
	if payload.EventTime <= 0 {
		eventTime = time.Now().UTC()
	}

	if minGap > 0 && !lastEmit.IsZero() && eventTime.Sub(*lastEmit) < minGap {
		return false
	}

	open := parseFloat(payload.Open)
	volume := parseFloat(payload.Volume)
	changePct := 0.0
	if open > 0 {
		changePct = (close - open) / open * 100
	}

	if err := f.window.Append(f.ctx, pair, close); err != nil {
		f.log.WithComponent("feed").WithError(err).WithField("pair", pair).Warn("failed to extend close window")
	}
	closes, err := f.window.Closes(f.ctx, pair)
	if err != nil {
		f.log.WithComponent("feed").WithError(err).WithField("pair", pair).Warn("failed to read close window")
		closes = []float64{close}
	}

	snap := indicator.Calculate(closes, models.TickerStats{
		LastPrice:      close,
		Volume:         volume,
		PriceChangePct: changePct,
	})

	tick := models.PriceTick{
		Pair:           pair,
		Timestamp:      eventTime,
		Price:          close,
		Volume24h:      volume,
		PriceChangePct: changePct,
		Indicators:     snap,
	}

	if !f.channels.SendTick(f.ctx, tick) {
		metrics.EmitDropMetric(f.log, metrics.DropMetricTick, pair, "", "feed")
		return false
	}

	*lastEmit = eventTime
	return true
}

func (f *Feed) reportWeight() {
	defer f.wg.Done()

	ticker := time.NewTicker(weightReportInterval)
	defer ticker.Stop()

	// miniTicker pushes one update per symbol per second.
	projected := binancemetrics.EstimateWebsocketWeightPerMinute(len(f.config.Feed.Pairs), 1000)

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			ratemetrics.ReportWSWeight(f.log, f.tracker, "")
			metrics.EmitMetric(f.log, "feed_binance", "projected_ws_weight", projected, "gauge", nil)
		}
	}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
