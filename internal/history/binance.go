package history

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"botflow/config"
	ratemetrics "botflow/internal/metrics/rate"
	"botflow/logger"
	"botflow/models"
)

const (
	klinePageLimit = 1000
	// A full-page klines request costs 2 request-weight units.
	klineRequestWeight = 2
)

// BinanceSource backfills ticks from the Binance spot klines endpoint. Pages
// are fetched under a client-side rate limiter so long backfills stay under
// the exchange request-weight budget.
type BinanceSource struct {
	client    *binance.Client
	interval  string
	limiter   *rate.Limiter
	log       *logger.Entry
	limitOnce sync.Once
}

func NewBinanceSource(cfg config.BinanceHistoryConfig, log *logger.Log) *BinanceSource {
	if log == nil {
		log = logger.GetLogger()
	}

	interval := cfg.KlineInterval
	if interval == "" {
		interval = "1m"
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = rps
	}

	client := binance.NewClient("", "")
	client.HTTPClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: &weightTransport{inner: http.DefaultTransport, log: log},
	}

	return &BinanceSource{
		client:   client,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		log:      log.WithComponent("history_binance"),
	}
}

func (s *BinanceSource) Ticks(ctx context.Context, pair string, from, to time.Time) ([]models.PriceTick, error) {
	symbol := pairSymbol(pair)
	interval, err := intervalDuration(s.interval)
	if err != nil {
		return nil, err
	}

	s.limitOnce.Do(func() { s.adjustToExchangeLimit(ctx) })

	var candles []candle
	start := from.UnixMilli()
	end := to.UnixMilli()

	for start < end {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("kline fetch aborted for %s: %w", pair, err)
		}

		klines, err := s.client.NewKlinesService().
			Symbol(symbol).
			Interval(s.interval).
			StartTime(start).
			EndTime(end).
			Limit(klinePageLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch klines for %s: %w", pair, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			close, err := strconv.ParseFloat(k.Close, 64)
			if err != nil {
				return nil, fmt.Errorf("corrupt kline close %q for %s: %w", k.Close, pair, err)
			}
			volume, err := strconv.ParseFloat(k.Volume, 64)
			if err != nil {
				return nil, fmt.Errorf("corrupt kline volume %q for %s: %w", k.Volume, pair, err)
			}
			candles = append(candles, candle{
				Timestamp: time.UnixMilli(k.CloseTime).UTC(),
				Close:     close,
				Volume:    volume,
			})
		}

		next := klines[len(klines)-1].CloseTime + 1
		if next <= start {
			break
		}
		start = next
	}

	s.log.WithFields(logger.Fields{
		"pair":    pair,
		"candles": len(candles),
		"from":    from,
		"to":      to,
	}).Info("backfilled klines")

	return enrichTicks(pair, candles, interval), nil
}

// pairSymbol converts the internal BASE-QUOTE pair form into the exchange
// symbol, e.g. BTC-USDT -> BTCUSDT.
func pairSymbol(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "-", ""))
}

func intervalDuration(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("kline interval '%s' is not supported", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("kline interval '%s' is not supported", interval)
	}
	switch interval[len(interval)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("kline interval '%s' is not supported", interval)
	}
}

// adjustToExchangeLimit caps the client-side page rate to the exchange's
// published REQUEST_WEIGHT budget so the configured rate can never outrun it.
func (s *BinanceSource) adjustToExchangeLimit(ctx context.Context) {
	limit, err := ratemetrics.FetchRequestWeightLimit(ctx, s.client)
	if err != nil {
		s.log.WithError(err).Warn("could not fetch exchange request weight limit")
		return
	}
	if limit <= 0 {
		return
	}
	allowed := rate.Limit(float64(limit) / 60.0 / klineRequestWeight)
	if allowed < s.limiter.Limit() {
		s.log.WithFields(logger.Fields{
			"weight_limit": limit,
			"pages_per_s":  float64(allowed),
		}).Info("lowering kline page rate to exchange weight budget")
		s.limiter.SetLimit(allowed)
	}
}

// weightTransport reports the exchange's used-weight headers on every REST
// response that carries them.
type weightTransport struct {
	inner http.RoundTripper
	log   *logger.Log
}

func (t *weightTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	ratemetrics.ReportKlineWeight(t.log, resp, req.URL.Host)
	return resp, nil
}
