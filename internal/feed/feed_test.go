package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	appconfig "botflow/config"
	"botflow/internal/cache"
	"botflow/internal/channel"
)

func newTestFeed(tickBuffer int) *Feed {
	cfg := &appconfig.Config{}
	cfg.Feed.Enabled = true
	cfg.Feed.Pairs = []string{"BTC-USDT"}

	f := NewFeed(cfg, channel.NewChannels(tickBuffer, 1), cache.NewMemoryWindow(50, 0))
	f.ctx = context.Background()
	return f
}

func TestHandleMessagePublishesEnrichedTick(t *testing.T) {
	f := newTestFeed(4)

	raw := []byte(`{"e":"24hrMiniTicker","E":1709294400000,"s":"BTCUSDT","c":"42000.5","o":"40000","h":"42500","l":"39800","v":"1234.5","q":"50000000"}`)

	var lastEmit time.Time
	if !f.handleMessage("BTC-USDT", raw, &lastEmit, 0) {
		t.Fatal("expected tick to be published")
	}

	select {
	case tick := <-f.channels.Ticks:
		if tick.Pair != "BTC-USDT" {
			t.Errorf("unexpected pair: %s", tick.Pair)
		}
		if tick.Price != 42000.5 {
			t.Errorf("unexpected price: %v", tick.Price)
		}
		if tick.Volume24h != 1234.5 {
			t.Errorf("unexpected volume: %v", tick.Volume24h)
		}
		wantChange := (42000.5 - 40000.0) / 40000.0 * 100
		if diff := tick.PriceChangePct - wantChange; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("unexpected change pct: %v, want %v", tick.PriceChangePct, wantChange)
		}
		if tick.Indicators.Price != 42000.5 {
			t.Errorf("indicators not computed from tick price: %v", tick.Indicators.Price)
		}
		if !tick.Timestamp.Equal(time.UnixMilli(1709294400000).UTC()) {
			t.Errorf("unexpected timestamp: %v", tick.Timestamp)
		}
	default:
		t.Fatal("no tick on channel")
	}
}

func TestHandleMessageIgnoresMalformedPayload(t *testing.T) {
	f := newTestFeed(4)

	var lastEmit time.Time
	if f.handleMessage("BTC-USDT", []byte("{not json"), &lastEmit, 0) {
		t.Fatal("malformed payload should not publish")
	}
	if f.handleMessage("BTC-USDT", []byte(`{"c":"0"}`), &lastEmit, 0) {
		t.Fatal("zero price should not publish")
	}
	if len(f.channels.Ticks) != 0 {
		t.Fatalf("expected empty channel, got %d ticks", len(f.channels.Ticks))
	}
}

func TestHandleMessageThrottlesByInterval(t *testing.T) {
	f := newTestFeed(8)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	frame := func(offset time.Duration) []byte {
		ts := base.Add(offset).UnixMilli()
		return []byte(`{"E":` + strconv.FormatInt(ts, 10) + `,"s":"BTCUSDT","c":"42000","o":"40000","v":"1"}`)
	}

	var lastEmit time.Time
	gap := 5 * time.Second

	if !f.handleMessage("BTC-USDT", frame(0), &lastEmit, gap) {
		t.Fatal("first update should publish")
	}
	if f.handleMessage("BTC-USDT", frame(2*time.Second), &lastEmit, gap) {
		t.Fatal("update inside the interval should be skipped")
	}
	if !f.handleMessage("BTC-USDT", frame(6*time.Second), &lastEmit, gap) {
		t.Fatal("update past the interval should publish")
	}
	if got := len(f.channels.Ticks); got != 2 {
		t.Fatalf("expected 2 published ticks, got %d", got)
	}
}

func wsTestServer(t *testing.T, handler func(*websocket.Conn)) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial test server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPingLoopSendsPings(t *testing.T) {
	origInterval := keepAliveInterval
	keepAliveInterval = 20 * time.Millisecond
	t.Cleanup(func() { keepAliveInterval = origInterval })

	pings := make(chan struct{}, 4)
	conn := wsTestServer(t, func(server *websocket.Conn) {
		server.SetPingHandler(func(string) error {
			select {
			case pings <- struct{}{}:
			default:
			}
			return nil
		})
		for {
			if _, _, err := server.ReadMessage(); err != nil {
				return
			}
		}
	})

	f := newTestFeed(1)
	cancel := f.startPingLoop(conn, f.log.WithComponent("feed"))
	defer cancel()

	select {
	case <-pings:
	case <-time.After(time.Second):
		t.Fatal("no ping received within the keepalive interval")
	}
}

func TestSilentPeerBreaksRead(t *testing.T) {
	origInterval, origTimeout := keepAliveInterval, pongTimeout
	keepAliveInterval = 10 * time.Millisecond
	pongTimeout = 50 * time.Millisecond
	t.Cleanup(func() {
		keepAliveInterval, pongTimeout = origInterval, origTimeout
	})

	// The server upgrades but never reads, so pings are never answered and
	// no data arrives.
	release := make(chan struct{})
	conn := wsTestServer(t, func(*websocket.Conn) {
		<-release
	})
	// Unblock the handler before the server's Close cleanup runs.
	t.Cleanup(func() { close(release) })

	f := newTestFeed(1)
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	cancel := f.startPingLoop(conn, f.log.WithComponent("feed"))
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, _, err := conn.ReadMessage()
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected the read to fail on a silent peer")
		}
	case <-time.After(time.Second):
		t.Fatal("read did not break on a silent peer")
	}
}

func TestHandleMessageCountsDropsWhenChannelFull(t *testing.T) {
	f := newTestFeed(1)

	raw := []byte(`{"E":1709294400000,"s":"BTCUSDT","c":"42000","o":"40000","v":"1"}`)

	var lastEmit time.Time
	if !f.handleMessage("BTC-USDT", raw, &lastEmit, 0) {
		t.Fatal("first tick should publish")
	}
	if f.handleMessage("BTC-USDT", raw, &lastEmit, 0) {
		t.Fatal("second tick should drop on full channel")
	}

	stats := f.channels.GetStats()
	if stats.TicksSent != 1 || stats.TicksDropped != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
