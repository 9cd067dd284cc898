package channel

import (
	"context"
	"testing"
	"time"

	"botflow/models"
)

func TestChannelsSendTick(t *testing.T) {
	ch := NewChannels(1, 1)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tick := models.PriceTick{Pair: "BTC-USDT", Price: 50_000, Timestamp: time.Now()}
	if !ch.SendTick(ctx, tick) {
		t.Fatalf("expected send to succeed")
	}
	if stats := ch.GetStats(); stats.TicksSent != 1 {
		t.Fatalf("expected tick sent counter to be 1, got %d", stats.TicksSent)
	}

	// buffer full should increment dropped counter
	if ch.SendTick(ctx, tick) {
		t.Fatalf("expected send to fail due to full buffer")
	}
	if stats := ch.GetStats(); stats.TicksDropped != 1 {
		t.Fatalf("expected tick dropped counter to be 1, got %d", stats.TicksDropped)
	}
}

func TestChannelsSendTrade(t *testing.T) {
	ch := NewChannels(1, 1)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	trade := models.Trade{ID: "t-1", BotID: "bot-1", Pair: "BTC-USDT", Action: models.ActionBuy}
	if !ch.SendTrade(ctx, trade) {
		t.Fatalf("expected send to succeed")
	}
	if ch.SendTrade(ctx, trade) {
		t.Fatalf("expected send to fail due to full buffer")
	}
	stats := ch.GetStats()
	if stats.TradesSent != 1 || stats.TradesDropped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestChannelsStartAndClose(t *testing.T) {
	ch := NewChannels(1, 1)
	ch.Close()
}
