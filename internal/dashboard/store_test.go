package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"botflow/internal/metrics"
)

func TestRingRetainsLastN(t *testing.T) {
	r := newRing[int](3)
	for i := 0; i < 7; i++ {
		r.push(i)
	}

	got := r.snapshot()
	if len(got) != 3 || got[0] != 4 || got[2] != 6 {
		t.Fatalf("unexpected ring contents: %v", got)
	}
}

func TestRingDefaultsLimit(t *testing.T) {
	r := newRing[string](0)
	if r.limit != defaultHistory {
		t.Fatalf("expected default limit %d, got %d", defaultHistory, r.limit)
	}
}

func TestRingSnapshotIsCopy(t *testing.T) {
	r := newRing[int](4)
	r.push(1)

	snap := r.snapshot()
	snap[0] = 99
	if r.snapshot()[0] != 1 {
		t.Fatalf("snapshot aliases ring storage")
	}
}

func TestMetricStoreHandle(t *testing.T) {
	store := newMetricStore(2)
	for i := 0; i < 5; i++ {
		store.handle(metrics.Metric{Timestamp: time.Unix(int64(i), 0), Name: "ticks_read", Value: i})
	}

	snap := store.snapshot()
	if len(snap) != 2 || snap[0].Value != 3 || snap[1].Value != 4 {
		t.Fatalf("unexpected metrics retained: %#v", snap)
	}
}

func logEntry(level logrus.Level, msg string, data logrus.Fields) *logrus.Entry {
	entry := logrus.NewEntry(logrus.New())
	entry.Time = time.Unix(10, 0)
	entry.Level = level
	entry.Message = msg
	entry.Data = data
	return entry
}

func TestLogStoreFire(t *testing.T) {
	store := newLogStore(3)
	entry := logEntry(logrus.WarnLevel, "reconnecting", logrus.Fields{
		"component": "feed_binance",
		"pair":      "BTC-USDT",
		"error":     errors.New("read timeout"),
	})

	if err := store.Fire(entry); err != nil {
		t.Fatalf("Fire returned error: %v", err)
	}

	snap := store.snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(snap))
	}
	record := snap[0]
	if record.Component != "feed_binance" || record.Level != "warning" || record.Message != "reconnecting" {
		t.Fatalf("unexpected record: %#v", record)
	}
	if record.Fields["pair"] != "BTC-USDT" {
		t.Fatalf("field lost: %#v", record.Fields)
	}
	// Errors are flattened to strings so the records marshal cleanly.
	if record.Fields["error"] != "read timeout" {
		t.Fatalf("error field not flattened: %#v", record.Fields["error"])
	}
	if _, ok := record.Fields["component"]; ok {
		t.Fatalf("component should be lifted out of fields: %#v", record.Fields)
	}
}

func TestLogStoreClose(t *testing.T) {
	store := newLogStore(2)
	if err := store.Fire(logEntry(logrus.InfoLevel, "before", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.close()
	if err := store.Fire(logEntry(logrus.InfoLevel, "after", nil)); err != nil {
		t.Fatalf("unexpected error after close: %v", err)
	}

	snap := store.snapshot()
	if len(snap) != 1 || snap[0].Message != "before" {
		t.Fatalf("store accepted entries after close: %#v", snap)
	}
}
