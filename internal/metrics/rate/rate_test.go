package rate

import (
	"net/http"
	"testing"

	"botflow/logger"
)

func TestReportKlineWeight(t *testing.T) {
	log := logger.GetLogger()
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("X-MBX-USED-WEIGHT-1m", "42")
	weight, reported := ReportKlineWeight(log, resp, "127.0.0.1")
	if !reported {
		t.Fatal("expected weight metric to be reported")
	}
	if weight != 42 {
		t.Fatalf("expected weight 42, got %v", weight)
	}
}

func TestWSWeightTracker(t *testing.T) {
	tracker := NewWSWeightTracker()
	tracker.RegisterOutgoing(50)
	tracker.RegisterConnectionAttempt()
	msgs, attempts := tracker.Stats()
	if msgs != 50 || attempts != 1 {
		t.Fatalf("unexpected tracker stats: msgs=%d attempts=%d", msgs, attempts)
	}
	ReportWSWeight(logger.GetLogger(), tracker, "")
}

func TestReportRateLimitExceeded(t *testing.T) {
	log := logger.GetLogger()
	ReportRateLimitExceeded(log, "BTCUSDT", "127.0.0.1", "ticker")
}

func TestReportIPBan(t *testing.T) {
	log := logger.GetLogger()
	ReportIPBan(log, "BTCUSDT", "127.0.0.1", "ticker")
}

func TestDetectLimit(t *testing.T) {
	cases := []struct {
		msg  string
		rate bool
		ban  bool
	}{
		{"Too many requests", true, false},
		{"Way too much traffic, your IP has been banned", false, true},
		{"429 rate limit reached", true, false},
		{"hello world", false, false},
	}
	for _, c := range cases {
		rl, ban := detectLimit(c.msg)
		if rl != c.rate {
			t.Errorf("msg %q: expected rateLimit %v got %v", c.msg, c.rate, rl)
		}
		if ban != c.ban {
			t.Errorf("msg %q: expected ipBan %v got %v", c.msg, c.ban, ban)
		}
	}
}

func TestExtractInts(t *testing.T) {
	nums := extractInts("ban until 1699999999 ip 1.2.3.4")
	if len(nums) != 5 {
		t.Fatalf("expected 5 integers, got %v", nums)
	}
	if nums[0] != 1699999999 {
		t.Fatalf("expected first integer 1699999999, got %d", nums[0])
	}
}
