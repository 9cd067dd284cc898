package rate

import (
	"fmt"
	"strconv"
	"strings"

	"botflow/logger"
)

// ReportRateLimitExceeded increments the rate limit exceeded counter for the given
// data type and emits the metric to CloudWatch. Additional fields such as symbol,
// ip and type are attached to the log entry.
func ReportRateLimitExceeded(log *logger.Log, symbol, ip, dataType string) {
	component := fmt.Sprintf("binance_%s", strings.ToLower(dataType))
	l := log.WithComponent(component)
	fields := logger.Fields{
		"exchange": "binance",
		"symbol":   symbol,
		"ip":       ip,
		"type":     strings.ToLower(dataType),
	}
	l.LogMetric(component, "rate_limit_exceeded", int64(1), "counter", fields)
	l.WithFields(fields).Warn("rate limit exceeded")
}

// ReportIPBan increments the IP ban counter for the given data type and emits the
// metric to CloudWatch.
func ReportIPBan(log *logger.Log, symbol, ip, dataType string) {
	component := fmt.Sprintf("binance_%s", strings.ToLower(dataType))
	l := log.WithComponent(component)
	fields := logger.Fields{
		"exchange": "binance",
		"symbol":   symbol,
		"ip":       ip,
		"type":     strings.ToLower(dataType),
	}
	l.LogMetric(component, "ip_ban", int64(1), "counter", fields)
	l.WithFields(fields).Error("ip banned")
}

// detectLimit inspects the message returned from the exchange and determines
// whether it signals a rate limit exceed or an IP ban.
func detectLimit(msg string) (rateLimit bool, ipBan bool) {
	lowerMsg := strings.ToLower(msg)
	rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit")
	ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	if ipBan {
		rateLimit = false
	}
	return
}

// ReportLimitFromMessage checks the provided message for rate limit or IP ban
// events and records the appropriate metrics. Ban messages that embed a
// "banned until" epoch timestamp get it logged alongside the ban event.
func ReportLimitFromMessage(log *logger.Log, symbol, ip, dataType, msg string) {
	rateLimit, ipBan := detectLimit(msg)
	if rateLimit {
		ReportRateLimitExceeded(log, symbol, ip, dataType)
	}
	if ipBan {
		ReportIPBan(log, symbol, ip, dataType)
		if until := banUntil(msg); until > 0 {
			component := fmt.Sprintf("binance_%s", strings.ToLower(dataType))
			log.WithComponent(component).WithFields(logger.Fields{
				"ip":        ip,
				"ban_until": until,
			}).Warn("ban expiry reported by exchange")
		}
	}
}

// Epoch seconds for 2001-09-09; anything smaller is not a plausible ban
// expiry timestamp.
const minBanEpoch = 1_000_000_000

// banUntil pulls the ban expiry timestamp out of an exchange ban message,
// returning 0 when none is present.
func banUntil(msg string) int64 {
	for _, n := range extractInts(msg) {
		if n >= minBanEpoch {
			return n
		}
	}
	return 0
}

// extractInts returns all integer substrings contained in s, treating any
// non-digit run as a separator.
func extractInts(s string) []int64 {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r < '0' || r > '9'
	})
	nums := make([]int64, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.ParseInt(p, 10, 64); err == nil {
			nums = append(nums, n)
		}
	}
	return nums
}
