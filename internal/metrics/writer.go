package metrics

import "botflow/logger"

// WriterStats is the periodic counter snapshot a writer component reports,
// covering the parquet trade writer and the report store.
type WriterStats struct {
	BatchesWritten int64
	FilesWritten   int64
	BytesWritten   int64
	ErrorsCount    int64
	NormChannelLen int
	NormChannelCap int
}

// ReportWriter emits the standard writer metric set plus one summary log
// line. A non-zero error count raises the summary to warn level.
func ReportWriter(log *logger.Log, component string, stats WriterStats) {
	l := log.WithComponent(component)

	var errorRate float64
	if attempts := stats.BatchesWritten + stats.ErrorsCount; attempts > 0 {
		errorRate = float64(stats.ErrorsCount) / float64(attempts)
	}
	var avgBytesPerFile float64
	if stats.FilesWritten > 0 {
		avgBytesPerFile = float64(stats.BytesWritten) / float64(stats.FilesWritten)
	}

	emit := []struct {
		name  string
		value interface{}
		typ   string
	}{
		{"batches_written", stats.BatchesWritten, "counter"},
		{"files_written", stats.FilesWritten, "counter"},
		{"bytes_written", stats.BytesWritten, "counter"},
		{"errors_count", stats.ErrorsCount, "counter"},
		{"error_rate", errorRate, "gauge"},
		{"avg_bytes_per_file", avgBytesPerFile, "gauge"},
		{"norm_channel_len", stats.NormChannelLen, "gauge"},
	}
	for _, m := range emit {
		l.LogMetric(component, m.name, m.value, m.typ, logger.Fields{})
	}

	summary := l.WithFields(logger.Fields{
		"batches_written":    stats.BatchesWritten,
		"files_written":      stats.FilesWritten,
		"bytes_written":      stats.BytesWritten,
		"errors_count":       stats.ErrorsCount,
		"error_rate":         errorRate,
		"avg_bytes_per_file": avgBytesPerFile,
		"norm_channel_len":   stats.NormChannelLen,
		"norm_channel_cap":   stats.NormChannelCap,
	})
	if stats.ErrorsCount > 0 {
		summary.Warn(component + " metrics")
		return
	}
	summary.Info(component + " metrics")
}
