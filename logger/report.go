package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net" //cloudwatch

	"github.com/aws/aws-sdk-go-v2/aws"                              //cloudwatch
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types" //cloudwatch
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsFeed     int64
	errorsExecutor int64
	warnsFeed      int64
	warnsExecutor  int64
	ticksRead      int64
	tradesExecuted int64
	s3WritesTrades int64
	s3WritesReport int64
	channels       sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&warnsFeed, 1)
	} else if strings.Contains(component, "executor") {
		atomic.AddInt64(&warnsExecutor, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&errorsFeed, 1)
	} else if strings.Contains(component, "executor") {
		atomic.AddInt64(&errorsExecutor, 1)
	}
}

func IncrementTickRead(size int) {
	atomic.AddInt64(&ticksRead, 1)
	recordChannel("tick_ws", size)
}

func IncrementTradeExecuted(size int) {
	atomic.AddInt64(&tradesExecuted, 1)
	recordChannel("trade_out", size)
}

func IncrementS3WriteTrades(size int64) {
	atomic.AddInt64(&s3WritesTrades, 1)
	recordChannel("s3_trade_write", int(size))
}

func IncrementS3WriteReport(size int64) {
	atomic.AddInt64(&s3WritesReport, 1)
	recordChannel("s3_report_write", int(size))
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and channel statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_feed":       atomic.LoadInt64(&errorsFeed),
		"errors_executor":   atomic.LoadInt64(&errorsExecutor),
		"warns_feed":        atomic.LoadInt64(&warnsFeed),
		"warns_executor":    atomic.LoadInt64(&warnsExecutor),
		"ticks_read":        atomic.LoadInt64(&ticksRead),
		"trades_executed":   atomic.LoadInt64(&tradesExecuted),
		"s3_writes_trades":  atomic.LoadInt64(&s3WritesTrades),
		"s3_writes_reports": atomic.LoadInt64(&s3WritesReport),
		"goroutines":        runtime.NumGoroutine(),
		"cpu_percent":       cpuPct,
		"memory_mb":         int64(memStats.Used) / 1024 / 1024,
		"disk_mb":           int64(diskStats.Used) / 1024 / 1024,
		"channels":          channelData,
		"net_bytes_sent":    int64(bytesSent),
		"net_bytes_recv":    int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-ErrorsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_feed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-ErrorsExecutor"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_executor"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-WarnsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_feed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-WarnsExecutor"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_executor"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-TicksRead"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["ticks_read"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-TradesExecuted"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["trades_executed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-S3WritesTrades"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["s3_writes_trades"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-S3WritesReports"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["s3_writes_reports"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("Botflow-NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("Botflow-ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("Botflow-ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
