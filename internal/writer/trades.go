package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go/parquet"
	parquetwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "botflow/config"
	"botflow/internal/metadata"
	"botflow/internal/metrics"
	"botflow/logger"
	"botflow/models"
)

const (
	tradeFlushInterval    = time.Minute
	metricsReportInterval = 30 * time.Second
)

// tradeRecord is the parquet row shape for one executed trade.
type tradeRecord struct {
	ID          string  `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	BotID       string  `parquet:"name=bot_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Pair        string  `parquet:"name=pair, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp   int64   `parquet:"name=timestamp, type=INT64"`
	Action      string  `parquet:"name=action, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price       float64 `parquet:"name=price, type=DOUBLE"`
	Quantity    float64 `parquet:"name=quantity, type=DOUBLE"`
	Total       float64 `parquet:"name=total, type=DOUBLE"`
	TriggeredBy string  `parquet:"name=triggered_by, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// TradeWriter drains executed trades off the trade channel, buffers them per
// pair and flushes each buffer to S3 as a parquet file on an interval and on
// shutdown.
type TradeWriter struct {
	config      *appconfig.Config
	trades      <-chan models.Trade
	s3Client    *s3.Client
	ctx         context.Context
	wg          *sync.WaitGroup
	mu          sync.RWMutex
	running     bool
	log         *logger.Log
	buffer      map[string][]models.Trade
	flushTicker *time.Ticker
	metaGen     *metadata.Generator

	batchesWritten int64
	filesWritten   int64
	bytesWritten   int64
	errorsCount    int64

	uploadFunc func(ctx context.Context, key string, data []byte) error
}

func NewTradeWriter(cfg *appconfig.Config, trades <-chan models.Trade) (*TradeWriter, error) {
	log := logger.GetLogger()

	s3Client, err := newS3Client(cfg)
	if err != nil {
		return nil, err
	}

	metaDir, err := os.MkdirTemp("", "iceberg")
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	w := &TradeWriter{
		config:   cfg,
		trades:   trades,
		s3Client: s3Client,
		wg:       &sync.WaitGroup{},
		log:      log,
		buffer:   make(map[string][]models.Trade),
		metaGen:  metadata.NewGenerator(metaDir, "trades"),
	}
	w.uploadFunc = w.uploadToS3

	log.WithComponent("trade_writer").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("trade writer initialized")

	return w, nil
}

func newS3Client(cfg *appconfig.Config) (*s3.Client, error) {
	ctx := context.Background()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	}), nil
}

func (w *TradeWriter) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("trade writer already running")
	}
	w.running = true
	w.ctx = ctx
	w.mu.Unlock()

	log := w.log.WithComponent("trade_writer")
	log.Info("starting trade writer")

	w.flushTicker = time.NewTicker(tradeFlushInterval)

	w.wg.Add(1)
	go w.worker()
	w.wg.Add(1)
	go w.flushWorker()
	w.wg.Add(1)
	go w.metricsReporter()

	log.Info("trade writer started")
	return nil
}

func (w *TradeWriter) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	w.log.WithComponent("trade_writer").Info("stopping trade writer")
	w.wg.Wait()
	w.log.WithComponent("trade_writer").Info("trade writer stopped")
}

func (w *TradeWriter) worker() {
	defer w.wg.Done()

	log := w.log.WithComponent("trade_writer").WithFields(logger.Fields{"worker": "drain"})

	for {
		select {
		case <-w.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case trade, ok := <-w.trades:
			if !ok {
				log.Info("trade channel closed, worker stopping")
				return
			}
			w.addTrade(trade)
		}
	}
}

func (w *TradeWriter) addTrade(trade models.Trade) {
	w.mu.Lock()
	w.buffer[trade.Pair] = append(w.buffer[trade.Pair], trade)
	w.mu.Unlock()
}

func (w *TradeWriter) flushWorker() {
	defer w.wg.Done()

	log := w.log.WithComponent("trade_writer").WithFields(logger.Fields{"worker": "flush"})
	log.Info("starting flush worker")

	for {
		select {
		case <-w.ctx.Done():
			w.flushBuffers("shutdown")
			log.Info("flush worker stopped due to context cancellation")
			return
		case <-w.flushTicker.C:
			w.flushBuffers("interval")
		}
	}
}

func (w *TradeWriter) flushBuffers(reason string) {
	w.mu.Lock()
	buffers := w.buffer
	w.buffer = make(map[string][]models.Trade)
	w.mu.Unlock()

	if len(buffers) == 0 {
		return
	}

	w.log.WithComponent("trade_writer").WithFields(logger.Fields{
		"flushed_buffers": len(buffers),
		"reason":          reason,
	}).Info("flushing trade buffers")

	for pair, trades := range buffers {
		if len(trades) == 0 {
			continue
		}
		w.processBatch(pair, trades)
	}
}

func (w *TradeWriter) processBatch(pair string, trades []models.Trade) {
	log := w.log.WithComponent("trade_writer").WithFields(logger.Fields{
		"pair":         pair,
		"record_count": len(trades),
	})

	s3Key := w.generateS3Key(pair, trades[len(trades)-1].Timestamp)
	log = log.WithFields(logger.Fields{"s3_key": s3Key})

	data, err := createParquetFile(trades)
	if err != nil {
		atomic.AddInt64(&w.errorsCount, 1)
		log.WithError(err).Error("failed to create parquet file")
		return
	}

	// The shutdown flush runs after w.ctx is cancelled; detach so the final
	// batch still reaches S3.
	if err := w.uploadFunc(context.WithoutCancel(w.ctx), s3Key, data); err != nil {
		atomic.AddInt64(&w.errorsCount, 1)
		log.WithError(err).
			WithEnv("S3_BUCKET").
			WithFields(logger.Fields{"bucket": w.config.Storage.S3.Bucket}).
			Error("failed to upload trades to S3")
		return
	}

	atomic.AddInt64(&w.batchesWritten, 1)
	atomic.AddInt64(&w.filesWritten, 1)
	atomic.AddInt64(&w.bytesWritten, int64(len(data)))
	logger.IncrementS3WriteTrades(int64(len(data)))

	log.WithFields(logger.Fields{"file_size": len(data)}).Info("trade batch uploaded")

	if w.metaGen != nil {
		df := metadata.DataFile{
			Path:        fmt.Sprintf("s3://%s/%s", w.config.Storage.S3.Bucket, s3Key),
			FileSize:    int64(len(data)),
			RecordCount: int64(len(trades)),
			Partition: map[string]any{
				"pair": pair,
				"date": trades[len(trades)-1].Timestamp.UTC().Format("2006-01-02"),
			},
			Timestamp: trades[len(trades)-1].Timestamp,
		}
		if err := w.metaGen.AddFile(df); err != nil {
			log.WithError(err).Warn("failed to update table metadata")
		}
	}
}

func (w *TradeWriter) generateS3Key(pair string, ts time.Time) string {
	ts = ts.UTC()
	key := filepath.Join(
		"trades",
		fmt.Sprintf("pair=%s", pair),
		fmt.Sprintf("%04d/%02d/%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("trades_%s_%s.parquet", pair, ts.Format("20060102150405")),
	)
	return filepath.ToSlash(key)
}

func createParquetFile(trades []models.Trade) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := parquetwriter.NewParquetWriter(fw, new(tradeRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, trade := range trades {
		record := tradeRecord{
			ID:          trade.ID,
			BotID:       trade.BotID,
			Pair:        trade.Pair,
			Timestamp:   trade.Timestamp.UnixMilli(),
			Action:      string(trade.Action),
			Price:       trade.Price,
			Quantity:    trade.Quantity,
			Total:       trade.Total,
			TriggeredBy: string(trade.TriggeredBy),
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet file: %w", err)
	}

	return fw.Bytes(), nil
}

func (w *TradeWriter) uploadToS3(ctx context.Context, key string, data []byte) error {
	_, err := w.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.config.Storage.S3.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (w *TradeWriter) metricsReporter() {
	defer w.wg.Done()

	ticker := time.NewTicker(metricsReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.reportMetrics()
		}
	}
}

func (w *TradeWriter) reportMetrics() {
	w.mu.RLock()
	buffered := 0
	for _, trades := range w.buffer {
		buffered += len(trades)
	}
	w.mu.RUnlock()

	metrics.ReportWriter(w.log, "trade_writer", metrics.WriterStats{
		BatchesWritten: atomic.LoadInt64(&w.batchesWritten),
		FilesWritten:   atomic.LoadInt64(&w.filesWritten),
		BytesWritten:   atomic.LoadInt64(&w.bytesWritten),
		ErrorsCount:    atomic.LoadInt64(&w.errorsCount),
		NormChannelLen: buffered,
	})
}
