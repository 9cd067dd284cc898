package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "botflow/config"
	"botflow/logger"
	"botflow/models"
)

// ReportStore uploads finished backtest reports as JSON documents. Reports
// are written once and never updated.
type ReportStore struct {
	config   *appconfig.Config
	s3Client *s3.Client
	log      *logger.Log

	uploadFunc func(ctx context.Context, key string, data []byte) error
}

func NewReportStore(cfg *appconfig.Config) (*ReportStore, error) {
	s3Client, err := newS3Client(cfg)
	if err != nil {
		return nil, err
	}

	store := &ReportStore{
		config:   cfg,
		s3Client: s3Client,
		log:      logger.GetLogger(),
	}
	store.uploadFunc = store.uploadToS3
	return store, nil
}

func (s *ReportStore) Put(ctx context.Context, report *models.BacktestReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report %s: %w", report.ID, err)
	}

	key := reportKey(report)
	if err := s.uploadFunc(ctx, key, data); err != nil {
		return fmt.Errorf("failed to store report %s: %w", report.ID, err)
	}

	logger.IncrementS3WriteReport(int64(len(data)))
	s.log.WithComponent("report_store").WithFields(logger.Fields{
		"report_id": report.ID,
		"bot_id":    report.BotID,
		"s3_key":    key,
		"size":      len(data),
	}).Info("report uploaded")
	return nil
}

func reportKey(report *models.BacktestReport) string {
	start := report.WindowStart.UTC()
	key := filepath.Join(
		"reports",
		fmt.Sprintf("bot_id=%s", report.BotID),
		fmt.Sprintf("%04d/%02d", start.Year(), start.Month()),
		fmt.Sprintf("%s.json", report.ID),
	)
	return filepath.ToSlash(key)
}

func (s *ReportStore) uploadToS3(ctx context.Context, key string, data []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}
