package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"botflow/config"
	"botflow/internal/backtest"
	"botflow/internal/history"
	"botflow/internal/writer"
	"botflow/logger"
	"botflow/models"
)

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	botsPath := flag.String("bots", "", "Path to bot definitions (overrides config)")
	botID := flag.String("bot", "", "Bot id to backtest")
	fromArg := flag.String("from", "", "Window start (RFC3339)")
	toArg := flag.String("to", "", "Window end (RFC3339, defaults to now)")
	outPath := flag.String("out", "", "Write the report JSON to this file instead of stdout")
	upload := flag.Bool("upload", false, "Also upload the report to S3")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	bot, err := findBot(cfg, *botsPath, *botID)
	if err != nil {
		log.WithError(err).Error("Failed to resolve bot")
		os.Exit(1)
	}

	from, to, err := parseWindow(*fromArg, *toArg)
	if err != nil {
		log.WithError(err).Error("Invalid time window")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	source, err := history.New(cfg.History, log)
	if err != nil {
		log.WithError(err).Error("Failed to create history source")
		os.Exit(1)
	}

	ticks, err := source.Ticks(ctx, bot.Pair, from, to)
	if err != nil {
		log.WithError(err).Error("Failed to load historical ticks")
		os.Exit(1)
	}

	runner := backtest.NewRunner(cfg.Engine.Balance, log)
	report, err := runner.Run(ctx, bot, ticks)
	if err != nil {
		log.WithError(err).Error("Backtest failed")
		os.Exit(1)
	}

	if err := emitReport(report, *outPath); err != nil {
		log.WithError(err).Error("Failed to write report")
		os.Exit(1)
	}

	if *upload {
		if !cfg.Storage.S3.Enabled {
			log.Error("cannot upload: storage.s3 is disabled in configuration")
			os.Exit(1)
		}
		reports, err := writer.NewReportStore(cfg)
		if err != nil {
			log.WithError(err).Error("Failed to create report store")
			os.Exit(1)
		}
		if err := reports.Put(ctx, report); err != nil {
			log.WithError(err).Error("Failed to upload report")
			os.Exit(1)
		}
	}
}

func findBot(cfg *config.Config, botsPath, botID string) (models.BotConfig, error) {
	if botID == "" {
		return models.BotConfig{}, fmt.Errorf("-bot is required")
	}

	botsFile := cfg.Botflow.BotsFile
	if botsPath != "" {
		botsFile = botsPath
	}
	bots, err := config.LoadBots(botsFile)
	if err != nil {
		return models.BotConfig{}, err
	}

	for _, bot := range bots {
		if bot.ID == botID {
			return bot, nil
		}
	}
	return models.BotConfig{}, fmt.Errorf("bot %q not found in %s", botID, botsFile)
}

func parseWindow(fromArg, toArg string) (time.Time, time.Time, error) {
	if fromArg == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("-from is required")
	}
	from, err := time.Parse(time.RFC3339, fromArg)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -from: %w", err)
	}

	to := time.Now().UTC()
	if toArg != "" {
		to, err = time.Parse(time.RFC3339, toArg)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to: %w", err)
		}
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to must be after -from")
	}
	return from, to, nil
}

func emitReport(report *models.BacktestReport, outPath string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if outPath == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}
