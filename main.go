package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"botflow/config"
	"botflow/internal/backtest"
	"botflow/internal/cache"
	"botflow/internal/channel"
	"botflow/internal/dashboard"
	"botflow/internal/feed"
	"botflow/internal/live"
	"botflow/internal/metrics"
	"botflow/internal/store"
	"botflow/internal/writer"
	"botflow/logger"
	"botflow/models"
)

// channelSink forwards fired trades onto the shared trade channel so the
// S3 writer picks them up. A full channel surfaces as an error so the
// executor leaves the bot's state un-advanced and re-derives the decision
// on the next tick.
type channelSink struct {
	channels *channel.Channels
	log      *logger.Log
}

func (s *channelSink) Append(ctx context.Context, trade models.Trade) error {
	if !s.channels.SendTrade(ctx, trade) {
		metrics.EmitDropMetric(s.log, metrics.DropMetricTrade, trade.Pair, trade.BotID, "executor")
		return fmt.Errorf("trade channel full, dropping trade %s", trade.ID)
	}
	logger.IncrementTradeExecuted(1)
	return nil
}

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	botsPath := flag.String("bots", "", "Path to bot definitions (overrides config)")
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

	metrics.Configure(cfg.Metrics)
	if cfg.Storage.S3.Region != "" {
		metrics.InitCloudWatch(cfg.Storage.S3.Region, "", cfg.Logging.DashboardName)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Botflow.Name,
		"version": cfg.Botflow.Version,
	}).Info("starting botflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	botsFile := cfg.Botflow.BotsFile
	if *botsPath != "" {
		botsFile = *botsPath
	}
	bots, err := config.LoadBots(botsFile)
	if err != nil {
		if config.IsProductionLike(config.AppEnvironment()) {
			log.WithError(err).Error("Failed to load bot definitions")
			os.Exit(1)
		}
		log.WithError(err).Warn("Running without bot definitions")
	}
	log.WithField("bots", len(bots)).Info("loaded bot definitions")

	channels := channel.NewChannels(
		cfg.Channels.TickBuffer,
		cfg.Channels.TradeBuffer,
	)
	defer channels.Close()

	metrics.StartChannelSizeMetrics(ctx, channels, 30*time.Second)

	window, err := cache.New(cfg.Cache)
	if err != nil {
		log.WithError(err).Error("Failed to create close-window cache")
		os.Exit(1)
	}

	balance := cfg.Engine.Balance
	if balance <= 0 {
		balance = backtest.DefaultBalance
	}

	states := store.NewStateStore()

	var sink live.TradeSink
	var tradeWriter *writer.TradeWriter
	if cfg.Storage.S3.Enabled {
		tradeWriter, err = writer.NewTradeWriter(cfg, channels.Trades)
		if err != nil {
			log.WithError(err).Error("Failed to create trade writer")
			os.Exit(1)
		}
		sink = &channelSink{channels: channels, log: log}
	} else {
		log.WithComponent("main").Info("S3 storage disabled; keeping trades in memory")
		sink = store.NewTradeLog()
	}

	executor := live.NewExecutor(balance, states, sink, cfg.Engine.MaxWorkers, log)

	marketFeed := feed.NewFeed(cfg, channels, window)
	if err := marketFeed.Start(ctx); err != nil {
		log.WithError(err).Error("Failed to start feed")
		os.Exit(1)
	}

	if tradeWriter != nil {
		if err := tradeWriter.Start(ctx); err != nil {
			log.WithError(err).Error("Failed to start trade writer")
			os.Exit(1)
		}
	}

	dash, err := dashboard.NewServer(cfg.Dashboard, log)
	if err != nil {
		log.WithError(err).Error("Failed to create dashboard server")
		os.Exit(1)
	}
	if dash != nil {
		go func() {
			if err := dash.Run(ctx, cfg.Botflow.Name); err != nil {
				log.WithError(err).Warn("dashboard server exited")
			}
		}()
		log.WithField("address", dash.Address()).Info("dashboard enabled")
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case tick, ok := <-channels.Ticks:
				if !ok {
					return
				}
				executor.Process(ctx, tick, bots)
			}
		}
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping feed")
	marketFeed.Stop()

	if tradeWriter != nil {
		log.Info("stopping trade writer")
		tradeWriter.Stop()
	}

	log.Info("shutdown complete")
}
