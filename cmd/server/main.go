// Package main provides the entry point for the fund trading backend server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fundpilot/trading-backend/internal/api"
	"github.com/fundpilot/trading-backend/internal/backtest"
	"github.com/fundpilot/trading-backend/internal/broker"
	"github.com/fundpilot/trading-backend/internal/config"
	"github.com/fundpilot/trading-backend/internal/execution"
	"github.com/fundpilot/trading-backend/internal/market"
	"github.com/fundpilot/trading-backend/internal/notifier"
	"github.com/fundpilot/trading-backend/internal/position"
	"github.com/fundpilot/trading-backend/internal/rebalance"
	"github.com/fundpilot/trading-backend/internal/scheduler"
	"github.com/fundpilot/trading-backend/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting fund trading backend",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", storageLabel(cfg.Storage.Path)),
	)

	// Storage backends: SQLite when a path is configured, in-memory otherwise.
	var (
		navStore     api.NavRecorder
		dataPort     market.DataPort
		strategies   storage.StrategyRepo
		positions    storage.PositionRepo
		transactions storage.TransactionRepo
	)
	if cfg.Storage.Path != "" {
		db, err := storage.Open(logger, cfg.Storage.Path)
		if err != nil {
			logger.Fatal("failed to open storage", zap.Error(err))
		}
		defer db.Close()

		sqliteNav, err := market.NewSQLiteStore(logger, db)
		if err != nil {
			logger.Fatal("failed to initialize nav store", zap.Error(err))
		}
		navStore = sqliteNav
		dataPort = sqliteNav
		strategies = storage.NewSQLiteStrategyRepo(db)
		positions = storage.NewSQLitePositionRepo(db)
		transactions = storage.NewSQLiteTransactionRepo(db)
	} else {
		memNav := market.NewMemoryStore()
		navStore = memNav
		dataPort = memNav
		strategies = storage.NewMemoryStrategyRepo()
		positions = storage.NewMemoryPositionRepo()
		transactions = storage.NewMemoryTransactionRepo()
	}

	// Notifications: always log, optionally webhook, always WebSocket.
	notifiers := notifier.Multi{notifier.NewLogNotifier(logger)}
	if cfg.Notifier.WebhookURL != "" {
		notifiers = append(notifiers, notifier.NewWebhookNotifier(logger, cfg.Notifier.WebhookURL, cfg.Notifier.Timeout))
	}

	paperBroker := broker.NewPaperBroker(logger, dataPort, cfg.Broker.SettleDelay)
	positionService := position.NewService(logger, positions, dataPort)
	simulator := backtest.NewSimulator(logger)
	planner := rebalance.NewPlanner(logger, positions, dataPort)

	server := api.NewServer(logger, &cfg.Server, dataPort, navStore, simulator,
		strategies, positions, transactions, planner)
	notifiers = append(notifiers, server)

	executor := execution.NewExecutor(logger, paperBroker, dataPort,
		strategies, transactions, positions, notifiers)
	confirmer := execution.NewConfirmer(logger, paperBroker, transactions,
		positionService, notifiers)

	sched := scheduler.New(logger, executor, confirmer, positionService)
	if err := sched.Start(cfg.Scheduler); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	var metricsServer *http.Server
	if cfg.Server.EnableMetrics {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
			Handler: mux,
		}
		go func() {
			logger.Info("metrics server listening", zap.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	logger.Info("server started",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", cfg.Server.Host, cfg.Server.Port)),
		zap.String("ws", fmt.Sprintf("ws://%s:%d%s", cfg.Server.Host, cfg.Server.Port, cfg.Server.WebSocketPath)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during metrics server shutdown", zap.Error(err))
		}
	}
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func storageLabel(path string) string {
	if path == "" {
		return "memory"
	}
	return path
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
