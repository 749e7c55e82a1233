package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Memesold/vk-tg-repost-bot/internal/config"
	"github.com/Memesold/vk-tg-repost-bot/internal/constants"
	"github.com/Memesold/vk-tg-repost-bot/internal/database"
	"github.com/Memesold/vk-tg-repost-bot/internal/retry"
	"github.com/Memesold/vk-tg-repost-bot/internal/service"
	"github.com/Memesold/vk-tg-repost-bot/internal/tracing"
	"github.com/Memesold/vk-tg-repost-bot/pkg/telegram"
	tgtypes "github.com/Memesold/vk-tg-repost-bot/pkg/telegram/types"
	"github.com/Memesold/vk-tg-repost-bot/pkg/vk"
	vktypes "github.com/Memesold/vk-tg-repost-bot/pkg/vk/types"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("vk-tg-repost %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting vk-tg-repost")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			if level > logrus.InfoLevel {
				level = logrus.InfoLevel
			}
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Initialize OpenTelemetry tracing
	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	newVK := func(accessToken, ownerID string) vk.Client {
		return vk.NewClientWithLogger(vktypes.ClientConfig{
			BaseURL:     cfg.VK.APIBaseURL,
			AccessToken: accessToken,
			OwnerID:     ownerID,
			APIVersion:  cfg.VK.APIVersion,
			Window:      cfg.VK.FetchWindow,
			Timeout:     time.Duration(cfg.VK.HTTPTimeoutSec) * time.Second,
		}, logger)
	}
	newTG := func(botToken string) telegram.Client {
		return telegram.NewClientWithLogger(tgtypes.ClientConfig{
			BaseURL:  cfg.Telegram.APIBaseURL,
			BotToken: botToken,
			Timeout:  time.Duration(cfg.Telegram.HTTPTimeoutSec) * time.Second,
		}, logger)
	}

	// Watch the config file and log changes that need a restart
	configWatcher := config.NewConfigWatcher(*configPath, logger)
	go func() {
		if err := configWatcher.Start(ctx); err != nil {
			logger.Warnf("Configuration watcher failed: %v", err)
		}
	}()

	syncer := service.NewSyncer(db, newVK, newTG, cfg.Sync, logger)

	ctxWithVerbose := context.WithValue(ctx, service.VerboseContextKey, *verbose)

	scheduler := service.NewScheduler(syncer, cfg.Sync, logger)
	go scheduler.Start(ctxWithVerbose)
	defer scheduler.Stop()

	controlClient := newTG(cfg.Telegram.ControlBotToken)
	menuBot := service.NewMenuBot(controlClient, db, syncer, newVK, newTG, cfg, logger)
	if err := menuBot.Start(ctxWithVerbose); err != nil {
		return fmt.Errorf("failed to start menu bot: %w", err)
	}
	defer menuBot.Stop()

	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	var server *Server
	if cfg.Server.Enabled {
		server = NewServer(cfg, db, logger)
		go func() {
			if err := server.Start(); err != nil {
				serverErrCh <- fmt.Errorf("server error: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server gracefully: %w", err)
		}
	}

	logger.Info("Shutdown completed")
	return nil
}
