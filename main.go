package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/voicestack/voicestack/config"
	"github.com/voicestack/voicestack/internal/cron"
	"github.com/voicestack/voicestack/internal/health"
	"github.com/voicestack/voicestack/internal/logger"
	"github.com/voicestack/voicestack/internal/metrics"
	"github.com/voicestack/voicestack/services/processor"
	"github.com/voicestack/voicestack/services/transcriber"
)

func main() {
	app := &cli.App{
		Name:  "voicestack",
		Usage: "voicemail transcription mail relay",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start the processing loop",
				Action: runService,
			},
			{
				Name:   "config-check",
				Usage:  "Validate the configuration and exit",
				Action: checkConfig,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func checkConfig(c *cli.Context) error {
	_, result, err := config.InitConfig()
	if err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		fmt.Printf("WARNING: %s\n", warning)
	}
	if result.Ok() {
		fmt.Println("Configuration OK")
		return nil
	}

	for _, problem := range result.All() {
		fmt.Printf("ERROR: %s\n", problem)
	}
	return cli.Exit("Configuration invalid", 1)
}

func runService(c *cli.Context) error {
	cfg, result, err := config.InitConfig()
	if err != nil {
		return err
	}
	if !result.Ok() {
		for _, problem := range result.All() {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", problem)
		}
		return cli.Exit("Configuration invalid", 1)
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()
	defer appLogger.Sync()

	for _, warning := range result.Warnings {
		appLogger.Warn(warning)
	}
	config.LogResolved(cfg, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthTracker := health.NewTracker(afero.NewOsFs(), cfg.HealthFile, appLogger)
	healthTracker.Startup()
	defer healthTracker.Shutdown()

	aggregator := metrics.NewAggregator()

	whisper := transcriber.NewWhisperClient(cfg.Whisper, appLogger)
	if err := whisper.Ping(ctx); err != nil {
		appLogger.Warnf("Transcription service check failed: %v", err)
	}

	orchestrator := processor.NewOrchestrator(cfg, whisper, healthTracker, aggregator, appLogger)
	if err := orchestrator.VerifyForwarders(ctx); err != nil {
		appLogger.Errorf("Startup validation failed: %v", err)
		return cli.Exit("SMTP validation failed", 1)
	}

	cronManager := cron.NewCronManager(cfg, aggregator, appLogger)
	cronManager.StartCron()
	defer cronManager.Stop()

	orchestrator.Run(ctx)

	appLogger.Info("Shutting down")
	aggregator.LogSummary(appLogger)
	return nil
}
