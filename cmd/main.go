package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"btcalert/config"
	"btcalert/internal/alert"
	"btcalert/internal/label"
	"btcalert/internal/store"
	"btcalert/internal/train"
)

var (
	configPath  string
	prepareOnly bool
	trainOnly   bool
	alertOnly   bool
	runAll      bool
)

func main() {
	root := &cobra.Command{
		Use:   "btcalert",
		Short: "BTC options signal pipeline: fetch, featurize, train, alert",
		RunE:  run,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "config file path")
	root.Flags().BoolVar(&prepareOnly, "prepare", false, "prepare and cache the merged dataset, then exit")
	root.Flags().BoolVar(&trainOnly, "train", false, "train the model from the cached dataset, then exit")
	root.Flags().BoolVar(&alertOnly, "alert", false, "run the alert schedule against the existing model")
	root.Flags().BoolVar(&runAll, "all", false, "run the full pipeline: prepare, train, then alert (the default)")

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Fatal error")
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not load .env file")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := store.OpenHistory(cfg.DatabaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("Signal history unavailable, continuing without it")
	}
	defer history.Close()

	runner := alert.NewRunner(cfg, buildSink(cfg), history)

	switch {
	case prepareOnly:
		return prepare(ctx, runner)
	case trainOnly:
		return trainModel(cfg)
	case alertOnly:
		return schedule(ctx, runner)
	default:
		if err := prepare(ctx, runner); err != nil {
			return err
		}
		if err := trainModel(cfg); err != nil {
			return err
		}
		return schedule(ctx, runner)
	}
}

func prepare(ctx context.Context, runner *alert.Runner) error {
	rows, err := runner.PrepareData(ctx)
	if err != nil {
		return fmt.Errorf("preparing data: %w", err)
	}
	log.Info().Int("rows", len(rows)).Msg("Prepared merged dataset")
	return nil
}

func trainModel(cfg *config.Config) error {
	rows, err := store.NewCache(cfg.DataDir).LoadMerged()
	if err != nil {
		return fmt.Errorf("loading cached dataset: %w", err)
	}

	result := label.New(cfg).Label(rows)
	log.Info().
		Str("strategy", string(result.Strategy)).
		Int("examples", len(result.Rows)).
		Msg("Labeled dataset")

	meta, err := train.NewTrainer(cfg).Train(result.Rows)
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}
	log.Info().
		Float64("accuracy", meta.Accuracy).
		Float64("cv_mean", meta.CVMean).
		Msg("Model ready")
	return nil
}

func schedule(ctx context.Context, runner *alert.Runner) error {
	err := runner.Schedule(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func buildSink(cfg *config.Config) alert.Sink {
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == 0 {
		log.Warn().Msg("Telegram not configured, alerts go to the log")
		return alert.LogSink{}
	}
	sink, err := alert.NewTelegramSink(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram unavailable, alerts go to the log")
		return alert.LogSink{}
	}
	return sink
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
