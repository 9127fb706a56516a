package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oarkflow/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/careflow/ingest/pkg/adapters/mongoadapter"
	"github.com/careflow/ingest/pkg/config"
	"github.com/careflow/ingest/pkg/ingest"
	"github.com/careflow/ingest/pkg/ledger"
	"github.com/careflow/ingest/pkg/mappers"
	"github.com/careflow/ingest/pkg/server"
)

func main() {
	logger := &log.DefaultLogger

	cfg := config.Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			logger.Error().Str("path", path).Err(err).Msg("cannot load config file")
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg = config.FromEnv(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdownOnSignal(cancel, logger)

	client, err := connectWithRetry(ctx, cfg.MongoURI, logger)
	if err != nil {
		logger.Error().Err(err).Msg("shutdown before store became reachable")
		return
	}
	defer func() {
		disconnectCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = client.Disconnect(disconnectCtx)
	}()

	store := mongoadapter.NewWithCollection(client.Database(cfg.Database).Collection(cfg.Collection))
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Error().Err(err).Msg("index setup failed")
	}

	var gate ledger.Ledger
	if cfg.LedgerFile != "" {
		fileLedger, err := ledger.NewFileLedger(cfg.LedgerFile)
		if err != nil {
			logger.Error().Str("path", cfg.LedgerFile).Err(err).Msg("cannot open file ledger")
			os.Exit(1)
		}
		gate = fileLedger
	} else {
		gate = ledger.NewMongoLedger(client.Database(cfg.Database).Collection(cfg.LedgerCollection))
	}
	if cached, err := ledger.NewCachedLedger(gate, 1<<14); err == nil {
		gate = cached
	} else {
		logger.Warn().Err(err).Msg("ledger cache disabled")
	}

	controller := ingest.NewController(cfg, store, gate, mappers.NewPatientMapper())

	if cfg.HTTPAddr != "" {
		statusServer := server.New(controller)
		go func() {
			if err := statusServer.Listen(ctx, cfg.HTTPAddr); err != nil && err != context.Canceled {
				logger.Error().Str("addr", cfg.HTTPAddr).Err(err).Msg("status server stopped")
			}
		}()
	}

	logger.Info().
		Str("dir", cfg.DataDir).
		Str("pattern", cfg.FilePattern).
		Int("interval_secs", cfg.ScanIntervalSecs).
		Msg("watching for patient record files")

	scheduler := ingest.NewScheduler(time.Duration(cfg.ScanIntervalSecs) * time.Second)
	if err := scheduler.Run(ctx, controller.RunCycle); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("scheduler stopped")
		os.Exit(1)
	}
	logger.Info().Msg("shut down cleanly")
}

func shutdownOnSignal(cancel context.CancelFunc, logger *log.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()
	}()
}

func connectWithRetry(ctx context.Context, uri string, logger *log.Logger) (*mongo.Client, error) {
	for {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err == nil {
			if err = client.Ping(ctx, nil); err == nil {
				logger.Info().Msg("connected to document store")
				return client, nil
			}
			_ = client.Disconnect(ctx)
		}
		logger.Error().Err(err).Msg("store unreachable, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}
