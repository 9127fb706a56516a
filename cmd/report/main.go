package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/oarkflow/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/careflow/ingest/pkg/adapters/mongoadapter"
	"github.com/careflow/ingest/pkg/config"
	"github.com/careflow/ingest/pkg/report"
)

func main() {
	logger := &log.DefaultLogger
	cfg := config.FromEnv(config.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Error().Err(err).Msg("cannot connect to document store")
		os.Exit(1)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	if err := client.Ping(ctx, nil); err != nil {
		logger.Error().Err(err).Msg("document store unreachable")
		os.Exit(1)
	}

	adapter := mongoadapter.NewWithCollection(client.Database(cfg.Database).Collection(cfg.Collection))
	runner := report.NewRunner(adapter, report.DefaultOptions())

	body, err := runner.Build(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("report queries failed")
		os.Exit(1)
	}
	fmt.Println(body)

	if err := report.Save(cfg.ReportPath, body); err != nil {
		logger.Error().Str("path", cfg.ReportPath).Err(err).Msg("cannot write report")
		os.Exit(1)
	}
	logger.Info().Str("path", cfg.ReportPath).Msg("report written")
}
