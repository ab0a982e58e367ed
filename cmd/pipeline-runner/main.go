package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"behavior-warehouse/internal/config"
	"behavior-warehouse/internal/database"
	"behavior-warehouse/internal/ingest"
	"behavior-warehouse/internal/pipeline"
	"behavior-warehouse/internal/stages"
)

func main() {
	var exitCode int
	defer func() {
		os.Exit(exitCode)
	}()

	configPath := flag.String("config", "config.yaml", "path to the pipeline config")
	dbPath := flag.String("db", "", "database file path (overrides config)")
	stageName := flag.String("stage", "all", "stage to run (ingest, dimensions, sessions, daily_kpis, rfm, retention, affinity, features, training_set, or all)")
	sourceName := flag.String("source", "file", "ingest source (file, postgres, mysql, mongo, or synthetic)")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		exitCode = 1
		return
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		exitCode = 1
		return
	}
	if *dbPath != "" {
		cfg.Warehouse.Path = *dbPath
	}

	ctx := context.Background()

	store, err := database.Open(ctx, database.Settings{
		Path:        cfg.Warehouse.Path,
		MemoryLimit: cfg.Warehouse.MemoryLimit,
		Threads:     cfg.Warehouse.Threads,
	}, logger)
	if err != nil {
		logger.Error("failed to open warehouse", zap.Error(err))
		exitCode = 1
		return
	}
	defer store.Close()

	if *stageName == "ingest" {
		result, err := runIngest(ctx, cfg, store, *sourceName, logger)
		if err != nil {
			logger.Error("ingestion failed", zap.Error(err))
			exitCode = 1
			return
		}
		printJSON(result)
		return
	}

	stageByName := map[string]pipeline.Stage{
		"dimensions": stages.Dimensions{},
		"sessions":   stages.Sessions{},
		"daily_kpis": stages.DailyKPIs{},
		"rfm":        stages.RFM{QuantileCount: cfg.Pipeline.QuantileCount},
		"retention":  stages.Retention{},
		"affinity": stages.Affinity{
			MinSupport:    cfg.Pipeline.MinSupport,
			LiftThreshold: cfg.Pipeline.LiftThreshold,
		},
		"features":     stages.Features{},
		"training_set": stages.TrainingSet{Cutoff: cfg.Pipeline.TrainingCutoff},
	}
	order := []string{"dimensions", "sessions", "daily_kpis", "rfm", "retention", "affinity", "features", "training_set"}

	runner := pipeline.NewRunner(store, logger)

	if *stageName == "all" {
		if cutoff, ok, err := store.MaxEventTime(ctx); err == nil && ok {
			logger.Info("dataset cutoff", zap.Time("max_event_time", cutoff))
		}
		sequence := make([]pipeline.Stage, 0, len(order))
		for _, name := range order {
			sequence = append(sequence, stageByName[name])
		}
		results, err := runner.RunAll(ctx, sequence)
		if err != nil {
			exitCode = 1
			return
		}
		printJSON(results)
		return
	}

	stage, ok := stageByName[*stageName]
	if !ok {
		logger.Error("unsupported stage", zap.String("stage", *stageName))
		exitCode = 1
		return
	}
	result, err := runner.RunStage(ctx, stage)
	if err != nil {
		exitCode = 1
		return
	}
	printJSON(result)
}

func runIngest(ctx context.Context, cfg *config.Config, store *database.Store, sourceName string, logger *zap.Logger) (*ingest.LoadResult, error) {
	switch sourceName {
	case "file":
		return ingest.LoadFile(ctx, store, cfg.Sources.File, logger)
	case "postgres":
		src := &ingest.PostgresSource{DSN: cfg.Sources.Postgres, Table: cfg.Sources.SourceTable}
		return ingest.Load(ctx, store, src, cfg.Ingest.BatchSize, logger)
	case "mysql":
		src := &ingest.MySQLSource{DSN: cfg.Sources.MySQL, Table: cfg.Sources.SourceTable}
		return ingest.Load(ctx, store, src, cfg.Ingest.BatchSize, logger)
	case "mongo":
		src := &ingest.MongoSource{
			URI:        cfg.Sources.Mongo,
			Database:   cfg.Sources.MongoDatabase,
			Collection: cfg.Sources.MongoCollection,
		}
		return ingest.Load(ctx, store, src, cfg.Ingest.BatchSize, logger)
	case "synthetic":
		src := &ingest.SyntheticSource{Events: cfg.Ingest.SyntheticEvents, Seed: cfg.Ingest.SyntheticSeed}
		return ingest.Load(ctx, store, src, cfg.Ingest.BatchSize, logger)
	default:
		return nil, fmt.Errorf("unsupported source: %s", sourceName)
	}
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(out))
}
