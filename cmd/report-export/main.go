package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"behavior-warehouse/internal/config"
	"behavior-warehouse/internal/database"
	"behavior-warehouse/internal/reports"
)

func main() {
	var exitCode int
	defer func() {
		os.Exit(exitCode)
	}()

	configPath := flag.String("config", "config.yaml", "path to the pipeline config")
	dbPath := flag.String("db", "", "database file path (overrides config)")
	reportName := flag.String("report", "", fmt.Sprintf("report to run (%s)", strings.Join(reports.Names(), ", ")))
	outputDir := flag.String("output", "reports/", "output folder path")

	flag.Parse()

	if *reportName == "" {
		fmt.Printf("Usage: report-export -report=%s\n", strings.Join(reports.Names(), "|"))
		exitCode = 1
		return
	}

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

	client := reports.NewClient(store, logger)
	report, err := client.Run(ctx, *reportName)
	if err != nil {
		logger.Error("report failed", zap.Error(err))
		exitCode = 1
		return
	}

	filename := reports.TimestampedFilename(*outputDir, *reportName)
	if err := reports.ExportJSON(filename, report); err != nil {
		logger.Error("export failed", zap.Error(err))
		exitCode = 1
		return
	}

	logger.Info("report exported", zap.String("file", filename), zap.Int("rows", len(report.Rows)))
}
