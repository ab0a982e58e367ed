package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"behavior-warehouse/internal/database"
)

// Stage is one transformation step. Run wholly replaces the stage's output
// tables, so every stage is idempotent and safe to re-run in full.
type Stage interface {
	Name() string
	Outputs() []string
	Run(ctx context.Context, store *database.Store) error
}

type StageResult struct {
	Stage    string
	Duration time.Duration
	Rows     map[string]int64
}

// Runner executes stages strictly in sequence: later stages read tables
// written by earlier ones. A failed stage aborts the run and leaves
// downstream tables stale; there is no retry.
type Runner struct {
	store  *database.Store
	logger *zap.Logger
}

func NewRunner(store *database.Store, logger *zap.Logger) *Runner {
	return &Runner{store: store, logger: logger}
}

func (r *Runner) RunStage(ctx context.Context, stage Stage) (*StageResult, error) {
	log := r.logger.With(zap.String("stage", stage.Name()))
	log.Info("stage starting")

	start := time.Now()
	if err := stage.Run(ctx, r.store); err != nil {
		log.Error("stage failed", zap.Error(err))
		return nil, fmt.Errorf("stage %s failed: %w", stage.Name(), err)
	}

	result := &StageResult{
		Stage:    stage.Name(),
		Duration: time.Since(start),
		Rows:     make(map[string]int64, len(stage.Outputs())),
	}
	for _, table := range stage.Outputs() {
		count, err := r.store.TableCount(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("stage %s: counting %s failed: %w", stage.Name(), table, err)
		}
		result.Rows[table] = count
		log.Info("table published", zap.String("table", table), zap.Int64("rows", count))
	}

	log.Info("stage complete", zap.Duration("duration", result.Duration))
	return result, nil
}

func (r *Runner) RunAll(ctx context.Context, stages []Stage) ([]StageResult, error) {
	runID := uuid.New().String()
	log := r.logger.With(zap.String("run_id", runID))
	log.Info("pipeline starting", zap.Int("stages", len(stages)))

	start := time.Now()
	results := make([]StageResult, 0, len(stages))
	for _, stage := range stages {
		result, err := r.RunStage(ctx, stage)
		if err != nil {
			log.Error("pipeline aborted", zap.String("stage", stage.Name()), zap.Error(err))
			return results, err
		}
		results = append(results, *result)
	}

	log.Info("pipeline finished", zap.Duration("total", time.Since(start)))
	return results, nil
}
