package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OverdueReminder sends reminders for steps past their due time
type OverdueReminder interface {
	RemindOverdueSteps(ctx context.Context) (int, error)
}

// OverdueWorkerConfig holds configuration for the overdue step worker
type OverdueWorkerConfig struct {
	Schedule string        // standard 5-field cron expression
	Timeout  time.Duration // upper bound for one sweep
}

// DefaultOverdueWorkerConfig returns default configuration
func DefaultOverdueWorkerConfig() OverdueWorkerConfig {
	return OverdueWorkerConfig{
		Schedule: "*/15 * * * *",
		Timeout:  time.Minute,
	}
}

// OverdueWorker sweeps overdue approval steps on a cron schedule
type OverdueWorker struct {
	config   OverdueWorkerConfig
	reminder OverdueReminder
	logger   *zap.Logger

	mu            sync.Mutex
	scheduler     *cron.Cron
	ctx           context.Context
	remindedCount int
	runs          int
	lastError     error
}

// NewOverdueWorker creates a new overdue step worker
func NewOverdueWorker(config OverdueWorkerConfig, reminder OverdueReminder, logger *zap.Logger) *OverdueWorker {
	if config.Schedule == "" {
		config.Schedule = DefaultOverdueWorkerConfig().Schedule
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultOverdueWorkerConfig().Timeout
	}
	return &OverdueWorker{
		config:   config,
		reminder: reminder,
		logger:   logger,
	}
}

// Name returns the worker name for identification
func (w *OverdueWorker) Name() string {
	return "OverdueStepWorker"
}

// Start schedules the sweep; ctx bounds every run
func (w *OverdueWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.scheduler != nil {
		return fmt.Errorf("overdue worker already running")
	}

	scheduler := cron.New(cron.WithLocation(time.UTC))
	if _, err := scheduler.AddFunc(w.config.Schedule, w.tick); err != nil {
		return fmt.Errorf("invalid overdue schedule %q: %w", w.config.Schedule, err)
	}

	w.ctx = ctx
	w.scheduler = scheduler
	scheduler.Start()

	w.logger.Info("OverdueStepWorker started", zap.String("schedule", w.config.Schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish
func (w *OverdueWorker) Stop() error {
	w.mu.Lock()
	scheduler := w.scheduler
	w.scheduler = nil
	w.mu.Unlock()

	if scheduler == nil {
		return nil
	}
	<-scheduler.Stop().Done()

	w.mu.Lock()
	w.logger.Info("OverdueStepWorker stopped",
		zap.Int("runs", w.runs),
		zap.Int("reminded_count", w.remindedCount))
	w.mu.Unlock()
	return nil
}

func (w *OverdueWorker) tick() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("Overdue step sweep failed", zap.Error(err))
	}
}

// RunOnce performs a single sweep and returns how many steps were reminded
func (w *OverdueWorker) RunOnce(ctx context.Context) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	runCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	reminded, err := w.reminder.RemindOverdueSteps(runCtx)

	w.mu.Lock()
	w.runs++
	w.lastError = err
	w.remindedCount += reminded
	w.mu.Unlock()

	if err != nil {
		return reminded, err
	}
	if reminded > 0 {
		w.logger.Info("Overdue steps reminded", zap.Int("count", reminded))
	}
	return reminded, nil
}

// LastError returns the error of the most recent sweep, if any
func (w *OverdueWorker) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}
