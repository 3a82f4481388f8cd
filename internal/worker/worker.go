// Package worker runs the periodic sweeps that move subscriptions and
// promotions forward in time.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/jmylchreest/codecredit-api/internal/worker")

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	// Aligned jobs run at Offset past local midnight and then every Interval.
	Aligned bool
	Offset  time.Duration
	Run     func(ctx context.Context) error
}

// Config holds worker configuration.
type Config struct {
	Location   *time.Location   // for aligned jobs; defaults to UTC
	Clock      func() time.Time // defaults to time.Now
	RunAtStart bool
}

// Worker runs jobs on their schedules until stopped.
type Worker struct {
	jobs       []Job
	loc        *time.Location
	now        func() time.Time
	runAtStart bool
	running    atomic.Int32
	stop       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// New creates a new worker. Jobs without a positive interval or a Run
// function are dropped.
func New(jobs []Job, cfg Config, logger *slog.Logger) *Worker {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "worker")

	valid := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Interval <= 0 || j.Run == nil {
			logger.Warn("job disabled", "job", j.Name, "interval", j.Interval)
			continue
		}
		valid = append(valid, j)
	}

	return &Worker{
		jobs:       valid,
		loc:        cfg.Location,
		now:        cfg.Clock,
		runAtStart: cfg.RunAtStart,
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// Start launches one goroutine per job.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "jobs", len(w.jobs))
	for _, j := range w.jobs {
		w.wg.Add(1)
		go w.runJob(ctx, j)
	}
}

// Stop signals every job loop and waits for in-flight runs to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("stopping")
		close(w.stop)
	})
	w.wg.Wait()
	w.logger.Info("stopped")
}

// Busy reports whether any job is running.
func (w *Worker) Busy() bool {
	return w.running.Load() > 0
}

// nextRun returns the first scheduled time strictly after now.
func (w *Worker) nextRun(j Job, now time.Time) time.Time {
	if !j.Aligned {
		return now.Add(j.Interval)
	}
	local := now.In(w.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.loc).Add(j.Offset)
	for !next.After(now) {
		next = next.Add(j.Interval)
	}
	return next
}

func (w *Worker) runJob(ctx context.Context, j Job) {
	defer w.wg.Done()

	if w.runAtStart {
		w.runOnce(ctx, j)
	}

	for {
		now := w.now()
		next := w.nextRun(j, now)
		w.logger.Debug("job scheduled", "job", j.Name, "next_run", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-w.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.runOnce(ctx, j)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context, j Job) {
	w.running.Add(1)
	defer w.running.Add(-1)

	ctx, span := tracer.Start(ctx, "sweep "+j.Name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("sweep.name", j.Name)),
	)
	defer span.End()

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sweep failed")
		w.logger.Error("job failed", "job", j.Name, "error", err, "duration", time.Since(start))
		return
	}
	w.logger.Debug("job completed", "job", j.Name, "duration", time.Since(start))
}
