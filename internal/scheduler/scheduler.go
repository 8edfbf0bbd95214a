// Package scheduler runs the bulk sync on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AlieInmar1/pbtoado-sub002/internal/bulksync"
)

// Syncer runs one bulk sync.
type Syncer interface {
	Run(ctx context.Context, req bulksync.Request) (bulksync.Result, error)
}

// Runner periodically invokes a Syncer. Each run is bounded by timeout.
type Runner struct {
	syncer   Syncer
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a Runner. A non-positive timeout leaves runs unbounded.
func New(syncer Syncer, interval, timeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		syncer:   syncer,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start begins the background loop. It is a no-op when the interval is not
// positive.
func (r *Runner) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("scheduled sync disabled")
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop(ctx)
	r.logger.Info("scheduler started", "interval", r.interval)
}

// Stop cancels the loop, including an in-flight run, and waits for it to exit.
func (r *Runner) Stop(_ context.Context) {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("scheduler stopped")
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run once immediately on start
	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	res, err := r.syncer.Run(ctx, bulksync.Request{})
	switch {
	case errors.Is(err, bulksync.ErrRunning):
		r.logger.Info("scheduled sync skipped, previous run still active")
	case err != nil:
		r.logger.Error("scheduled sync failed", "error", err)
	case !res.Success:
		r.logger.Warn("scheduled sync incomplete", "message", res.Message)
	}
}
