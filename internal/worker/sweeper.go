package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LukeAtkinz/dashdice-sub004/internal/config"
)

// Cleaner evicts stale queue entries and reports how many went
type Cleaner interface {
	Cleanup() int
}

// Sweeper periodically evicts entries that have exceeded their
// maximum queue time. It runs on its own timer and does not depend on
// any caller activity.
type Sweeper struct {
	engine  Cleaner
	config  *config.SweeperConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSweeper creates a new expiration sweeper
func NewSweeper(engine Cleaner, cfg *config.SweeperConfig, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		engine: engine,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sweep process
func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("expiration sweeper started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sweep process
func (w *Sweeper) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("expiration sweeper stopped")
	return nil
}

// run is the main worker loop
func (w *Sweeper) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

// sweep runs a single eviction pass
func (w *Sweeper) sweep() {
	startTime := time.Now()
	evicted := w.engine.Cleanup()
	if evicted > 0 {
		w.logger.Info("sweep cycle completed",
			"duration", time.Since(startTime),
			"evicted", evicted,
		)
	}
}

// IsRunning returns whether the sweeper is currently running
func (w *Sweeper) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sweep cycle (useful for manual triggers)
func (w *Sweeper) RunOnce() {
	w.sweep()
}
