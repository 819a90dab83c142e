// Package track drives periodic price checks across all active products,
// persists the results, and emits notification events.
package track

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cwaldren/pricewatch/internal/metrics"
	"github.com/cwaldren/pricewatch/internal/notify"
	"github.com/cwaldren/pricewatch/internal/store"
)

// ErrAlreadyRunning reports a Start call while the loop is active.
var ErrAlreadyRunning = errors.New("tracking is already active")

// Detector is the price detection entry point consumed by the tracker.
type Detector interface {
	Detect(ctx context.Context, url, selector string) (decimal.Decimal, bool)
}

// Config controls the tracking loop.
type Config struct {
	// Interval is the wait between successful cycles.
	Interval time.Duration
	// RecoveryDelay is the wait after a whole-cycle failure (e.g. the
	// store is unreachable) before the loop tries again.
	RecoveryDelay time.Duration
	// Policy holds the notification toggles applied each cycle.
	Policy notify.Policy
}

// CycleResult summarizes one pass over the active products.
type CycleResult struct {
	Checked int
	Updated int
	Skipped int
}

// Tracker owns the background tracking loop. Manual and scheduled cycles
// share one run-lock so a "check now" can never interleave with the loop.
type Tracker struct {
	store    store.Store
	detector Detector
	notifier notify.Notifier
	cfg      Config
	logger   *zap.Logger

	runMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a Tracker. The notifier may be nil when alerts are unwanted.
func New(st store.Store, detector Detector, notifier notify.Notifier, cfg Config, logger *zap.Logger) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.RecoveryDelay <= 0 {
		cfg.RecoveryDelay = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:    st,
		detector: detector,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Running reports whether the background loop is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Start launches the background loop. A second Start while running returns
// ErrAlreadyRunning and leaves the loop untouched.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true

	go t.loop(ctx, t.done)
	t.logger.Info("tracking started", zap.Duration("interval", t.cfg.Interval))
	return nil
}

// Stop cancels the loop and blocks until it has exited. Any in-progress
// inter-cycle wait is interrupted immediately. Stopping an idle tracker is
// a no-op.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	cancel, done := t.cancel, t.done
	t.running = false
	t.mu.Unlock()

	cancel()
	<-done
	t.logger.Info("tracking stopped")
}

func (t *Tracker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// First cycle runs immediately; the interval applies between cycles.
	for {
		delay := t.cfg.Interval
		if _, err := t.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Error("check cycle failed", zap.Error(err))
			delay = t.cfg.RecoveryDelay
		}
		if !t.wait(ctx, delay) {
			return
		}
	}
}

// wait blocks for d or until ctx is cancelled; it reports false on cancel.
func (t *Tracker) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RunCycle executes one pass over all active products. A failing product is
// logged and skipped; its stored price and timestamp stay untouched. RunCycle
// only returns an error for whole-cycle failures such as an unreachable
// store, or cancellation.
func (t *Tracker) RunCycle(ctx context.Context) (CycleResult, error) {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	var res CycleResult
	start := time.Now()

	products, err := t.store.ListActive(ctx)
	if err != nil {
		return res, fmt.Errorf("list active products: %w", err)
	}

	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++
		if t.checkProduct(ctx, p) {
			res.Updated++
			metrics.RecordCheck("ok")
		} else {
			res.Skipped++
			metrics.RecordCheck("skipped")
		}
	}

	metrics.ObserveCycleDuration(time.Since(start).Seconds())
	t.logger.Info("check cycle finished",
		zap.Int("checked", res.Checked),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

func (t *Tracker) checkProduct(ctx context.Context, p store.Product) bool {
	newPrice, ok := t.detector.Detect(ctx, p.URL, p.Selector)
	if !ok {
		t.logger.Warn("no price detected, skipping product",
			zap.String("product", p.Name), zap.String("url", p.URL))
		return false
	}

	now := time.Now().UTC()
	if err := t.store.UpdateCurrentPrice(ctx, p.ID, newPrice, now); err != nil {
		t.logger.Error("persist current price failed",
			zap.String("product", p.Name), zap.Error(err))
		return false
	}
	if err := t.store.AppendObservation(ctx, p.ID, newPrice, now); err != nil {
		t.logger.Error("append observation failed",
			zap.String("product", p.Name), zap.Error(err))
		return false
	}

	t.emitAlerts(ctx, p, newPrice, now)
	return true
}

func (t *Tracker) emitAlerts(ctx context.Context, p store.Product, newPrice decimal.Decimal, at time.Time) {
	if t.notifier == nil {
		return
	}
	for _, typ := range notify.Evaluate(t.cfg.Policy, p.CurrentPrice, newPrice, p.TargetPrice) {
		event := notify.Event{
			Type:        typ,
			ProductID:   p.ID,
			ProductName: p.Name,
			OldPrice:    p.CurrentPrice,
			NewPrice:    newPrice,
			TargetPrice: p.TargetPrice,
			At:          at,
		}
		if err := t.notifier.Notify(ctx, event); err != nil {
			t.logger.Warn("notification delivery failed",
				zap.String("product", p.Name), zap.Error(err))
		}
	}
}
