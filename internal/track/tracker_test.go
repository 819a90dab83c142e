package track

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cwaldren/pricewatch/internal/notify"
	"github.com/cwaldren/pricewatch/internal/store"
	"github.com/cwaldren/pricewatch/internal/store/memory"
)

// mapDetector resolves prices by URL; URLs without an entry yield absent.
type mapDetector struct {
	mu     sync.Mutex
	prices map[string]string
	calls  int
}

func (d *mapDetector) Detect(_ context.Context, url, _ string) (decimal.Decimal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	raw, ok := d.prices[url]
	if !ok {
		return decimal.Decimal{}, false
	}
	return decimal.RequireFromString(raw), true
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingNotifier) snapshot() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

func allEnabled() Config {
	return Config{
		Interval:      time.Hour,
		RecoveryDelay: time.Second,
		Policy:        notify.Policy{PriceDrop: true, TargetReached: true},
	}
}

func TestRunCycleIsolatesFailingProduct(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memory.New()

	failing, err := st.AddProduct(ctx, store.Product{Name: "A", URL: "https://shop.test/a"})
	require.NoError(t, err)
	healthy, err := st.AddProduct(ctx, store.Product{Name: "B", URL: "https://shop.test/b"})
	require.NoError(t, err)

	detector := &mapDetector{prices: map[string]string{"https://shop.test/b": "20.00"}}
	tr := New(st, detector, nil, allEnabled(), zap.NewNop())

	res, err := tr.RunCycle(ctx)
	require.NoError(t, err, "one bad product must not abort the cycle")
	assert.Equal(t, CycleResult{Checked: 2, Updated: 1, Skipped: 1}, res)

	gotA, err := st.GetByID(ctx, failing.ID)
	require.NoError(t, err)
	assert.Nil(t, gotA.CurrentPrice, "failed check leaves prior state untouched")
	assert.Nil(t, gotA.LastChecked)

	gotB, err := st.GetByID(ctx, healthy.ID)
	require.NoError(t, err)
	require.NotNil(t, gotB.CurrentPrice)
	assert.Equal(t, "20", gotB.CurrentPrice.String())
	require.NotNil(t, gotB.LastChecked)

	obs, err := st.ListObservations(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Len(t, obs, 1)
}

func TestRunCycleEmitsDropAndTargetEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memory.New()

	target := decimal.RequireFromString("9")
	p, err := st.AddProduct(ctx, store.Product{
		Name:        "Widget",
		URL:         "https://shop.test/widget",
		TargetPrice: &target,
	})
	require.NoError(t, err)

	detector := &mapDetector{prices: map[string]string{"https://shop.test/widget": "10.00"}}
	sink := &recordingNotifier{}
	tr := New(st, detector, sink, allEnabled(), zap.NewNop())

	// First check: no old price, above target, nothing fires.
	_, err = tr.RunCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, sink.snapshot())

	// Price falls to the target: both events fire for one observation.
	detector.mu.Lock()
	detector.prices["https://shop.test/widget"] = "9.00"
	detector.mu.Unlock()

	_, err = tr.RunCycle(ctx)
	require.NoError(t, err)

	events := sink.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, notify.EventPriceDrop, events[0].Type)
	assert.Equal(t, notify.EventTargetReached, events[1].Type)
	assert.Equal(t, p.ID, events[0].ProductID)
	require.NotNil(t, events[0].OldPrice)
	assert.Equal(t, "10", events[0].OldPrice.String())
	assert.Equal(t, "9", events[0].NewPrice.String())
}

func TestRunCycleNoEventsWhenTogglesDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memory.New()

	target := decimal.RequireFromString("100")
	_, err := st.AddProduct(ctx, store.Product{
		Name:        "Gadget",
		URL:         "https://shop.test/gadget",
		TargetPrice: &target,
	})
	require.NoError(t, err)

	detector := &mapDetector{prices: map[string]string{"https://shop.test/gadget": "50.00"}}
	sink := &recordingNotifier{}
	cfg := allEnabled()
	cfg.Policy = notify.Policy{}
	tr := New(st, detector, sink, cfg, zap.NewNop())

	_, err = tr.RunCycle(ctx)
	require.NoError(t, err)
	_, err = tr.RunCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, sink.snapshot())
}

func TestStartIsExclusiveAndRestartable(t *testing.T) {
	t.Parallel()
	st := memory.New()
	detector := &mapDetector{prices: map[string]string{}}
	tr := New(st, detector, nil, allEnabled(), zap.NewNop())

	require.NoError(t, tr.Start())
	require.ErrorIs(t, tr.Start(), ErrAlreadyRunning)
	assert.True(t, tr.Running())

	tr.Stop()
	assert.False(t, tr.Running())

	// Always restartable after a stop.
	require.NoError(t, tr.Start())
	tr.Stop()
}

func TestStopInterruptsIntervalWaitPromptly(t *testing.T) {
	t.Parallel()
	st := memory.New()
	detector := &mapDetector{prices: map[string]string{}}
	cfg := allEnabled()
	cfg.Interval = time.Hour
	tr := New(st, detector, nil, cfg, zap.NewNop())

	require.NoError(t, tr.Start())

	// Give the first cycle a moment to finish and enter the interval wait.
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		tr.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the interval wait")
	}
}

func TestManualCycleSerializesWithLoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memory.New()

	_, err := st.AddProduct(ctx, store.Product{Name: "S", URL: "https://shop.test/s"})
	require.NoError(t, err)

	detector := &mapDetector{prices: map[string]string{"https://shop.test/s": "3.00"}}
	tr := New(st, detector, nil, allEnabled(), zap.NewNop())

	// Concurrent manual cycles must not interleave; the observation count
	// afterwards equals the number of cycles run.
	const cycles = 8
	var wg sync.WaitGroup
	for i := 0; i < cycles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.RunCycle(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	products, err := st.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	obs, err := st.ListObservations(ctx, products[0].ID)
	require.NoError(t, err)
	assert.Len(t, obs, cycles)
}
