package detect

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticStub struct {
	value  decimal.Decimal
	ok     bool
	err    error
	called int
}

func (s *staticStub) Extract(context.Context, string, string) (decimal.Decimal, bool, error) {
	s.called++
	return s.value, s.ok, s.err
}

type renderedStub struct {
	value  decimal.Decimal
	ok     bool
	called int
}

func (r *renderedStub) Extract(context.Context, string, string) (decimal.Decimal, bool) {
	r.called++
	return r.value, r.ok
}

func TestDetectStaticHitSkipsRendered(t *testing.T) {
	t.Parallel()

	static := &staticStub{value: decimal.RequireFromString("19.99"), ok: true}
	rendered := &renderedStub{value: decimal.RequireFromString("999"), ok: true}
	d := New(static, rendered, zap.NewNop())

	value, ok := d.Detect(context.Background(), "https://shop.test/a", "")
	require.True(t, ok)
	assert.Equal(t, "19.99", value.String())
	assert.Equal(t, 1, static.called)
	assert.Zero(t, rendered.called, "rendered tier must stay lazy")
}

func TestDetectFallsBackWhenStaticAbsent(t *testing.T) {
	t.Parallel()

	static := &staticStub{}
	rendered := &renderedStub{value: decimal.RequireFromString("42.50"), ok: true}
	d := New(static, rendered, zap.NewNop())

	value, ok := d.Detect(context.Background(), "https://shop.test/b", ".price")
	require.True(t, ok)
	assert.Equal(t, "42.5", value.String())
	assert.Equal(t, 1, rendered.called)
}

func TestDetectFallsBackOnFetchError(t *testing.T) {
	t.Parallel()

	static := &staticStub{err: &FetchError{URL: "https://shop.test/c", StatusCode: 503}}
	rendered := &renderedStub{value: decimal.RequireFromString("7"), ok: true}
	d := New(static, rendered, zap.NewNop())

	value, ok := d.Detect(context.Background(), "https://shop.test/c", "")
	require.True(t, ok)
	assert.Equal(t, "7", value.String())
}

func TestDetectAbsentWhenBothTiersMiss(t *testing.T) {
	t.Parallel()

	d := New(&staticStub{}, &renderedStub{}, zap.NewNop())

	_, ok := d.Detect(context.Background(), "https://shop.test/d", "")
	assert.False(t, ok)
}

func TestDetectHonorsCancelledContextBeforeFallback(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rendered := &renderedStub{value: decimal.New(1, 0), ok: true}
	d := New(&staticStub{}, rendered, zap.NewNop())

	_, ok := d.Detect(ctx, "https://shop.test/e", "")
	assert.False(t, ok)
	assert.Zero(t, rendered.called)
}
