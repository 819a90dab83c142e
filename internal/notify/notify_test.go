package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestEvaluateTruthTable(t *testing.T) {
	t.Parallel()

	enabled := Policy{PriceDrop: true, TargetReached: true}

	cases := []struct {
		name   string
		policy Policy
		old    *decimal.Decimal
		new    string
		target *decimal.Decimal
		want   []EventType
	}{
		{"drop fires", enabled, dec("10"), "8", nil, []EventType{EventPriceDrop}},
		{"rise does not fire", enabled, dec("8"), "10", nil, nil},
		{"equal price does not fire", enabled, dec("8"), "8", nil, nil},
		{"first check never drops", enabled, nil, "8", nil, nil},
		{"target met at boundary", enabled, nil, "5", dec("5"), []EventType{EventTargetReached}},
		{"above target does not fire", enabled, nil, "6", dec("5"), nil},
		{"both fire together", enabled, dec("10"), "5", dec("5"), []EventType{EventPriceDrop, EventTargetReached}},
		{"drop disabled", Policy{TargetReached: true}, dec("10"), "8", nil, nil},
		{"target disabled", Policy{PriceDrop: true}, nil, "5", dec("5"), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.policy, tc.old, decimal.RequireFromString(tc.new), tc.target)
			assert.Equal(t, tc.want, got)
		})
	}
}

type recordingSink struct {
	events []Event
	err    error
}

func (r *recordingSink) Notify(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMultiDeliversToAllSinksDespiteFailure(t *testing.T) {
	t.Parallel()

	failing := &recordingSink{err: errors.New("boom")}
	healthy := &recordingSink{}
	m := NewMulti(zap.NewNop(), failing, healthy)

	event := Event{
		Type:        EventPriceDrop,
		ProductName: "Widget",
		NewPrice:    decimal.RequireFromString("8.99"),
		At:          time.Now().UTC(),
	}
	require.NoError(t, m.Notify(context.Background(), event))
	assert.Len(t, failing.events, 1)
	assert.Len(t, healthy.events, 1)
}

func TestEventMessage(t *testing.T) {
	t.Parallel()

	drop := Event{Type: EventPriceDrop, ProductName: "Widget", NewPrice: decimal.RequireFromString("8.9")}
	assert.Equal(t, "Price drop for Widget: $8.90", drop.Message())

	target := Event{Type: EventTargetReached, ProductName: "Widget", NewPrice: decimal.RequireFromString("5")}
	assert.Equal(t, "Target price reached for Widget: $5.00", target.Message())
}
