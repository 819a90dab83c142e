// Package notify decides when price alerts fire and fans them out to the
// configured delivery sinks. Events are plain payloads; delivery is a
// pluggable collaborator.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cwaldren/pricewatch/internal/metrics"
	"github.com/cwaldren/pricewatch/internal/price"
)

// EventType labels a notification condition.
type EventType string

// Supported alert types.
const (
	EventPriceDrop     EventType = "price_drop"
	EventTargetReached EventType = "target_reached"
)

// Event is one alert payload.
type Event struct {
	Type        EventType
	ProductID   string
	ProductName string
	OldPrice    *decimal.Decimal
	NewPrice    decimal.Decimal
	TargetPrice *decimal.Decimal
	At          time.Time
}

// Message renders the human-readable alert text.
func (e Event) Message() string {
	switch e.Type {
	case EventPriceDrop:
		return fmt.Sprintf("Price drop for %s: %s", e.ProductName, price.Format(e.NewPrice))
	case EventTargetReached:
		return fmt.Sprintf("Target price reached for %s: %s", e.ProductName, price.Format(e.NewPrice))
	default:
		return fmt.Sprintf("Price alert for %s: %s", e.ProductName, price.Format(e.NewPrice))
	}
}

// Policy holds the two independent notification toggles.
type Policy struct {
	PriceDrop     bool
	TargetReached bool
}

// Evaluate applies the notification rules to one successful check. Both
// conditions are evaluated independently and both may fire for the same
// observation. oldPrice is nil on a product's first check.
func Evaluate(p Policy, oldPrice *decimal.Decimal, newPrice decimal.Decimal, target *decimal.Decimal) []EventType {
	var fired []EventType
	if p.PriceDrop && oldPrice != nil && newPrice.LessThan(*oldPrice) {
		fired = append(fired, EventPriceDrop)
	}
	if p.TargetReached && target != nil && newPrice.LessThanOrEqual(*target) {
		fired = append(fired, EventTargetReached)
	}
	return fired
}

// Notifier delivers alert events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes alerts to the structured log. It is always wired so
// alerts are never silently lost even with no external sink configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier wires a zap logger to the Notifier interface.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("type", string(event.Type)),
		zap.String("product_id", event.ProductID),
		zap.String("product", event.ProductName),
		zap.String("new_price", event.NewPrice.String()),
	}
	if event.OldPrice != nil {
		fields = append(fields, zap.String("old_price", event.OldPrice.String()))
	}
	if event.TargetPrice != nil {
		fields = append(fields, zap.String("target_price", event.TargetPrice.String()))
	}
	n.logger.Info(event.Message(), fields...)
	return nil
}

// Multi fans one event out to several sinks. A failing sink is logged and
// skipped so the remaining sinks still receive the event.
type Multi struct {
	sinks  []Notifier
	logger *zap.Logger
}

// NewMulti combines sinks into one Notifier.
func NewMulti(logger *zap.Logger, sinks ...Notifier) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{sinks: sinks, logger: logger}
}

// Notify implements Notifier.
func (m *Multi) Notify(ctx context.Context, event Event) error {
	metrics.RecordNotification(string(event.Type))
	for _, sink := range m.sinks {
		if err := sink.Notify(ctx, event); err != nil {
			m.logger.Warn("notification sink failed",
				zap.String("type", string(event.Type)), zap.Error(err))
		}
	}
	return nil
}
