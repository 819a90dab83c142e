// Package detect implements multi-strategy price detection: a cheap static
// HTTP tier tried first, and a headless-browser tier for pages that only
// reveal their price after script execution.
package detect

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cwaldren/pricewatch/internal/metrics"
	"github.com/cwaldren/pricewatch/internal/price"
)

// parsePositive parses text and filters out zero and negative values; the
// "> 0" policy belongs to the extractors, not the parser.
func parsePositive(text string) (decimal.Decimal, bool) {
	value, ok := price.Parse(text)
	if !ok || !value.IsPositive() {
		return decimal.Decimal{}, false
	}
	return value, true
}

// commonSelectors covers the class/id/attribute patterns typical of
// e-commerce price widgets. Probed in order after any caller selector.
var commonSelectors = []string{
	".price", "#price", ".product-price", ".current-price",
	"[data-price]", ".price-current", ".price-now",
	".offer-price", ".sale-price", ".final-price",
}

// pricePatterns scan visible page text when no selector matches. Ordered
// from most to least specific; the bare-number fallback comes last.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$[\d,]+\.?\d*`),
	regexp.MustCompile(`USD\s*[\d,]+\.?\d*`),
	regexp.MustCompile(`[\d,]+\.?\d*\s*USD`),
	regexp.MustCompile(`Price:\s*\$?[\d,]+\.?\d*`),
	regexp.MustCompile(`[\d,]+\.?\d*`),
}

// FetchError reports a transport-level failure of the static tier
// (network error, timeout, or non-2xx response). The orchestrator treats
// it as "no price, try the rendered tier".
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StaticExtractor is the plain-HTTP tier. ok=false with a nil error means
// the page was fetched but held no recognizable price.
type StaticExtractor interface {
	Extract(ctx context.Context, url, selector string) (decimal.Decimal, bool, error)
}

// RenderedExtractor is the headless-browser tier. It never returns an
// error; every internal failure collapses to ok=false.
type RenderedExtractor interface {
	Extract(ctx context.Context, url, selector string) (decimal.Decimal, bool)
}

// Detector is the single entry point for price detection.
type Detector struct {
	static   StaticExtractor
	rendered RenderedExtractor
	logger   *zap.Logger
}

// New wires the two tiers into a Detector.
func New(static StaticExtractor, rendered RenderedExtractor, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{static: static, rendered: rendered, logger: logger}
}

// Detect tries static extraction and falls back to rendered extraction only
// when the static tier comes up empty. "Could not find a price" is an absent
// result, never an error.
func (d *Detector) Detect(ctx context.Context, url, selector string) (decimal.Decimal, bool) {
	value, ok, err := d.static.Extract(ctx, url, selector)
	if err != nil {
		d.logger.Debug("static extraction failed, falling back to rendered",
			zap.String("url", url), zap.Error(err))
	}
	if ok {
		metrics.RecordDetection("static")
		return value, true
	}
	if ctx.Err() != nil {
		return decimal.Decimal{}, false
	}

	metrics.RecordRenderedFallback()
	value, ok = d.rendered.Extract(ctx, url, selector)
	if ok {
		metrics.RecordDetection("rendered")
		return value, true
	}
	metrics.RecordDetection("none")
	return decimal.Decimal{}, false
}
