package detect

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RenderedConfig controls the headless-browser tier.
type RenderedConfig struct {
	UserAgent       string
	NavTimeout      time.Duration
	SettleDelay     time.Duration
	SelectorTimeout time.Duration
}

// Rendered extracts prices from pages that only expose them after script
// execution. Each Extract call owns an isolated browser context that is
// torn down on every exit path, so no browser state survives a detection.
type Rendered struct {
	cfg    RenderedConfig
	logger *zap.Logger
}

// NewRendered builds the rendered extractor.
func NewRendered(cfg RenderedConfig, logger *zap.Logger) *Rendered {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 25 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.SelectorTimeout <= 0 {
		cfg.SelectorTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rendered{cfg: cfg, logger: logger}
}

// Extract navigates url in a fresh headless context, waits for the page to
// settle, and probes the caller selector followed by the common price
// selectors against the rendered DOM. Per-selector failures mean "try the
// next selector"; a navigation failure returns absent, never an error.
func (r *Rendered) Extract(ctx context.Context, url, selector string) (decimal.Decimal, bool) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if r.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	navCtx, navCancel := context.WithTimeout(tabCtx, r.cfg.NavTimeout)
	defer navCancel()

	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Bounded settle wait for late price injection; chromedp has no
		// network-idle primitive.
		chromedp.Sleep(r.cfg.SettleDelay),
	}
	if r.cfg.UserAgent != "" {
		tasks = append(chromedp.Tasks{emulation.SetUserAgentOverride(r.cfg.UserAgent)}, tasks...)
	}
	if err := chromedp.Run(navCtx, tasks); err != nil {
		r.logger.Debug("rendered navigation failed",
			zap.String("url", url), zap.Error(err))
		return decimal.Decimal{}, false
	}

	candidates := commonSelectors
	if selector != "" {
		candidates = append([]string{selector}, commonSelectors...)
	}
	for _, sel := range candidates {
		value, ok := r.probeSelector(tabCtx, sel)
		if ok {
			return value, true
		}
		if tabCtx.Err() != nil {
			break
		}
	}
	return decimal.Decimal{}, false
}

// probeSelector reads the rendered inner text of the first element matching
// sel. A missing element would block chromedp.Text until the tab times out,
// so each probe gets its own short deadline.
func (r *Rendered) probeSelector(tabCtx context.Context, sel string) (decimal.Decimal, bool) {
	selCtx, cancel := context.WithTimeout(tabCtx, r.cfg.SelectorTimeout)
	defer cancel()

	var text string
	if err := chromedp.Run(selCtx, chromedp.Text(sel, &text, chromedp.ByQuery)); err != nil {
		return decimal.Decimal{}, false
	}
	return parsePositive(strings.TrimSpace(text))
}
