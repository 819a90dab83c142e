package detect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StaticConfig controls the plain-HTTP tier.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Static fetches pages over plain HTTP with Colly and probes the parsed
// document for a price.
type Static struct {
	cfg    StaticConfig
	logger *zap.Logger
}

// NewStatic builds the static extractor.
func NewStatic(cfg StaticConfig, logger *zap.Logger) *Static {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Static{cfg: cfg, logger: logger}
}

// Extract fetches url and runs the selector and pattern strategies in order.
// A transport failure surfaces as *FetchError; a fetched page with no
// recognizable price is ok=false with a nil error.
func (s *Static) Extract(ctx context.Context, url, selector string) (decimal.Decimal, bool, error) {
	body, err := s.fetch(ctx, url)
	if err != nil {
		return decimal.Decimal{}, false, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("parse document: %w", err)
	}

	if value, ok := priceFromDocument(doc, selector); ok {
		return value, true, nil
	}
	return decimal.Decimal{}, false, nil
}

type fetchResult struct {
	body   []byte
	status int
	err    error
}

func (s *Static) fetch(ctx context.Context, url string) ([]byte, error) {
	collector := colly.NewCollector(colly.UserAgent(s.cfg.UserAgent))
	// Politeness beyond the configured tracking interval is out of scope.
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(s.cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: s.cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})

	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		r.Headers.Set("Connection", "keep-alive")
	})
	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{body: append([]byte{}, r.Body...), status: r.StatusCode})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		send(fetchResult{status: status, err: err})
	})

	if err := collector.Visit(url); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, &FetchError{URL: url, StatusCode: res.status, Err: res.err}
		}
		if res.status < 200 || res.status >= 300 {
			return nil, &FetchError{URL: url, StatusCode: res.status}
		}
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
		return res.body, nil
	default:
		return nil, &FetchError{URL: url, Err: errors.New("fetch produced no result")}
	}
}

// priceFromDocument applies the extraction strategies in order: caller
// selector, common price-widget selectors, then regex patterns over the
// document's visible text. First value > 0 wins.
func priceFromDocument(doc *goquery.Document, selector string) (decimal.Decimal, bool) {
	if selector != "" {
		if value, ok := priceFromSelection(doc, selector); ok {
			return value, true
		}
	}
	for _, sel := range commonSelectors {
		if value, ok := priceFromSelection(doc, sel); ok {
			return value, true
		}
	}
	return priceFromText(doc.Text())
}

func priceFromSelection(doc *goquery.Document, selector string) (decimal.Decimal, bool) {
	var (
		found decimal.Decimal
		ok    bool
	)
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		value, parsed := parsePositive(sel.Text())
		if parsed {
			found, ok = value, true
			return false
		}
		return true
	})
	return found, ok
}

func priceFromText(text string) (decimal.Decimal, bool) {
	for _, pattern := range pricePatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			if value, ok := parsePositive(match); ok {
				return value, true
			}
		}
	}
	return decimal.Decimal{}, false
}
