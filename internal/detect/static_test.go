package detect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newStatic() *Static {
	return NewStatic(StaticConfig{UserAgent: "pricewatch-test/1.0", Timeout: 5 * time.Second}, zap.NewNop())
}

func TestExtractWithCallerSelector(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<span class="shipping">$4.99</span>
		<div id="deal-box"><span>$129.99</span></div>
	</body></html>`)

	value, ok, err := newStatic().Extract(context.Background(), srv.URL, "#deal-box")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "129.99", value.String())
}

func TestExtractCallerSelectorSkipsUnparseableElements(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<span class="p">Sold out</span>
		<span class="p">$55.00</span>
	</body></html>`)

	value, ok, err := newStatic().Extract(context.Background(), srv.URL, ".p")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "55", value.String())
}

func TestExtractFallsBackToCommonSelectors(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<div class="product-price">$78.50</div>
	</body></html>`)

	value, ok, err := newStatic().Extract(context.Background(), srv.URL, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "78.5", value.String())
}

func TestExtractSelectorOrderPrefersCallerOverCommon(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<div class="price">$10.00</div>
		<div class="msrp">$20.00</div>
	</body></html>`)

	value, ok, err := newStatic().Extract(context.Background(), srv.URL, ".msrp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "20", value.String())
}

func TestExtractRegexFallbackOverVisibleText(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<p>Our best deal yet: now only $349.99 while stocks last.</p>
	</body></html>`)

	value, ok, err := newStatic().Extract(context.Background(), srv.URL, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "349.99", value.String())
}

func TestExtractLabeledPricePattern(t *testing.T) {
	srv := serveHTML(t, `<html><body><p>Price: 89.00</p></body></html>`)

	value, ok, err := newStatic().Extract(context.Background(), srv.URL, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "89", value.String())
}

func TestExtractIgnoresZeroPrices(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<div class="price">$0.00</div>
		<div class="sale-price">$12.00</div>
	</body></html>`)

	value, ok, err := newStatic().Extract(context.Background(), srv.URL, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "12", value.String())
}

func TestExtractNoPriceIsAbsentNotError(t *testing.T) {
	srv := serveHTML(t, `<html><body><p>Nothing for sale here.</p></body></html>`)

	_, ok, err := newStatic().Extract(context.Background(), srv.URL, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtractNon2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, ok, err := newStatic().Extract(context.Background(), srv.URL, "")
	assert.False(t, ok)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
}

func TestExtractUnreachableHostIsFetchError(t *testing.T) {
	_, ok, err := newStatic().Extract(context.Background(), "http://127.0.0.1:1/none", "")
	assert.False(t, ok)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestExtractSendsConfiguredUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`<html><body><div class="price">$5.00</div></body></html>`))
	}))
	defer srv.Close()

	_, ok, err := newStatic().Extract(context.Background(), srv.URL, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pricewatch-test/1.0", gotUA)
}
