package price

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"$19.99", "19.99"},
		{"19.99", "19.99"},
		{"1,234.56", "1234.56"},
		{"$1,234.56", "1234.56"},
		{"USD 2,499", "2499"},
		{"Price: $42.00", "42"},
		{"  $0.99 \n", "0.99"},
		{"1299", "1299"},
		{"price is 15.50 today", "15.5"},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.in)
		require.True(t, ok, "Parse(%q)", tc.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
			"Parse(%q) = %s, want %s", tc.in, got, tc.want)
	}
}

func TestParseAbsent(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "abc", "$", "...", "$,", "Out of stock"} {
		_, ok := Parse(in)
		assert.False(t, ok, "Parse(%q) should be absent", in)
	}
}

func TestParseDoesNotFilterZero(t *testing.T) {
	t.Parallel()

	got, ok := Parse("$0.00")
	require.True(t, ok)
	assert.True(t, got.IsZero())
}

func TestFormatRoundTrip(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"19.99", "1234.56", "0.01", "7"} {
		v := decimal.RequireFromString(raw)
		back, ok := Parse(Format(v))
		require.True(t, ok)
		assert.True(t, back.Equal(v), "round trip of %s via %q", v, Format(v))
	}
}
