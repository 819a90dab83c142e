package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwaldren/pricewatch/internal/store"
)

func TestDuplicateURLOnlyAmongActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	p, err := s.AddProduct(ctx, store.Product{Name: "X", URL: "https://shop.test/x"})
	require.NoError(t, err)

	_, err = s.AddProduct(ctx, store.Product{Name: "X2", URL: "https://shop.test/x"})
	require.ErrorIs(t, err, store.ErrDuplicateURL)

	require.NoError(t, s.Deactivate(ctx, p.ID))
	_, err = s.AddProduct(ctx, store.Product{Name: "X3", URL: "https://shop.test/x"})
	require.NoError(t, err)
}

func TestObservationsSurviveDeactivation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	p, err := s.AddProduct(ctx, store.Product{Name: "Y", URL: "https://shop.test/y"})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, s.AppendObservation(ctx, p.ID, decimal.RequireFromString("12.34"), now))
	require.NoError(t, s.Deactivate(ctx, p.ID))

	obs, err := s.ListObservations(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "12.34", obs[0].Price.String())
}

func TestObservationsNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	p, err := s.AddProduct(ctx, store.Product{Name: "Z", URL: "https://shop.test/z"})
	require.NoError(t, err)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendObservation(ctx, p.ID, decimal.New(int64(i+1), 0), base.Add(time.Duration(i)*time.Minute)))
	}

	obs, err := s.ListObservations(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, "3", obs[0].Price.String())
	assert.Equal(t, "1", obs[2].Price.String())
}

func TestCurrentPriceLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	p, err := s.AddProduct(ctx, store.Product{Name: "W", URL: "https://shop.test/w"})
	require.NoError(t, err)
	require.Nil(t, p.CurrentPrice)

	at := time.Now().UTC()
	require.NoError(t, s.UpdateCurrentPrice(ctx, p.ID, decimal.RequireFromString("7.77"), at))

	got, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPrice)
	assert.Equal(t, "7.77", got.CurrentPrice.String())
	require.NotNil(t, got.LastChecked)
	assert.True(t, got.LastChecked.Equal(at))
}
