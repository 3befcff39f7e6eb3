package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahrens917/marketstore/pkg/storeerr"
)

func TestStoreOrderMetadataRoundTrip(t *testing.T) {
	_, _, repo := newTestRepo(t)
	ctx := context.Background()
	orderID := uuid.NewString()

	err := repo.StoreOrderMetadata(ctx, orderID, "morning-momentum", "forecast revised upward overnight",
		WithStation("KNYC"))
	require.NoError(t, err)

	meta, err := repo.GetOrderMetadata(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "morning-momentum", meta.TradeRule)
	assert.Equal(t, "forecast revised upward overnight", meta.TradeReason)
	assert.Equal(t, CategoryWeather, meta.MarketCategory, "category defaults to weather")
	assert.Equal(t, "KNYC", meta.WeatherStation)
	assert.False(t, meta.StoredAt.IsZero())
}

func TestStoreOrderMetadataWithCategoryOverride(t *testing.T) {
	_, _, repo := newTestRepo(t)
	ctx := context.Background()
	orderID := uuid.NewString()

	err := repo.StoreOrderMetadata(ctx, orderID, "cpi-hedge", "rebalance", WithCategory("Macro"))
	require.NoError(t, err)

	meta, err := repo.GetOrderMetadata(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, CategoryMacro, meta.MarketCategory, "override is normalized to lowercase")
}

func TestStoreOrderMetadataRejectsBadInputWithoutWriting(t *testing.T) {
	cases := []struct {
		name    string
		orderID string
		rule    string
		reason  string
	}{
		{"empty order id", " ", "rule-a", "a long enough reason"},
		{"empty rule", "order-1", "", "a long enough reason"},
		{"empty reason", "order-1", "rule-a", "  "},
		{"short reason", "order-1", "rule-a", "meh"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mr, _, repo := newTestRepo(t)

			err := repo.StoreOrderMetadata(context.Background(), tc.orderID, tc.rule, tc.reason)
			var verr *storeerr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Empty(t, mr.Keys())
		})
	}
}

func TestStoreOrderMetadataAllowsShortOperationalReasons(t *testing.T) {
	_, _, repo := newTestRepo(t)
	require.NoError(t, repo.StoreOrderMetadata(context.Background(), uuid.NewString(), "rule-a", "storm"))
}

func TestGetOrderMetadataAbsentReturnsNil(t *testing.T) {
	_, _, repo := newTestRepo(t)

	meta, err := repo.GetOrderMetadata(context.Background(), "never-stored")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestGetOrderMetadataCorruptPayload(t *testing.T) {
	mr, _, repo := newTestRepo(t)
	orderID := uuid.NewString()
	require.NoError(t, mr.Set(repo.Keys().OrderMetadata(orderID), "{broken"))

	_, err := repo.GetOrderMetadata(context.Background(), orderID)
	var verr *storeerr.ValidationError
	require.ErrorAs(t, err, &verr)
}
