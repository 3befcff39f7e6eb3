package marketdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mahrens917/marketstore/pkg/storeerr"
)

func TestDeleteIfInvalidRemovesZeroedSnapshot(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.HSet(ctx, "market:weather:Z", map[string]string{
		FieldBestBid:     "0",
		FieldBestAsk:     "11",
		FieldBestBidSize: "1",
		FieldBestAskSize: "1",
	}).Err())

	deleter := NewDeletionValidator(client, zap.NewNop())
	deleted, err := deleter.DeleteIfInvalid(ctx, "market:weather:Z", map[string]any{
		FieldBestBid:     int64(0),
		FieldBestAsk:     int64(11),
		FieldBestBidSize: int64(1),
		FieldBestAskSize: int64(1),
	})
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists("market:weather:Z"))
}

func TestDeleteIfInvalidIsIdempotent(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	deleter := NewDeletionValidator(client, zap.NewNop())
	degenerate := map[string]any{
		FieldBestBid: nil,
	}

	deleted, err := deleter.DeleteIfInvalid(ctx, "market:weather:GONE", degenerate)
	require.NoError(t, err)
	assert.False(t, deleted, "key never existed, nothing removed")

	deleted, err = deleter.DeleteIfInvalid(ctx, "market:weather:GONE", degenerate)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteIfInvalidKeepsValidSnapshot(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.HSet(ctx, "market:weather:OK", map[string]string{
		FieldBestBid:     "10",
		FieldBestAsk:     "11",
		FieldBestBidSize: "5",
		FieldBestAskSize: "6",
	}).Err())

	deleter := NewDeletionValidator(client, zap.NewNop())
	deleted, err := deleter.DeleteIfInvalid(ctx, "market:weather:OK", map[string]any{
		FieldBestBid:     int64(10),
		FieldBestAsk:     int64(11),
		FieldBestBidSize: int64(5),
		FieldBestAskSize: int64(6),
	})
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, mr.Exists("market:weather:OK"))
}

func TestDeleteIfInvalidTransientOnStoreFailure(t *testing.T) {
	mr, client := newTestClient(t)
	mr.Close()

	deleter := NewDeletionValidator(client, zap.NewNop())
	_, err := deleter.DeleteIfInvalid(context.Background(), "market:weather:X", map[string]any{
		FieldBestBid: int64(0),
	})

	var terr *storeerr.TransientError
	require.ErrorAs(t, err, &terr)
}

func TestDegenerateFindsFirstBadCriticalField(t *testing.T) {
	cases := []struct {
		name  string
		data  map[string]any
		field string
		bad   bool
	}{
		{"all present", map[string]any{
			FieldBestBid: 10.0, FieldBestAsk: 11.0, FieldBestBidSize: int64(1), FieldBestAskSize: int64(1),
		}, "", false},
		{"missing field", map[string]any{
			FieldBestBid: 10.0,
		}, "", true},
		{"nil value", map[string]any{
			FieldBestBid: nil, FieldBestAsk: 11.0, FieldBestBidSize: int64(1), FieldBestAskSize: int64(1),
		}, FieldBestBid, true},
		{"zero numeric", map[string]any{
			FieldBestBid: 10.0, FieldBestAsk: 0.0, FieldBestBidSize: int64(1), FieldBestAskSize: int64(1),
		}, FieldBestAsk, true},
		{"empty string", map[string]any{
			FieldBestBid: 10.0, FieldBestAsk: 11.0, FieldBestBidSize: "", FieldBestAskSize: int64(1),
		}, FieldBestBidSize, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			field, bad := Degenerate(tc.data)
			assert.Equal(t, tc.bad, bad)
			if tc.field != "" {
				assert.Equal(t, tc.field, field)
			}
		})
	}
}
