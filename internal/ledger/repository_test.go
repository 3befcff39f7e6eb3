package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mahrens917/marketstore/pkg/storeerr"
)

func newTestRepo(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewRedisRepository(client, NewKeyBuilder("trades"), zap.NewNop())
	return mr, client, repo
}

func TestStoreWritesPayloadAndAllIndexes(t *testing.T) {
	mr, _, repo := newTestRepo(t)
	ctx := context.Background()
	trade := validTrade()

	require.NoError(t, repo.Store(ctx, trade))

	tradeKey := repo.Keys().Trade(trade.TradeTimestamp, trade.OrderID)
	assert.True(t, mr.Exists(tradeKey))

	for _, indexKey := range []string{
		repo.Keys().DateIndex(trade.TradeTimestamp),
		repo.Keys().CategoryIndex(CategoryWeather),
		repo.Keys().RuleIndex(trade.TradeRule),
		repo.Keys().StationIndex("KNYC"),
	} {
		members, err := mr.SMembers(indexKey)
		require.NoError(t, err, indexKey)
		assert.Contains(t, members, trade.OrderID, indexKey)
	}

	pointer, err := mr.Get(repo.Keys().OrderIndex(trade.OrderID))
	require.NoError(t, err)
	assert.Equal(t, tradeKey, pointer)
}

func TestStoreSkipsStationIndexForNonWeatherTrade(t *testing.T) {
	mr, _, repo := newTestRepo(t)
	trade := validTrade()
	trade.MarketCategory = CategoryMacro
	trade.WeatherStation = ""

	require.NoError(t, repo.Store(context.Background(), trade))
	assert.False(t, mr.Exists(repo.Keys().StationIndex("")))
}

func TestStoreRejectsInvalidTradeWithoutWriting(t *testing.T) {
	mr, _, repo := newTestRepo(t)
	trade := validTrade()
	trade.CostCents = 1

	err := repo.Store(context.Background(), trade)
	var verr *storeerr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, mr.Keys())
}

func TestStorePartialBatchFailureIsIntegrityError(t *testing.T) {
	mr, _, repo := newTestRepo(t)
	ctx := context.Background()
	trade := validTrade()

	// A plain string where the date index set should live makes that one
	// SAdd fail with WRONGTYPE while the rest of the batch lands.
	require.NoError(t, mr.Set(repo.Keys().DateIndex(trade.TradeTimestamp), "poisoned"))

	err := repo.Store(ctx, trade)
	var ierr *storeerr.IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Contains(t, ierr.Reason, "partially failed")
	assert.Equal(t, []int{1}, ierr.FailedOps, "batch order: payload, date, category, rule, station, order index")

	// The rest of the batch did apply; the failure must not pass as
	// transient or be silently accepted.
	assert.True(t, mr.Exists(repo.Keys().Trade(trade.TradeTimestamp, trade.OrderID)))
}

func TestStoreTransientOnStoreFailure(t *testing.T) {
	mr, _, repo := newTestRepo(t)
	mr.Close()

	err := repo.Store(context.Background(), validTrade())
	var terr *storeerr.TransientError
	require.ErrorAs(t, err, &terr)
}

func TestGetRoundTrip(t *testing.T) {
	_, _, repo := newTestRepo(t)
	ctx := context.Background()
	trade := validTrade()
	require.NoError(t, repo.Store(ctx, trade))

	got, err := repo.Get(ctx, trade.TradeTimestamp, trade.OrderID)
	require.NoError(t, err)
	assert.Equal(t, trade, got)
}

func TestGetAbsentReturnsNil(t *testing.T) {
	_, _, repo := newTestRepo(t)

	got, err := repo.Get(context.Background(), time.Now(), "no-such-order")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByOrderID(t *testing.T) {
	_, _, repo := newTestRepo(t)
	ctx := context.Background()
	trade := validTrade()
	require.NoError(t, repo.Store(ctx, trade))

	got, err := repo.GetByOrderID(ctx, trade.OrderID)
	require.NoError(t, err)
	assert.Equal(t, trade, got)

	got, err = repo.GetByOrderID(ctx, "unknown-order")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByOrderIDDanglingIndexIsIntegrityError(t *testing.T) {
	mr, _, repo := newTestRepo(t)
	ctx := context.Background()
	trade := validTrade()
	require.NoError(t, repo.Store(ctx, trade))

	mr.Del(repo.Keys().Trade(trade.TradeTimestamp, trade.OrderID))

	_, err := repo.GetByOrderID(ctx, trade.OrderID)
	var ierr *storeerr.IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Contains(t, ierr.Reason, "missing trade payload")
}

func TestGetCorruptPayloadIsValidationErrorWithKey(t *testing.T) {
	mr, _, repo := newTestRepo(t)
	ctx := context.Background()
	trade := validTrade()
	tradeKey := repo.Keys().Trade(trade.TradeTimestamp, trade.OrderID)
	require.NoError(t, mr.Set(tradeKey, "{broken"))

	_, err := repo.Get(ctx, trade.TradeTimestamp, trade.OrderID)
	var verr *storeerr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, tradeKey, verr.Key)
}

func TestLoadAllForDateReturnsDistinctOrders(t *testing.T) {
	_, _, repo := newTestRepo(t)
	ctx := context.Background()

	first := validTrade()
	second := validTrade()
	second.TradeTimestamp = first.TradeTimestamp.Add(2 * time.Hour)
	otherDay := validTrade()
	otherDay.TradeTimestamp = first.TradeTimestamp.Add(48 * time.Hour)

	for _, trade := range []*TradeRecord{first, second, otherDay} {
		require.NoError(t, repo.Store(ctx, trade))
	}

	orders, err := repo.LoadAllForDate(ctx, first.TradeTimestamp)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.OrderID, second.OrderID}, orders)
}

func TestLoadIndexByStationAndRule(t *testing.T) {
	_, _, repo := newTestRepo(t)
	ctx := context.Background()
	trade := validTrade()
	require.NoError(t, repo.Store(ctx, trade))

	byStation, err := repo.LoadIndex(ctx, repo.Keys().StationIndex("KNYC"))
	require.NoError(t, err)
	assert.Equal(t, []string{trade.OrderID}, byStation)

	byRule, err := repo.LoadIndex(ctx, repo.Keys().RuleIndex(trade.TradeRule))
	require.NoError(t, err)
	assert.Equal(t, []string{trade.OrderID}, byRule)

	empty, err := repo.LoadIndex(ctx, repo.Keys().RuleIndex("never-used"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}
