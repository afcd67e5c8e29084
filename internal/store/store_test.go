package store

import (
	"context"
	"testing"
	"time"

	"coincompare/internal/errs"
	"coincompare/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func f(v float64) *float64 { return &v }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Coin{}, &models.Exchange{}, &models.Price{}))
	return db
}

func seedPair(t *testing.T, db *gorm.DB) (models.Coin, models.Exchange) {
	t.Helper()
	coin := models.Coin{CoingeckoID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"}
	require.NoError(t, db.Create(&coin).Error)
	exchange := models.Exchange{Name: "Binance"}
	require.NoError(t, db.Create(&exchange).Error)
	return coin, exchange
}

func TestCoinCreateDuplicateIsConflict(t *testing.T) {
	db := newTestDB(t)
	coins := NewCoinStore(db)
	ctx := context.Background()

	require.NoError(t, coins.Create(ctx, &models.Coin{CoingeckoID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"}))
	err := coins.Create(ctx, &models.Coin{CoingeckoID: "bitcoin", Symbol: "XBT", Name: "Bitcoin"})
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestCoinFindByCoingeckoID(t *testing.T) {
	db := newTestDB(t)
	coins := NewCoinStore(db)
	ctx := context.Background()

	seedPair(t, db)

	coin, err := coins.FindByCoingeckoID(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "BTC", coin.Symbol)

	_, err = coins.FindByCoingeckoID(ctx, "dogecoin")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCoinSearch(t *testing.T) {
	db := newTestDB(t)
	coins := NewCoinStore(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Coin{CoingeckoID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"}).Error)
	require.NoError(t, db.Create(&models.Coin{CoingeckoID: "ethereum", Symbol: "ETH", Name: "Ethereum"}).Error)

	found, err := coins.Search(ctx, "BIT", 100, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bitcoin", found[0].CoingeckoID)

	// symbol matches too
	found, err = coins.Search(ctx, "eth", 100, 0)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestCoinDeleteCascadesPrices(t *testing.T) {
	db := newTestDB(t)
	coins := NewCoinStore(db)
	ctx := context.Background()

	coin, exchange := seedPair(t, db)
	require.NoError(t, db.Create(&models.Price{
		ExchangeID:  exchange.ID,
		CoinID:      coin.ID,
		PriceUSD:    50000,
		LastUpdated: time.Now().UTC(),
	}).Error)

	require.NoError(t, coins.Delete(ctx, coin.ID))

	var priceCount int64
	require.NoError(t, db.Model(&models.Price{}).Count(&priceCount).Error)
	assert.Zero(t, priceCount)

	_, err := coins.FindByID(ctx, coin.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	assert.ErrorIs(t, coins.Delete(ctx, coin.ID), errs.ErrNotFound)
}

func TestExchangeDeleteCascadesPrices(t *testing.T) {
	db := newTestDB(t)
	exchanges := NewExchangeStore(db)
	ctx := context.Background()

	coin, exchange := seedPair(t, db)
	require.NoError(t, db.Create(&models.Price{
		ExchangeID:  exchange.ID,
		CoinID:      coin.ID,
		PriceUSD:    50000,
		LastUpdated: time.Now().UTC(),
	}).Error)

	require.NoError(t, exchanges.Delete(ctx, exchange.ID))

	var priceCount int64
	require.NoError(t, db.Model(&models.Price{}).Count(&priceCount).Error)
	assert.Zero(t, priceCount)
}

func TestExchangeCreateKeepsExplicitFalseFlags(t *testing.T) {
	db := newTestDB(t)
	exchanges := NewExchangeStore(db)
	ctx := context.Background()

	off := false
	require.NoError(t, exchanges.Create(ctx, &models.Exchange{
		Name:              "NoFees",
		HasTradingFees:    &off,
		HasWithdrawalFees: &off,
	}))

	stored, err := exchanges.FindByName(ctx, "NoFees")
	require.NoError(t, err)
	require.NotNil(t, stored.HasTradingFees)
	assert.False(t, *stored.HasTradingFees)
	require.NotNil(t, stored.HasWithdrawalFees)
	assert.False(t, *stored.HasWithdrawalFees)
}

func TestExchangeCreateDefaultsFlagsOn(t *testing.T) {
	db := newTestDB(t)
	exchanges := NewExchangeStore(db)
	ctx := context.Background()

	require.NoError(t, exchanges.Create(ctx, &models.Exchange{Name: "Binance"}))

	stored, err := exchanges.FindByName(ctx, "Binance")
	require.NoError(t, err)
	require.NotNil(t, stored.HasTradingFees)
	assert.True(t, *stored.HasTradingFees)
	require.NotNil(t, stored.HasWithdrawalFees)
	assert.True(t, *stored.HasWithdrawalFees)
}

func TestExchangeCoins(t *testing.T) {
	db := newTestDB(t)
	exchanges := NewExchangeStore(db)
	ctx := context.Background()

	coin, exchange := seedPair(t, db)
	other := models.Coin{CoingeckoID: "ethereum", Symbol: "ETH", Name: "Ethereum"}
	require.NoError(t, db.Create(&other).Error)
	require.NoError(t, db.Create(&models.Price{
		ExchangeID:  exchange.ID,
		CoinID:      coin.ID,
		PriceUSD:    50000,
		LastUpdated: time.Now().UTC(),
	}).Error)

	listed, err := exchanges.Coins(ctx, exchange.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "bitcoin", listed[0].CoingeckoID)
}

func TestPriceUpsertKeepsSingleRow(t *testing.T) {
	db := newTestDB(t)
	prices := NewPriceStore(db)
	ctx := context.Background()

	coin, exchange := seedPair(t, db)

	_, err := prices.Upsert(ctx, &models.Price{
		ExchangeID:  exchange.ID,
		CoinID:      coin.ID,
		PriceUSD:    50000,
		Volume24h:   f(1e8),
		LastUpdated: time.Now().UTC(),
	})
	require.NoError(t, err)

	updated, err := prices.Upsert(ctx, &models.Price{
		ExchangeID:  exchange.ID,
		CoinID:      coin.ID,
		PriceUSD:    51000,
		Volume24h:   f(2e8),
		LastUpdated: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 51000.0, updated.PriceUSD)

	var count int64
	require.NoError(t, db.Model(&models.Price{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPriceUpsertPreservesFees(t *testing.T) {
	db := newTestDB(t)
	prices := NewPriceStore(db)
	ctx := context.Background()

	coin, exchange := seedPair(t, db)

	_, err := prices.Upsert(ctx, &models.Price{
		ExchangeID:  exchange.ID,
		CoinID:      coin.ID,
		PriceUSD:    50000,
		LastUpdated: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Price{}).
		Where("exchange_id = ? AND coin_id = ?", exchange.ID, coin.ID).
		Updates(map[string]any{"trading_fee": 0.1, "withdrawal_fee": 0.0005}).Error)

	updated, err := prices.Upsert(ctx, &models.Price{
		ExchangeID:  exchange.ID,
		CoinID:      coin.ID,
		PriceUSD:    52000,
		LastUpdated: time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, 52000.0, updated.PriceUSD)
	require.NotNil(t, updated.TradingFee)
	assert.InDelta(t, 0.1, *updated.TradingFee, 1e-9)
	require.NotNil(t, updated.WithdrawalFee)
	assert.InDelta(t, 0.0005, *updated.WithdrawalFee, 1e-9)
}

func TestFeesByExchange(t *testing.T) {
	db := newTestDB(t)
	prices := NewPriceStore(db)
	ctx := context.Background()

	coin, exchange := seedPair(t, db)
	other := models.Coin{CoingeckoID: "ethereum", Symbol: "ETH", Name: "Ethereum"}
	require.NoError(t, db.Create(&other).Error)

	require.NoError(t, db.Create(&models.Price{
		ExchangeID:  exchange.ID,
		CoinID:      coin.ID,
		PriceUSD:    50000,
		TradingFee:  f(0.1),
		LastUpdated: time.Now().UTC(),
	}).Error)
	// no fee recorded, should not appear
	require.NoError(t, db.Create(&models.Price{
		ExchangeID:  exchange.ID,
		CoinID:      other.ID,
		PriceUSD:    3000,
		LastUpdated: time.Now().UTC(),
	}).Error)

	rows, err := prices.FeesByExchange(ctx, exchange.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "BTC", rows[0].Coin)
	require.NotNil(t, rows[0].TradingFee)
	assert.InDelta(t, 0.1, *rows[0].TradingFee, 1e-9)
}

func TestCleanupDuplicatesKeepsMostRecent(t *testing.T) {
	db := newTestDB(t)
	prices := NewPriceStore(db)
	ctx := context.Background()

	coin, exchange := seedPair(t, db)
	other := models.Exchange{Name: "Coinbase"}
	require.NoError(t, db.Create(&other).Error)

	// the unique index normally prevents duplicates; drop it to simulate
	// rows left behind by older schema versions
	require.NoError(t, db.Migrator().DropIndex(&models.Price{}, "idx_exchange_coin"))

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, price := range []float64{48000, 49000, 50000} {
		require.NoError(t, db.Create(&models.Price{
			ExchangeID:  exchange.ID,
			CoinID:      coin.ID,
			PriceUSD:    price,
			LastUpdated: base.Add(time.Duration(i) * time.Hour),
		}).Error)
	}
	// a clean pair stays untouched
	require.NoError(t, db.Create(&models.Price{
		ExchangeID:  other.ID,
		CoinID:      coin.ID,
		PriceUSD:    50100,
		LastUpdated: base,
	}).Error)

	report, err := prices.CleanupDuplicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DuplicatePairsFound)
	assert.Equal(t, 2, report.TotalRecordsRemoved)

	remaining, err := prices.FindByPair(ctx, exchange.ID, coin.ID)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, remaining.PriceUSD)

	var count int64
	require.NoError(t, db.Model(&models.Price{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCleanupDuplicatesNoopOnCleanData(t *testing.T) {
	db := newTestDB(t)
	prices := NewPriceStore(db)
	ctx := context.Background()

	coin, exchange := seedPair(t, db)
	require.NoError(t, db.Create(&models.Price{
		ExchangeID:  exchange.ID,
		CoinID:      coin.ID,
		PriceUSD:    50000,
		LastUpdated: time.Now().UTC(),
	}).Error)

	report, err := prices.CleanupDuplicates(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.DuplicatePairsFound)
	assert.Zero(t, report.TotalRecordsRemoved)
}
