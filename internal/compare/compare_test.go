package compare

import (
	"testing"

	"coincompare/internal/coingecko"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func ticker(exchange string, price, volume float64) coingecko.Ticker {
	return coingecko.Ticker{
		Market:          coingecko.Market{Name: exchange},
		ConvertedLast:   map[string]float64{"usd": price},
		ConvertedVolume: map[string]float64{"usd": volume},
	}
}

func TestSpread(t *testing.T) {
	// |101-99| / 100 * 100 = 2%
	spread := Spread(f(99), f(101))
	require.NotNil(t, spread)
	assert.InDelta(t, 2.0, *spread, 1e-9)

	assert.Nil(t, Spread(nil, f(101)))
	assert.Nil(t, Spread(f(99), nil))
	assert.Nil(t, Spread(nil, nil))

	// zero mid price is undefined
	assert.Nil(t, Spread(f(0), f(0)))
}

func TestDedupeTickersKeepsHighestVolume(t *testing.T) {
	tickers := []coingecko.Ticker{
		ticker("Binance", 50010, 10),
		ticker("Coinbase", 50020, 5),
		ticker("Binance", 50000, 50),
	}

	kept := DedupeTickers(tickers)
	require.Len(t, kept, 2)

	// first-seen order preserved
	assert.Equal(t, "Binance", kept[0].Market.Name)
	assert.Equal(t, "Coinbase", kept[1].Market.Name)

	// Binance keeps the volume-50 entry
	assert.Equal(t, 50.0, kept[0].VolumeUSD())
	assert.Equal(t, 50000.0, kept[0].PriceUSD())
}

func TestDedupeTickersTieKeepsFirstSeen(t *testing.T) {
	tickers := []coingecko.Ticker{
		ticker("Kraken", 100, 7),
		ticker("Kraken", 200, 7),
	}

	kept := DedupeTickers(tickers)
	require.Len(t, kept, 1)
	assert.Equal(t, 100.0, kept[0].PriceUSD())
}

func TestDedupeTickersDropsUnnamedMarkets(t *testing.T) {
	tickers := []coingecko.Ticker{
		ticker("", 100, 7),
		ticker("Kraken", 200, 3),
	}

	kept := DedupeTickers(tickers)
	require.Len(t, kept, 1)
	assert.Equal(t, "Kraken", kept[0].Market.Name)
}

func TestBuildResultRanking(t *testing.T) {
	quotes := []Quote{
		{ExchangeName: "B", PriceUSD: 50050, Volume24h: f(4e8)},
		{ExchangeName: "A", PriceUSD: 50000, Volume24h: f(5e8)},
	}

	result := buildResult("Bitcoin", quotes)
	require.Len(t, result.Exchanges, 2)

	assert.Equal(t, "Bitcoin", result.Coin)
	assert.Equal(t, "A", result.Exchanges[0].ExchangeName)
	assert.Equal(t, "B", result.Exchanges[1].ExchangeName)

	require.NotNil(t, result.BestPrice)
	assert.Equal(t, "A", result.BestPrice.ExchangeName)
	assert.Equal(t, 50000.0, result.BestPrice.PriceUSD)

	require.NotNil(t, result.BestForLargeOrders)
	assert.Equal(t, "A", result.BestForLargeOrders.ExchangeName)
}

func TestBuildResultMissingVolumeCountsAsZero(t *testing.T) {
	quotes := []Quote{
		{ExchangeName: "NoVolume", PriceUSD: 10},
		{ExchangeName: "Tiny", PriceUSD: 20, Volume24h: f(1)},
	}

	result := buildResult("Test", quotes)
	require.NotNil(t, result.BestForLargeOrders)
	assert.Equal(t, "Tiny", result.BestForLargeOrders.ExchangeName)
}

func TestBuildResultVolumeTieKeepsPriceOrder(t *testing.T) {
	quotes := []Quote{
		{ExchangeName: "Expensive", PriceUSD: 30, Volume24h: f(100)},
		{ExchangeName: "Cheap", PriceUSD: 10, Volume24h: f(100)},
	}

	result := buildResult("Test", quotes)
	require.NotNil(t, result.BestForLargeOrders)
	// after the price sort, Cheap comes first and wins the tie
	assert.Equal(t, "Cheap", result.BestForLargeOrders.ExchangeName)
}

func TestBuildResultEmpty(t *testing.T) {
	result := buildResult("Ghost", nil)
	assert.Empty(t, result.Exchanges)
	assert.Nil(t, result.BestPrice)
	assert.Nil(t, result.BestForLargeOrders)
}

func TestBuildResultStableSortOnEqualPrices(t *testing.T) {
	quotes := []Quote{
		{ExchangeName: "First", PriceUSD: 10},
		{ExchangeName: "Second", PriceUSD: 10},
	}

	result := buildResult("Test", quotes)
	assert.Equal(t, "First", result.Exchanges[0].ExchangeName)
	assert.Equal(t, "Second", result.Exchanges[1].ExchangeName)
}
