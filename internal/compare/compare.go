package compare

import (
	"math"
	"sort"
	"time"

	"coincompare/internal/coingecko"
)

// Quote is one exchange's reconciled entry in a comparison result.
type Quote struct {
	ExchangeName  string    `json:"exchange_name"`
	PriceUSD      float64   `json:"price_usd"`
	Volume24h     *float64  `json:"volume_24h"`
	BidPrice      *float64  `json:"bid_price"`
	AskPrice      *float64  `json:"ask_price"`
	TradingFee    *float64  `json:"trading_fee"`
	WithdrawalFee *float64  `json:"withdrawal_fee"`
	LastUpdated   time.Time `json:"last_updated"`
	Spread        *float64  `json:"spread"`
}

// Result bundles the cross-exchange comparison for one coin. BestPrice is
// nil only when Exchanges is empty.
type Result struct {
	Coin               string  `json:"coin"`
	Exchanges          []Quote `json:"exchanges"`
	BestPrice          *Quote  `json:"best_price"`
	BestForLargeOrders *Quote  `json:"best_for_large_orders"`
}

// Spread returns |ask-bid| relative to the mid price, as a percentage.
// It is nil when either side is missing or the mid price is zero.
func Spread(bid, ask *float64) *float64 {
	if bid == nil || ask == nil {
		return nil
	}
	mid := (*ask + *bid) / 2
	if mid == 0 {
		return nil
	}
	spread := math.Abs(*ask-*bid) / mid * 100
	return &spread
}

// DedupeTickers reduces a raw ticker list to one entry per exchange name,
// keeping the entry with the highest 24h USD volume. Ties keep the first
// entry seen. Tickers without a market name are dropped. Exchanges appear
// in the order they were first seen.
func DedupeTickers(tickers []coingecko.Ticker) []coingecko.Ticker {
	index := make(map[string]int)
	kept := make([]coingecko.Ticker, 0, len(tickers))
	for _, t := range tickers {
		name := t.Market.Name
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			if t.VolumeUSD() > kept[i].VolumeUSD() {
				kept[i] = t
			}
			continue
		}
		index[name] = len(kept)
		kept = append(kept, t)
	}
	return kept
}

// sortByPrice orders quotes ascending by price, preserving the input order
// among equal prices.
func sortByPrice(quotes []Quote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].PriceUSD < quotes[j].PriceUSD
	})
}

// bestByVolume returns the quote with the highest 24h volume, counting a
// missing volume as zero. Ties keep the earliest quote in the given order.
func bestByVolume(quotes []Quote) *Quote {
	if len(quotes) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(quotes); i++ {
		if volumeOf(quotes[i]) > volumeOf(quotes[best]) {
			best = i
		}
	}
	quote := quotes[best]
	return &quote
}

func volumeOf(q Quote) float64 {
	if q.Volume24h == nil {
		return 0
	}
	return *q.Volume24h
}

// buildResult assembles the final comparison from reconciled quotes.
func buildResult(coinName string, quotes []Quote) *Result {
	sortByPrice(quotes)
	result := &Result{
		Coin:               coinName,
		Exchanges:          quotes,
		BestForLargeOrders: bestByVolume(quotes),
	}
	if len(quotes) > 0 {
		best := quotes[0]
		result.BestPrice = &best
	}
	return result
}
