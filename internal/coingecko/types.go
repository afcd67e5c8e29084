package coingecko

// CoinListing is one entry of the /coins/list payload.
type CoinListing struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// ExchangeListing is one entry of the /exchanges payload.
type ExchangeListing struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Image string `json:"image"`
}

// Market identifies the venue a ticker was reported by.
type Market struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// Ticker is one exchange's reported quote for a coin.
type Ticker struct {
	Base            string             `json:"base"`
	Target          string             `json:"target"`
	Market          Market             `json:"market"`
	Bid             *float64           `json:"bid"`
	Ask             *float64           `json:"ask"`
	ConvertedLast   map[string]float64 `json:"converted_last"`
	ConvertedVolume map[string]float64 `json:"converted_volume"`
}

// PriceUSD returns the USD-converted last price, zero when absent.
func (t Ticker) PriceUSD() float64 {
	return t.ConvertedLast["usd"]
}

// VolumeUSD returns the USD-converted 24h volume, zero when absent.
func (t Ticker) VolumeUSD() float64 {
	return t.ConvertedVolume["usd"]
}

// TickerPage is the /coins/{id}/tickers payload.
type TickerPage struct {
	Name    string   `json:"name"`
	Tickers []Ticker `json:"tickers"`
}

// SimplePrice maps coin id -> currency -> value, as returned by
// /simple/price. A coin id absent from the map is unknown upstream.
type SimplePrice map[string]map[string]float64
