package models

import (
	"time"
)

// Coin represents a tracked cryptocurrency, identified by its CoinGecko id.
type Coin struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CoingeckoID string    `json:"coingecko_id" gorm:"uniqueIndex;not null"`
	Symbol      string    `json:"symbol" gorm:"index;not null"`
	Name        string    `json:"name" gorm:"not null"`
	LogoURL     *string   `json:"logo_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Exchange represents a trading venue quotes can come from.
// The fee flags are pointers so an explicit false survives the column
// default on insert.
type Exchange struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	Name              string    `json:"name" gorm:"uniqueIndex;not null"`
	Website           *string   `json:"website"`
	LogoURL           *string   `json:"logo_url"`
	HasTradingFees    *bool     `json:"has_trading_fees" gorm:"default:true"`
	HasWithdrawalFees *bool     `json:"has_withdrawal_fees" gorm:"default:true"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Price is the latest known quote for one (exchange, coin) pair.
// The composite unique index keeps at most one row per pair; writers must go
// through the atomic upsert in the price store.
type Price struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ExchangeID    uint      `json:"exchange_id" gorm:"not null;uniqueIndex:idx_exchange_coin"`
	CoinID        uint      `json:"coin_id" gorm:"not null;uniqueIndex:idx_exchange_coin"`
	Exchange      Exchange  `json:"-" gorm:"foreignKey:ExchangeID"`
	Coin          Coin      `json:"-" gorm:"foreignKey:CoinID"`
	PriceUSD      float64   `json:"price_usd" gorm:"not null"`
	Volume24h     *float64  `json:"volume_24h"`
	BidPrice      *float64  `json:"bid_price"`
	AskPrice      *float64  `json:"ask_price"`
	TradingFee    *float64  `json:"trading_fee"`    // as percentage
	WithdrawalFee *float64  `json:"withdrawal_fee"` // in USD
	LastUpdated   time.Time `json:"last_updated"`
}
