package store

import (
	"context"
	"errors"

	"coincompare/internal/errs"
	"coincompare/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeeRow is one coin's fee information on an exchange.
type FeeRow struct {
	Coin          string   `json:"coin"`
	TradingFee    *float64 `json:"trading_fee"`
	WithdrawalFee *float64 `json:"withdrawal_fee"`
}

// CleanupReport summarizes a duplicate-price sweep.
type CleanupReport struct {
	DuplicatePairsFound int `json:"duplicate_pairs_found"`
	TotalRecordsRemoved int `json:"total_records_removed"`
}

type PriceStore interface {
	FindByPair(ctx context.Context, exchangeID, coinID uint) (models.Price, error)
	Upsert(ctx context.Context, price *models.Price) (models.Price, error)
	FeesByExchange(ctx context.Context, exchangeID uint) ([]FeeRow, error)
	CleanupDuplicates(ctx context.Context) (CleanupReport, error)
}

type priceStore struct {
	db *gorm.DB
}

func NewPriceStore(db *gorm.DB) PriceStore {
	return &priceStore{db: db}
}

func (s *priceStore) FindByPair(ctx context.Context, exchangeID, coinID uint) (models.Price, error) {
	var price models.Price
	err := s.db.WithContext(ctx).
		Where("exchange_id = ? AND coin_id = ?", exchangeID, coinID).
		First(&price).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Price{}, errs.ErrNotFound
	}
	return price, err
}

// Upsert writes the quote for a (exchange, coin) pair as a single atomic
// insert-or-update keyed on the pair's unique index. Fee columns are not in
// the update set, so values recorded earlier survive ticker refreshes.
// The returned row is re-read so callers see the preserved fields.
func (s *priceStore) Upsert(ctx context.Context, price *models.Price) (models.Price, error) {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "exchange_id"}, {Name: "coin_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price_usd", "volume24h", "bid_price", "ask_price", "last_updated",
		}),
	}).Create(price).Error
	if err != nil {
		return models.Price{}, err
	}
	return s.FindByPair(ctx, price.ExchangeID, price.CoinID)
}

// FeesByExchange returns fee rows for every coin on the exchange that has a
// trading fee recorded.
func (s *priceStore) FeesByExchange(ctx context.Context, exchangeID uint) ([]FeeRow, error) {
	rows := make([]FeeRow, 0)
	err := s.db.WithContext(ctx).Model(&models.Price{}).
		Select("coins.symbol AS coin, prices.trading_fee, prices.withdrawal_fee").
		Joins("JOIN coins ON coins.id = prices.coin_id").
		Where("prices.exchange_id = ? AND prices.trading_fee IS NOT NULL", exchangeID).
		Scan(&rows).Error
	return rows, err
}

// CleanupDuplicates deletes all but the most recently updated price row for
// every (exchange, coin) pair that has more than one. It is a corrective
// sweep; the upsert above is what keeps the invariant in the first place.
func (s *priceStore) CleanupDuplicates(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		type pair struct {
			ExchangeID uint
			CoinID     uint
		}
		var pairs []pair
		if err := tx.Model(&models.Price{}).
			Select("exchange_id, coin_id").
			Group("exchange_id, coin_id").
			Having("COUNT(id) > 1").
			Scan(&pairs).Error; err != nil {
			return err
		}

		for _, p := range pairs {
			var prices []models.Price
			if err := tx.Where("exchange_id = ? AND coin_id = ?", p.ExchangeID, p.CoinID).
				Order("last_updated DESC").
				Find(&prices).Error; err != nil {
				return err
			}
			for _, stale := range prices[1:] {
				if err := tx.Delete(&models.Price{}, stale.ID).Error; err != nil {
					return err
				}
				report.TotalRecordsRemoved++
			}
		}
		report.DuplicatePairsFound = len(pairs)
		return nil
	})
	return report, err
}
