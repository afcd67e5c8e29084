package store

import (
	"context"
	"errors"

	"coincompare/internal/errs"
	"coincompare/internal/models"

	"gorm.io/gorm"
)

type ExchangeStore interface {
	FindByID(ctx context.Context, id uint) (models.Exchange, error)
	FindByName(ctx context.Context, name string) (models.Exchange, error)
	List(ctx context.Context, limit, offset int) ([]models.Exchange, error)
	Coins(ctx context.Context, exchangeID uint) ([]models.Coin, error)
	Create(ctx context.Context, exchange *models.Exchange) error
	Update(ctx context.Context, exchange *models.Exchange) error
	Delete(ctx context.Context, id uint) error
}

type exchangeStore struct {
	db *gorm.DB
}

func NewExchangeStore(db *gorm.DB) ExchangeStore {
	return &exchangeStore{db: db}
}

func (s *exchangeStore) FindByID(ctx context.Context, id uint) (models.Exchange, error) {
	var exchange models.Exchange
	err := s.db.WithContext(ctx).First(&exchange, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Exchange{}, errs.ErrNotFound
	}
	return exchange, err
}

func (s *exchangeStore) FindByName(ctx context.Context, name string) (models.Exchange, error) {
	var exchange models.Exchange
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&exchange).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Exchange{}, errs.ErrNotFound
	}
	return exchange, err
}

func (s *exchangeStore) List(ctx context.Context, limit, offset int) ([]models.Exchange, error) {
	exchanges := make([]models.Exchange, 0)
	err := s.db.WithContext(ctx).Order("name").Limit(limit).Offset(offset).Find(&exchanges).Error
	return exchanges, err
}

// Coins returns every coin that has a price row on the exchange.
func (s *exchangeStore) Coins(ctx context.Context, exchangeID uint) ([]models.Coin, error) {
	coins := make([]models.Coin, 0)
	err := s.db.WithContext(ctx).
		Joins("JOIN prices ON prices.coin_id = coins.id").
		Where("prices.exchange_id = ?", exchangeID).
		Order("coins.name").
		Find(&coins).Error
	return coins, err
}

func (s *exchangeStore) Create(ctx context.Context, exchange *models.Exchange) error {
	err := s.db.WithContext(ctx).Create(exchange).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errs.ErrConflict
	}
	return err
}

func (s *exchangeStore) Update(ctx context.Context, exchange *models.Exchange) error {
	return s.db.WithContext(ctx).Save(exchange).Error
}

// Delete removes the exchange and every price row that references it.
func (s *exchangeStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exchange_id = ?", id).Delete(&models.Price{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Exchange{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
}
