package store

import (
	"context"
	"errors"
	"strings"

	"coincompare/internal/errs"
	"coincompare/internal/models"

	"gorm.io/gorm"
)

type CoinStore interface {
	FindByID(ctx context.Context, id uint) (models.Coin, error)
	FindByCoingeckoID(ctx context.Context, coingeckoID string) (models.Coin, error)
	All(ctx context.Context) ([]models.Coin, error)
	List(ctx context.Context, limit, offset int) ([]models.Coin, error)
	Search(ctx context.Context, query string, limit, offset int) ([]models.Coin, error)
	Create(ctx context.Context, coin *models.Coin) error
	Update(ctx context.Context, coin *models.Coin) error
	Delete(ctx context.Context, id uint) error
}

type coinStore struct {
	db *gorm.DB
}

func NewCoinStore(db *gorm.DB) CoinStore {
	return &coinStore{db: db}
}

func (s *coinStore) FindByID(ctx context.Context, id uint) (models.Coin, error) {
	var coin models.Coin
	err := s.db.WithContext(ctx).First(&coin, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Coin{}, errs.ErrNotFound
	}
	return coin, err
}

func (s *coinStore) FindByCoingeckoID(ctx context.Context, coingeckoID string) (models.Coin, error) {
	var coin models.Coin
	err := s.db.WithContext(ctx).Where("coingecko_id = ?", coingeckoID).First(&coin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Coin{}, errs.ErrNotFound
	}
	return coin, err
}

// All returns every tracked coin, for jobs that walk the whole set.
func (s *coinStore) All(ctx context.Context) ([]models.Coin, error) {
	var coins []models.Coin
	err := s.db.WithContext(ctx).Order("name").Find(&coins).Error
	return coins, err
}

func (s *coinStore) List(ctx context.Context, limit, offset int) ([]models.Coin, error) {
	coins := make([]models.Coin, 0)
	err := s.db.WithContext(ctx).Order("name").Limit(limit).Offset(offset).Find(&coins).Error
	return coins, err
}

// Search matches the substring case-insensitively against name, symbol and
// coingecko id.
func (s *coinStore) Search(ctx context.Context, query string, limit, offset int) ([]models.Coin, error) {
	like := "%" + strings.ToLower(query) + "%"
	coins := make([]models.Coin, 0)
	err := s.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(symbol) LIKE ? OR LOWER(coingecko_id) LIKE ?", like, like, like).
		Order("name").Limit(limit).Offset(offset).
		Find(&coins).Error
	return coins, err
}

func (s *coinStore) Create(ctx context.Context, coin *models.Coin) error {
	err := s.db.WithContext(ctx).Create(coin).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errs.ErrConflict
	}
	return err
}

func (s *coinStore) Update(ctx context.Context, coin *models.Coin) error {
	return s.db.WithContext(ctx).Save(coin).Error
}

// Delete removes the coin and every price row that references it.
func (s *coinStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("coin_id = ?", id).Delete(&models.Price{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Coin{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
}
