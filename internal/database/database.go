package database

import (
	"fmt"
	"log"
	"time"

	"coincompare/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func Initialize(databaseURL string) (*gorm.DB, error) {
	// TranslateError lets the stores detect duplicate-key failures portably.
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Set connection pool parameters
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database initialized successfully")
	return db, nil
}

// Migrate creates or updates the coins, exchanges and prices tables,
// including the unique (exchange_id, coin_id) index on prices.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Coin{}, &models.Exchange{}, &models.Price{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
