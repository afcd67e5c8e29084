package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CoingeckoAPIURL string
	Port            string
	Environment     string

	// Background sync tuning
	SyncInterval      time.Duration
	CoinSyncLimit     int
	ExchangeSyncLimit int
}

func Load() *Config {
	// Default MySQL connection string for local development
	defaultDSN := "root:root@tcp(localhost:3306)/coincompare?charset=utf8mb4&parseTime=True&loc=Local"

	return &Config{
		DatabaseURL:     getEnv("DATABASE_URL", defaultDSN),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		CoingeckoAPIURL: getEnv("COINGECKO_API_URL", "https://api.coingecko.com/api/v3"),
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),

		SyncInterval:      getEnvDuration("SYNC_INTERVAL", 4*time.Hour),
		CoinSyncLimit:     getEnvInt("COIN_SYNC_LIMIT", 50),
		ExchangeSyncLimit: getEnvInt("EXCHANGE_SYNC_LIMIT", 20),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
