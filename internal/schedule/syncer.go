package schedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"coincompare/internal/coingecko"
	"coincompare/internal/compare"
	"coincompare/internal/errs"
	"coincompare/internal/models"
	"coincompare/internal/store"
)

const (
	DefaultCoinLimit     = 50
	DefaultExchangeLimit = 20
	DefaultInterval      = 4 * time.Hour

	// courtesy pause between per-coin ticker fetches
	defaultPause = 1 * time.Second
)

// marketData is the slice of the upstream client the sync jobs use.
type marketData interface {
	ListCoins(ctx context.Context) ([]coingecko.CoinListing, error)
	ListExchanges(ctx context.Context) ([]coingecko.ExchangeListing, error)
	GetCoinTickers(ctx context.Context, coinID string) (*coingecko.TickerPage, error)
}

// JobCounts reports one sync job's outcome.
type JobCounts struct {
	Updated int    `json:"updated"`
	Created int    `json:"created"`
	Error   string `json:"error,omitempty"`
}

// Summary aggregates a full sync run. Failed jobs carry their error text
// alongside whatever counts they reached.
type Summary struct {
	Coins     JobCounts            `json:"coins"`
	Exchanges JobCounts            `json:"exchanges"`
	Prices    JobCounts            `json:"prices"`
	Cleanup   *store.CleanupReport `json:"cleanup,omitempty"`
}

// LastRuns holds the last successful completion time per job category.
// Fields are nil until the first success.
type LastRuns struct {
	Coins     *time.Time `json:"coins"`
	Exchanges *time.Time `json:"exchanges"`
	Prices    *time.Time `json:"prices"`
}

// Syncer batch-updates coins, exchanges and prices from the upstream API
// into the store, on demand and on a periodic timer.
type Syncer struct {
	coins     store.CoinStore
	exchanges store.ExchangeStore
	prices    store.PriceStore
	market    marketData

	CoinLimit     int
	ExchangeLimit int
	Pause         time.Duration

	sleep func(time.Duration)

	mu   sync.Mutex
	last LastRuns
}

func NewSyncer(coins store.CoinStore, exchanges store.ExchangeStore, prices store.PriceStore, market marketData) *Syncer {
	return &Syncer{
		coins:         coins,
		exchanges:     exchanges,
		prices:        prices,
		market:        market,
		CoinLimit:     DefaultCoinLimit,
		ExchangeLimit: DefaultExchangeLimit,
		Pause:         defaultPause,
		sleep:         time.Sleep,
	}
}

// SyncCoins refreshes the top coins from the upstream list, updating
// existing records and creating missing ones.
func (s *Syncer) SyncCoins(ctx context.Context) (updated, created int, err error) {
	log.Println("Starting coin sync")
	listings, err := s.market.ListCoins(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch coin list: %w", err)
	}
	if len(listings) > s.CoinLimit {
		listings = listings[:s.CoinLimit]
	}

	for _, listing := range listings {
		coin, err := s.coins.FindByCoingeckoID(ctx, listing.ID)
		switch {
		case err == nil:
			coin.Symbol = strings.ToUpper(listing.Symbol)
			coin.Name = listing.Name
			if err := s.coins.Update(ctx, &coin); err != nil {
				return updated, created, fmt.Errorf("update coin %s: %w", listing.ID, err)
			}
			updated++
		case errors.Is(err, errs.ErrNotFound):
			coin = models.Coin{
				CoingeckoID: listing.ID,
				Symbol:      strings.ToUpper(listing.Symbol),
				Name:        listing.Name,
			}
			if err := s.coins.Create(ctx, &coin); err != nil {
				return updated, created, fmt.Errorf("create coin %s: %w", listing.ID, err)
			}
			created++
		default:
			return updated, created, err
		}
	}

	s.markSuccess(func(l *LastRuns, now *time.Time) { l.Coins = now })
	log.Printf("Coin sync completed: %d updated, %d created", updated, created)
	return updated, created, nil
}

// SyncExchanges refreshes the top exchanges from the upstream list.
func (s *Syncer) SyncExchanges(ctx context.Context) (updated, created int, err error) {
	log.Println("Starting exchange sync")
	listings, err := s.market.ListExchanges(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch exchange list: %w", err)
	}
	if len(listings) > s.ExchangeLimit {
		listings = listings[:s.ExchangeLimit]
	}

	for _, listing := range listings {
		exchange, err := s.exchanges.FindByName(ctx, listing.Name)
		switch {
		case err == nil:
			applyListing(&exchange, listing)
			if err := s.exchanges.Update(ctx, &exchange); err != nil {
				return updated, created, fmt.Errorf("update exchange %s: %w", listing.Name, err)
			}
			updated++
		case errors.Is(err, errs.ErrNotFound):
			exchange = models.Exchange{Name: listing.Name}
			applyListing(&exchange, listing)
			if err := s.exchanges.Create(ctx, &exchange); err != nil {
				return updated, created, fmt.Errorf("create exchange %s: %w", listing.Name, err)
			}
			created++
		default:
			return updated, created, err
		}
	}

	s.markSuccess(func(l *LastRuns, now *time.Time) { l.Exchanges = now })
	log.Printf("Exchange sync completed: %d updated, %d created", updated, created)
	return updated, created, nil
}

func applyListing(exchange *models.Exchange, listing coingecko.ExchangeListing) {
	if listing.URL != "" {
		website := listing.URL
		exchange.Website = &website
	}
	if listing.Image != "" {
		logo := listing.Image
		exchange.LogoURL = &logo
	}
}

// SyncPrices refreshes the price row of every stored coin on every known
// exchange. Exchanges not yet in the store are skipped here; only the
// on-demand comparison path creates them. A short pause between coins keeps
// the upstream rate limiter happy.
func (s *Syncer) SyncPrices(ctx context.Context) (int, error) {
	log.Println("Starting price sync")
	coins, err := s.coins.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("list coins: %w", err)
	}

	total := 0
	for _, coin := range coins {
		n, err := s.syncCoinPrices(ctx, coin)
		total += n
		if err != nil {
			log.Printf("Price sync for %s failed: %v", coin.Name, err)
		}
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
		if s.Pause > 0 {
			s.sleep(s.Pause)
		}
	}

	s.markSuccess(func(l *LastRuns, now *time.Time) { l.Prices = now })
	log.Printf("Price sync completed: %d prices updated", total)
	return total, nil
}

func (s *Syncer) syncCoinPrices(ctx context.Context, coin models.Coin) (int, error) {
	page, err := s.market.GetCoinTickers(ctx, coin.CoingeckoID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, t := range compare.DedupeTickers(page.Tickers) {
		exchange, err := s.exchanges.FindByName(ctx, t.Market.Name)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return count, err
		}

		volume := t.VolumeUSD()
		if _, err := s.prices.Upsert(ctx, &models.Price{
			ExchangeID:  exchange.ID,
			CoinID:      coin.ID,
			PriceUSD:    t.PriceUSD(),
			Volume24h:   &volume,
			BidPrice:    t.Bid,
			AskPrice:    t.Ask,
			LastUpdated: time.Now().UTC(),
		}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// SyncAll runs the three jobs in sequence. A failing job is recorded in the
// summary and never stops its siblings. A duplicate sweep runs afterwards
// as a safety net.
func (s *Syncer) SyncAll(ctx context.Context) Summary {
	var summary Summary

	updated, created, err := s.SyncCoins(ctx)
	summary.Coins = JobCounts{Updated: updated, Created: created}
	if err != nil {
		summary.Coins.Error = err.Error()
		log.Printf("Coin sync failed: %v", err)
	}

	updated, created, err = s.SyncExchanges(ctx)
	summary.Exchanges = JobCounts{Updated: updated, Created: created}
	if err != nil {
		summary.Exchanges.Error = err.Error()
		log.Printf("Exchange sync failed: %v", err)
	}

	n, err := s.SyncPrices(ctx)
	summary.Prices = JobCounts{Updated: n}
	if err != nil {
		summary.Prices.Error = err.Error()
		log.Printf("Price sync failed: %v", err)
	}

	report, err := s.prices.CleanupDuplicates(ctx)
	if err != nil {
		log.Printf("Duplicate cleanup failed: %v", err)
	} else {
		summary.Cleanup = &report
		if report.TotalRecordsRemoved > 0 {
			log.Printf("Removed %d duplicate price rows across %d pairs",
				report.TotalRecordsRemoved, report.DuplicatePairsFound)
		}
	}

	return summary
}

// Run re-invokes SyncAll on a fixed interval until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.SyncAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// LastRuns returns a snapshot of the per-job last-success timestamps.
func (s *Syncer) LastRuns() LastRuns {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Syncer) markSuccess(set func(*LastRuns, *time.Time)) {
	now := time.Now().UTC()
	s.mu.Lock()
	set(&s.last, &now)
	s.mu.Unlock()
}
