package compare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coincompare/internal/coingecko"
	"coincompare/internal/errs"
	"coincompare/internal/models"
	"coincompare/internal/store"
)

// marketData is the slice of the upstream client the engine needs.
type marketData interface {
	GetSimplePrice(ctx context.Context, coinID string) (coingecko.SimplePrice, error)
	GetCoinTickers(ctx context.Context, coinID string) (*coingecko.TickerPage, error)
}

// Service runs the on-demand comparison flow: resolve the coin, fetch its
// tickers, reconcile them into one price row per exchange and rank the
// result.
type Service struct {
	coins     store.CoinStore
	exchanges store.ExchangeStore
	prices    store.PriceStore
	market    marketData
}

func NewService(coins store.CoinStore, exchanges store.ExchangeStore, prices store.PriceStore, market marketData) *Service {
	return &Service{
		coins:     coins,
		exchanges: exchanges,
		prices:    prices,
		market:    market,
	}
}

// Compare builds the cross-exchange comparison for a coin id.
func (s *Service) Compare(ctx context.Context, coinID string) (*Result, error) {
	coin, err := s.resolveCoin(ctx, coinID)
	if err != nil {
		return nil, err
	}

	page, err := s.market.GetCoinTickers(ctx, coinID)
	if err != nil {
		return nil, err
	}

	quotes, err := s.reconcile(ctx, coin, DedupeTickers(page.Tickers))
	if err != nil {
		return nil, err
	}

	return buildResult(coin.Name, quotes), nil
}

// resolveCoin returns the locally known coin. An unknown id is first
// validated against the upstream simple-price endpoint; only a confirmed id
// gets a placeholder record, an unconfirmed one is a not-found error and
// leaves no row behind.
func (s *Service) resolveCoin(ctx context.Context, coinID string) (models.Coin, error) {
	coin, err := s.coins.FindByCoingeckoID(ctx, coinID)
	if err == nil {
		return coin, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return models.Coin{}, err
	}

	prices, err := s.market.GetSimplePrice(ctx, coinID)
	if err != nil {
		return models.Coin{}, err
	}
	if _, known := prices[coinID]; !known {
		return models.Coin{}, fmt.Errorf("%w: coin %q", errs.ErrNotFound, coinID)
	}

	coin = models.Coin{
		CoingeckoID: coinID,
		Symbol:      strings.ToUpper(coinID),
		Name:        titleCase(coinID),
	}
	if err := s.coins.Create(ctx, &coin); err != nil {
		return models.Coin{}, err
	}
	return coin, nil
}

// reconcile upserts one price row per deduplicated ticker and builds the
// quote list. Exchanges referenced for the first time are created here;
// this is the only path that does so.
func (s *Service) reconcile(ctx context.Context, coin models.Coin, tickers []coingecko.Ticker) ([]Quote, error) {
	quotes := make([]Quote, 0, len(tickers))
	for _, t := range tickers {
		exchange, err := s.exchanges.FindByName(ctx, t.Market.Name)
		if errors.Is(err, errs.ErrNotFound) {
			exchange = models.Exchange{Name: t.Market.Name}
			if t.Market.Identifier != "" {
				website := t.Market.Identifier
				exchange.Website = &website
			}
			if err := s.exchanges.Create(ctx, &exchange); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}

		volume := t.VolumeUSD()
		price, err := s.prices.Upsert(ctx, &models.Price{
			ExchangeID:  exchange.ID,
			CoinID:      coin.ID,
			PriceUSD:    t.PriceUSD(),
			Volume24h:   &volume,
			BidPrice:    t.Bid,
			AskPrice:    t.Ask,
			LastUpdated: time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}

		quotes = append(quotes, Quote{
			ExchangeName:  exchange.Name,
			PriceUSD:      price.PriceUSD,
			Volume24h:     price.Volume24h,
			BidPrice:      price.BidPrice,
			AskPrice:      price.AskPrice,
			TradingFee:    price.TradingFee,
			WithdrawalFee: price.WithdrawalFee,
			LastUpdated:   price.LastUpdated,
			Spread:        Spread(t.Bid, t.Ask),
		})
	}
	return quotes, nil
}

// titleCase uppercases the first letter and lowercases the rest, matching
// the placeholder naming used when a coin is created from its id alone.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
