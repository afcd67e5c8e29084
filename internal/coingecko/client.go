package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"coincompare/internal/errs"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	cachePrefix    = "coingecko"

	listTTL  = 24 * time.Hour
	priceTTL = 5 * time.Minute

	maxRetries = 3
	baseDelay  = 1 * time.Second
)

// Store is the cache the client keeps upstream responses in between calls.
type Store interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Client is a read-only CoinGecko API client. Responses are cached under
// deterministic keys; rate-limit responses are retried with exponential
// backoff plus jitter before giving up.
type Client struct {
	baseURL string
	http    *resty.Client
	cache   Store
	sleep   func(time.Duration)
}

func NewClient(baseURL string, store Store) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := resty.New()
	httpClient.SetTimeout(15 * time.Second)

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		cache:   store,
		sleep:   time.Sleep,
	}
}

// ListCoins returns the full coin list, cached for 24 hours.
func (c *Client) ListCoins(ctx context.Context) ([]CoinListing, error) {
	var coins []CoinListing
	if err := c.cached(ctx, cachePrefix+":coins", listTTL, "/coins/list", nil, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// ListExchanges returns the exchange list, cached for 24 hours.
func (c *Client) ListExchanges(ctx context.Context) ([]ExchangeListing, error) {
	var exchanges []ExchangeListing
	if err := c.cached(ctx, cachePrefix+":exchanges", listTTL, "/exchanges", nil, &exchanges); err != nil {
		return nil, err
	}
	return exchanges, nil
}

// GetSimplePrice returns the USD price for one coin id, cached for 5 minutes.
// The result omits the coin id entirely when it is unknown upstream.
func (c *Client) GetSimplePrice(ctx context.Context, coinID string) (SimplePrice, error) {
	key := fmt.Sprintf("%s:price:%s:usd", cachePrefix, coinID)
	params := map[string]string{
		"ids":              coinID,
		"vs_currencies":    "usd",
		"include_24hr_vol": "true",
	}
	var prices SimplePrice
	if err := c.cached(ctx, key, priceTTL, "/simple/price", params, &prices); err != nil {
		return nil, err
	}
	return prices, nil
}

// GetCoinTickers returns the full ticker set for one coin id, cached for
// 5 minutes.
func (c *Client) GetCoinTickers(ctx context.Context, coinID string) (*TickerPage, error) {
	key := fmt.Sprintf("%s:tickers:%s", cachePrefix, coinID)
	var page TickerPage
	if err := c.cached(ctx, key, priceTTL, "/coins/"+coinID+"/tickers", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// cached serves dest from the cache when possible, otherwise fetches the
// value and stores it. Cache failures are logged, never fatal.
func (c *Client) cached(ctx context.Context, key string, ttl time.Duration, path string, params map[string]string, dest any) error {
	if c.cache != nil {
		hit, err := c.cache.Get(ctx, key, dest)
		if err != nil {
			log.Printf("Cache read for %s failed: %v", key, err)
		} else if hit {
			return nil
		}
	}

	if err := c.fetch(ctx, path, params, dest); err != nil {
		return err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, dest, ttl); err != nil {
			log.Printf("Cache write for %s failed: %v", key, err)
		}
	}
	return nil
}

// fetch performs one GET with a bounded retry loop on 429 responses.
// Any other non-200 status fails immediately.
func (c *Client) fetch(ctx context.Context, path string, params map[string]string, dest any) error {
	url := c.baseURL + path
	for attempt := 0; ; attempt++ {
		req := c.http.R().SetContext(ctx)
		if len(params) > 0 {
			req.SetQueryParams(params)
		}
		resp, err := req.Get(url)
		if err != nil {
			return fmt.Errorf("%w: GET %s: %v", errs.ErrUnavailable, path, err)
		}

		switch resp.StatusCode() {
		case http.StatusOK:
			if err := json.Unmarshal(resp.Body(), dest); err != nil {
				return fmt.Errorf("%w: decode %s response: %v", errs.ErrBadGateway, path, err)
			}
			return nil
		case http.StatusTooManyRequests:
			if attempt >= maxRetries {
				return fmt.Errorf("%w: GET %s still throttled after %d retries", errs.ErrRateLimited, path, maxRetries)
			}
			c.sleep(retryDelay(attempt))
		default:
			return fmt.Errorf("%w: GET %s returned status %d", errs.ErrBadGateway, path, resp.StatusCode())
		}
	}
}

// retryDelay is baseDelay doubled per attempt, plus up to one second of
// jitter so concurrent callers do not retry in lockstep.
func retryDelay(attempt int) time.Duration {
	backoff := baseDelay * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return backoff + jitter
}
