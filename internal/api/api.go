package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coincompare/internal/coingecko"
	"coincompare/internal/compare"
	"coincompare/internal/errs"
	"coincompare/internal/models"
	"coincompare/internal/schedule"
	"coincompare/internal/store"

	"github.com/gin-gonic/gin"
)

const compareCacheTTL = 5 * time.Minute

// resultCache is the slice of the cache gateway the handlers use for
// comparison results. May be nil, in which case caching is skipped.
type resultCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type APIHandler struct {
	coins     store.CoinStore
	exchanges store.ExchangeStore
	prices    store.PriceStore
	comparer  *compare.Service
	syncer    *schedule.Syncer
	cache     resultCache
	market    *coingecko.Client
}

func SetupRoutes(r *gin.Engine, coins store.CoinStore, exchanges store.ExchangeStore, prices store.PriceStore,
	comparer *compare.Service, syncer *schedule.Syncer, cache resultCache, market *coingecko.Client) *APIHandler {

	handler := &APIHandler{
		coins:     coins,
		exchanges: exchanges,
		prices:    prices,
		comparer:  comparer,
		syncer:    syncer,
		cache:     cache,
		market:    market,
	}

	coinsGroup := r.Group("/coins")
	{
		coinsGroup.GET("", handler.ListCoins)
		coinsGroup.GET("/search", handler.SearchCoins)
		coinsGroup.GET("/by-coingecko-id/:coingecko_id", handler.GetCoinByCoingeckoID)
		coinsGroup.GET("/:id", handler.GetCoin)
		coinsGroup.POST("", handler.CreateCoin)
		coinsGroup.PUT("/:id", handler.UpdateCoin)
		coinsGroup.DELETE("/:id", handler.DeleteCoin)
	}

	exchangesGroup := r.Group("/exchanges")
	{
		exchangesGroup.GET("", handler.ListExchanges)
		exchangesGroup.GET("/:id", handler.GetExchange)
		exchangesGroup.GET("/:id/coins", handler.GetExchangeCoins)
		exchangesGroup.GET("/:id/fees", handler.GetExchangeFees)
		exchangesGroup.POST("", handler.CreateExchange)
		exchangesGroup.PUT("/:id", handler.UpdateExchange)
		exchangesGroup.DELETE("/:id", handler.DeleteExchange)
	}

	r.GET("/compare/:coin_id", handler.CompareCoin)

	syncGroup := r.Group("/sync")
	{
		syncGroup.POST("", handler.TriggerSync)
		syncGroup.GET("/status", handler.SyncStatus)
	}
	r.POST("/cleanup/duplicates", handler.CleanupDuplicates)

	return handler
}

// errStatus maps error kinds onto HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrBadGateway), errors.Is(err, errs.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := errStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Keep internals out of responses.
		log.Printf("Internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}

func idParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: id must be a positive integer", errs.ErrValidation)
	}
	return uint(id), nil
}

func defaultTrue(v *bool) *bool {
	if v != nil {
		return v
	}
	t := true
	return &t
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ---------- Coins ----------

func (h *APIHandler) ListCoins(c *gin.Context) {
	limit, offset := pagination(c)
	coins, err := h.coins.List(c.Request.Context(), limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, coins)
}

func (h *APIHandler) SearchCoins(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		abortWithError(c, fmt.Errorf("%w: query parameter q is required", errs.ErrValidation))
		return
	}
	limit, offset := pagination(c)
	coins, err := h.coins.Search(c.Request.Context(), query, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, coins)
}

func (h *APIHandler) GetCoin(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	coin, err := h.coins.FindByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, coin)
}

func (h *APIHandler) GetCoinByCoingeckoID(c *gin.Context) {
	coin, err := h.coins.FindByCoingeckoID(c.Request.Context(), c.Param("coingecko_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, coin)
}

type createCoinRequest struct {
	CoingeckoID string  `json:"coingecko_id" binding:"required"`
	Symbol      string  `json:"symbol" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	LogoURL     *string `json:"logo_url"`
}

func (h *APIHandler) CreateCoin(c *gin.Context) {
	var req createCoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}

	ctx := c.Request.Context()

	// Verify the id exists upstream before accepting it.
	prices, err := h.market.GetSimplePrice(ctx, req.CoingeckoID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if _, known := prices[req.CoingeckoID]; !known {
		abortWithError(c, fmt.Errorf("%w: coin %q not found on CoinGecko", errs.ErrValidation, req.CoingeckoID))
		return
	}

	coin := models.Coin{
		CoingeckoID: req.CoingeckoID,
		Symbol:      req.Symbol,
		Name:        req.Name,
		LogoURL:     req.LogoURL,
	}
	if err := h.coins.Create(ctx, &coin); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, coin)
}

type updateCoinRequest struct {
	Symbol  *string `json:"symbol"`
	Name    *string `json:"name"`
	LogoURL *string `json:"logo_url"`
}

func (h *APIHandler) UpdateCoin(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var req updateCoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}

	ctx := c.Request.Context()
	coin, err := h.coins.FindByID(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if req.Symbol != nil {
		coin.Symbol = *req.Symbol
	}
	if req.Name != nil {
		coin.Name = *req.Name
	}
	if req.LogoURL != nil {
		coin.LogoURL = req.LogoURL
	}
	if err := h.coins.Update(ctx, &coin); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, coin)
}

func (h *APIHandler) DeleteCoin(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.coins.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// ---------- Exchanges ----------

func (h *APIHandler) ListExchanges(c *gin.Context) {
	limit, offset := pagination(c)
	exchanges, err := h.exchanges.List(c.Request.Context(), limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, exchanges)
}

func (h *APIHandler) GetExchange(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	exchange, err := h.exchanges.FindByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, exchange)
}

func (h *APIHandler) GetExchangeCoins(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.exchanges.FindByID(ctx, id); err != nil {
		abortWithError(c, err)
		return
	}
	coins, err := h.exchanges.Coins(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, coins)
}

func (h *APIHandler) GetExchangeFees(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.exchanges.FindByID(ctx, id); err != nil {
		abortWithError(c, err)
		return
	}
	fees, err := h.prices.FeesByExchange(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, fees)
}

type createExchangeRequest struct {
	Name              string  `json:"name" binding:"required"`
	Website           *string `json:"website"`
	LogoURL           *string `json:"logo_url"`
	HasTradingFees    *bool   `json:"has_trading_fees"`
	HasWithdrawalFees *bool   `json:"has_withdrawal_fees"`
}

func (h *APIHandler) CreateExchange(c *gin.Context) {
	var req createExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}
	exchange := models.Exchange{
		Name:              req.Name,
		Website:           req.Website,
		LogoURL:           req.LogoURL,
		HasTradingFees:    defaultTrue(req.HasTradingFees),
		HasWithdrawalFees: defaultTrue(req.HasWithdrawalFees),
	}
	if err := h.exchanges.Create(c.Request.Context(), &exchange); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exchange)
}

type updateExchangeRequest struct {
	Website           *string `json:"website"`
	LogoURL           *string `json:"logo_url"`
	HasTradingFees    *bool   `json:"has_trading_fees"`
	HasWithdrawalFees *bool   `json:"has_withdrawal_fees"`
}

func (h *APIHandler) UpdateExchange(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var req updateExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}

	ctx := c.Request.Context()
	exchange, err := h.exchanges.FindByID(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if req.Website != nil {
		exchange.Website = req.Website
	}
	if req.LogoURL != nil {
		exchange.LogoURL = req.LogoURL
	}
	if req.HasTradingFees != nil {
		exchange.HasTradingFees = req.HasTradingFees
	}
	if req.HasWithdrawalFees != nil {
		exchange.HasWithdrawalFees = req.HasWithdrawalFees
	}
	if err := h.exchanges.Update(ctx, &exchange); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, exchange)
}

func (h *APIHandler) DeleteExchange(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.exchanges.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// ---------- Compare ----------

func (h *APIHandler) CompareCoin(c *gin.Context) {
	coinID := c.Param("coin_id")
	amount := c.Query("amount")
	if amount != "" {
		if _, err := strconv.ParseFloat(amount, 64); err != nil {
			abortWithError(c, fmt.Errorf("%w: amount must be a number", errs.ErrValidation))
			return
		}
	} else {
		amount = "default"
	}
	cacheKey := fmt.Sprintf("compare:%s:%s", coinID, amount)
	ctx := c.Request.Context()

	if h.cache != nil {
		var cached compare.Result
		if hit, err := h.cache.Get(ctx, cacheKey, &cached); err != nil {
			log.Printf("Compare cache read failed: %v", err)
		} else if hit {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	result, err := h.comparer.Compare(ctx, coinID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, cacheKey, result, compareCacheTTL); err != nil {
			log.Printf("Compare cache write failed: %v", err)
		}
	}
	c.JSON(http.StatusOK, result)
}

// ---------- Maintenance ----------

// TriggerSync kicks off a full sync in the background and returns
// immediately; progress is visible through /sync/status.
func (h *APIHandler) TriggerSync(c *gin.Context) {
	go h.syncer.SyncAll(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"status": "sync started"})
}

func (h *APIHandler) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.syncer.LastRuns())
}

func (h *APIHandler) CleanupDuplicates(c *gin.Context) {
	report, err := h.prices.CleanupDuplicates(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
