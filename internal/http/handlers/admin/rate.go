package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/wldmarket/internal/http/handlers/shared"
	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
)

const defaultRateHistoryLimit = 50

// CreateRateLockRequest 管理员锁定汇率请求，rate 为空时取当前实时汇率
type CreateRateLockRequest struct {
	Scope      string `json:"scope" binding:"required"`
	Currency   string `json:"currency" binding:"required"`
	Rate       string `json:"rate"`
	TTLMinutes int    `json:"ttl_minutes"`
}

// GetAdminRates 当前实时汇率
func (h *Handler) GetAdminRates(c *gin.Context) {
	response.Success(c, gin.H{
		"quote": h.ExchangeRateService.SettlementCurrency(),
		"rates": h.ExchangeRateService.LiveRates(c.Request.Context()),
	})
}

// GetAdminRateHistory 汇率历史
func (h *Handler) GetAdminRateHistory(c *gin.Context) {
	currency := strings.TrimSpace(c.Param("currency"))
	limit := defaultRateHistoryLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	history, err := h.ExchangeRateService.ListHistory(currency, limit)
	if err != nil {
		respondError(c, response.CodeInternal, "error.rate_fetch_failed", err)
		return
	}
	response.Success(c, history)
}

// RefreshAdminRates 立即从汇率源拉取一次
func (h *Handler) RefreshAdminRates(c *gin.Context) {
	count, err := h.ExchangeRateService.RefreshFromFeed(c.Request.Context(), h.RateFeed)
	if err != nil {
		respondWithMappedError(c, err, handlershared.RateErrorRules, response.CodeInternal, "error.rate_fetch_failed")
		return
	}
	requestLog(c).Infow("admin_exchange_rate_refreshed", "operator", currentUsername(c), "count", count)
	response.Success(c, gin.H{
		"updated": count,
		"rates":   h.ExchangeRateService.LiveRates(c.Request.Context()),
	})
}

// ListRateLocks 汇率锁定列表，可按范围过滤
func (h *Handler) ListRateLocks(c *gin.Context) {
	locks, err := h.ExchangeRateService.ListLocks(strings.TrimSpace(c.Query("scope")))
	if err != nil {
		respondError(c, response.CodeInternal, "error.rate_fetch_failed", err)
		return
	}
	response.Success(c, locks)
}

// CreateRateLock 创建或覆盖汇率锁定
func (h *Handler) CreateRateLock(c *gin.Context) {
	var req CreateRateLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if req.TTLMinutes < 0 {
		respondError(c, response.CodeBadRequest, "error.rate_invalid", nil)
		return
	}
	ttl := time.Duration(req.TTLMinutes) * time.Minute

	var (
		lock *models.RateLock
		err  error
	)
	if strings.TrimSpace(req.Rate) != "" {
		rate, parseErr := service.ParseRateInput(req.Rate)
		if parseErr != nil {
			respondWithMappedError(c, parseErr, handlershared.RateErrorRules, response.CodeBadRequest, "error.rate_invalid")
			return
		}
		lock, err = h.ExchangeRateService.LockAt(req.Scope, req.Currency, rate, ttl)
	} else {
		lock, err = h.ExchangeRateService.Lock(c.Request.Context(), req.Scope, req.Currency, ttl)
	}
	if err != nil {
		respondWithMappedError(c, err, handlershared.RateErrorRules, response.CodeInternal, "error.rate_fetch_failed")
		return
	}
	requestLog(c).Infow("admin_exchange_rate_locked",
		"operator", currentUsername(c),
		"scope", lock.ScopeKey,
		"currency", lock.Currency,
		"rate", lock.Rate.String(),
	)
	response.Success(c, lock)
}

// DeleteRateLock 解除汇率锁定
func (h *Handler) DeleteRateLock(c *gin.Context) {
	scope := strings.TrimSpace(c.Query("scope"))
	currency := strings.TrimSpace(c.Query("currency"))
	if scope == "" || currency == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if err := h.ExchangeRateService.Unlock(scope, currency); err != nil {
		respondWithMappedError(c, err, handlershared.RateErrorRules, response.CodeInternal, "error.rate_fetch_failed")
		return
	}
	requestLog(c).Infow("admin_exchange_rate_unlocked", "operator", currentUsername(c), "scope", scope, "currency", currency)
	response.Success(c, nil)
}
