package public

import (
	"strings"
	"time"

	handlershared "github.com/wldmarket/internal/http/handlers/shared"
	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
)

// sessionRateLockTTL 会话级汇率锁定有效期，覆盖一次下单流程
const sessionRateLockTTL = 30 * time.Minute

// SessionRateLockRequest 会话汇率锁定请求
type SessionRateLockRequest struct {
	Currency  string `json:"currency" binding:"required"`
	SessionID string `json:"session_id"`
}

// GetRates 当前实时汇率
func (h *Handler) GetRates(c *gin.Context) {
	response.Success(c, gin.H{
		"quote": h.ExchangeRateService.SettlementCurrency(),
		"rates": h.ExchangeRateService.LiveRates(c.Request.Context()),
	})
}

// GetRate 查询单一币种的生效汇率，携带会话标识时优先使用会话锁定
func (h *Handler) GetRate(c *gin.Context) {
	currency := strings.TrimSpace(c.Param("currency"))
	var scopes []string
	if sessionID := sessionIDFrom(c); sessionID != "" {
		scopes = append(scopes, service.SessionRateScope(sessionID))
	}
	quote, err := h.ExchangeRateService.RateFor(c.Request.Context(), currency, scopes...)
	if err != nil {
		respondWithMappedError(c, err, handlershared.RateErrorRules, response.CodeInternal, "error.rate_fetch_failed")
		return
	}
	response.Success(c, quote)
}

// LockSessionRate 为当前会话锁定汇率，供结账流程使用
func (h *Handler) LockSessionRate(c *gin.Context) {
	var req SessionRateLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = sessionIDFrom(c)
	}
	if sessionID == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	lock, err := h.ExchangeRateService.Lock(c.Request.Context(), service.SessionRateScope(sessionID), req.Currency, sessionRateLockTTL)
	if err != nil {
		respondWithMappedError(c, err, handlershared.RateErrorRules, response.CodeInternal, "error.rate_fetch_failed")
		return
	}
	response.Success(c, lock)
}
