package admin

import (
	"strings"
	"time"

	handlershared "github.com/wldmarket/internal/http/handlers/shared"
	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/repository"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminTransitionRequest 管理员推进订单请求
type AdminTransitionRequest struct {
	ExpectedVersion *uint  `json:"expected_version"`
	Note            string `json:"note"`
}

func parseDateQuery(c *gin.Context, key string, endOfDay bool) *time.Time {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return nil
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed
}

// GetAdminOrders 订单列表
func (h *Handler) GetAdminOrders(c *gin.Context) {
	page, pageSize := parsePagination(c)
	orders, total, err := h.OrderService.ListAdminOrders(repository.OrderListFilter{
		Page:        page,
		PageSize:    pageSize,
		BuyerID:     parseUintQuery(c, "buyer_id"),
		SellerID:    parseUintQuery(c, "seller_id"),
		Status:      strings.TrimSpace(c.Query("status")),
		OrderNo:     strings.TrimSpace(c.Query("order_no")),
		CreatedFrom: parseDateQuery(c, "created_from", false),
		CreatedTo:   parseDateQuery(c, "created_to", true),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// GetAdminOrder 订单详情
func (h *Handler) GetAdminOrder(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "error.order_not_found")
	if !ok {
		return
	}
	order, err := h.OrderService.GetOrder(service.AdminActor(adminID, currentUsername(c)), id)
	if err != nil {
		respondWithMappedError(c, err, handlershared.TransitionErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	earnings, err := h.CommissionService.ListOrderEarnings(id)
	if err != nil {
		respondError(c, response.CodeInternal, "error.earning_fetch_failed", err)
		return
	}
	response.Success(c, gin.H{
		"order":       order,
		"earnings":    earnings,
		"next_status": service.NextOrderStatuses(order.Status),
	})
}

// GetAdminOrderLogs 订单状态流转记录
func (h *Handler) GetAdminOrderLogs(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "error.order_not_found")
	if !ok {
		return
	}
	logs, err := h.OrderService.ListStatusLogs(service.AdminActor(adminID, currentUsername(c)), id)
	if err != nil {
		respondWithMappedError(c, err, handlershared.TransitionErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	response.Success(c, logs)
}

// TransitionOrder 返回管理员推进订单到指定状态的处理函数
func (h *Handler) TransitionOrder(target string) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, ok := getAdminID(c)
		if !ok {
			return
		}
		id, ok := parseIDParam(c, "error.order_not_found")
		if !ok {
			return
		}
		var req AdminTransitionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, response.CodeBadRequest, "error.bad_request", err)
				return
			}
		}
		result, err := h.OrderService.Transition(c.Request.Context(), service.TransitionInput{
			OrderID:         id,
			Actor:           service.AdminActor(adminID, currentUsername(c)),
			Target:          target,
			ExpectedVersion: req.ExpectedVersion,
			Note:            req.Note,
		})
		if err != nil {
			respondWithMappedError(c, err, handlershared.TransitionErrorRules, response.CodeInternal, "error.internal")
			return
		}
		response.Success(c, result)
	}
}

// SettleAdminOrder 手动补结算已完成订单，已结算时返回已有流水
func (h *Handler) SettleAdminOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "error.order_not_found")
	if !ok {
		return
	}
	earnings, err := h.CommissionService.Settle(id)
	if err != nil {
		respondWithMappedError(c, err, handlershared.TransitionErrorRules, response.CodeInternal, "error.order_settlement_failed")
		return
	}
	requestLog(c).Infow("admin_order_settled", "operator", currentUsername(c), "order_id", id, "earnings", len(earnings))
	response.Success(c, earnings)
}

// PreviewAdminOrderCommission 预览订单分账
func (h *Handler) PreviewAdminOrderCommission(c *gin.Context) {
	id, ok := parseIDParam(c, "error.order_not_found")
	if !ok {
		return
	}
	breakdown, err := h.CommissionService.Preview(id)
	if err != nil {
		respondWithMappedError(c, err, handlershared.TransitionErrorRules, response.CodeInternal, "error.order_settlement_failed")
		return
	}
	response.Success(c, breakdown)
}
