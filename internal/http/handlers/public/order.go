package public

import (
	"strings"

	"github.com/wldmarket/internal/constants"
	handlershared "github.com/wldmarket/internal/http/handlers/shared"
	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/repository"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
)

var orderErrorRules = handlershared.ConcatMappedErrors(
	handlershared.TransitionErrorRules,
	handlershared.ProductErrorRules,
	handlershared.RateErrorRules,
)

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	ProductID uint   `json:"product_id" binding:"required"`
	SessionID string `json:"session_id"`
}

// TransitionRequest 订单状态推进请求
type TransitionRequest struct {
	ExpectedVersion  *uint  `json:"expected_version"`
	TrackingNumber   string `json:"tracking_number"`
	ShippingProvider string `json:"shipping_provider"`
	Note             string `json:"note"`
}

// CreateOrder 买家下单
func (h *Handler) CreateOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = sessionIDFrom(c)
	}
	order, err := h.OrderService.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		BuyerID:   uid,
		ProductID: req.ProductID,
		SessionID: sessionID,
	})
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "error.order_create_failed")
		return
	}
	response.Success(c, order)
}

// ListOrders 当前用户参与的订单，role=buyer/seller 可只看一方
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := parsePagination(c)
	filter := repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
	}
	switch strings.ToLower(strings.TrimSpace(c.Query("role"))) {
	case constants.ActorRoleBuyer:
		filter.BuyerID = uid
	case constants.ActorRoleSeller:
		filter.SellerID = uid
	}
	orders, total, err := h.OrderService.ListUserOrders(uid, filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// GetOrder 订单详情，仅买卖双方可见
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "error.order_not_found")
	if !ok {
		return
	}
	order, err := h.OrderService.GetOrder(service.UserActor(uid), id)
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	response.Success(c, gin.H{
		"order":       order,
		"next_status": service.NextOrderStatuses(order.Status),
	})
}

// GetOrderByNo 按订单号查询
func (h *Handler) GetOrderByNo(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		return
	}
	order, err := h.OrderService.GetOrderByNo(service.UserActor(uid), orderNo)
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	response.Success(c, order)
}

// ListOrderLogs 订单状态流转记录
func (h *Handler) ListOrderLogs(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "error.order_not_found")
	if !ok {
		return
	}
	logs, err := h.OrderService.ListStatusLogs(service.UserActor(uid), id)
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	response.Success(c, logs)
}

// TransitionOrder 返回推进到指定状态的处理函数
func (h *Handler) TransitionOrder(target string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := getUserID(c)
		if !ok {
			return
		}
		id, ok := parseIDParam(c, "error.order_not_found")
		if !ok {
			return
		}
		var req TransitionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, response.CodeBadRequest, "error.bad_request", err)
				return
			}
		}
		result, err := h.OrderService.Transition(c.Request.Context(), service.TransitionInput{
			OrderID:          id,
			Actor:            service.UserActor(uid),
			Target:           target,
			ExpectedVersion:  req.ExpectedVersion,
			TrackingNumber:   req.TrackingNumber,
			ShippingProvider: req.ShippingProvider,
			Note:             req.Note,
		})
		if err != nil {
			respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "error.internal")
			return
		}
		response.Success(c, result)
	}
}

// ReviewOrder 买家评价已完成订单
func (h *Handler) ReviewOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "error.order_not_found")
	if !ok {
		return
	}
	order, err := h.OrderService.MarkReviewed(service.UserActor(uid), id)
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "error.order_review_failed")
		return
	}
	response.Success(c, order)
}

// ListOrderEarnings 订单结算流水，仅买卖双方可见
func (h *Handler) ListOrderEarnings(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "error.order_not_found")
	if !ok {
		return
	}
	if _, err := h.OrderService.GetOrder(service.UserActor(uid), id); err != nil {
		respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	earnings, err := h.CommissionService.ListOrderEarnings(id)
	if err != nil {
		respondError(c, response.CodeInternal, "error.earning_fetch_failed", err)
		return
	}
	response.Success(c, earnings)
}
