package public

import (
	"strings"

	"github.com/wldmarket/internal/constants"
	handlershared "github.com/wldmarket/internal/http/handlers/shared"
	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/repository"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// sessionIDHeader 前端会话标识，用于匹配会话级汇率锁定
const sessionIDHeader = "X-Session-ID"

var productErrorRules = handlershared.ConcatMappedErrors(
	handlershared.ProductErrorRules,
	handlershared.RateErrorRules,
)

// ProductRequest 发布/修改商品请求
type ProductRequest struct {
	Title        string          `json:"title" binding:"required"`
	Description  string          `json:"description"`
	PriceLocal   decimal.Decimal `json:"price_local" binding:"required"`
	CurrencyCode string          `json:"currency_code" binding:"required"`
	ShippingFee  decimal.Decimal `json:"shipping_fee"`
}

func (r ProductRequest) toInput() service.CreateProductInput {
	return service.CreateProductInput{
		Title:        r.Title,
		Description:  r.Description,
		PriceLocal:   r.PriceLocal,
		CurrencyCode: r.CurrencyCode,
		ShippingFee:  r.ShippingFee,
	}
}

// ProductActiveRequest 上下架请求
type ProductActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func sessionIDFrom(c *gin.Context) string {
	if value := strings.TrimSpace(c.GetHeader(sessionIDHeader)); value != "" {
		return value
	}
	return strings.TrimSpace(c.Query("session_id"))
}

// ListProducts 在售商品列表
func (h *Handler) ListProducts(c *gin.Context) {
	page, pageSize := parsePagination(c)
	products, total, err := h.ProductService.ListPublic(strings.TrimSpace(c.Query("search")), page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "error.product_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, products, response.BuildPagination(page, pageSize, total))
}

// GetProduct 商品详情，下架商品不对外展示
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "error.product_not_found")
	if !ok {
		return
	}
	product, err := h.ProductService.Get(id)
	if err != nil {
		respondWithMappedError(c, err, productErrorRules, response.CodeInternal, "error.product_fetch_failed")
		return
	}
	if product.Status == constants.ProductStatusInactive {
		respondError(c, response.CodeNotFound, "error.product_not_found", nil)
		return
	}
	response.Success(c, product)
}

// QuoteProduct 按生效汇率报价
func (h *Handler) QuoteProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "error.product_not_found")
	if !ok {
		return
	}
	quote, err := h.ProductService.Quote(c.Request.Context(), id, sessionIDFrom(c))
	if err != nil {
		respondWithMappedError(c, err, productErrorRules, response.CodeInternal, "error.rate_fetch_failed")
		return
	}
	response.Success(c, quote)
}

// ListMyProducts 卖家自己的商品
func (h *Handler) ListMyProducts(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := parsePagination(c)
	products, total, err := h.ProductService.List(repository.ProductListFilter{
		Page:     page,
		PageSize: pageSize,
		SellerID: uid,
		Status:   strings.TrimSpace(c.Query("status")),
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.product_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, products, response.BuildPagination(page, pageSize, total))
}

// CreateProduct 发布商品
func (h *Handler) CreateProduct(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	product, err := h.ProductService.Create(uid, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, productErrorRules, response.CodeInternal, "error.product_save_failed")
		return
	}
	response.Success(c, product)
}

// UpdateProduct 修改商品
func (h *Handler) UpdateProduct(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "error.product_not_found")
	if !ok {
		return
	}
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	product, err := h.ProductService.Update(uid, id, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, productErrorRules, response.CodeInternal, "error.product_save_failed")
		return
	}
	response.Success(c, product)
}

// SetProductActive 上下架商品
func (h *Handler) SetProductActive(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "error.product_not_found")
	if !ok {
		return
	}
	var req ProductActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	product, err := h.ProductService.SetActive(uid, id, *req.Active)
	if err != nil {
		respondWithMappedError(c, err, productErrorRules, response.CodeInternal, "error.product_save_failed")
		return
	}
	response.Success(c, product)
}

// LockProductRate 卖家锁定商品汇率
func (h *Handler) LockProductRate(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "error.product_not_found")
	if !ok {
		return
	}
	lock, err := h.ProductService.LockRate(c.Request.Context(), uid, id)
	if err != nil {
		respondWithMappedError(c, err, productErrorRules, response.CodeInternal, "error.rate_fetch_failed")
		return
	}
	requestLog(c).Infow("product_rate_locked", "product_id", id, "seller_id", uid, "rate", lock.Rate.String())
	response.Success(c, lock)
}

// UnlockProductRate 卖家解除商品汇率锁定
func (h *Handler) UnlockProductRate(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "error.product_not_found")
	if !ok {
		return
	}
	if err := h.ProductService.UnlockRate(uid, id); err != nil {
		respondWithMappedError(c, err, productErrorRules, response.CodeInternal, "error.rate_fetch_failed")
		return
	}
	response.Success(c, nil)
}
