package admin

import (
	"strings"

	handlershared "github.com/wldmarket/internal/http/handlers/shared"
	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// UpdateProductFeeRequest 调整平台费率请求
type UpdateProductFeeRequest struct {
	FinFeePercent decimal.Decimal `json:"fin_fee_percent" binding:"required"`
}

// GetAdminProducts 商品列表
func (h *Handler) GetAdminProducts(c *gin.Context) {
	page, pageSize := parsePagination(c)
	products, total, err := h.ProductService.List(repository.ProductListFilter{
		Page:     page,
		PageSize: pageSize,
		SellerID: parseUintQuery(c, "seller_id"),
		Status:   strings.TrimSpace(c.Query("status")),
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.product_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, products, response.BuildPagination(page, pageSize, total))
}

// GetAdminProduct 商品详情
func (h *Handler) GetAdminProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "error.product_not_found")
	if !ok {
		return
	}
	product, err := h.ProductService.Get(id)
	if err != nil {
		respondWithMappedError(c, err, handlershared.ProductErrorRules, response.CodeInternal, "error.product_fetch_failed")
		return
	}
	response.Success(c, product)
}

// UpdateProductFee 调整商品平台费率，只影响之后创建的订单
func (h *Handler) UpdateProductFee(c *gin.Context) {
	id, ok := parseIDParam(c, "error.product_not_found")
	if !ok {
		return
	}
	var req UpdateProductFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	product, err := h.ProductService.UpdateFeePercent(id, req.FinFeePercent)
	if err != nil {
		respondWithMappedError(c, err, handlershared.ProductErrorRules, response.CodeInternal, "error.product_save_failed")
		return
	}
	requestLog(c).Infow("admin_product_fee_updated",
		"operator", currentUsername(c),
		"product_id", product.ID,
		"fin_fee_percent", product.FinFeePercent.String(),
	)
	response.Success(c, product)
}
