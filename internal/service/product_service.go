package service

import (
	"context"
	"strings"

	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/repository"

	"github.com/shopspring/decimal"
)

// ProductService 商品业务服务
type ProductService struct {
	repo              repository.ProductRepository
	userRepo          repository.UserRepository
	exchangeService   *ExchangeRateService
	defaultFeePercent decimal.Decimal
}

// NewProductService 创建商品服务
func NewProductService(
	repo repository.ProductRepository,
	userRepo repository.UserRepository,
	exchangeService *ExchangeRateService,
	defaultFeePercent float64,
) *ProductService {
	fee := decimal.NewFromFloat(defaultFeePercent).Round(2)
	if fee.IsNegative() || fee.GreaterThan(decimal.NewFromInt(100)) {
		fee = decimal.Zero
	}
	return &ProductService{
		repo:              repo,
		userRepo:          userRepo,
		exchangeService:   exchangeService,
		defaultFeePercent: fee,
	}
}

// CreateProductInput 创建/更新商品输入
type CreateProductInput struct {
	Title        string
	Description  string
	PriceLocal   decimal.Decimal
	CurrencyCode string
	ShippingFee  decimal.Decimal
}

// ProductPriceQuote 商品结算币报价
type ProductPriceQuote struct {
	ProductID        uint         `json:"product_id"`
	PriceLocal       models.Money `json:"price_local"`
	ShippingFee      models.Money `json:"shipping_fee"`
	CurrencyCode     string       `json:"currency_code"`
	SettlementAmount models.Money `json:"settlement_amount"`
	Rate             *RateQuote   `json:"rate"`
}

// Create 卖家发布商品，平台费率取默认配置
func (s *ProductService) Create(sellerID uint, input CreateProductInput) (*models.Product, error) {
	seller, err := s.userRepo.GetByID(sellerID)
	if err != nil {
		return nil, err
	}
	if seller == nil {
		return nil, ErrUserNotFound
	}
	if seller.Status == constants.UserStatusDisabled {
		return nil, ErrUserDisabled
	}
	price, shipping, currency, err := validateProductInput(input)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		SellerID:      sellerID,
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		PriceLocal:    models.NewMoneyFromDecimal(price),
		CurrencyCode:  currency,
		FinFeePercent: models.NewMoneyFromDecimal(s.defaultFeePercent),
		ShippingFee:   models.NewMoneyFromDecimal(shipping),
		Status:        constants.ProductStatusActive,
	}
	product.RefreshAmountFee()
	if err := s.repo.Create(product); err != nil {
		return nil, err
	}
	return product, nil
}

// Update 卖家修改商品，已售出的商品不可修改
func (s *ProductService) Update(sellerID, productID uint, input CreateProductInput) (*models.Product, error) {
	product, err := s.ownedProduct(sellerID, productID)
	if err != nil {
		return nil, err
	}
	price, shipping, currency, err := validateProductInput(input)
	if err != nil {
		return nil, err
	}
	product.Title = strings.TrimSpace(input.Title)
	product.Description = strings.TrimSpace(input.Description)
	product.PriceLocal = models.NewMoneyFromDecimal(price)
	product.CurrencyCode = currency
	product.ShippingFee = models.NewMoneyFromDecimal(shipping)
	product.RefreshAmountFee()
	if err := s.repo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

// SetActive 卖家上下架商品
func (s *ProductService) SetActive(sellerID, productID uint, active bool) (*models.Product, error) {
	product, err := s.ownedProduct(sellerID, productID)
	if err != nil {
		return nil, err
	}
	product.Status = constants.ProductStatusInactive
	if active {
		product.Status = constants.ProductStatusActive
	}
	if err := s.repo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateFeePercent 管理员调整商品平台费率，只影响之后创建的订单
func (s *ProductService) UpdateFeePercent(productID uint, percent decimal.Decimal) (*models.Product, error) {
	percent = percent.Round(2)
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrInvalidPrice
	}
	product, err := s.repo.GetByID(productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if product.Status == constants.ProductStatusSold {
		return nil, ErrProductNotEditable
	}
	product.FinFeePercent = models.NewMoneyFromDecimal(percent)
	product.RefreshAmountFee()
	if err := s.repo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

// Get 获取商品详情
func (s *ProductService) Get(productID uint) (*models.Product, error) {
	product, err := s.repo.GetByID(productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// ListPublic 公开在售商品列表
func (s *ProductService) ListPublic(search string, page, pageSize int) ([]models.Product, int64, error) {
	return s.repo.List(repository.ProductListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   constants.ProductStatusActive,
		Search:   search,
	})
}

// List 按条件查询商品
func (s *ProductService) List(filter repository.ProductListFilter) ([]models.Product, int64, error) {
	return s.repo.List(filter)
}

// Quote 按生效汇率给出商品的结算币价格
func (s *ProductService) Quote(ctx context.Context, productID uint, sessionID string) (*ProductPriceQuote, error) {
	product, err := s.Get(productID)
	if err != nil {
		return nil, err
	}
	rate, err := s.exchangeService.RateFor(ctx, product.CurrencyCode, orderRateScopes(product.ID, sessionID)...)
	if err != nil {
		return nil, err
	}
	total := product.PriceLocal.Add(product.ShippingFee.Decimal)
	return &ProductPriceQuote{
		ProductID:        product.ID,
		PriceLocal:       product.PriceLocal,
		ShippingFee:      product.ShippingFee,
		CurrencyCode:     product.CurrencyCode,
		SettlementAmount: models.NewMoneyFromDecimal(total.Mul(rate.Rate.Decimal)),
		Rate:             rate,
	}, nil
}

// LockRate 卖家为自己的商品锁定当前汇率
func (s *ProductService) LockRate(ctx context.Context, sellerID, productID uint) (*models.RateLock, error) {
	product, err := s.ownedProduct(sellerID, productID)
	if err != nil {
		return nil, err
	}
	return s.exchangeService.Lock(ctx, ProductRateScope(product.ID), product.CurrencyCode, 0)
}

// UnlockRate 卖家解除商品汇率锁定
func (s *ProductService) UnlockRate(sellerID, productID uint) error {
	product, err := s.ownedProduct(sellerID, productID)
	if err != nil {
		return err
	}
	return s.exchangeService.Unlock(ProductRateScope(product.ID), product.CurrencyCode)
}

func (s *ProductService) ownedProduct(sellerID, productID uint) (*models.Product, error) {
	product, err := s.Get(productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, ErrForbidden
	}
	if product.Status == constants.ProductStatusSold {
		return nil, ErrProductNotEditable
	}
	return product, nil
}

func validateProductInput(input CreateProductInput) (decimal.Decimal, decimal.Decimal, string, error) {
	price := input.PriceLocal.Round(2)
	shipping := input.ShippingFee.Round(2)
	currency := normalizeCurrency(input.CurrencyCode)
	if price.LessThanOrEqual(decimal.Zero) || shipping.IsNegative() || currency == "" {
		return decimal.Zero, decimal.Zero, "", ErrInvalidPrice
	}
	if strings.TrimSpace(input.Title) == "" {
		return decimal.Zero, decimal.Zero, "", ErrProductInvalid
	}
	return price, shipping, currency, nil
}

// orderRateScopes 汇率锁定查找顺序：会话优先，其次商品
func orderRateScopes(productID uint, sessionID string) []string {
	scopes := make([]string, 0, 2)
	if strings.TrimSpace(sessionID) != "" {
		scopes = append(scopes, SessionRateScope(sessionID))
	}
	return append(scopes, ProductRateScope(productID))
}
