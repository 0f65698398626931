package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/queue"
	"github.com/wldmarket/internal/repository"

	"gorm.io/gorm"
)

const orderNoMaxAttempts = 3

// OrderService 订单服务
type OrderService struct {
	orderRepo         repository.OrderRepository
	productRepo       repository.ProductRepository
	userRepo          repository.UserRepository
	exchangeService   *ExchangeRateService
	commissionService *CommissionService
	settingService    *SettingService
	policy            ActorPolicy
	queueClient       *queue.Client
	cfg               config.OrderConfig
}

// OrderServiceOptions 订单服务依赖
type OrderServiceOptions struct {
	OrderRepo         repository.OrderRepository
	ProductRepo       repository.ProductRepository
	UserRepo          repository.UserRepository
	ExchangeService   *ExchangeRateService
	CommissionService *CommissionService
	SettingService    *SettingService
	Policy            ActorPolicy
	QueueClient       *queue.Client
	Config            config.OrderConfig
}

// NewOrderService 创建订单服务
func NewOrderService(opts OrderServiceOptions) *OrderService {
	policy := opts.Policy
	if policy == nil {
		policy = StaticActorPolicy{}
	}
	return &OrderService{
		orderRepo:         opts.OrderRepo,
		productRepo:       opts.ProductRepo,
		userRepo:          opts.UserRepo,
		exchangeService:   opts.ExchangeService,
		commissionService: opts.CommissionService,
		settingService:    opts.SettingService,
		policy:            policy,
		queueClient:       opts.QueueClient,
		cfg:               opts.Config,
	}
}

// CreateOrderInput 下单输入
type CreateOrderInput struct {
	BuyerID   uint
	ProductID uint
	SessionID string // 可选，存在会话级汇率锁定时优先使用
}

// CreateOrder 买家下单，按生效汇率写入汇率快照
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	buyer, err := s.userRepo.GetByID(input.BuyerID)
	if err != nil {
		return nil, err
	}
	if buyer == nil {
		return nil, ErrUserNotFound
	}
	if buyer.Status == constants.UserStatusDisabled {
		return nil, ErrUserDisabled
	}
	product, err := s.productRepo.GetByID(input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if product.Status != constants.ProductStatusActive {
		return nil, ErrProductNotAvailable
	}
	if product.SellerID == buyer.ID {
		return nil, ErrCannotBuyOwnProduct
	}

	rate, err := s.exchangeService.RateFor(ctx, product.CurrencyCode, orderRateScopes(product.ID, input.SessionID)...)
	if err != nil {
		return nil, err
	}

	subtotal := product.PriceLocal
	shipping := product.ShippingFee
	total := models.NewMoneyFromDecimal(subtotal.Add(shipping.Decimal))
	order := &models.Order{
		BuyerID:            buyer.ID,
		SellerID:           product.SellerID,
		ProductID:          product.ID,
		Status:             constants.OrderStatusPending,
		Currency:           product.CurrencyCode,
		Subtotal:           subtotal,
		ShippingFee:        shipping,
		TotalAmount:        total,
		FinFeePercent:      product.FinFeePercent,
		SettlementCurrency: rate.Quote,
		ConversionRate:     rate.Rate,
		SettlementAmount:   models.NewMoneyFromDecimal(total.Mul(rate.Rate.Decimal)),
		RateSource:         rate.Source,
		RateLockedAt:       rate.LockedAt,
	}

	for attempt := 0; attempt < orderNoMaxAttempts; attempt++ {
		order.ID = 0
		order.OrderNo = generateOrderNo(s.cfg.NoPrefix)
		err = models.DB.Transaction(func(tx *gorm.DB) error {
			orderRepo := s.orderRepo.WithTx(tx)
			if err := orderRepo.Create(order); err != nil {
				return err
			}
			return orderRepo.CreateStatusLog(&models.OrderStatusLog{
				OrderID:   order.ID,
				ToStatus:  constants.OrderStatusPending,
				ActorID:   buyer.ID,
				ActorRole: constants.ActorRoleBuyer,
			})
		})
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	logger.Infow("order_created",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"buyer_id", order.BuyerID,
		"seller_id", order.SellerID,
		"total_amount", order.TotalAmount.String(),
		"conversion_rate", order.ConversionRate.String(),
		"rate_source", order.RateSource,
	)
	return s.orderRepo.GetByID(order.ID)
}

// GetOrder 获取订单，普通用户只能查看自己参与的订单
func (s *OrderService) GetOrder(actor Actor, orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if actor.Kind == ActorKindUser && actor.RoleOn(order) == "" {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetOrderByNo 按订单号获取订单
func (s *OrderService) GetOrderByNo(actor Actor, orderNo string) (*models.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if actor.Kind == ActorKindUser && actor.RoleOn(order) == "" {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListUserOrders 查询用户参与的订单
func (s *OrderService) ListUserOrders(userID uint, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if filter.BuyerID == 0 && filter.SellerID == 0 {
		filter.ParticipantID = userID
	} else if filter.BuyerID != userID && filter.SellerID != userID {
		return []models.Order{}, 0, nil
	}
	return s.orderRepo.ListByUser(filter)
}

// ListAdminOrders 管理端订单列表
func (s *OrderService) ListAdminOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListAdmin(filter)
}

// ListStatusLogs 查询订单状态流转记录
func (s *OrderService) ListStatusLogs(actor Actor, orderID uint) ([]models.OrderStatusLog, error) {
	if _, err := s.GetOrder(actor, orderID); err != nil {
		return nil, err
	}
	return s.orderRepo.ListStatusLogs(orderID)
}

// MarkReviewed 买家对已完成订单做出评价
func (s *OrderService) MarkReviewed(actor Actor, orderID uint) (*models.Order, error) {
	order, err := s.GetOrder(actor, orderID)
	if err != nil {
		return nil, err
	}
	if actor.RoleOn(order) != constants.ActorRoleBuyer {
		return nil, ErrUnauthorizedActor
	}
	if order.Status != constants.OrderStatusCompleted {
		return nil, fmt.Errorf("%w: order is %s", ErrPrecondition, order.Status)
	}
	if order.Reviewed {
		return order, nil
	}
	if err := s.orderRepo.UpdateFields(order.ID, map[string]interface{}{
		"reviewed":   true,
		"updated_at": time.Now(),
	}); err != nil {
		return nil, err
	}
	order.Reviewed = true
	return order, nil
}

func generateOrderNo(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "WM"
	}
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("%s%s%s", prefix, now, randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
