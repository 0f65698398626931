package service

import (
	"fmt"
	"time"

	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionLine 单个祖先的推荐分佣
type CommissionLine struct {
	UserID      uint            `json:"user_id"`
	Level       int             `json:"level"`
	RatePercent decimal.Decimal `json:"rate_percent"`
	Amount      decimal.Decimal `json:"amount"`
}

// CommissionBreakdown 订单分账结果（本币）
type CommissionBreakdown struct {
	FeeAmount     decimal.Decimal  `json:"fee_amount"`
	SellerReceive decimal.Decimal  `json:"seller_receive"`
	Referrals     []CommissionLine `json:"referrals"`
	Distributed   decimal.Decimal  `json:"distributed"`
	Unclaimed     decimal.Decimal  `json:"unclaimed"`
}

// ComputeCommission 计算订单的平台费、卖家实收与各级推荐分佣
//
// 平台费以商品小计为基数，不含运费。各级分佣按平台费乘以层级比例并截断到分，
// 累计金额不超过平台费。根账户在 SkipRootCommission 开启时跳过，禁用账户同样跳过，
// 被跳过的层级不向后顺延。
func ComputeCommission(order *models.Order, ancestors []Ancestor, setting CommissionSetting) CommissionBreakdown {
	fee := models.ComputeFee(order.Subtotal, order.FinFeePercent).Decimal
	breakdown := CommissionBreakdown{
		FeeAmount:     fee,
		SellerReceive: order.TotalAmount.Decimal.Sub(fee),
		Referrals:     make([]CommissionLine, 0, len(ancestors)),
		Distributed:   decimal.Zero,
	}
	hundred := decimal.NewFromInt(100)
	for _, ancestor := range ancestors {
		if ancestor.Level < 1 || ancestor.Level > setting.MaxDepth {
			continue
		}
		if ancestor.IsRoot && setting.SkipRootCommission {
			continue
		}
		if !ancestor.Active {
			continue
		}
		rate := setting.RatePercentForLevel(ancestor.Level)
		if !rate.IsPositive() {
			continue
		}
		amount := fee.Mul(rate).Div(hundred).Truncate(2)
		remaining := fee.Sub(breakdown.Distributed)
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		if !amount.IsPositive() {
			continue
		}
		breakdown.Referrals = append(breakdown.Referrals, CommissionLine{
			UserID:      ancestor.UserID,
			Level:       ancestor.Level,
			RatePercent: rate,
			Amount:      amount,
		})
		breakdown.Distributed = breakdown.Distributed.Add(amount)
	}
	breakdown.Unclaimed = fee.Sub(breakdown.Distributed)
	return breakdown
}

// CommissionService 分佣结算服务
type CommissionService struct {
	orderRepo      repository.OrderRepository
	userRepo       repository.UserRepository
	referralRepo   repository.ReferralRepository
	earningRepo    repository.EarningRepository
	settingService *SettingService
	rootUserID     uint
}

// NewCommissionService 创建分佣结算服务
func NewCommissionService(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	referralRepo repository.ReferralRepository,
	earningRepo repository.EarningRepository,
	settingService *SettingService,
	rootUserID uint,
) *CommissionService {
	return &CommissionService{
		orderRepo:      orderRepo,
		userRepo:       userRepo,
		referralRepo:   referralRepo,
		earningRepo:    earningRepo,
		settingService: settingService,
		rootUserID:     rootUserID,
	}
}

// Settle 结算已完成订单，重复调用返回首次结算的收益流水
func (s *CommissionService) Settle(orderID uint) ([]models.Earning, error) {
	setting, err := s.settingService.GetCommissionSetting()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSettlement, err)
	}
	var earnings []models.Earning
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		earnings, err = s.SettleWithin(tx, orderID, setting)
		return err
	})
	if err != nil {
		return nil, err
	}
	return earnings, nil
}

// SettleWithin 在调用方事务内结算订单
//
// 订单状态推进到 completed 与收益入账必须处于同一事务，任一步失败整体回滚。
func (s *CommissionService) SettleWithin(tx *gorm.DB, orderID uint, setting CommissionSetting) ([]models.Earning, error) {
	earningRepo := s.earningRepo.WithTx(tx)
	existing, err := earningRepo.ListByOrder(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSettlement, err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	order, err := s.orderRepo.WithTx(tx).GetByID(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSettlement, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusCompleted {
		return nil, fmt.Errorf("%w: order %d is %s", ErrPrecondition, order.ID, order.Status)
	}
	if !order.ConversionRate.Decimal.IsPositive() {
		return nil, fmt.Errorf("%w: order %d has no conversion rate", ErrSettlement, order.ID)
	}

	ancestors, err := ascendReferralChain(s.userRepo.WithTx(tx), order.SellerID, setting.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSettlement, err)
	}
	breakdown := ComputeCommission(order, ancestors, setting)
	if breakdown.SellerReceive.IsNegative() {
		return nil, fmt.Errorf("%w: fee exceeds order total", ErrSettlement)
	}

	ledger := &settlementLedger{
		order:   order,
		users:   s.userRepo.WithTx(tx),
		refs:    s.referralRepo.WithTx(tx),
		entries: earningRepo,
		now:     time.Now(),
	}
	if err := ledger.creditSale(breakdown.SellerReceive); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSettlement, err)
	}
	if err := ledger.recordPurchase(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSettlement, err)
	}
	for _, line := range breakdown.Referrals {
		if err := ledger.creditReferral(line); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSettlement, err)
		}
	}
	if setting.RecordPlatformCommission && breakdown.Unclaimed.IsPositive() {
		rootID, err := s.platformAccountID(ledger.users, ancestors)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSettlement, err)
		}
		if err := ledger.creditPlatform(rootID, breakdown.Unclaimed); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSettlement, err)
		}
	}

	earnings, err := earningRepo.ListByOrder(order.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSettlement, err)
	}
	logger.Infow("order_settled",
		"order_id", order.ID,
		"seller_id", order.SellerID,
		"fee_amount", breakdown.FeeAmount.StringFixed(2),
		"seller_receive", breakdown.SellerReceive.StringFixed(2),
		"referral_count", len(breakdown.Referrals),
		"distributed", breakdown.Distributed.StringFixed(2),
		"unclaimed", breakdown.Unclaimed.StringFixed(2),
	)
	return earnings, nil
}

// Preview 预览订单分账结果，不落库
func (s *CommissionService) Preview(orderID uint) (*CommissionBreakdown, error) {
	setting, err := s.settingService.GetCommissionSetting()
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	ancestors, err := ascendReferralChain(s.userRepo, order.SellerID, setting.MaxDepth)
	if err != nil {
		return nil, err
	}
	breakdown := ComputeCommission(order, ancestors, setting)
	return &breakdown, nil
}

// ListOrderEarnings 查询订单收益流水
func (s *CommissionService) ListOrderEarnings(orderID uint) ([]models.Earning, error) {
	return s.earningRepo.ListByOrder(orderID)
}

// ListEarnings 分页查询收益流水
func (s *CommissionService) ListEarnings(filter repository.EarningListFilter) ([]models.Earning, int64, error) {
	return s.earningRepo.List(filter)
}

func (s *CommissionService) platformAccountID(users repository.UserRepository, ancestors []Ancestor) (uint, error) {
	for _, ancestor := range ancestors {
		if ancestor.IsRoot {
			return ancestor.UserID, nil
		}
	}
	if s.rootUserID != 0 {
		return s.rootUserID, nil
	}
	root, err := users.GetRoot()
	if err != nil {
		return 0, err
	}
	if root == nil {
		return 0, ErrRootAccountMissing
	}
	return root.ID, nil
}

// settlementLedger 单笔订单结算期间的事务内写入
type settlementLedger struct {
	order   *models.Order
	users   *repository.GormUserRepository
	refs    *repository.GormReferralRepository
	entries *repository.GormEarningRepository
	now     time.Time
}

func (l *settlementLedger) toSettlement(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(l.order.ConversionRate.Decimal).Round(2)
}

func (l *settlementLedger) lockUser(userID uint) (*models.User, error) {
	user, err := l.users.GetByIDForUpdate(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d missing", ErrIntegrity, userID)
	}
	return user, nil
}

func (l *settlementLedger) appendEarning(userID uint, earningType string, amount decimal.Decimal, referralID *uint, level int, rate decimal.Decimal) (decimal.Decimal, error) {
	settled := l.toSettlement(amount)
	earning := &models.Earning{
		UserID:           userID,
		Type:             earningType,
		Amount:           models.NewMoneyFromDecimal(amount),
		SourceOrderID:    l.order.ID,
		ReferralID:       referralID,
		Level:            level,
		RatePercent:      models.NewMoneyFromDecimal(rate),
		Currency:         l.order.Currency,
		SettlementAmount: models.NewMoneyFromDecimal(settled),
		CreatedAt:        l.now,
	}
	if err := l.entries.Create(earning); err != nil {
		return decimal.Zero, err
	}
	return settled, nil
}

func (l *settlementLedger) creditSale(amount decimal.Decimal) error {
	settled, err := l.appendEarning(l.order.SellerID, constants.EarningTypeSale, amount, nil, 0, decimal.Zero)
	if err != nil {
		return err
	}
	seller, err := l.lockUser(l.order.SellerID)
	if err != nil {
		return err
	}
	return l.users.UpdateFields(seller.ID, map[string]interface{}{
		"sales_count":         seller.SalesCount + 1,
		"sales_total":         models.NewMoneyFromDecimal(seller.SalesTotal.Add(l.order.SettlementAmount.Decimal)),
		"earnings_total":      models.NewMoneyFromDecimal(seller.EarningsTotal.Add(settled)),
		"earnings_from_sales": models.NewMoneyFromDecimal(seller.EarningsFromSales.Add(settled)),
		"wallet_balance":      models.NewMoneyFromDecimal(seller.WalletBalance.Add(settled)),
	})
}

func (l *settlementLedger) recordPurchase() error {
	buyer, err := l.lockUser(l.order.BuyerID)
	if err != nil {
		return err
	}
	return l.users.UpdateFields(buyer.ID, map[string]interface{}{
		"purchases_count": buyer.PurchasesCount + 1,
		"purchases_total": models.NewMoneyFromDecimal(buyer.PurchasesTotal.Add(l.order.SettlementAmount.Decimal)),
	})
}

func (l *settlementLedger) creditReferral(line CommissionLine) error {
	referral, err := l.ensureReferral(line)
	if err != nil {
		return err
	}
	settled, err := l.appendEarning(line.UserID, constants.EarningTypeReferral, line.Amount, &referral.ID, line.Level, line.RatePercent)
	if err != nil {
		return err
	}
	referral.TotalEarnings = models.NewMoneyFromDecimal(referral.TotalEarnings.Add(settled))
	if err := l.refs.Update(referral); err != nil {
		return err
	}

	ancestor, err := l.lockUser(line.UserID)
	if err != nil {
		return err
	}
	return l.users.UpdateFields(ancestor.ID, map[string]interface{}{
		"earnings_total":          models.NewMoneyFromDecimal(ancestor.EarningsTotal.Add(settled)),
		"earnings_from_referrals": models.NewMoneyFromDecimal(ancestor.EarningsFromReferral.Add(settled)),
		"wallet_balance":          models.NewMoneyFromDecimal(ancestor.WalletBalance.Add(settled)),
	})
}

// ensureReferral 获取祖先与卖家的推荐关系，链路调整后按当前层级补建或激活
func (l *settlementLedger) ensureReferral(line CommissionLine) (*models.Referral, error) {
	referral, err := l.refs.GetByPairForUpdate(line.UserID, l.order.SellerID)
	if err != nil {
		return nil, err
	}
	if referral == nil {
		referral = &models.Referral{
			ReferrerID:     line.UserID,
			ReferredID:     l.order.SellerID,
			Level:          line.Level,
			CommissionRate: models.NewMoneyFromDecimal(line.RatePercent),
			Status:         constants.ReferralStatusActive,
		}
		if err := l.refs.Create(referral); err != nil {
			return nil, err
		}
		if err := l.users.IncrementReferralsTotal([]uint{line.UserID}); err != nil {
			return nil, err
		}
		return referral, nil
	}
	if referral.Level != line.Level || referral.Status != constants.ReferralStatusActive {
		referral.Level = line.Level
		referral.CommissionRate = models.NewMoneyFromDecimal(line.RatePercent)
		referral.Status = constants.ReferralStatusActive
	}
	return referral, nil
}

func (l *settlementLedger) creditPlatform(rootID uint, amount decimal.Decimal) error {
	settled, err := l.appendEarning(rootID, constants.EarningTypeCommission, amount, nil, 0, l.order.FinFeePercent.Decimal)
	if err != nil {
		return err
	}
	root, err := l.lockUser(rootID)
	if err != nil {
		return err
	}
	return l.users.UpdateFields(root.ID, map[string]interface{}{
		"earnings_total": models.NewMoneyFromDecimal(root.EarningsTotal.Add(settled)),
		"wallet_balance": models.NewMoneyFromDecimal(root.WalletBalance.Add(settled)),
	})
}
