package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/queue"

	"gorm.io/gorm"
)

// TransitionInput 订单状态推进输入
type TransitionInput struct {
	OrderID          uint
	Actor            Actor
	Target           string
	ExpectedVersion  *uint // 可选，调用方读取到的版本号
	TrackingNumber   string
	ShippingProvider string
	Note             string
}

// TransitionResult 状态推进结果
type TransitionResult struct {
	Order    *models.Order    `json:"order"`
	Earnings []models.Earning `json:"earnings,omitempty"`
}

// statusTimestampColumns 各目标状态对应的时间戳列
var statusTimestampColumns = map[string]string{
	constants.OrderStatusConfirmed:       "confirmed_at",
	constants.OrderStatusPaid:            "paid_at",
	constants.OrderStatusPaymentVerified: "payment_verified_at",
	constants.OrderStatusShipped:         "shipped_at",
	constants.OrderStatusDelivered:       "delivered_at",
	constants.OrderStatusCompleted:       "completed_at",
	constants.OrderStatusCancelled:       "cancelled_at",
	constants.OrderStatusRefunded:        "refunded_at",
}

// engagedOrderStatuses 已确认但尚未进入终态的订单状态
var engagedOrderStatuses = []string{
	constants.OrderStatusConfirmed,
	constants.OrderStatusPaid,
	constants.OrderStatusPaymentVerified,
	constants.OrderStatusShipped,
	constants.OrderStatusDelivered,
}

// Transition 推进订单状态
//
// 校验顺序：状态边、操作角色、前置条件。写入以状态与版本号为条件，
// 并发推进时只有一方成功，另一方得到 ErrConflict。推进到 completed 时
// 在同一事务内完成结算，结算失败则整体回滚，订单保持 delivered。
func (s *OrderService) Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	if !input.Actor.Valid() {
		return nil, ErrActorInvalid
	}
	target := strings.TrimSpace(strings.ToLower(input.Target))
	if _, ok := statusTimestampColumns[target]; !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, input.Target)
	}

	var setting CommissionSetting
	if target == constants.OrderStatusCompleted {
		loaded, err := s.settingService.GetCommissionSetting()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSettlement, err)
		}
		setting = loaded
	}

	var (
		result     TransitionResult
		fromStatus string
		role       string
	)
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByID(input.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		// 与查询接口一致，非参与方用户看不到订单
		if input.Actor.Kind == ActorKindUser && input.Actor.RoleOn(order) == "" {
			return ErrOrderNotFound
		}
		if input.ExpectedVersion != nil && *input.ExpectedVersion != order.Version {
			return fmt.Errorf("%w: expected version %d, current %d", ErrConflict, *input.ExpectedVersion, order.Version)
		}
		if order.Status == target {
			return fmt.Errorf("%w: order already %s", ErrConflict, target)
		}
		fromStatus = order.Status
		if !IsOrderEdge(order.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
		}

		role = input.Actor.RoleOn(order)
		if role == "" {
			return fmt.Errorf("%w: actor is not a participant", ErrUnauthorizedActor)
		}
		allowed, err := s.policy.CanTransition(role, order.Status, target)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%w: %s cannot move %s -> %s", ErrUnauthorizedActor, role, order.Status, target)
		}

		now := time.Now()
		updates, err := s.transitionUpdates(tx, order, target, input, now)
		if err != nil {
			return err
		}
		affected, err := orderRepo.TransitionStatus(order.ID, order.Status, order.Version, target, updates)
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: order %d changed during transition", ErrConflict, order.ID)
		}
		if err := orderRepo.CreateStatusLog(&models.OrderStatusLog{
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   target,
			ActorID:    input.Actor.ID,
			ActorRole:  role,
			Note:       strings.TrimSpace(input.Note),
		}); err != nil {
			return err
		}

		if target == constants.OrderStatusCompleted {
			if err := s.markProductSold(tx, order, now); err != nil {
				return err
			}
			earnings, err := s.commissionService.SettleWithin(tx, order.ID, setting)
			if err != nil {
				if !errors.Is(err, ErrSettlement) {
					return fmt.Errorf("%w: %w", ErrSettlement, err)
				}
				return err
			}
			result.Earnings = earnings
		}

		result.Order, err = orderRepo.GetByID(order.ID)
		return err
	})
	if err != nil {
		logger.Warnw("order_transition_failed",
			"order_id", input.OrderID,
			"from_status", fromStatus,
			"to_status", target,
			"actor_kind", string(input.Actor.Kind),
			"actor_id", input.Actor.ID,
			"error", err,
		)
		return nil, err
	}

	logger.Infow("order_status_changed",
		"order_id", result.Order.ID,
		"from_status", fromStatus,
		"to_status", target,
		"actor_role", role,
		"actor_id", input.Actor.ID,
		"version", result.Order.Version,
	)
	if target == constants.OrderStatusShipped {
		s.scheduleAutoDeliver(result.Order)
	}
	return &result, nil
}

// transitionUpdates 校验状态边的前置条件并生成附带写入的字段
func (s *OrderService) transitionUpdates(tx *gorm.DB, order *models.Order, target string, input TransitionInput, now time.Time) (map[string]interface{}, error) {
	updates := map[string]interface{}{
		statusTimestampColumns[target]: now,
		"updated_at":                   now,
	}
	switch target {
	case constants.OrderStatusConfirmed:
		product, err := s.productRepo.WithTx(tx).GetByIDForUpdate(order.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil || product.Status != constants.ProductStatusActive {
			return nil, fmt.Errorf("%w: product no longer available", ErrPrecondition)
		}
		// 二手商品只有一件，同一时间只能有一笔订单处于确认后的流程中
		engaged, err := s.orderRepo.WithTx(tx).CountByProductInStatuses(order.ProductID, order.ID, engagedOrderStatuses)
		if err != nil {
			return nil, err
		}
		if engaged > 0 {
			return nil, fmt.Errorf("%w: product already committed to another order", ErrPrecondition)
		}
	case constants.OrderStatusShipped:
		tracking := strings.TrimSpace(input.TrackingNumber)
		provider := strings.TrimSpace(input.ShippingProvider)
		if tracking == "" || provider == "" {
			return nil, fmt.Errorf("%w: tracking number and shipping provider are required", ErrPrecondition)
		}
		updates["tracking_number"] = tracking
		updates["shipping_provider"] = provider
	case constants.OrderStatusCancelled:
		shippedOrLater := order.Status == constants.OrderStatusShipped || order.Status == constants.OrderStatusDelivered
		if shippedOrLater && !s.cfg.AllowCancelAfterShipment {
			return nil, fmt.Errorf("%w: order already shipped", ErrPrecondition)
		}
		updates["cancel_reason"] = strings.TrimSpace(input.Note)
	case constants.OrderStatusRefunded:
		updates["cancel_reason"] = strings.TrimSpace(input.Note)
	}
	return updates, nil
}

func (s *OrderService) markProductSold(tx *gorm.DB, order *models.Order, now time.Time) error {
	affected, err := s.productRepo.WithTx(tx).MarkSold(order.ProductID, order.ID, now)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: product %d already sold", ErrPrecondition, order.ProductID)
	}
	return nil
}

func (s *OrderService) scheduleAutoDeliver(order *models.Order) {
	if s.queueClient == nil || !s.queueClient.Enabled() || s.cfg.AutoDeliverHours <= 0 {
		return
	}
	delay := time.Duration(s.cfg.AutoDeliverHours) * time.Hour
	if err := s.queueClient.EnqueueOrderAutoDeliver(queue.OrderAutoDeliverPayload{
		OrderID:        order.ID,
		ShippedVersion: order.Version,
	}, delay); err != nil {
		logger.Warnw("order_auto_deliver_enqueue_failed", "order_id", order.ID, "error", err)
	}
}

// AutoDeliver 超时未签收时由系统确认签收，订单已变化则跳过
func (s *OrderService) AutoDeliver(ctx context.Context, orderID uint, shippedVersion uint) (bool, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return false, err
	}
	if order == nil {
		return false, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusShipped || order.Version != shippedVersion {
		return false, nil
	}
	version := order.Version
	_, err = s.Transition(ctx, TransitionInput{
		OrderID:         order.ID,
		Actor:           SystemActor("auto_deliver"),
		Target:          constants.OrderStatusDelivered,
		ExpectedVersion: &version,
		Note:            "auto delivered after timeout",
	})
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AutoDeliverOverdue 扫描超时未签收的订单并自动签收，用于队列不可用时兜底
func (s *OrderService) AutoDeliverOverdue(ctx context.Context, limit int) (int, error) {
	if s.cfg.AutoDeliverHours <= 0 {
		return 0, nil
	}
	before := time.Now().Add(-time.Duration(s.cfg.AutoDeliverHours) * time.Hour)
	orders, err := s.orderRepo.ListShippedBefore(before, limit)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, order := range orders {
		ok, err := s.AutoDeliver(ctx, order.ID, order.Version)
		if err != nil {
			logger.Warnw("order_auto_deliver_failed", "order_id", order.ID, "error", err)
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}
