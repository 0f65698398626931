package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/provider"
	"github.com/wldmarket/internal/queue"
	"github.com/wldmarket/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderAutoDeliver, c.handleOrderAutoDeliver)
	mux.HandleFunc(queue.TaskOrderSettle, c.handleOrderSettle)
}

func (c *Consumer) handleOrderAutoDeliver(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_auto_deliver_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderAutoDeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_auto_deliver_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_auto_deliver_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	delivered, err := c.OrderService.AutoDeliver(ctx, payload.OrderID, payload.ShippedVersion)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			logger.Debugw("worker_order_auto_deliver_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		}
		logger.Warnw("worker_order_auto_deliver_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	// 订单已被买家签收、取消或再次发货时任务作废
	if !delivered {
		logger.Debugw("worker_order_auto_deliver_stale", "order_id", payload.OrderID, "shipped_version", payload.ShippedVersion)
		return nil
	}
	logger.Infow("worker_order_auto_delivered", "order_id", payload.OrderID)
	return nil
}

func (c *Consumer) handleOrderSettle(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_settle_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderSettlePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_settle_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_settle_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	return c.settleOrder(payload.OrderID)
}

func (c *Consumer) settleOrder(orderID uint) error {
	earnings, err := c.CommissionService.Settle(orderID)
	if err != nil {
		// 订单不存在或尚未完成时重试没有意义
		if errors.Is(err, service.ErrOrderNotFound) || errors.Is(err, service.ErrPrecondition) {
			logger.Warnw("worker_order_settle_skip", "order_id", orderID, "error", err)
			return nil
		}
		logger.Errorw("worker_order_settle_failed", "order_id", orderID, "error", err)
		return err
	}
	logger.Infow("worker_order_settled", "order_id", orderID, "earnings", len(earnings))
	return nil
}

// RefreshRates 从汇率源拉取一次实时汇率
func (c *Consumer) RefreshRates(ctx context.Context) (int, error) {
	if c == nil || c.ExchangeRateService == nil {
		return 0, nil
	}
	return c.ExchangeRateService.RefreshFromFeed(ctx, c.RateFeed)
}

// ReconcileSettlements 补结算已完成但缺少收益流水的订单
//
// 队列可用时投递结算任务，否则直接在当前进程内结算。
func (c *Consumer) ReconcileSettlements(limit int) (int, error) {
	if c == nil || c.OrderRepo == nil {
		return 0, nil
	}
	orders, err := c.OrderRepo.ListCompletedWithoutEarnings(limit)
	if err != nil {
		return 0, err
	}
	handled := 0
	for _, order := range orders {
		if c.QueueClient.Enabled() {
			if err := c.QueueClient.EnqueueOrderSettle(queue.OrderSettlePayload{OrderID: order.ID}); err != nil {
				logger.Warnw("worker_enqueue_order_settle_failed", "order_id", order.ID, "error", err)
				continue
			}
			handled++
			continue
		}
		if err := c.settleOrder(order.ID); err != nil {
			continue
		}
		handled++
	}
	return handled, nil
}

// DeliverOverdue 自动签收超时未确认的已发货订单
func (c *Consumer) DeliverOverdue(ctx context.Context, limit int) (int, error) {
	if c == nil || c.OrderService == nil {
		return 0, nil
	}
	return c.OrderService.AutoDeliverOverdue(ctx, limit)
}
