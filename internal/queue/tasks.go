package queue

import (
	"encoding/json"
	"errors"

	"github.com/wldmarket/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderAutoDeliver 发货后超时自动签收任务
	TaskOrderAutoDeliver = constants.TaskOrderAutoDeliver
	// TaskOrderSettle 订单结算补偿任务
	TaskOrderSettle = constants.TaskOrderSettle
)

// OrderAutoDeliverPayload 自动签收任务载荷
type OrderAutoDeliverPayload struct {
	OrderID        uint `json:"order_id"`
	ShippedVersion uint `json:"shipped_version"`
}

// OrderSettlePayload 结算补偿任务载荷
type OrderSettlePayload struct {
	OrderID uint `json:"order_id"`
}

// NewOrderAutoDeliverTask 创建自动签收任务
func NewOrderAutoDeliverTask(payload OrderAutoDeliverPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderAutoDeliver, body), nil
}

// NewOrderSettleTask 创建结算补偿任务
func NewOrderSettleTask(payload OrderSettlePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderSettle, body), nil
}

func errorsIsTaskIDConflict(err error) bool {
	return errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask)
}
