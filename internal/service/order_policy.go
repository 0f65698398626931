package service

import "github.com/wldmarket/internal/constants"

// ActorPolicy 判断某角色能否推进订单的某条状态边
type ActorPolicy interface {
	CanTransition(role, from, to string) (bool, error)
}

// orderEdges 允许的状态边及可操作角色
var orderEdges = map[string]map[string][]string{
	constants.OrderStatusPending: {
		constants.OrderStatusConfirmed: {constants.ActorRoleSeller},
		constants.OrderStatusCancelled: {constants.ActorRoleBuyer, constants.ActorRoleSeller, constants.ActorRoleAdmin},
	},
	constants.OrderStatusConfirmed: {
		constants.OrderStatusPaid:      {constants.ActorRoleBuyer},
		constants.OrderStatusCancelled: {constants.ActorRoleBuyer, constants.ActorRoleSeller, constants.ActorRoleAdmin},
	},
	constants.OrderStatusPaid: {
		constants.OrderStatusPaymentVerified: {constants.ActorRoleSeller},
		constants.OrderStatusCancelled:       {constants.ActorRoleBuyer, constants.ActorRoleSeller, constants.ActorRoleAdmin},
		constants.OrderStatusRefunded:        {constants.ActorRoleSeller, constants.ActorRoleAdmin},
	},
	constants.OrderStatusPaymentVerified: {
		constants.OrderStatusShipped:   {constants.ActorRoleSeller},
		constants.OrderStatusCancelled: {constants.ActorRoleBuyer, constants.ActorRoleSeller, constants.ActorRoleAdmin},
		constants.OrderStatusRefunded:  {constants.ActorRoleSeller, constants.ActorRoleAdmin},
	},
	constants.OrderStatusShipped: {
		constants.OrderStatusDelivered: {constants.ActorRoleBuyer, constants.ActorRoleSystem},
		constants.OrderStatusCancelled: {constants.ActorRoleBuyer, constants.ActorRoleSeller, constants.ActorRoleAdmin},
	},
	constants.OrderStatusDelivered: {
		constants.OrderStatusCompleted: {constants.ActorRoleBuyer},
		constants.OrderStatusCancelled: {constants.ActorRoleBuyer, constants.ActorRoleSeller, constants.ActorRoleAdmin},
	},
}

// IsTerminalOrderStatus 判断是否为终态
func IsTerminalOrderStatus(status string) bool {
	switch status {
	case constants.OrderStatusCompleted, constants.OrderStatusCancelled, constants.OrderStatusRefunded:
		return true
	}
	return false
}

// IsOrderEdge 判断状态边是否存在
func IsOrderEdge(from, to string) bool {
	targets, ok := orderEdges[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// NextOrderStatuses 返回从指定状态出发可到达的目标状态
func NextOrderStatuses(from string) []string {
	targets := orderEdges[from]
	result := make([]string, 0, len(targets))
	for _, status := range orderStatusOrder {
		if _, ok := targets[status]; ok {
			result = append(result, status)
		}
	}
	return result
}

var orderStatusOrder = []string{
	constants.OrderStatusPending,
	constants.OrderStatusConfirmed,
	constants.OrderStatusPaid,
	constants.OrderStatusPaymentVerified,
	constants.OrderStatusShipped,
	constants.OrderStatusDelivered,
	constants.OrderStatusCompleted,
	constants.OrderStatusCancelled,
	constants.OrderStatusRefunded,
}

// OrderEdgeRule 状态边与可操作角色，供授权策略初始化
type OrderEdgeRule struct {
	From  string
	To    string
	Roles []string
}

// OrderEdgeRules 按固定顺序列出全部状态边
func OrderEdgeRules() []OrderEdgeRule {
	rules := make([]OrderEdgeRule, 0, 16)
	for _, from := range orderStatusOrder {
		for _, to := range NextOrderStatuses(from) {
			roles := append([]string(nil), orderEdges[from][to]...)
			rules = append(rules, OrderEdgeRule{From: from, To: to, Roles: roles})
		}
	}
	return rules
}

// StaticActorPolicy 内置的角色表
type StaticActorPolicy struct{}

// CanTransition 查内置表判断角色是否可推进状态边
func (StaticActorPolicy) CanTransition(role, from, to string) (bool, error) {
	targets, ok := orderEdges[from]
	if !ok {
		return false, nil
	}
	for _, allowed := range targets[to] {
		if allowed == role {
			return true, nil
		}
	}
	return false, nil
}
