package authz

import (
	"fmt"

	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/service"
)

// OrderPolicy 基于 Casbin 的订单状态边授权
//
// 状态边本身由状态机定义，这里只决定哪些角色可以推进某条边。
type OrderPolicy struct {
	svc *Service
}

// NewOrderPolicy 创建订单状态边授权
func NewOrderPolicy(svc *Service) *OrderPolicy {
	return &OrderPolicy{svc: svc}
}

// CanTransition 判断角色能否推进 from -> to
func (p *OrderPolicy) CanTransition(role, from, to string) (bool, error) {
	if p == nil || p.svc == nil {
		return false, ErrUnavailable
	}
	return p.svc.Enforce(SubjectForActor(role), OrderEdgeObject(from, to), orderEdgeAction)
}

// BootstrapOrderEdges 按状态机的默认角色表写入状态边策略，已存在的策略保持不变
func (s *Service) BootstrapOrderEdges(rules []service.OrderEdgeRule) error {
	if err := s.ready(); err != nil {
		return err
	}
	existing, err := s.enforcer.GetFilteredPolicy(2, orderEdgeAction)
	if err != nil {
		return fmt.Errorf("load order edge policies failed: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	added := 0
	for _, rule := range rules {
		for _, role := range rule.Roles {
			ok, err := s.enforcer.AddPolicy(SubjectForActor(role), OrderEdgeObject(rule.From, rule.To), orderEdgeAction)
			if err != nil {
				return fmt.Errorf("add order edge policy failed: %w", err)
			}
			if ok {
				added++
			}
		}
	}
	logger.Infow("authz_order_edges_bootstrapped", "policies", added)
	return nil
}

// GrantOrderEdge 允许角色推进某条状态边
func (s *Service) GrantOrderEdge(role, from, to string) error {
	if !service.IsOrderEdge(from, to) {
		return fmt.Errorf("%w: %s -> %s", service.ErrInvalidTransition, from, to)
	}
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.enforcer.AddPolicy(SubjectForActor(role), OrderEdgeObject(from, to), orderEdgeAction); err != nil {
		return fmt.Errorf("grant order edge failed: %w", err)
	}
	return nil
}

// RevokeOrderEdge 撤销角色推进某条状态边的权限
func (s *Service) RevokeOrderEdge(role, from, to string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.enforcer.RemovePolicy(SubjectForActor(role), OrderEdgeObject(from, to), orderEdgeAction); err != nil {
		return fmt.Errorf("revoke order edge failed: %w", err)
	}
	return nil
}

// ListOrderEdges 列出全部状态边策略
func (s *Service) ListOrderEdges() ([]Policy, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetFilteredPolicy(2, orderEdgeAction)
	if err != nil {
		return nil, fmt.Errorf("list order edges failed: %w", err)
	}
	return convertPolicies(rules), nil
}
