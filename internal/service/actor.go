package service

import (
	"strings"

	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"
)

// ActorKind 操作主体类别
type ActorKind string

const (
	// ActorKindUser 普通用户（买家或卖家视订单而定）
	ActorKindUser ActorKind = "user"
	// ActorKindAdmin 管理员
	ActorKindAdmin ActorKind = "admin"
	// ActorKindSystem 系统任务
	ActorKindSystem ActorKind = "system"
)

// Actor 显式传入的操作主体，替代全局的“当前用户”
type Actor struct {
	ID   uint
	Kind ActorKind
	Name string
}

// UserActor 构造用户主体
func UserActor(userID uint) Actor {
	return Actor{ID: userID, Kind: ActorKindUser}
}

// AdminActor 构造管理员主体
func AdminActor(adminID uint, name string) Actor {
	return Actor{ID: adminID, Kind: ActorKindAdmin, Name: strings.TrimSpace(name)}
}

// SystemActor 构造系统主体
func SystemActor(name string) Actor {
	return Actor{Kind: ActorKindSystem, Name: strings.TrimSpace(name)}
}

// Valid 判断主体是否可用
func (a Actor) Valid() bool {
	switch a.Kind {
	case ActorKindUser, ActorKindAdmin:
		return a.ID != 0
	case ActorKindSystem:
		return true
	default:
		return false
	}
}

// RoleOn 解析主体在订单上的角色，非订单参与方返回空
func (a Actor) RoleOn(order *models.Order) string {
	if order == nil {
		return ""
	}
	switch a.Kind {
	case ActorKindAdmin:
		return constants.ActorRoleAdmin
	case ActorKindSystem:
		return constants.ActorRoleSystem
	case ActorKindUser:
		switch a.ID {
		case order.BuyerID:
			return constants.ActorRoleBuyer
		case order.SellerID:
			return constants.ActorRoleSeller
		}
	}
	return ""
}
