package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表
//
// 统计字段按列平铺存储，由结算流程累加，对外通过 Stats() 组装为嵌套结构。
type User struct {
	ID                   uint           `gorm:"primarykey" json:"id"`                                                        // 主键
	ExternalID           *string        `gorm:"type:varchar(100);uniqueIndex" json:"external_id,omitempty"`                  // 外部身份系统标识（如 World ID）
	DisplayName          string         `gorm:"type:varchar(100);default:''" json:"display_name"`                            // 昵称
	InviterID            *uint          `gorm:"index" json:"inviter_id,omitempty"`                                           // 邀请人ID（每个用户至多一个）
	InviteCode           string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"invite_code"`                    // 个人邀请码
	InviterAssignment    string         `gorm:"type:varchar(20);not null;default:''" json:"inviter_assignment"`              // 归属方式（direct/default）
	InviterAssignedAt    *time.Time     `json:"inviter_assigned_at,omitempty"`                                               // 归属时间
	IsRoot               bool           `gorm:"not null;default:false;index" json:"is_root"`                                 // 是否为平台根账户
	Status               string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`              // 账号状态
	WalletBalance        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"wallet_balance"`                 // 钱包余额
	SalesCount           int64          `gorm:"not null;default:0" json:"-"`                                                 // 售出订单数
	SalesTotal           Money          `gorm:"type:decimal(20,2);not null;default:0" json:"-"`                              // 售出总额
	PurchasesCount       int64          `gorm:"not null;default:0" json:"-"`                                                 // 购买订单数
	PurchasesTotal       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"-"`                              // 购买总额
	EarningsTotal        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"-"`                              // 收益总额
	EarningsFromSales    Money          `gorm:"column:earnings_from_sales;type:decimal(20,2);not null;default:0" json:"-"`   // 销售收益
	EarningsFromReferral Money          `gorm:"column:earnings_from_referrals;type:decimal(20,2);not null;default:0" json:"-"` // 推荐收益
	ReferralsTotal       int64          `gorm:"not null;default:0" json:"-"`                                                 // 名下推荐人数（全部层级）
	CreatedAt            time.Time      `gorm:"index" json:"created_at"`                                                     // 创建时间
	UpdatedAt            time.Time      `gorm:"index" json:"updated_at"`                                                     // 更新时间
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`                                                              // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// UserStats 用户聚合统计
type UserStats struct {
	Sales     UserTradeStats   `json:"sales"`
	Purchases UserTradeStats   `json:"purchases"`
	Earnings  UserEarningStats `json:"earnings"`
	Referrals UserReferralStat `json:"referrals"`
}

// UserTradeStats 交易统计
type UserTradeStats struct {
	Count       int64 `json:"count"`
	TotalAmount Money `json:"totalAmount"`
}

// UserEarningStats 收益统计
type UserEarningStats struct {
	Total         Money `json:"total"`
	FromSales     Money `json:"fromSales"`
	FromReferrals Money `json:"fromReferrals"`
}

// UserReferralStat 推荐统计
type UserReferralStat struct {
	Total int64 `json:"total"`
}

// Stats 组装嵌套统计视图
func (u *User) Stats() UserStats {
	return UserStats{
		Sales:     UserTradeStats{Count: u.SalesCount, TotalAmount: u.SalesTotal},
		Purchases: UserTradeStats{Count: u.PurchasesCount, TotalAmount: u.PurchasesTotal},
		Earnings: UserEarningStats{
			Total:         u.EarningsTotal,
			FromSales:     u.EarningsFromSales,
			FromReferrals: u.EarningsFromReferral,
		},
		Referrals: UserReferralStat{Total: u.ReferralsTotal},
	}
}
