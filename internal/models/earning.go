package models

import "time"

// Earning 收益流水（只追加）
//
// (source_order_id, user_id, type) 唯一，保证同一订单对同一受益人只入账一次。
type Earning struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                                                 // 主键
	UserID           uint      `gorm:"not null;index;index:idx_earning_order_user_type,unique" json:"user_id"`               // 受益人ID
	Type             string    `gorm:"type:varchar(20);not null;index;index:idx_earning_order_user_type,unique" json:"type"` // 收益类型
	Amount           Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                                  // 金额（本币）
	SourceOrderID    uint      `gorm:"not null;index;index:idx_earning_order_user_type,unique" json:"source_order_id"`       // 来源订单ID
	ReferralID       *uint     `gorm:"index" json:"referral_id,omitempty"`                                                   // 推荐关系ID
	Level            int       `gorm:"not null;default:0" json:"level"`                                                      // 推荐层级（销售收益为 0）
	RatePercent      Money     `gorm:"type:decimal(10,2);not null;default:0" json:"rate_percent"`                            // 分佣比例（百分比）
	Currency         string    `gorm:"type:varchar(10);not null;default:''" json:"currency"`                                 // 本币代码
	SettlementAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"settlement_amount"`                       // 按订单汇率折算后的结算金额
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                                              // 创建时间
}

// TableName 指定表名
func (Earning) TableName() string {
	return "earnings"
}
