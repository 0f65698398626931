package models

import "time"

// Referral 推荐关系（每个祖先层级一条）
type Referral struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                                          // 主键
	ReferrerID     uint      `gorm:"not null;index;index:idx_referral_pair,unique" json:"referrer_id"`              // 推荐人ID
	ReferredID     uint      `gorm:"not null;index;index:idx_referral_pair,unique" json:"referred_id"`              // 被推荐人ID
	Level          int       `gorm:"not null" json:"level"`                                                         // 层级（1 为直接邀请）
	CommissionRate Money     `gorm:"type:decimal(10,2);not null;default:0" json:"commission_rate"`                  // 建立关系时的分佣比例（百分比）
	TotalEarnings  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_earnings"`                   // 累计收益（单调不减）
	Status         string    `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`                // 状态
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                                       // 创建时间
	UpdatedAt      time.Time `json:"updated_at"`                                                                    // 更新时间
}

// TableName 指定表名
func (Referral) TableName() string {
	return "referrals"
}
