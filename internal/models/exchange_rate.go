package models

import "time"

// ExchangeRate 汇率抓取历史
type ExchangeRate struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                       // 主键
	Base      string    `gorm:"type:varchar(10);not null;index:idx_rate_pair" json:"base"`  // 本币
	Quote     string    `gorm:"type:varchar(10);not null;index:idx_rate_pair" json:"quote"` // 结算币
	Rate      Rate      `gorm:"type:decimal(24,8);not null" json:"rate"`                    // 汇率（1 本币 = rate 结算币）
	Source    string    `gorm:"type:varchar(50);not null;default:''" json:"source"`         // 数据源
	FetchedAt time.Time `gorm:"index" json:"fetched_at"`                                    // 抓取时间
}

// TableName 指定表名
func (ExchangeRate) TableName() string {
	return "exchange_rates"
}

// RateLock 汇率锁定快照
//
// 同一范围与币种仅保留一条，重新锁定即覆盖。
type RateLock struct {
	ID        uint       `gorm:"primarykey" json:"id"`                                                       // 主键
	ScopeKey  string     `gorm:"type:varchar(100);not null;index:idx_rate_lock_scope,unique" json:"scope"`   // 锁定范围（如 product:12）
	Currency  string     `gorm:"type:varchar(10);not null;index:idx_rate_lock_scope,unique" json:"currency"` // 本币
	Quote     string     `gorm:"type:varchar(10);not null" json:"quote"`                                     // 结算币
	Rate      Rate       `gorm:"type:decimal(24,8);not null" json:"rate"`                                    // 锁定汇率
	LockedAt  time.Time  `json:"locked_at"`                                                                  // 锁定时间
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`                                          // 过期时间（为空表示直到解锁）
	CreatedAt time.Time  `json:"created_at"`                                                                 // 创建时间
	UpdatedAt time.Time  `json:"updated_at"`                                                                 // 更新时间
}

// TableName 指定表名
func (RateLock) TableName() string {
	return "rate_locks"
}

// Active 判断锁定在指定时间是否仍有效
func (l *RateLock) Active(now time.Time) bool {
	if l == nil {
		return false
	}
	return l.ExpiresAt == nil || now.Before(*l.ExpiresAt)
}
