package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product 二手商品表
type Product struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                                 // 主键
	SellerID      uint           `gorm:"not null;index" json:"seller_id"`                                      // 卖家ID
	Title         string         `gorm:"type:varchar(200);not null" json:"title"`                              // 标题
	Description   string         `gorm:"type:text" json:"description"`                                         // 描述
	PriceLocal    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price_local"`             // 本币价格
	CurrencyCode  string         `gorm:"type:varchar(10);not null" json:"currency_code"`                       // 本币代码
	FinFeePercent Money          `gorm:"type:decimal(10,2);not null;default:0" json:"fin_fee_percent"`         // 平台费率（百分比）
	AmountFee     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount_fee"`              // 平台费金额（派生字段）
	ShippingFee   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_fee"`            // 运费/社区费
	Status        string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`       // 商品状态
	SoldOrderID   *uint          `gorm:"index" json:"sold_order_id,omitempty"`                                 // 成交订单ID
	SoldAt        *time.Time     `json:"sold_at,omitempty"`                                                    // 成交时间
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                              // 创建时间
	UpdatedAt     time.Time      `json:"updated_at"`                                                           // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                                       // 软删除时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// ComputeFee 按费率计算平台费金额
func ComputeFee(base Money, percent Money) Money {
	return NewMoneyFromDecimal(base.Decimal.Mul(percent.Decimal).Div(decimal.NewFromInt(100)))
}

// RefreshAmountFee 根据价格与费率刷新派生的平台费金额
func (p *Product) RefreshAmountFee() {
	p.AmountFee = ComputeFee(p.PriceLocal, p.FinFeePercent)
}
