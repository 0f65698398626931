package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表
//
// 价格相关字段在创建后不可变，创建后只推进状态以及物流与评价字段。
type Order struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                                 // 主键
	OrderNo            string         `gorm:"type:varchar(40);uniqueIndex;not null" json:"order_no"`                // 订单编号
	BuyerID            uint           `gorm:"not null;index" json:"buyer_id"`                                       // 买家ID
	SellerID           uint           `gorm:"not null;index" json:"seller_id"`                                      // 卖家ID
	ProductID          uint           `gorm:"not null;index" json:"product_id"`                                     // 商品ID
	Status             string         `gorm:"type:varchar(32);not null;index" json:"status"`                        // 订单状态
	Version            uint           `gorm:"not null;default:0" json:"version"`                                    // 状态版本号（乐观锁）
	Currency           string         `gorm:"type:varchar(10);not null" json:"currency"`                            // 本币代码
	Subtotal           Money          `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`                // 商品小计
	ShippingFee        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_fee"`            // 运费/社区费
	TotalAmount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`            // 订单总额
	FinFeePercent      Money          `gorm:"type:decimal(10,2);not null;default:0" json:"fin_fee_percent"`         // 下单时的平台费率快照
	SettlementCurrency string         `gorm:"type:varchar(10);not null;default:''" json:"settlement_currency"`      // 结算币种
	ConversionRate     Rate           `gorm:"type:decimal(24,8);not null;default:0" json:"conversion_rate"`         // 本币到结算币种汇率
	SettlementAmount   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"settlement_amount"`       // 折算后的结算金额
	RateSource         string         `gorm:"type:varchar(20);not null;default:'current'" json:"rate_source"`       // 汇率来源（locked/current）
	RateLockedAt       *time.Time     `json:"rate_locked_at,omitempty"`                                             // 汇率锁定时间
	TrackingNumber     string         `gorm:"type:varchar(100);default:''" json:"tracking_number"`                  // 物流单号
	ShippingProvider   string         `gorm:"type:varchar(100);default:''" json:"shipping_provider"`                // 物流公司
	Reviewed           bool           `gorm:"not null;default:false" json:"reviewed"`                               // 是否已评价
	CancelReason       string         `gorm:"type:varchar(255);default:''" json:"cancel_reason,omitempty"`          // 取消/退款原因
	ConfirmedAt        *time.Time     `json:"confirmed_at,omitempty"`                                               // 卖家确认时间
	PaidAt             *time.Time     `gorm:"index" json:"paid_at,omitempty"`                                       // 买家标记付款时间
	PaymentVerifiedAt  *time.Time     `json:"payment_verified_at,omitempty"`                                        // 卖家确认收款时间
	ShippedAt          *time.Time     `gorm:"index" json:"shipped_at,omitempty"`                                    // 发货时间
	DeliveredAt        *time.Time     `json:"delivered_at,omitempty"`                                               // 签收时间
	CompletedAt        *time.Time     `gorm:"index" json:"completed_at,omitempty"`                                  // 完成时间
	CancelledAt        *time.Time     `json:"cancelled_at,omitempty"`                                               // 取消时间
	RefundedAt         *time.Time     `json:"refunded_at,omitempty"`                                                // 退款时间
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                                              // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`                                              // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                                       // 软删除时间

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 商品
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// OrderStatusLog 订单状态流转记录
type OrderStatusLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`                                   // 主键
	OrderID    uint      `gorm:"not null;index" json:"order_id"`                         // 订单ID
	FromStatus string    `gorm:"type:varchar(32);not null" json:"from_status"`           // 原状态
	ToStatus   string    `gorm:"type:varchar(32);not null" json:"to_status"`             // 目标状态
	ActorID    uint      `gorm:"not null;default:0;index" json:"actor_id"`               // 操作人ID（系统为 0）
	ActorRole  string    `gorm:"type:varchar(20);not null" json:"actor_role"`            // 操作人角色
	Note       string    `gorm:"type:varchar(255);default:''" json:"note,omitempty"`     // 备注
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                                // 创建时间
}

// TableName 指定表名
func (OrderStatusLog) TableName() string {
	return "order_status_logs"
}
