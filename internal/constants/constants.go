package constants

// 订单状态常量
const (
	OrderStatusPending         = "pending"
	OrderStatusConfirmed       = "confirmed"
	OrderStatusPaid            = "paid"
	OrderStatusPaymentVerified = "payment_verified"
	OrderStatusShipped         = "shipped"
	OrderStatusDelivered       = "delivered"
	OrderStatusCompleted       = "completed"
	OrderStatusCancelled       = "cancelled"
	OrderStatusRefunded        = "refunded"
)

// 订单操作角色常量
const (
	ActorRoleBuyer  = "buyer"
	ActorRoleSeller = "seller"
	ActorRoleAdmin  = "admin"
	ActorRoleSystem = "system"
)

// 商品状态常量
const (
	ProductStatusActive   = "active"
	ProductStatusSold     = "sold"
	ProductStatusInactive = "inactive"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 邀请关系归属方式常量
const (
	InviterAssignmentDirect  = "direct"
	InviterAssignmentDefault = "default"
)

// 收益类型常量
const (
	EarningTypeSale       = "sale"
	EarningTypeReferral   = "referral"
	EarningTypeCommission = "commission"
)

// 推荐关系状态常量
const (
	ReferralStatusActive   = "active"
	ReferralStatusInactive = "inactive"
)

// 汇率来源常量
const (
	RateSourceLocked  = "locked"
	RateSourceCurrent = "current"
)

// 汇率锁定范围常量
const (
	RateScopeProduct = "product"
	RateScopeSession = "session"
)

// 设置键常量
const (
	SettingKeyCommissionConfig = "commission_config"
)

// 异步任务重试次数
const (
	QueueMaxRetry = 5
)

// 队列名称常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型常量
const (
	TaskOrderAutoDeliver = "order:auto_deliver"
	TaskOrderSettle      = "order:settle"
)
