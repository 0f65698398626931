package service

import "errors"

// 订单状态机错误
var (
	ErrInvalidTransition = errors.New("order status transition not allowed")
	ErrUnauthorizedActor = errors.New("actor not permitted for this transition")
	ErrPrecondition      = errors.New("transition precondition not met")
	ErrConflict          = errors.New("order was modified concurrently")
	ErrSettlement        = errors.New("order settlement failed")
	ErrOrderNotFound     = errors.New("order not found")
	ErrActorInvalid      = errors.New("actor is invalid")
)

// 推荐关系错误
var (
	ErrIntegrity          = errors.New("data integrity violation")
	ErrReferralCycle      = errors.New("referral chain contains a cycle")
	ErrInviteCodeInvalid  = errors.New("invite code invalid")
	ErrInviterAssigned    = errors.New("inviter already assigned")
	ErrSelfInvite         = errors.New("user cannot invite itself")
	ErrRootHasNoInviter   = errors.New("root account cannot have an inviter")
	ErrUserExists         = errors.New("user already exists")
	ErrRootAccountMissing = errors.New("root account not configured")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserDisabled       = errors.New("user disabled")
)

// 商品与下单错误
var (
	ErrProductNotFound     = errors.New("product not found")
	ErrProductNotAvailable = errors.New("product not available")
	ErrProductNotEditable  = errors.New("product not editable")
	ErrProductInvalid      = errors.New("product input invalid")
	ErrCannotBuyOwnProduct = errors.New("cannot buy own product")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrForbidden           = errors.New("forbidden")
)

// 汇率错误
var (
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	ErrRateInvalid     = errors.New("exchange rate invalid")
	ErrRateLockMissing = errors.New("exchange rate lock not found")
)

// 配置错误
var (
	ErrCommissionConfigInvalid = errors.New("commission config invalid")
)

// 认证错误
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrAdminNotFound      = errors.New("admin not found")
	ErrAdminExists        = errors.New("admin already exists")
	ErrWeakPassword       = errors.New("password too weak")
	ErrTokenInvalid       = errors.New("token invalid")
)
