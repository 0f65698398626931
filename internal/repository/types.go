package repository

import "time"

// UserListFilter 查询用户列表的过滤条件
type UserListFilter struct {
	Page      int
	PageSize  int
	Keyword   string
	Status    string
	InviterID uint
}

// ProductListFilter 查询商品列表的过滤条件
type ProductListFilter struct {
	Page     int
	PageSize int
	SellerID uint
	Status   string
	Search   string
}

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page          int
	PageSize      int
	BuyerID       uint
	SellerID      uint
	ParticipantID uint // 买家或卖家任一方
	Status        string
	OrderNo       string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// EarningListFilter 查询收益流水的过滤条件
type EarningListFilter struct {
	Page          int
	PageSize      int
	UserID        uint
	Type          string
	SourceOrderID uint
}

// ReferralListFilter 查询推荐关系的过滤条件
type ReferralListFilter struct {
	Page       int
	PageSize   int
	ReferrerID uint
	ReferredID uint
	Level      int
	Status     string
}
