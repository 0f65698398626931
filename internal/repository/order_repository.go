package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByOrderNo(orderNo string) (*models.Order, error)
	ListByUser(filter OrderListFilter) ([]models.Order, int64, error)
	ListAdmin(filter OrderListFilter) ([]models.Order, int64, error)
	TransitionStatus(id uint, fromStatus string, fromVersion uint, toStatus string, updates map[string]interface{}) (int64, error)
	UpdateFields(id uint, updates map[string]interface{}) error
	CreateStatusLog(log *models.OrderStatusLog) error
	ListStatusLogs(orderID uint) ([]models.OrderStatusLog, error)
	ListCompletedWithoutEarnings(limit int) ([]models.Order, error)
	ListShippedBefore(before time.Time, limit int) ([]models.Order, error)
	CountByProductInStatuses(productID, excludeOrderID uint, statuses []string) (int64, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Product").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Product").Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter OrderListFilter) *gorm.DB {
	if filter.BuyerID != 0 {
		query = query.Where("buyer_id = ?", filter.BuyerID)
	}
	if filter.SellerID != 0 {
		query = query.Where("seller_id = ?", filter.SellerID)
	}
	if filter.ParticipantID != 0 {
		query = query.Where("(buyer_id = ? OR seller_id = ?)", filter.ParticipantID, filter.ParticipantID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_no = ?", filter.OrderNo)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	return query
}

func (r *GormOrderRepository) list(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.applyFilter(r.db.Model(&models.Order{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var orders []models.Order
	if err := query.Preload("Product").Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListByUser 获取用户参与的订单（买家或卖家）
func (r *GormOrderRepository) ListByUser(filter OrderListFilter) ([]models.Order, int64, error) {
	if filter.BuyerID == 0 && filter.SellerID == 0 && filter.ParticipantID == 0 {
		return []models.Order{}, 0, nil
	}
	return r.list(filter)
}

// ListAdmin 管理端订单列表
func (r *GormOrderRepository) ListAdmin(filter OrderListFilter) ([]models.Order, int64, error) {
	return r.list(filter)
}

// TransitionStatus 以比较并交换方式推进订单状态
//
// 仅当状态与版本号都未变化时写入，返回影响行数；为 0 表示并发冲突。
func (r *GormOrderRepository) TransitionStatus(id uint, fromStatus string, fromVersion uint, toStatus string, updates map[string]interface{}) (int64, error) {
	values := map[string]interface{}{}
	for key, value := range updates {
		values[key] = value
	}
	values["status"] = toStatus
	values["version"] = gorm.Expr("version + ?", 1)

	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ? AND version = ?", id, fromStatus, fromVersion).
		Updates(values)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// UpdateFields 更新非状态字段（如评价标记）
func (r *GormOrderRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// CreateStatusLog 写入状态流转记录
func (r *GormOrderRepository) CreateStatusLog(log *models.OrderStatusLog) error {
	return r.db.Create(log).Error
}

// ListStatusLogs 获取订单状态流转记录
func (r *GormOrderRepository) ListStatusLogs(orderID uint) ([]models.OrderStatusLog, error) {
	var logs []models.OrderStatusLog
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// ListCompletedWithoutEarnings 查询已完成但没有收益流水的订单
func (r *GormOrderRepository) ListCompletedWithoutEarnings(limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	err := r.db.Model(&models.Order{}).
		Where("status = ?", constants.OrderStatusCompleted).
		Where("NOT EXISTS (SELECT 1 FROM earnings WHERE earnings.source_order_id = orders.id)").
		Order("id asc").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListShippedBefore 查询在指定时间之前发货且仍未签收的订单
func (r *GormOrderRepository) ListShippedBefore(before time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	err := r.db.Model(&models.Order{}).
		Where("status = ? AND shipped_at <= ?", constants.OrderStatusShipped, before).
		Order("id asc").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// CountByProductInStatuses 统计同一商品处于指定状态的其他订单数
func (r *GormOrderRepository) CountByProductInStatuses(productID, excludeOrderID uint, statuses []string) (int64, error) {
	if productID == 0 || len(statuses) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.Order{}).
		Where("product_id = ? AND id <> ? AND status IN ?", productID, excludeOrderID, statuses).
		Count(&count).Error
	return count, err
}
