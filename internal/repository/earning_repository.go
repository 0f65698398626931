package repository

import (
	"strings"

	"github.com/wldmarket/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EarningRepository 收益流水数据访问接口
type EarningRepository interface {
	Create(earning *models.Earning) error
	ListByOrder(orderID uint) ([]models.Earning, error)
	CountByOrder(orderID uint) (int64, error)
	SumByOrder(orderID uint) (decimal.Decimal, error)
	List(filter EarningListFilter) ([]models.Earning, int64, error)
	WithTx(tx *gorm.DB) *GormEarningRepository
}

// GormEarningRepository GORM 实现
type GormEarningRepository struct {
	db *gorm.DB
}

// NewEarningRepository 创建收益流水仓库
func NewEarningRepository(db *gorm.DB) *GormEarningRepository {
	return &GormEarningRepository{db: db}
}

// WithTx 绑定事务
func (r *GormEarningRepository) WithTx(tx *gorm.DB) *GormEarningRepository {
	if tx == nil {
		return r
	}
	return &GormEarningRepository{db: tx}
}

// Create 写入收益流水
func (r *GormEarningRepository) Create(earning *models.Earning) error {
	return r.db.Create(earning).Error
}

// ListByOrder 获取订单产生的全部收益流水
func (r *GormEarningRepository) ListByOrder(orderID uint) ([]models.Earning, error) {
	var earnings []models.Earning
	if err := r.db.Where("source_order_id = ?", orderID).Order("level asc, id asc").Find(&earnings).Error; err != nil {
		return nil, err
	}
	return earnings, nil
}

// CountByOrder 统计订单收益流水条数
func (r *GormEarningRepository) CountByOrder(orderID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Earning{}).Where("source_order_id = ?", orderID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumByOrder 汇总订单收益金额
func (r *GormEarningRepository) SumByOrder(orderID uint) (decimal.Decimal, error) {
	earnings, err := r.ListByOrder(orderID)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, earning := range earnings {
		sum = sum.Add(earning.Amount.Decimal)
	}
	return sum.Round(2), nil
}

// List 收益流水列表
func (r *GormEarningRepository) List(filter EarningListFilter) ([]models.Earning, int64, error) {
	query := r.db.Model(&models.Earning{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if earningType := strings.TrimSpace(filter.Type); earningType != "" {
		query = query.Where("type = ?", earningType)
	}
	if filter.SourceOrderID != 0 {
		query = query.Where("source_order_id = ?", filter.SourceOrderID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var earnings []models.Earning
	if err := query.Order("id desc").Find(&earnings).Error; err != nil {
		return nil, 0, err
	}
	return earnings, total, nil
}
