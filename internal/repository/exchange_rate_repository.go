package repository

import (
	"errors"
	"strings"

	"github.com/wldmarket/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExchangeRateRepository 汇率与汇率锁定数据访问接口
type ExchangeRateRepository interface {
	CreateRate(rate *models.ExchangeRate) error
	LatestRates(quote string) ([]models.ExchangeRate, error)
	ListHistory(base, quote string, limit int) ([]models.ExchangeRate, error)
	GetLock(scopeKey, currency string) (*models.RateLock, error)
	UpsertLock(lock *models.RateLock) error
	DeleteLock(scopeKey, currency string) (int64, error)
	ListLocks(scopeKey string) ([]models.RateLock, error)
	WithTx(tx *gorm.DB) *GormExchangeRateRepository
}

// GormExchangeRateRepository GORM 实现
type GormExchangeRateRepository struct {
	db *gorm.DB
}

// NewExchangeRateRepository 创建汇率仓库
func NewExchangeRateRepository(db *gorm.DB) *GormExchangeRateRepository {
	return &GormExchangeRateRepository{db: db}
}

// WithTx 绑定事务
func (r *GormExchangeRateRepository) WithTx(tx *gorm.DB) *GormExchangeRateRepository {
	if tx == nil {
		return r
	}
	return &GormExchangeRateRepository{db: tx}
}

// CreateRate 写入汇率抓取记录
func (r *GormExchangeRateRepository) CreateRate(rate *models.ExchangeRate) error {
	return r.db.Create(rate).Error
}

// LatestRates 获取每个本币最近一次抓取的汇率
func (r *GormExchangeRateRepository) LatestRates(quote string) ([]models.ExchangeRate, error) {
	quote = strings.ToUpper(strings.TrimSpace(quote))
	// 按抓取时间取最新，晚到的旧数据不会覆盖；同一时间取最后写入的
	latestFetched := r.db.Table("exchange_rates AS newer").
		Select("MAX(newer.fetched_at)").
		Where("newer.base = exchange_rates.base AND newer.quote = exchange_rates.quote")
	latestIDs := r.db.Model(&models.ExchangeRate{}).
		Select("MAX(id)").
		Where("quote = ? AND fetched_at = (?)", quote, latestFetched).
		Group("base")

	var rates []models.ExchangeRate
	if err := r.db.Where("id IN (?)", latestIDs).Order("base asc").Find(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}

// ListHistory 获取汇率历史
func (r *GormExchangeRateRepository) ListHistory(base, quote string, limit int) ([]models.ExchangeRate, error) {
	if limit <= 0 {
		limit = 50
	}
	var rates []models.ExchangeRate
	err := r.db.Where("base = ? AND quote = ?", strings.ToUpper(base), strings.ToUpper(quote)).
		Order("id desc").
		Limit(limit).
		Find(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}

// GetLock 获取汇率锁定
func (r *GormExchangeRateRepository) GetLock(scopeKey, currency string) (*models.RateLock, error) {
	var lock models.RateLock
	err := r.db.Where("scope_key = ? AND currency = ?", scopeKey, strings.ToUpper(currency)).First(&lock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lock, nil
}

// UpsertLock 写入或覆盖汇率锁定
func (r *GormExchangeRateRepository) UpsertLock(lock *models.RateLock) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_key"}, {Name: "currency"}},
		DoUpdates: clause.AssignmentColumns([]string{"quote", "rate", "locked_at", "expires_at", "updated_at"}),
	}).Create(lock).Error
}

// DeleteLock 删除汇率锁定，返回影响行数
func (r *GormExchangeRateRepository) DeleteLock(scopeKey, currency string) (int64, error) {
	result := r.db.Where("scope_key = ? AND currency = ?", scopeKey, strings.ToUpper(currency)).Delete(&models.RateLock{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListLocks 列出范围内的全部锁定
func (r *GormExchangeRateRepository) ListLocks(scopeKey string) ([]models.RateLock, error) {
	query := r.db.Model(&models.RateLock{})
	if scopeKey = strings.TrimSpace(scopeKey); scopeKey != "" {
		query = query.Where("scope_key = ?", scopeKey)
	}
	var locks []models.RateLock
	if err := query.Order("id asc").Find(&locks).Error; err != nil {
		return nil, err
	}
	return locks, nil
}
