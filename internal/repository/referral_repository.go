package repository

import (
	"errors"
	"strings"

	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferralRepository 推荐关系数据访问接口
type ReferralRepository interface {
	Create(referral *models.Referral) error
	GetByPair(referrerID, referredID uint) (*models.Referral, error)
	GetByPairForUpdate(referrerID, referredID uint) (*models.Referral, error)
	Update(referral *models.Referral) error
	DeactivateByReferred(referredID uint) (int64, error)
	List(filter ReferralListFilter) ([]models.Referral, int64, error)
	WithTx(tx *gorm.DB) *GormReferralRepository
}

// GormReferralRepository GORM 实现
type GormReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository 创建推荐关系仓库
func NewReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReferralRepository) WithTx(tx *gorm.DB) *GormReferralRepository {
	if tx == nil {
		return r
	}
	return &GormReferralRepository{db: tx}
}

// Create 创建推荐关系
func (r *GormReferralRepository) Create(referral *models.Referral) error {
	return r.db.Create(referral).Error
}

// GetByPair 根据推荐人与被推荐人获取关系
func (r *GormReferralRepository) GetByPair(referrerID, referredID uint) (*models.Referral, error) {
	return r.getByPair(r.db, referrerID, referredID)
}

// GetByPairForUpdate 加锁获取推荐关系
func (r *GormReferralRepository) GetByPairForUpdate(referrerID, referredID uint) (*models.Referral, error) {
	return r.getByPair(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), referrerID, referredID)
}

func (r *GormReferralRepository) getByPair(query *gorm.DB, referrerID, referredID uint) (*models.Referral, error) {
	if referrerID == 0 || referredID == 0 {
		return nil, nil
	}
	var referral models.Referral
	if err := query.Where("referrer_id = ? AND referred_id = ?", referrerID, referredID).First(&referral).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

// Update 更新推荐关系
func (r *GormReferralRepository) Update(referral *models.Referral) error {
	return r.db.Save(referral).Error
}

// DeactivateByReferred 停用被推荐人的全部推荐关系
func (r *GormReferralRepository) DeactivateByReferred(referredID uint) (int64, error) {
	result := r.db.Model(&models.Referral{}).
		Where("referred_id = ? AND status = ?", referredID, constants.ReferralStatusActive).
		Update("status", constants.ReferralStatusInactive)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// List 推荐关系列表
func (r *GormReferralRepository) List(filter ReferralListFilter) ([]models.Referral, int64, error) {
	query := r.db.Model(&models.Referral{})
	if filter.ReferrerID != 0 {
		query = query.Where("referrer_id = ?", filter.ReferrerID)
	}
	if filter.ReferredID != 0 {
		query = query.Where("referred_id = ?", filter.ReferredID)
	}
	if filter.Level > 0 {
		query = query.Where("level = ?", filter.Level)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var referrals []models.Referral
	if err := query.Order("level asc, id asc").Find(&referrals).Error; err != nil {
		return nil, 0, err
	}
	return referrals, total, nil
}
