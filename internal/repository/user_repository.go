package repository

import (
	"errors"
	"strings"

	"github.com/wldmarket/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByIDForUpdate(id uint) (*models.User, error)
	GetReferralNode(id uint) (*models.User, error)
	GetByInviteCode(code string) (*models.User, error)
	GetByExternalID(externalID string) (*models.User, error)
	GetRoot() (*models.User, error)
	ListByIDs(ids []uint) ([]models.User, error)
	Create(user *models.User) error
	UpdateFields(id uint, updates map[string]interface{}) error
	AssignInviterOnce(userID, inviterID uint, assignment string, updates map[string]interface{}) (int64, error)
	ReplaceInviter(userID, oldInviterID, newInviterID uint, assignment string) (int64, error)
	ListInviteeIDs(inviterIDs []uint) ([]uint, error)
	IncrementReferralsTotal(ids []uint) error
	List(filter UserListFilter) ([]models.User, int64, error)
	BatchUpdateStatus(userIDs []uint, status string) error
	WithTx(tx *gorm.DB) *GormUserRepository
}

// GormUserRepository GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// WithTx 绑定事务
func (r *GormUserRepository) WithTx(tx *gorm.DB) *GormUserRepository {
	if tx == nil {
		return r
	}
	return &GormUserRepository{db: tx}
}

// GetByID 根据 ID 获取用户
func (r *GormUserRepository) GetByID(id uint) (*models.User, error) {
	if id == 0 {
		return nil, nil
	}
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate 加锁获取用户
func (r *GormUserRepository) GetByIDForUpdate(id uint) (*models.User, error) {
	if id == 0 {
		return nil, nil
	}
	var user models.User
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetReferralNode 获取推荐链节点（包含已软删除用户，仅加载链路字段）
func (r *GormUserRepository) GetReferralNode(id uint) (*models.User, error) {
	if id == 0 {
		return nil, nil
	}
	var user models.User
	err := r.db.Unscoped().
		Select("id", "inviter_id", "is_root", "status").
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByInviteCode 根据邀请码获取用户
func (r *GormUserRepository) GetByInviteCode(code string) (*models.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	var user models.User
	if err := r.db.Where("invite_code = ?", code).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByExternalID 根据外部身份标识获取用户
func (r *GormUserRepository) GetByExternalID(externalID string) (*models.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, nil
	}
	var user models.User
	if err := r.db.Where("external_id = ?", externalID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetRoot 获取平台根账户
func (r *GormUserRepository) GetRoot() (*models.User, error) {
	var user models.User
	if err := r.db.Where("is_root = ?", true).Order("id asc").First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ListByIDs 批量获取用户
func (r *GormUserRepository) ListByIDs(ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Create 创建用户
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// UpdateFields 按字段更新用户
func (r *GormUserRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
}

// AssignInviterOnce 条件写入邀请人，仅当尚未设置时生效，返回影响行数
func (r *GormUserRepository) AssignInviterOnce(userID, inviterID uint, assignment string, updates map[string]interface{}) (int64, error) {
	if userID == 0 || inviterID == 0 {
		return 0, nil
	}
	values := map[string]interface{}{
		"inviter_id":         inviterID,
		"inviter_assignment": assignment,
	}
	for key, value := range updates {
		values[key] = value
	}
	result := r.db.Model(&models.User{}).
		Where("id = ? AND inviter_id IS NULL", userID).
		Updates(values)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ReplaceInviter 以原邀请人为条件替换邀请人，返回影响行数
func (r *GormUserRepository) ReplaceInviter(userID, oldInviterID, newInviterID uint, assignment string) (int64, error) {
	result := r.db.Model(&models.User{}).
		Where("id = ? AND inviter_id = ?", userID, oldInviterID).
		Updates(map[string]interface{}{
			"inviter_id":         newInviterID,
			"inviter_assignment": assignment,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListInviteeIDs 查询一批用户的直接下线 ID
func (r *GormUserRepository) ListInviteeIDs(inviterIDs []uint) ([]uint, error) {
	if len(inviterIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := r.db.Model(&models.User{}).
		Where("inviter_id IN ?", inviterIDs).
		Order("id asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// IncrementReferralsTotal 累加推荐人数
func (r *GormUserRepository) IncrementReferralsTotal(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.User{}).
		Where("id IN ?", ids).
		UpdateColumn("referrals_total", gorm.Expr("referrals_total + ?", 1)).Error
}

// List 用户列表
func (r *GormUserRepository) List(filter UserListFilter) ([]models.User, int64, error) {
	query := r.db.Model(&models.User{})
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, count := buildLikeCondition(r.db, []string{"display_name", "invite_code", "external_id"})
		query = query.Where(condition, repeatLikeArgs(keyword, count)...)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.InviterID != 0 {
		query = query.Where("inviter_id = ?", filter.InviterID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var users []models.User
	if err := query.Order("id desc").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// BatchUpdateStatus 批量更新用户状态
func (r *GormUserRepository) BatchUpdateStatus(userIDs []uint, status string) error {
	if len(userIDs) == 0 {
		return nil
	}
	return r.db.Model(&models.User{}).Where("id IN ?", userIDs).Update("status", status).Error
}
