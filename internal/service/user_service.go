package service

import (
	"fmt"
	"strings"

	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/repository"
)

// UserService 用户服务
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// UserProfile 用户资料与聚合统计
type UserProfile struct {
	User  *models.User     `json:"user"`
	Stats models.UserStats `json:"stats"`
}

// GetProfile 获取用户资料
func (s *UserService) GetProfile(userID uint) (*UserProfile, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return &UserProfile{User: user, Stats: user.Stats()}, nil
}

// GetByExternalID 按外部身份查找用户
func (s *UserService) GetByExternalID(externalID string) (*models.User, error) {
	user, err := s.userRepo.GetByExternalID(strings.TrimSpace(externalID))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ListInvitees 查询直接邀请的用户
func (s *UserService) ListInvitees(inviterID uint, page, pageSize int) ([]models.User, int64, error) {
	return s.userRepo.List(repository.UserListFilter{
		Page:      page,
		PageSize:  pageSize,
		InviterID: inviterID,
	})
}

// ListUsers 管理端用户列表
func (s *UserService) ListUsers(filter repository.UserListFilter) ([]models.User, int64, error) {
	return s.userRepo.List(filter)
}

// SetStatus 启用或禁用用户，根账户不可禁用
func (s *UserService) SetStatus(userIDs []uint, status string) error {
	status = strings.TrimSpace(strings.ToLower(status))
	if status != constants.UserStatusActive && status != constants.UserStatusDisabled {
		return fmt.Errorf("%w: status %q", ErrForbidden, status)
	}
	if len(userIDs) == 0 {
		return nil
	}
	if status == constants.UserStatusDisabled {
		users, err := s.userRepo.ListByIDs(userIDs)
		if err != nil {
			return err
		}
		for _, user := range users {
			if user.IsRoot {
				return fmt.Errorf("%w: root account cannot be disabled", ErrForbidden)
			}
		}
	}
	if err := s.userRepo.BatchUpdateStatus(userIDs, status); err != nil {
		return err
	}
	logger.Infow("user_status_updated", "user_ids", userIDs, "status", status)
	return nil
}
