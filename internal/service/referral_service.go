package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/repository"

	"gorm.io/gorm"
)

const (
	inviteCodeLength      = 8
	inviteCodeMaxAttempts = 8
	// 无上限遍历时的安全阈值，正常数据远达不到
	ascendHardLimit = 100000
)

// Ancestor 推荐链上的祖先节点
type Ancestor struct {
	UserID uint `json:"user_id"`
	Level  int  `json:"level"` // 1 为直接邀请人
	IsRoot bool `json:"is_root"`
	Active bool `json:"active"`
}

// ReferralService 推荐关系图服务
type ReferralService struct {
	userRepo       repository.UserRepository
	referralRepo   repository.ReferralRepository
	settingService *SettingService
	rootUserID     uint
}

// NewReferralService 创建推荐关系图服务
func NewReferralService(
	userRepo repository.UserRepository,
	referralRepo repository.ReferralRepository,
	settingService *SettingService,
	rootUserID uint,
) *ReferralService {
	return &ReferralService{
		userRepo:       userRepo,
		referralRepo:   referralRepo,
		settingService: settingService,
		rootUserID:     rootUserID,
	}
}

// RegisterInput 注册输入
type RegisterInput struct {
	ExternalID  string
	DisplayName string
	InviteCode  string
}

// Ascend 沿邀请人指针向上遍历，按由近到远返回至多 maxDepth 个祖先
func (s *ReferralService) Ascend(userID uint, maxDepth int) ([]Ancestor, error) {
	return ascendReferralChain(s.userRepo, userID, maxDepth)
}

// ascendReferralChain 遍历推荐链；maxDepth <= 0 表示遍历到根为止
//
// 遍历期间记录已访问节点，出现重复节点立即中止并返回完整性错误。
func ascendReferralChain(userRepo repository.UserRepository, userID uint, maxDepth int) ([]Ancestor, error) {
	limit := maxDepth
	if limit <= 0 {
		limit = ascendHardLimit
	}
	node, err := userRepo.GetReferralNode(userID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrUserNotFound
	}

	visited := map[uint]struct{}{userID: {}}
	ancestors := make([]Ancestor, 0, minInt(limit, commissionMaxDepthMax))
	for level := 1; level <= limit; level++ {
		if node.InviterID == nil || *node.InviterID == 0 {
			break
		}
		nextID := *node.InviterID
		if _, seen := visited[nextID]; seen {
			return nil, fmt.Errorf("%w: %w: user %d revisited from user %d", ErrIntegrity, ErrReferralCycle, nextID, userID)
		}
		visited[nextID] = struct{}{}

		next, err := userRepo.GetReferralNode(nextID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, fmt.Errorf("%w: inviter %d of user %d missing", ErrIntegrity, nextID, node.ID)
		}
		ancestors = append(ancestors, Ancestor{
			UserID: next.ID,
			Level:  level,
			IsRoot: next.IsRoot,
			Active: next.Status != constants.UserStatusDisabled,
		})
		node = next
	}
	return ancestors, nil
}

// Register 注册用户并分配邀请人，同一外部身份重复注册直接返回已有用户
func (s *ReferralService) Register(input RegisterInput) (*models.User, error) {
	setting, err := s.settingService.GetCommissionSetting()
	if err != nil {
		return nil, err
	}
	externalID := strings.TrimSpace(input.ExternalID)

	var created *models.User
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx)
		if externalID != "" {
			existing, err := userRepo.GetByExternalID(externalID)
			if err != nil {
				return err
			}
			if existing != nil {
				created = existing
				return nil
			}
		}

		if created != nil {
			return nil
		}
		code, err := s.allocateInviteCode(userRepo)
		if err != nil {
			return err
		}
		user := &models.User{
			DisplayName: strings.TrimSpace(input.DisplayName),
			InviteCode:  code,
			Status:      constants.UserStatusActive,
		}
		if externalID != "" {
			user.ExternalID = &externalID
		}
		if err := userRepo.Create(user); err != nil {
			return err
		}
		if err := s.assignInviterTx(tx, user.ID, input.InviteCode, setting); err != nil {
			return err
		}
		created, err = userRepo.GetByID(user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("user_registered",
		"user_id", created.ID,
		"inviter_id", derefUint(created.InviterID),
		"assignment", created.InviterAssignment,
	)
	return created, nil
}

// AssignInviter 为新用户设置邀请人；未提供邀请码时归属到平台根账户
func (s *ReferralService) AssignInviter(newUserID uint, inviteCode string) (*models.User, error) {
	setting, err := s.settingService.GetCommissionSetting()
	if err != nil {
		return nil, err
	}
	var updated *models.User
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.assignInviterTx(tx, newUserID, inviteCode, setting); err != nil {
			return err
		}
		var err error
		updated, err = s.userRepo.WithTx(tx).GetByID(newUserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *ReferralService) assignInviterTx(tx *gorm.DB, newUserID uint, inviteCode string, setting CommissionSetting) error {
	userRepo := s.userRepo.WithTx(tx)
	user, err := userRepo.GetByIDForUpdate(newUserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsRoot {
		return ErrRootHasNoInviter
	}
	if user.InviterID != nil {
		return ErrInviterAssigned
	}

	inviter, assignment, err := s.resolveInviter(userRepo, inviteCode)
	if err != nil {
		return err
	}
	if inviter.ID == user.ID {
		return ErrSelfInvite
	}

	chain, err := ascendReferralChain(userRepo, inviter.ID, 0)
	if err != nil {
		return err
	}
	for _, ancestor := range chain {
		if ancestor.UserID == user.ID {
			return fmt.Errorf("%w: %w: user %d is an ancestor of inviter %d", ErrIntegrity, ErrReferralCycle, user.ID, inviter.ID)
		}
	}

	now := time.Now()
	affected, err := userRepo.AssignInviterOnce(user.ID, inviter.ID, assignment, map[string]interface{}{
		"inviter_assigned_at": now,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInviterAssigned
	}

	return s.createReferralRows(tx, user.ID, referralLevels(inviter, chain, setting.MaxDepth), setting)
}

// referralLevels 以邀请人为一级，拼接其祖先链并截断到 maxDepth
func referralLevels(inviter *models.User, chain []Ancestor, maxDepth int) []Ancestor {
	levels := make([]Ancestor, 0, minInt(len(chain)+1, maxDepth))
	levels = append(levels, Ancestor{UserID: inviter.ID, Level: 1, IsRoot: inviter.IsRoot, Active: true})
	for _, ancestor := range chain {
		if ancestor.Level+1 > maxDepth {
			break
		}
		ancestor.Level++
		levels = append(levels, ancestor)
	}
	return levels
}

func (s *ReferralService) createReferralRows(tx *gorm.DB, referredID uint, levels []Ancestor, setting CommissionSetting) error {
	referralRepo := s.referralRepo.WithTx(tx)
	referrerIDs := make([]uint, 0, len(levels))
	for _, ancestor := range levels {
		existing, err := referralRepo.GetByPairForUpdate(ancestor.UserID, referredID)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Level = ancestor.Level
			existing.CommissionRate = models.NewMoneyFromDecimal(setting.RatePercentForLevel(ancestor.Level))
			existing.Status = constants.ReferralStatusActive
			if err := referralRepo.Update(existing); err != nil {
				return err
			}
			continue
		}
		referral := &models.Referral{
			ReferrerID:     ancestor.UserID,
			ReferredID:     referredID,
			Level:          ancestor.Level,
			CommissionRate: models.NewMoneyFromDecimal(setting.RatePercentForLevel(ancestor.Level)),
			Status:         constants.ReferralStatusActive,
		}
		if err := referralRepo.Create(referral); err != nil {
			return err
		}
		referrerIDs = append(referrerIDs, ancestor.UserID)
	}
	return s.userRepo.WithTx(tx).IncrementReferralsTotal(referrerIDs)
}

// ReassignInviter 管理员调整用户的邀请人
//
// 仅允许调整尚无邀请人或由系统默认归属的用户，通过邀请码直接邀请的归属不可改动。
// 新邀请人不能是该用户自身或其下线，否则会形成环。调整后重建该用户及其下线的推荐关系。
func (s *ReferralService) ReassignInviter(userID uint, inviteCode string) (*models.User, error) {
	setting, err := s.settingService.GetCommissionSetting()
	if err != nil {
		return nil, err
	}
	var updated *models.User
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx)
		user, err := userRepo.GetByIDForUpdate(userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if user.IsRoot {
			return ErrRootHasNoInviter
		}
		if user.InviterID == nil {
			return s.assignInviterTx(tx, userID, inviteCode, setting)
		}
		if user.InviterAssignment == constants.InviterAssignmentDirect {
			return ErrInviterAssigned
		}

		inviter, assignment, err := s.resolveInviter(userRepo, inviteCode)
		if err != nil {
			return err
		}
		if inviter.ID == user.ID {
			return ErrSelfInvite
		}
		fullChain, err := ascendReferralChain(userRepo, inviter.ID, 0)
		if err != nil {
			return err
		}
		for _, ancestor := range fullChain {
			if ancestor.UserID == user.ID {
				return fmt.Errorf("%w: %w: user %d is an ancestor of inviter %d", ErrIntegrity, ErrReferralCycle, user.ID, inviter.ID)
			}
		}

		affected, err := userRepo.ReplaceInviter(user.ID, *user.InviterID, inviter.ID, assignment)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrConflict
		}
		if _, err := s.referralRepo.WithTx(tx).DeactivateByReferred(user.ID); err != nil {
			return err
		}

		if err := s.createReferralRows(tx, user.ID, referralLevels(inviter, fullChain, setting.MaxDepth), setting); err != nil {
			return err
		}
		if err := s.rebuildDescendantReferrals(tx, user.ID, setting); err != nil {
			return err
		}
		updated, err = userRepo.GetByID(user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("user_inviter_reassigned", "user_id", userID, "inviter_id", derefUint(updated.InviterID))
	return updated, nil
}

// rebuildDescendantReferrals 按层遍历下线，重建仍会引用到被调整用户上方祖先的推荐关系
func (s *ReferralService) rebuildDescendantReferrals(tx *gorm.DB, userID uint, setting CommissionSetting) error {
	userRepo := s.userRepo.WithTx(tx)
	referralRepo := s.referralRepo.WithTx(tx)
	visited := map[uint]struct{}{userID: {}}
	frontier := []uint{userID}
	// 深度达到 max_depth 的下线只关联子树内部的祖先，无需重建
	for depth := 1; depth < setting.MaxDepth && len(frontier) > 0; depth++ {
		invitees, err := userRepo.ListInviteeIDs(frontier)
		if err != nil {
			return err
		}
		next := make([]uint, 0, len(invitees))
		for _, id := range invitees {
			if _, seen := visited[id]; seen {
				return fmt.Errorf("%w: %w: user %d revisited below user %d", ErrIntegrity, ErrReferralCycle, id, userID)
			}
			visited[id] = struct{}{}
			if _, err := referralRepo.DeactivateByReferred(id); err != nil {
				return err
			}
			chain, err := ascendReferralChain(userRepo, id, setting.MaxDepth)
			if err != nil {
				return err
			}
			if err := s.createReferralRows(tx, id, chain, setting); err != nil {
				return err
			}
			next = append(next, id)
		}
		frontier = next
	}
	return nil
}

// ListReferrals 查询推荐关系
func (s *ReferralService) ListReferrals(filter repository.ReferralListFilter) ([]models.Referral, int64, error) {
	return s.referralRepo.List(filter)
}

func (s *ReferralService) resolveInviter(userRepo repository.UserRepository, inviteCode string) (*models.User, string, error) {
	code := normalizeInviteCode(inviteCode)
	if code == "" {
		root, err := s.resolveRoot(userRepo)
		if err != nil {
			return nil, "", err
		}
		return root, constants.InviterAssignmentDefault, nil
	}
	inviter, err := userRepo.GetByInviteCode(code)
	if err != nil {
		return nil, "", err
	}
	if inviter == nil || inviter.Status == constants.UserStatusDisabled {
		return nil, "", ErrInviteCodeInvalid
	}
	return inviter, constants.InviterAssignmentDirect, nil
}

func (s *ReferralService) resolveRoot(userRepo repository.UserRepository) (*models.User, error) {
	if s.rootUserID != 0 {
		root, err := userRepo.GetByID(s.rootUserID)
		if err != nil {
			return nil, err
		}
		if root != nil {
			return root, nil
		}
	}
	root, err := userRepo.GetRoot()
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrRootAccountMissing
	}
	return root, nil
}

func (s *ReferralService) allocateInviteCode(userRepo repository.UserRepository) (string, error) {
	for attempt := 0; attempt < inviteCodeMaxAttempts; attempt++ {
		code, err := generateInviteCode()
		if err != nil {
			return "", err
		}
		existing, err := userRepo.GetByInviteCode(code)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: invite code space exhausted", ErrIntegrity)
}

func normalizeInviteCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func generateInviteCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	var builder strings.Builder
	builder.Grow(inviteCodeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < inviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(alphabet[n.Int64()])
	}
	return builder.String(), nil
}

func derefUint(value *uint) uint {
	if value == nil {
		return 0
	}
	return *value
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
