package admin

import (
	"strings"

	"github.com/wldmarket/internal/constants"
	handlershared "github.com/wldmarket/internal/http/handlers/shared"
	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/repository"

	"github.com/gin-gonic/gin"
)

// BatchUpdateUserStatusRequest 批量更新用户状态请求
type BatchUpdateUserStatusRequest struct {
	UserIDs []uint `json:"user_ids" binding:"required"`
	Status  string `json:"status" binding:"required"`
}

// ReassignInviterRequest 调整邀请人请求
type ReassignInviterRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

// GetAdminUsers 用户列表
func (h *Handler) GetAdminUsers(c *gin.Context) {
	page, pageSize := parsePagination(c)
	users, total, err := h.UserService.ListUsers(repository.UserListFilter{
		Page:      page,
		PageSize:  pageSize,
		Keyword:   strings.TrimSpace(c.Query("keyword")),
		Status:    strings.TrimSpace(c.Query("status")),
		InviterID: parseUintQuery(c, "inviter_id"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.user_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, users, response.BuildPagination(page, pageSize, total))
}

// GetAdminUser 用户详情与统计
func (h *Handler) GetAdminUser(c *gin.Context) {
	id, ok := parseIDParam(c, "error.user_id_invalid")
	if !ok {
		return
	}
	profile, err := h.UserService.GetProfile(id)
	if err != nil {
		respondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, "error.user_fetch_failed")
		return
	}
	response.Success(c, profile)
}

// GetAdminUserAncestors 用户推荐链
func (h *Handler) GetAdminUserAncestors(c *gin.Context) {
	id, ok := parseIDParam(c, "error.user_id_invalid")
	if !ok {
		return
	}
	setting, err := h.SettingService.GetCommissionSetting()
	if err != nil {
		respondError(c, response.CodeInternal, "error.settings_fetch_failed", err)
		return
	}
	ancestors, err := h.ReferralService.Ascend(id, setting.MaxDepth)
	if err != nil {
		respondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, "error.referral_fetch_failed")
		return
	}
	response.Success(c, ancestors)
}

// BatchUpdateUserStatus 批量更新用户状态
func (h *Handler) BatchUpdateUserStatus(c *gin.Context) {
	var req BatchUpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if len(req.UserIDs) == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	normalizedStatus := strings.ToLower(strings.TrimSpace(req.Status))
	if normalizedStatus != constants.UserStatusActive && normalizedStatus != constants.UserStatusDisabled {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	if err := h.UserService.SetStatus(req.UserIDs, normalizedStatus); err != nil {
		respondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, "error.user_update_failed")
		return
	}
	requestLog(c).Infow("admin_user_status_updated",
		"operator", currentUsername(c),
		"user_ids", req.UserIDs,
		"status", normalizedStatus,
	)
	response.Success(c, gin.H{"updated": len(req.UserIDs)})
}

// ReassignUserInviter 管理员调整用户的邀请人
func (h *Handler) ReassignUserInviter(c *gin.Context) {
	id, ok := parseIDParam(c, "error.user_id_invalid")
	if !ok {
		return
	}
	var req ReassignInviterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, err := h.ReferralService.ReassignInviter(id, req.InviteCode)
	if err != nil {
		respondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, "error.user_update_failed")
		return
	}
	requestLog(c).Infow("admin_user_inviter_reassigned",
		"operator", currentUsername(c),
		"user_id", user.ID,
		"inviter_id", user.InviterID,
	)
	response.Success(c, user)
}

// ListReferrals 推荐关系列表
func (h *Handler) ListReferrals(c *gin.Context) {
	page, pageSize := parsePagination(c)
	level := int(parseUintQuery(c, "level"))
	referrals, total, err := h.ReferralService.ListReferrals(repository.ReferralListFilter{
		Page:       page,
		PageSize:   pageSize,
		ReferrerID: parseUintQuery(c, "referrer_id"),
		ReferredID: parseUintQuery(c, "referred_id"),
		Level:      level,
		Status:     strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.referral_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, referrals, response.BuildPagination(page, pageSize, total))
}

// ListEarnings 收益流水列表
func (h *Handler) ListEarnings(c *gin.Context) {
	page, pageSize := parsePagination(c)
	earnings, total, err := h.CommissionService.ListEarnings(repository.EarningListFilter{
		Page:          page,
		PageSize:      pageSize,
		UserID:        parseUintQuery(c, "user_id"),
		Type:          strings.TrimSpace(c.Query("type")),
		SourceOrderID: parseUintQuery(c, "order_id"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.earning_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, earnings, response.BuildPagination(page, pageSize, total))
}
