package public

import (
	"strings"

	handlershared "github.com/wldmarket/internal/http/handlers/shared"
	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/repository"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	InviteCode string `json:"invite_code"`
}

// Register 以外部身份注册本地账户，重复调用返回已有账户
func (h *Handler) Register(c *gin.Context) {
	externalID, displayName, ok := getExternalIdentity(c)
	if !ok {
		return
	}
	var req RegisterRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
	}

	user, err := h.ReferralService.Register(service.RegisterInput{
		ExternalID:  externalID,
		DisplayName: displayName,
		InviteCode:  strings.TrimSpace(req.InviteCode),
	})
	if err != nil {
		respondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, "error.register_failed")
		return
	}
	requestLog(c).Infow("user_registered_via_api", "user_id", user.ID, "inviter_id", user.InviterID)
	response.Success(c, user)
}

// GetProfile 获取当前用户资料与统计
func (h *Handler) GetProfile(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	profile, err := h.UserService.GetProfile(uid)
	if err != nil {
		respondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, "error.user_fetch_failed")
		return
	}
	response.Success(c, profile)
}

// ListInvitees 获取直接邀请的用户
func (h *Handler) ListInvitees(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := parsePagination(c)
	users, total, err := h.UserService.ListInvitees(uid, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "error.user_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, users, response.BuildPagination(page, pageSize, total))
}

// ListReferrals 获取自己作为推荐人的各级推荐关系
func (h *Handler) ListReferrals(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := parsePagination(c)
	level, _ := parsePositiveInt(c.Query("level"))
	referrals, total, err := h.ReferralService.ListReferrals(repository.ReferralListFilter{
		Page:       page,
		PageSize:   pageSize,
		ReferrerID: uid,
		Level:      level,
		Status:     strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.referral_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, referrals, response.BuildPagination(page, pageSize, total))
}

// GetAncestors 获取自己的推荐链，最近的邀请人在前
func (h *Handler) GetAncestors(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	setting, err := h.SettingService.GetCommissionSetting()
	if err != nil {
		respondError(c, response.CodeInternal, "error.settings_fetch_failed", err)
		return
	}
	ancestors, err := h.ReferralService.Ascend(uid, setting.MaxDepth)
	if err != nil {
		respondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, "error.referral_fetch_failed")
		return
	}
	response.Success(c, ancestors)
}

// ListEarnings 获取自己的收益流水
func (h *Handler) ListEarnings(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := parsePagination(c)
	earnings, total, err := h.CommissionService.ListEarnings(repository.EarningListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Type:     strings.TrimSpace(c.Query("type")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.earning_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, earnings, response.BuildPagination(page, pageSize, total))
}
