package admin

import (
	"time"

	handlershared "github.com/wldmarket/internal/http/handlers/shared"
	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
)

var adminAuthErrorRules = []handlershared.MappedError{
	{Target: service.ErrInvalidCredentials, Code: response.CodeUnauthorized, Key: "error.login_failed"},
	{Target: service.ErrInvalidPassword, Code: response.CodeBadRequest, Key: "error.password_old_invalid"},
	{Target: service.ErrWeakPassword, Code: response.CodeBadRequest, Key: "error.password_weak"},
	{Target: service.ErrAdminExists, Code: response.CodeConflict, Key: "error.admin_exists"},
	{Target: service.ErrAdminNotFound, Code: response.CodeNotFound, Key: "error.admin_not_found"},
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string                 `json:"token"`
	User      map[string]interface{} `json:"user"`
	ExpiresAt string                 `json:"expires_at"`
}

// AdminLogin 管理员登录
func (h *Handler) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	admin, token, expiresAt, err := h.AuthService.Login(req.Username, req.Password)
	if err != nil {
		respondWithMappedError(c, err, adminAuthErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, LoginResponse{
		Token: token,
		User: map[string]interface{}{
			"id":       admin.ID,
			"username": admin.Username,
			"is_super": admin.IsSuper,
		},
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// GetAdminMe 当前管理员信息
func (h *Handler) GetAdminMe(c *gin.Context) {
	id, ok := getAdminID(c)
	if !ok {
		return
	}
	admin, err := h.AuthService.GetAdmin(id)
	if err != nil {
		respondWithMappedError(c, err, adminAuthErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, admin)
}

// UpdatePasswordRequest 修改密码请求
type UpdatePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// UpdateAdminPassword 修改管理员密码，旧令牌随之失效
func (h *Handler) UpdateAdminPassword(c *gin.Context) {
	id, ok := getAdminID(c)
	if !ok {
		return
	}

	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	if err := h.AuthService.ChangePassword(id, req.OldPassword, req.NewPassword); err != nil {
		respondWithMappedError(c, err, adminAuthErrorRules, response.CodeInternal, "error.admin_save_failed")
		return
	}
	requestLog(c).Infow("admin_password_changed", "admin_id", id)
	response.Success(c, nil)
}

// CreateAdminRequest 创建管理员请求
type CreateAdminRequest struct {
	Username string   `json:"username" binding:"required"`
	Password string   `json:"password" binding:"required"`
	IsSuper  bool     `json:"is_super"`
	Roles    []string `json:"roles"`
}

// ListAdmins 管理员列表及其角色
func (h *Handler) ListAdmins(c *gin.Context) {
	admins, err := h.AuthService.ListAdmins()
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}

	items := make([]gin.H, 0, len(admins))
	for _, admin := range admins {
		roles, roleErr := h.AuthzService.GetAdminRoles(admin.ID)
		if roleErr != nil {
			respondError(c, response.CodeInternal, "error.authz_failed", roleErr)
			return
		}
		items = append(items, gin.H{
			"id":            admin.ID,
			"username":      admin.Username,
			"is_super":      admin.IsSuper,
			"last_login_at": admin.LastLoginAt,
			"created_at":    admin.CreatedAt,
			"roles":         roles,
		})
	}
	response.Success(c, items)
}

// CreateAdmin 创建管理员，可同时分配角色
func (h *Handler) CreateAdmin(c *gin.Context) {
	var req CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	// 仅超级管理员可以创建超级管理员
	if req.IsSuper && !currentIsSuper(c) {
		respondError(c, response.CodeForbidden, "error.forbidden", nil)
		return
	}

	admin, err := h.AuthService.CreateAdmin(req.Username, req.Password, req.IsSuper)
	if err != nil {
		respondWithMappedError(c, err, adminAuthErrorRules, response.CodeInternal, "error.admin_save_failed")
		return
	}
	if len(req.Roles) > 0 {
		if err := h.AuthzService.SetAdminRoles(admin.ID, req.Roles); err != nil {
			respondError(c, response.CodeBadRequest, "error.authz_role_invalid", err)
			return
		}
	}
	response.Success(c, admin)
}
