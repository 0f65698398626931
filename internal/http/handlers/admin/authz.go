package admin

import (
	"errors"
	"strings"

	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
)

type authzRolePayload struct {
	Role string `json:"role" binding:"required"`
}

type authzPolicyPayload struct {
	Role   string `json:"role" binding:"required"`
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

type authzSetAdminRolesPayload struct {
	Roles []string `json:"roles"`
}

type orderEdgePayload struct {
	Role string `json:"role" binding:"required"`
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// GetAuthzMe 获取当前管理员权限快照
func (h *Handler) GetAuthzMe(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}

	roles, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_failed", err)
		return
	}
	policies, err := h.AuthzService.GetAdminPolicies(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_failed", err)
		return
	}

	response.Success(c, gin.H{
		"admin_id": adminID,
		"is_super": currentIsSuper(c),
		"roles":    roles,
		"policies": policies,
	})
}

// ListAuthzRoles 获取角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_failed", err)
		return
	}
	response.Success(c, roles)
}

// CreateAuthzRole 创建角色
func (h *Handler) CreateAuthzRole(c *gin.Context) {
	var req authzRolePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	role, err := h.AuthzService.EnsureRole(req.Role)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.authz_role_invalid", err)
		return
	}
	requestLog(c).Infow("admin_authz_role_created", "operator", currentUsername(c), "role", role)
	response.Success(c, gin.H{"role": role})
}

// DeleteAuthzRole 删除角色
func (h *Handler) DeleteAuthzRole(c *gin.Context) {
	role := decodeRoleParam(c.Param("role"))
	if err := h.AuthzService.DeleteRole(role); err != nil {
		respondError(c, response.CodeBadRequest, "error.authz_role_invalid", err)
		return
	}
	requestLog(c).Infow("admin_authz_role_deleted", "operator", currentUsername(c), "role", role)
	response.Success(c, nil)
}

// GetAuthzRolePolicies 获取角色策略
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	role := decodeRoleParam(c.Param("role"))
	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.authz_role_invalid", err)
		return
	}
	response.Success(c, policies)
}

// GrantAuthzPolicy 为角色授予接口权限
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AuthzService.GrantRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "error.authz_policy_invalid", err)
		return
	}
	requestLog(c).Infow("admin_authz_policy_granted",
		"operator", currentUsername(c),
		"role", req.Role,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// RevokeAuthzPolicy 撤销角色接口权限
func (h *Handler) RevokeAuthzPolicy(c *gin.Context) {
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AuthzService.RevokeRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "error.authz_policy_invalid", err)
		return
	}
	requestLog(c).Infow("admin_authz_policy_revoked",
		"operator", currentUsername(c),
		"role", req.Role,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// GetAuthzAdminRoles 获取管理员角色
func (h *Handler) GetAuthzAdminRoles(c *gin.Context) {
	adminID, ok := parseIDParam(c, "error.admin_id_invalid")
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_failed", err)
		return
	}
	response.Success(c, roles)
}

// SetAuthzAdminRoles 覆盖设置管理员角色
func (h *Handler) SetAuthzAdminRoles(c *gin.Context) {
	adminID, ok := parseIDParam(c, "error.admin_id_invalid")
	if !ok {
		return
	}
	var req authzSetAdminRolesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if _, err := h.AuthService.GetAdmin(adminID); err != nil {
		respondWithMappedError(c, err, adminAuthErrorRules, response.CodeInternal, "error.internal")
		return
	}
	if err := h.AuthzService.SetAdminRoles(adminID, req.Roles); err != nil {
		respondError(c, response.CodeBadRequest, "error.authz_role_invalid", err)
		return
	}
	requestLog(c).Infow("admin_authz_admin_roles_updated",
		"operator", currentUsername(c),
		"target_admin_id", adminID,
		"roles", req.Roles,
	)
	response.Success(c, nil)
}

// ListOrderEdges 订单状态边授权列表
func (h *Handler) ListOrderEdges(c *gin.Context) {
	edges, err := h.AuthzService.ListOrderEdges()
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_failed", err)
		return
	}
	response.Success(c, edges)
}

// GrantOrderEdge 允许某个订单角色推进一条状态边
func (h *Handler) GrantOrderEdge(c *gin.Context) {
	var req orderEdgePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	from := strings.TrimSpace(req.From)
	to := strings.TrimSpace(req.To)
	if err := h.AuthzService.GrantOrderEdge(req.Role, from, to); err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			respondError(c, response.CodeUnprocessable, "error.order_transition_invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.authz_failed", err)
		return
	}
	requestLog(c).Infow("admin_order_edge_granted", "operator", currentUsername(c), "role", req.Role, "from", from, "to", to)
	response.Success(c, nil)
}

// RevokeOrderEdge 撤销某个订单角色推进状态边的权限
func (h *Handler) RevokeOrderEdge(c *gin.Context) {
	var req orderEdgePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	from := strings.TrimSpace(req.From)
	to := strings.TrimSpace(req.To)
	if err := h.AuthzService.RevokeOrderEdge(req.Role, from, to); err != nil {
		respondError(c, response.CodeInternal, "error.authz_failed", err)
		return
	}
	requestLog(c).Infow("admin_order_edge_revoked", "operator", currentUsername(c), "role", req.Role, "from", from, "to", to)
	response.Success(c, nil)
}
