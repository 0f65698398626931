package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	casbinTableName = "casbin_rule"
	adminSubjectFmt = "admin:%d"
	actorSubjectFmt = "actor:%s"
	rolePrefix      = "role:"
	roleAnchor      = "role:__anchor__"
	adminObjectRoot = "/admin"
	orderEdgeObject = "/orders/edges/%s/%s"
	orderEdgeAction = "TRANSITION"
)

// 同一套模型承载后台接口权限（admin:* / role:*）与订单状态边权限（actor:*）
const defaultRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

var (
	ErrUnavailable     = errors.New("authz service unavailable")
	ErrReservedRole    = errors.New("reserved role is not allowed")
	ErrBuiltinRole     = errors.New("builtin role cannot be deleted")
	ErrActionRequired  = errors.New("action is required")
	ErrObjectNotAdmin  = errors.New("role policy object must be an admin route")
	ErrAdminIDRequired = errors.New("admin id is required")
)

// Policy 权限策略
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// Service Casbin 授权服务
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务，策略写入 casbin_rule 表并自动保存
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(defaultRBACModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	return nil
}

// Enforce 执行授权判断
func (s *Service) Enforce(sub, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.enforcer.Enforce(strings.TrimSpace(sub), NormalizeObject(obj), NormalizeAction(act))
}

// EnforceAdmin 按管理员 ID 判定后台接口授权
func (s *Service) EnforceAdmin(adminID uint, obj, act string) (bool, error) {
	return s.Enforce(SubjectForAdmin(adminID), obj, act)
}

// EnsureRole 确保后台角色存在，返回带 role: 前缀的名称
func (s *Service) EnsureRole(role string) (string, error) {
	normalized, err := adminRole(role)
	if err != nil {
		return "", err
	}
	if err := s.ready(); err != nil {
		return "", err
	}
	if _, err := s.enforcer.AddNamedGroupingPolicy("g", normalized, roleAnchor); err != nil {
		return "", fmt.Errorf("create role failed: %w", err)
	}
	return normalized, nil
}

// ListRoles 列出后台角色
func (s *Service) ListRoles() ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 0)
	if err != nil {
		return nil, fmt.Errorf("list roles failed: %w", err)
	}
	seen := make(map[string]struct{})
	for _, rule := range rules {
		for _, name := range rule {
			if isAdminRole(name) {
				seen[name] = struct{}{}
			}
		}
	}
	roles := make([]string, 0, len(seen))
	for role := range seen {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles, nil
}

// DeleteRole 删除自定义角色及其策略和分配关系，预置角色不可删除
func (s *Service) DeleteRole(role string) error {
	normalized, err := adminRole(role)
	if err != nil {
		return err
	}
	if isBuiltinRole(normalized) {
		return fmt.Errorf("%w: %s", ErrBuiltinRole, normalized)
	}
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.enforcer.RemoveFilteredPolicy(0, normalized); err != nil {
		return fmt.Errorf("remove role policy failed: %w", err)
	}
	// 角色自身的继承关系与分配给它的管理员都要清掉
	for _, field := range []int{0, 1} {
		if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", field, normalized); err != nil {
			return fmt.Errorf("remove role link failed: %w", err)
		}
	}
	return nil
}

// GrantRolePolicy 为角色授予后台接口权限
// 订单状态边权限走 GrantOrderEdge，这里只接受 /admin 下的路由
func (s *Service) GrantRolePolicy(role, object, action string) error {
	obj, act, err := adminRoute(object, action)
	if err != nil {
		return err
	}
	normalizedRole, err := s.EnsureRole(role)
	if err != nil {
		return err
	}
	if _, err := s.enforcer.AddPolicy(normalizedRole, obj, act); err != nil {
		return fmt.Errorf("grant policy failed: %w", err)
	}
	return nil
}

// RevokeRolePolicy 撤销角色的后台接口权限
func (s *Service) RevokeRolePolicy(role, object, action string) error {
	normalizedRole, err := adminRole(role)
	if err != nil {
		return err
	}
	obj, act, err := adminRoute(object, action)
	if err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.enforcer.RemovePolicy(normalizedRole, obj, act); err != nil {
		return fmt.Errorf("revoke policy failed: %w", err)
	}
	return nil
}

// GetRolePolicies 查询角色直接持有的策略
func (s *Service) GetRolePolicies(role string) ([]Policy, error) {
	normalized, err := adminRole(role)
	if err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetFilteredPolicy(0, normalized)
	if err != nil {
		return nil, fmt.Errorf("get role policies failed: %w", err)
	}
	return sortPolicies(convertPolicies(rules)), nil
}

// SetAdminRoles 覆盖设置管理员角色
func (s *Service) SetAdminRoles(adminID uint, roles []string) error {
	if adminID == 0 {
		return ErrAdminIDRequired
	}
	if err := s.ready(); err != nil {
		return err
	}
	subject := SubjectForAdmin(adminID)
	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, subject); err != nil {
		return fmt.Errorf("clear admin roles failed: %w", err)
	}
	for _, role := range roles {
		normalized, err := s.EnsureRole(role)
		if err != nil {
			return err
		}
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", subject, normalized); err != nil {
			return fmt.Errorf("assign admin role failed: %w", err)
		}
	}
	return nil
}

// GetAdminRoles 查询管理员直接分配的角色
func (s *Service) GetAdminRoles(adminID uint) ([]string, error) {
	if adminID == 0 {
		return nil, ErrAdminIDRequired
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	roles, err := s.enforcer.GetRolesForUser(SubjectForAdmin(adminID))
	if err != nil {
		return nil, fmt.Errorf("get admin roles failed: %w", err)
	}
	filtered := make([]string, 0, len(roles))
	for _, role := range roles {
		if isAdminRole(role) {
			filtered = append(filtered, role)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

// GetAdminPolicies 查询管理员生效策略，包含继承角色上的策略
func (s *Service) GetAdminPolicies(adminID uint) ([]Policy, error) {
	if adminID == 0 {
		return nil, ErrAdminIDRequired
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	// 沿角色继承链逐层展开，直连策略与各级角色策略合并去重
	subjects := []string{SubjectForAdmin(adminID)}
	visited := map[string]bool{subjects[0]: true}
	seen := make(map[Policy]struct{})
	result := make([]Policy, 0)
	for len(subjects) > 0 {
		subject := subjects[0]
		subjects = subjects[1:]

		rules, err := s.enforcer.GetFilteredPolicy(0, subject)
		if err != nil {
			return nil, fmt.Errorf("get admin policies failed: %w", err)
		}
		for _, item := range convertPolicies(rules) {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			result = append(result, item)
		}

		parents, err := s.enforcer.GetRolesForUser(subject)
		if err != nil {
			return nil, fmt.Errorf("get admin roles failed: %w", err)
		}
		for _, parent := range parents {
			if !isAdminRole(parent) || visited[parent] {
				continue
			}
			visited[parent] = true
			subjects = append(subjects, parent)
		}
	}
	return sortPolicies(result), nil
}

func adminRole(role string) (string, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return "", err
	}
	if normalized == roleAnchor {
		return "", ErrReservedRole
	}
	return normalized, nil
}

func adminRoute(object, action string) (string, string, error) {
	act := NormalizeAction(action)
	if act == "" {
		return "", "", ErrActionRequired
	}
	obj := NormalizeObject(object)
	if obj != adminObjectRoot && !strings.HasPrefix(obj, adminObjectRoot+"/") {
		return "", "", fmt.Errorf("%w: %s", ErrObjectNotAdmin, obj)
	}
	return obj, act, nil
}

func isAdminRole(name string) bool {
	return strings.HasPrefix(name, rolePrefix) && name != roleAnchor
}

func isBuiltinRole(role string) bool {
	for _, seed := range BuiltinRoleSeeds() {
		if !seed.Immutable {
			continue
		}
		if normalized, err := NormalizeRole(seed.Role); err == nil && normalized == role {
			return true
		}
	}
	return false
}

func convertPolicies(rules [][]string) []Policy {
	policies := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		policies = append(policies, Policy{
			Subject: strings.TrimSpace(rule[0]),
			Object:  NormalizeObject(rule[1]),
			Action:  NormalizeAction(rule[2]),
		})
	}
	return policies
}

func sortPolicies(policies []Policy) []Policy {
	sort.Slice(policies, func(i, j int) bool {
		a, b := policies[i], policies[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Object != b.Object {
			return a.Object < b.Object
		}
		return a.Action < b.Action
	})
	return policies
}
