package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wldmarket/internal/authz"
	"github.com/wldmarket/internal/cache"
	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/constants"
	adminhandlers "github.com/wldmarket/internal/http/handlers/admin"
	publichandlers "github.com/wldmarket/internal/http/handlers/public"
	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/provider"

	"github.com/gin-gonic/gin"
)

// userTransitionRoutes 用户侧订单动作与目标状态
var userTransitionRoutes = []struct {
	Action string
	Target string
}{
	{Action: "confirm", Target: constants.OrderStatusConfirmed},
	{Action: "pay", Target: constants.OrderStatusPaid},
	{Action: "verify-payment", Target: constants.OrderStatusPaymentVerified},
	{Action: "ship", Target: constants.OrderStatusShipped},
	{Action: "deliver", Target: constants.OrderStatusDelivered},
	{Action: "complete", Target: constants.OrderStatusCompleted},
	{Action: "cancel", Target: constants.OrderStatusCancelled},
	{Action: "refund", Target: constants.OrderStatusRefunded},
}

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "wm"
	}
	redisClient := cache.Client()
	adminLoginRule := RateLimitRuleFromConfig(fmt.Sprintf("%s:rate:admin_login", redisPrefix), cfg.Security.LoginRateLimit)
	adminLoginRule.MessageKey = "error.login_too_many"
	transitionRule := RateLimitRuleFromConfig(fmt.Sprintf("%s:rate:transition", redisPrefix), cfg.Security.TransitionRateLimit)
	transitionLimiter := RateLimitMiddleware(redisClient, transitionRule, KeyByUserAndParam("id"))

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/products", publicHandler.ListProducts)
			public.GET("/products/:id", publicHandler.GetProduct)
			public.GET("/products/:id/quote", publicHandler.QuoteProduct)
			public.GET("/rates", publicHandler.GetRates)
			public.GET("/rates/:currency", publicHandler.GetRate)
		}

		// 外部身份接口（无需已注册）
		identity := apiV1.Group("")
		identity.Use(IdentityMiddleware(c.IdentityService))
		{
			identity.POST("/user/register", publicHandler.Register)
		}

		// 用户接口（需已注册）
		user := apiV1.Group("")
		user.Use(IdentityMiddleware(c.IdentityService), UserAuthMiddleware(c.UserRepo))
		{
			user.GET("/me", publicHandler.GetProfile)
			user.GET("/me/invitees", publicHandler.ListInvitees)
			user.GET("/me/referrals", publicHandler.ListReferrals)
			user.GET("/me/ancestors", publicHandler.GetAncestors)
			user.GET("/me/earnings", publicHandler.ListEarnings)

			user.GET("/me/products", publicHandler.ListMyProducts)
			user.POST("/products", publicHandler.CreateProduct)
			user.PUT("/products/:id", publicHandler.UpdateProduct)
			user.PUT("/products/:id/active", publicHandler.SetProductActive)
			user.POST("/products/:id/rate-lock", publicHandler.LockProductRate)
			user.DELETE("/products/:id/rate-lock", publicHandler.UnlockProductRate)
			user.POST("/rates/session-lock", publicHandler.LockSessionRate)

			user.POST("/orders", publicHandler.CreateOrder)
			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:id", publicHandler.GetOrder)
			user.GET("/orders/by-order-no/:order_no", publicHandler.GetOrderByNo)
			user.GET("/orders/:id/logs", publicHandler.ListOrderLogs)
			user.GET("/orders/:id/earnings", publicHandler.ListOrderEarnings)
			user.POST("/orders/:id/review", publicHandler.ReviewOrder)
			for _, route := range userTransitionRoutes {
				user.POST("/orders/:id/"+route.Action, transitionLimiter, publicHandler.TransitionOrder(route.Target))
			}
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(AdminJWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo), AdminRBACMiddleware(c.AuthzService))
			{
				authorized.GET("/me", adminHandler.GetAdminMe)
				authorized.PUT("/password", adminHandler.UpdateAdminPassword)

				// 管理员与权限
				authorized.GET("/admins", adminHandler.ListAdmins)
				authorized.POST("/admins", adminHandler.CreateAdmin)
				authorized.GET("/authz/me", adminHandler.GetAuthzMe)
				authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
				authorized.POST("/authz/roles", adminHandler.CreateAuthzRole)
				authorized.DELETE("/authz/roles/:role", adminHandler.DeleteAuthzRole)
				authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
				authorized.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
				authorized.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
				authorized.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
				authorized.GET("/authz/order-edges", adminHandler.ListOrderEdges)
				authorized.POST("/authz/order-edges", adminHandler.GrantOrderEdge)
				authorized.DELETE("/authz/order-edges", adminHandler.RevokeOrderEdge)

				// 用户与推荐关系
				authorized.GET("/users", adminHandler.GetAdminUsers)
				authorized.PUT("/users/status", adminHandler.BatchUpdateUserStatus)
				authorized.GET("/users/:id", adminHandler.GetAdminUser)
				authorized.GET("/users/:id/ancestors", adminHandler.GetAdminUserAncestors)
				authorized.PUT("/users/:id/inviter", adminHandler.ReassignUserInviter)
				authorized.GET("/referrals", adminHandler.ListReferrals)
				authorized.GET("/earnings", adminHandler.ListEarnings)

				// 商品
				authorized.GET("/products", adminHandler.GetAdminProducts)
				authorized.GET("/products/:id", adminHandler.GetAdminProduct)
				authorized.PUT("/products/:id/fee", adminHandler.UpdateProductFee)

				// 订单
				authorized.GET("/orders", adminHandler.GetAdminOrders)
				authorized.GET("/orders/:id", adminHandler.GetAdminOrder)
				authorized.GET("/orders/:id/logs", adminHandler.GetAdminOrderLogs)
				authorized.GET("/orders/:id/commission-preview", adminHandler.PreviewAdminOrderCommission)
				authorized.POST("/orders/:id/cancel", adminHandler.TransitionOrder(constants.OrderStatusCancelled))
				authorized.POST("/orders/:id/refund", adminHandler.TransitionOrder(constants.OrderStatusRefunded))
				authorized.POST("/orders/:id/settle", adminHandler.SettleAdminOrder)

				// 汇率
				authorized.GET("/rates", adminHandler.GetAdminRates)
				authorized.GET("/rates/:currency/history", adminHandler.GetAdminRateHistory)
				authorized.POST("/rates/refresh", adminHandler.RefreshAdminRates)
				authorized.GET("/rate-locks", adminHandler.ListRateLocks)
				authorized.POST("/rate-locks", adminHandler.CreateRateLock)
				authorized.DELETE("/rate-locks", adminHandler.DeleteRateLock)

				// 设置
				authorized.GET("/settings/commission", adminHandler.GetCommissionSetting)
				authorized.PUT("/settings/commission", adminHandler.UpdateCommissionSetting)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		if item.Path == "/api/v1/admin/login" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
