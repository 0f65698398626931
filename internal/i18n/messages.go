package i18n

var catalogs = map[string]map[string]string{
	LocaleZhCN: zhCN,
	LocaleEnUS: enUS,
}

var zhCN = map[string]string{
	"error.bad_request":               "请求参数错误",
	"error.unauthorized":              "未登录或登录已过期",
	"error.forbidden":                 "无权限访问",
	"error.internal":                  "服务器内部错误",
	"error.jwt_secret_missing":        "服务端未配置令牌密钥",
	"error.token_invalid":             "令牌无效",
	"error.token_revoked":             "令牌已失效，请重新登录",
	"error.auth_header_missing":       "缺少认证信息",
	"error.auth_header_invalid":       "认证信息格式错误",
	"error.user_disabled":             "账号已被禁用",
	"error.user_not_registered":       "用户尚未注册",
	"error.user_id_invalid":           "用户ID无效",
	"error.user_id_type_invalid":      "用户ID类型错误",
	"error.admin_id_invalid":          "管理员ID无效",
	"error.admin_id_type_invalid":     "管理员ID类型错误",
	"error.login_failed":              "用户名或密码错误",
	"error.login_too_many":            "登录尝试过多，请 %d 秒后再试",
	"error.rate_limit_unavailable":    "限流服务不可用",
	"error.rate_limited":              "请求过于频繁，请 %d 秒后再试",
	"error.not_found":                 "资源不存在",
	"error.user_not_found":            "用户不存在",
	"error.user_fetch_failed":         "获取用户失败",
	"error.user_update_failed":        "更新用户失败",
	"error.register_failed":           "注册失败",
	"error.invite_code_invalid":       "邀请码无效",
	"error.inviter_assigned":          "已绑定邀请人",
	"error.self_invite":               "不能填写自己的邀请码",
	"error.root_has_no_inviter":       "根账户不能绑定邀请人",
	"error.referral_cycle":            "推荐关系成环",
	"error.referral_fetch_failed":     "获取推荐关系失败",
	"error.product_not_found":         "商品不存在",
	"error.product_not_available":     "商品不可购买",
	"error.product_not_editable":      "商品已售出，无法编辑",
	"error.product_invalid":           "商品信息不完整",
	"error.product_fetch_failed":      "获取商品失败",
	"error.product_save_failed":       "保存商品失败",
	"error.price_invalid":             "价格无效",
	"error.cannot_buy_own_product":    "不能购买自己的商品",
	"error.order_not_found":           "订单不存在",
	"error.order_fetch_failed":        "获取订单失败",
	"error.order_create_failed":       "创建订单失败",
	"error.order_transition_invalid":  "当前订单状态不允许该操作",
	"error.order_actor_forbidden":     "无权执行该订单操作",
	"error.order_precondition_failed": "订单操作条件不满足",
	"error.order_conflict":            "订单已被修改，请刷新后重试",
	"error.order_settlement_failed":   "订单结算失败",
	"error.order_review_failed":       "订单评价失败",
	"error.rate_unavailable":          "暂无可用汇率",
	"error.rate_invalid":              "汇率无效",
	"error.rate_lock_missing":         "汇率锁定不存在",
	"error.rate_fetch_failed":         "获取汇率失败",
	"error.earning_fetch_failed":      "获取收益失败",
	"error.commission_config_invalid": "分佣配置无效",
	"error.settings_fetch_failed":     "获取设置失败",
	"error.settings_save_failed":      "保存设置失败",
	"error.queue_unavailable":         "任务队列不可用",
	"error.authz_role_invalid":        "角色无效",
	"error.authz_policy_invalid":      "权限策略无效",
	"error.authz_failed":              "权限操作失败",
	"error.password_old_invalid":      "原密码错误",
	"error.password_weak":             "密码至少需要 8 位",
	"error.admin_exists":              "管理员用户名已存在",
	"error.admin_not_found":           "管理员不存在",
	"error.admin_save_failed":         "保存管理员失败",
}

var enUS = map[string]string{
	"error.bad_request":               "Invalid request",
	"error.unauthorized":              "Unauthorized",
	"error.forbidden":                 "Forbidden",
	"error.internal":                  "Internal server error",
	"error.jwt_secret_missing":        "Token secret is not configured",
	"error.token_invalid":             "Invalid token",
	"error.token_revoked":             "Token revoked, please sign in again",
	"error.auth_header_missing":       "Authorization header missing",
	"error.auth_header_invalid":       "Authorization header invalid",
	"error.user_disabled":             "Account disabled",
	"error.user_not_registered":       "User not registered",
	"error.user_id_invalid":           "Invalid user id",
	"error.user_id_type_invalid":      "Invalid user id type",
	"error.admin_id_invalid":          "Invalid admin id",
	"error.admin_id_type_invalid":     "Invalid admin id type",
	"error.login_failed":              "Invalid username or password",
	"error.login_too_many":            "Too many login attempts, retry in %d seconds",
	"error.rate_limit_unavailable":    "Rate limiter unavailable",
	"error.rate_limited":              "Too many requests, retry in %d seconds",
	"error.not_found":                 "Not found",
	"error.user_not_found":            "User not found",
	"error.user_fetch_failed":         "Failed to load user",
	"error.user_update_failed":        "Failed to update user",
	"error.register_failed":           "Registration failed",
	"error.invite_code_invalid":       "Invalid invite code",
	"error.inviter_assigned":          "Inviter already assigned",
	"error.self_invite":               "Cannot use your own invite code",
	"error.root_has_no_inviter":       "Root account cannot have an inviter",
	"error.referral_cycle":            "Referral chain would form a cycle",
	"error.referral_fetch_failed":     "Failed to load referrals",
	"error.product_not_found":         "Product not found",
	"error.product_not_available":     "Product not available",
	"error.product_not_editable":      "Sold product cannot be edited",
	"error.product_invalid":           "Product input invalid",
	"error.product_fetch_failed":      "Failed to load product",
	"error.product_save_failed":       "Failed to save product",
	"error.price_invalid":             "Invalid price",
	"error.cannot_buy_own_product":    "Cannot buy your own product",
	"error.order_not_found":           "Order not found",
	"error.order_fetch_failed":        "Failed to load order",
	"error.order_create_failed":       "Failed to create order",
	"error.order_transition_invalid":  "Order status does not allow this action",
	"error.order_actor_forbidden":     "Not allowed to perform this order action",
	"error.order_precondition_failed": "Order action precondition not met",
	"error.order_conflict":            "Order was modified, refresh and retry",
	"error.order_settlement_failed":   "Order settlement failed",
	"error.order_review_failed":       "Failed to review order",
	"error.rate_unavailable":          "Exchange rate unavailable",
	"error.rate_invalid":              "Invalid exchange rate",
	"error.rate_lock_missing":         "Exchange rate lock not found",
	"error.rate_fetch_failed":         "Failed to load exchange rates",
	"error.earning_fetch_failed":      "Failed to load earnings",
	"error.commission_config_invalid": "Invalid commission config",
	"error.settings_fetch_failed":     "Failed to load settings",
	"error.settings_save_failed":      "Failed to save settings",
	"error.queue_unavailable":         "Task queue unavailable",
	"error.authz_role_invalid":        "Invalid role",
	"error.authz_policy_invalid":      "Invalid policy",
	"error.authz_failed":              "Authorization update failed",
	"error.password_old_invalid":      "Old password is incorrect",
	"error.password_weak":             "Password must be at least 8 characters",
	"error.admin_exists":              "Admin username already exists",
	"error.admin_not_found":           "Admin not found",
	"error.admin_save_failed":         "Failed to save admin",
}
