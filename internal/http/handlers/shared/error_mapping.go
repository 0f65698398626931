package shared

import (
	"errors"

	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
)

// MappedError 定义业务错误到接口错误响应的映射关系。
type MappedError struct {
	Target error
	Code   int
	Key    string
}

// RespondWithMappedError 按规则顺序匹配业务错误，未命中时使用兜底响应并记录原始错误。
func RespondWithMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			RespondError(c, rule.Code, rule.Key, nil)
			return
		}
	}
	RespondError(c, fallbackCode, fallbackKey, err)
}

// ConcatMappedErrors 合并多组映射规则。
func ConcatMappedErrors(groups ...[]MappedError) []MappedError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]MappedError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

// TransitionErrorRules 订单状态推进错误映射
var TransitionErrorRules = []MappedError{
	{Target: service.ErrActorInvalid, Code: response.CodeUnauthorized, Key: "error.unauthorized"},
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Key: "error.order_not_found"},
	{Target: service.ErrInvalidTransition, Code: response.CodeUnprocessable, Key: "error.order_transition_invalid"},
	{Target: service.ErrUnauthorizedActor, Code: response.CodeForbidden, Key: "error.order_actor_forbidden"},
	{Target: service.ErrPrecondition, Code: response.CodeUnprocessable, Key: "error.order_precondition_failed"},
	{Target: service.ErrConflict, Code: response.CodeConflict, Key: "error.order_conflict"},
	{Target: service.ErrSettlement, Code: response.CodeInternal, Key: "error.order_settlement_failed"},
}

// ReferralErrorRules 推荐关系错误映射
var ReferralErrorRules = []MappedError{
	{Target: service.ErrInviteCodeInvalid, Code: response.CodeBadRequest, Key: "error.invite_code_invalid"},
	{Target: service.ErrInviterAssigned, Code: response.CodeConflict, Key: "error.inviter_assigned"},
	{Target: service.ErrSelfInvite, Code: response.CodeBadRequest, Key: "error.self_invite"},
	{Target: service.ErrRootHasNoInviter, Code: response.CodeBadRequest, Key: "error.root_has_no_inviter"},
	{Target: service.ErrReferralCycle, Code: response.CodeBadRequest, Key: "error.referral_cycle"},
	{Target: service.ErrUserNotFound, Code: response.CodeNotFound, Key: "error.user_not_found"},
	{Target: service.ErrUserDisabled, Code: response.CodeForbidden, Key: "error.user_disabled"},
}

// ProductErrorRules 商品与下单错误映射
var ProductErrorRules = []MappedError{
	{Target: service.ErrProductNotFound, Code: response.CodeNotFound, Key: "error.product_not_found"},
	{Target: service.ErrProductNotAvailable, Code: response.CodeBadRequest, Key: "error.product_not_available"},
	{Target: service.ErrProductNotEditable, Code: response.CodeBadRequest, Key: "error.product_not_editable"},
	{Target: service.ErrProductInvalid, Code: response.CodeBadRequest, Key: "error.product_invalid"},
	{Target: service.ErrCannotBuyOwnProduct, Code: response.CodeBadRequest, Key: "error.cannot_buy_own_product"},
	{Target: service.ErrInvalidPrice, Code: response.CodeBadRequest, Key: "error.price_invalid"},
	{Target: service.ErrForbidden, Code: response.CodeForbidden, Key: "error.forbidden"},
	{Target: service.ErrUserNotFound, Code: response.CodeNotFound, Key: "error.user_not_found"},
	{Target: service.ErrUserDisabled, Code: response.CodeForbidden, Key: "error.user_disabled"},
}

// RateErrorRules 汇率错误映射
var RateErrorRules = []MappedError{
	{Target: service.ErrRateUnavailable, Code: response.CodeUnavailable, Key: "error.rate_unavailable"},
	{Target: service.ErrRateInvalid, Code: response.CodeBadRequest, Key: "error.rate_invalid"},
	{Target: service.ErrRateLockMissing, Code: response.CodeNotFound, Key: "error.rate_lock_missing"},
}
