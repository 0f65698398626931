package admin

import (
	"errors"

	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
)

// GetCommissionSetting 获取分佣配置
func (h *Handler) GetCommissionSetting(c *gin.Context) {
	setting, err := h.SettingService.GetCommissionSetting()
	if err != nil {
		respondError(c, response.CodeInternal, "error.settings_fetch_failed", err)
		return
	}
	response.Success(c, setting)
}

// UpdateCommissionSetting 更新分佣配置，只影响之后的结算
func (h *Handler) UpdateCommissionSetting(c *gin.Context) {
	var req service.CommissionSetting
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	setting, err := h.SettingService.UpdateCommissionSetting(req)
	if err != nil {
		if errors.Is(err, service.ErrCommissionConfigInvalid) {
			respondError(c, response.CodeBadRequest, "error.commission_config_invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.settings_save_failed", err)
		return
	}
	requestLog(c).Infow("admin_commission_setting_updated",
		"operator", currentUsername(c),
		"max_depth", setting.MaxDepth,
		"level_rates", setting.LevelRates,
	)
	response.Success(c, setting)
}
