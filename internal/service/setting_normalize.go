package service

import (
	"strings"

	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"
)

// normalizeSettingValueByKey 按设置键执行归一化，避免非法值入库。
func normalizeSettingValueByKey(key string, value map[string]interface{}, commissionFallback CommissionSetting) models.JSON {
	switch key {
	case constants.SettingKeyCommissionConfig:
		setting := commissionSettingFromJSON(models.JSON(value), commissionFallback)
		return models.JSON(CommissionSettingToMap(setting))
	default:
		return models.JSON(value)
	}
}

func parseSettingBool(raw interface{}) bool {
	switch value := raw.(type) {
	case bool:
		return value
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	case string:
		normalized := strings.ToLower(strings.TrimSpace(value))
		return normalized == "1" || normalized == "true" || normalized == "yes" || normalized == "on"
	default:
		return false
	}
}
