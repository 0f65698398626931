package service

import (
	"fmt"
	"math"

	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"

	"github.com/shopspring/decimal"
)

const (
	commissionMaxDepthMin  = 1
	commissionMaxDepthMax  = 20
	commissionRateMin      = 0
	commissionRateMax      = 100
	commissionRateSumLimit = 100
)

// CommissionSetting 多级分佣配置
type CommissionSetting struct {
	MaxDepth                 int       `json:"max_depth"`
	LevelRates               []float64 `json:"level_rates"` // 百分比，下标 0 对应一级
	SkipRootCommission       bool      `json:"skip_root_commission"`
	RecordPlatformCommission bool      `json:"record_platform_commission"`
}

// CommissionDefaultSetting 默认分佣配置：一级 10%，二级 5%，三级 3%，四到七级各 1%
func CommissionDefaultSetting() CommissionSetting {
	return NormalizeCommissionSetting(CommissionSetting{
		MaxDepth:           7,
		LevelRates:         []float64{10, 5, 3, 1, 1, 1, 1},
		SkipRootCommission: true,
	})
}

// CommissionSettingFromConfig 由启动配置生成分佣配置，配置缺失时回退默认值
func CommissionSettingFromConfig(cfg config.ReferralConfig) CommissionSetting {
	fallback := CommissionDefaultSetting()
	setting := CommissionSetting{
		MaxDepth:           cfg.MaxDepth,
		LevelRates:         append([]float64(nil), cfg.LevelRates...),
		SkipRootCommission: cfg.SkipRootCommission,
	}
	if setting.MaxDepth <= 0 {
		setting.MaxDepth = fallback.MaxDepth
	}
	if len(setting.LevelRates) == 0 {
		setting.LevelRates = fallback.LevelRates
	}
	return NormalizeCommissionSetting(setting)
}

// NormalizeCommissionSetting 归一化分佣配置
func NormalizeCommissionSetting(setting CommissionSetting) CommissionSetting {
	if setting.MaxDepth < commissionMaxDepthMin {
		setting.MaxDepth = commissionMaxDepthMin
	}
	if setting.MaxDepth > commissionMaxDepthMax {
		setting.MaxDepth = commissionMaxDepthMax
	}

	rates := make([]float64, 0, len(setting.LevelRates))
	for i, rate := range setting.LevelRates {
		if i >= setting.MaxDepth {
			break
		}
		rate = math.Round(rate*100) / 100
		if rate < commissionRateMin {
			rate = commissionRateMin
		}
		if rate > commissionRateMax {
			rate = commissionRateMax
		}
		rates = append(rates, rate)
	}
	setting.LevelRates = rates
	return setting
}

// ValidateCommissionSetting 校验分佣配置，各级比例之和不得超过平台费
func ValidateCommissionSetting(setting CommissionSetting) error {
	if setting.MaxDepth < commissionMaxDepthMin || setting.MaxDepth > commissionMaxDepthMax {
		return fmt.Errorf("%w: 层级深度必须在 %d-%d 之间", ErrCommissionConfigInvalid, commissionMaxDepthMin, commissionMaxDepthMax)
	}
	sum := decimal.Zero
	for i, rate := range setting.LevelRates {
		if rate < commissionRateMin || rate > commissionRateMax {
			return fmt.Errorf("%w: 第 %d 级比例必须在 0-100 之间", ErrCommissionConfigInvalid, i+1)
		}
		sum = sum.Add(decimal.NewFromFloat(rate))
	}
	if sum.GreaterThan(decimal.NewFromInt(commissionRateSumLimit)) {
		return fmt.Errorf("%w: 各级比例之和不能超过 100", ErrCommissionConfigInvalid)
	}
	return nil
}

// RatePercentForLevel 返回指定层级的分佣百分比，超出配置的层级为 0
func (s CommissionSetting) RatePercentForLevel(level int) decimal.Decimal {
	if level < 1 || level > s.MaxDepth || level > len(s.LevelRates) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(s.LevelRates[level-1])
}

// CommissionSettingToMap 转换为 settings 存储结构
func CommissionSettingToMap(setting CommissionSetting) map[string]interface{} {
	normalized := NormalizeCommissionSetting(setting)
	rates := make([]interface{}, 0, len(normalized.LevelRates))
	for _, rate := range normalized.LevelRates {
		rates = append(rates, rate)
	}
	return map[string]interface{}{
		"max_depth":                  normalized.MaxDepth,
		"level_rates":                rates,
		"skip_root_commission":       normalized.SkipRootCommission,
		"record_platform_commission": normalized.RecordPlatformCommission,
	}
}

func commissionSettingFromJSON(raw models.JSON, fallback CommissionSetting) CommissionSetting {
	result := fallback
	if depthRaw, ok := raw["max_depth"]; ok {
		if parsed, err := parseSettingInt(depthRaw); err == nil {
			result.MaxDepth = parsed
		}
	}
	if ratesRaw, ok := raw["level_rates"]; ok {
		if list, ok := ratesRaw.([]interface{}); ok {
			rates := make([]float64, 0, len(list))
			for _, item := range list {
				parsed, err := parseSettingFloat(item)
				if err != nil {
					continue
				}
				rates = append(rates, parsed)
			}
			result.LevelRates = rates
		}
	}
	if skipRaw, ok := raw["skip_root_commission"]; ok {
		result.SkipRootCommission = parseSettingBool(skipRaw)
	}
	if recordRaw, ok := raw["record_platform_commission"]; ok {
		result.RecordPlatformCommission = parseSettingBool(recordRaw)
	}
	return NormalizeCommissionSetting(result)
}

// GetCommissionSetting 获取分佣配置（优先 settings，空时回退启动配置）
func (s *SettingService) GetCommissionSetting() (CommissionSetting, error) {
	fallback := CommissionDefaultSetting()
	if s == nil {
		return fallback, nil
	}
	fallback = s.commissionFallback

	value, err := s.GetByKey(constants.SettingKeyCommissionConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return commissionSettingFromJSON(value, fallback), nil
}

// UpdateCommissionSetting 更新分佣配置
func (s *SettingService) UpdateCommissionSetting(setting CommissionSetting) (CommissionSetting, error) {
	normalized := NormalizeCommissionSetting(setting)
	if err := ValidateCommissionSetting(normalized); err != nil {
		return CommissionSetting{}, err
	}
	if _, err := s.Update(constants.SettingKeyCommissionConfig, CommissionSettingToMap(normalized)); err != nil {
		return CommissionSetting{}, err
	}
	return normalized, nil
}
