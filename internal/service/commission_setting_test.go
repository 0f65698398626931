package service

import (
	"errors"
	"testing"

	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"
)

func TestGetCommissionSettingFallback(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo, CommissionSetting{})

	setting, err := svc.GetCommissionSetting()
	if err != nil {
		t.Fatalf("get commission setting failed: %v", err)
	}
	if setting.MaxDepth != 7 {
		t.Fatalf("expected default depth 7, got %d", setting.MaxDepth)
	}
	if len(setting.LevelRates) != 7 || setting.LevelRates[0] != 10 || setting.LevelRates[2] != 3 {
		t.Fatalf("unexpected default rates: %v", setting.LevelRates)
	}
	if !setting.SkipRootCommission {
		t.Fatalf("expected root commission skipped by default")
	}
}

func TestCommissionSettingFromConfig(t *testing.T) {
	setting := CommissionSettingFromConfig(config.ReferralConfig{MaxDepth: 3, LevelRates: []float64{20, 10, 5, 1}})
	if setting.MaxDepth != 3 || len(setting.LevelRates) != 3 {
		t.Fatalf("rates beyond depth should be dropped: %+v", setting)
	}

	fallback := CommissionSettingFromConfig(config.ReferralConfig{})
	if fallback.MaxDepth != 7 || len(fallback.LevelRates) != 7 {
		t.Fatalf("empty config should fall back to defaults: %+v", fallback)
	}
}

func TestUpdateCommissionSettingNormalize(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo, CommissionDefaultSetting())

	setting, err := svc.UpdateCommissionSetting(CommissionSetting{
		MaxDepth:   2,
		LevelRates: []float64{12.345, -3, 9},
	})
	if err != nil {
		t.Fatalf("update commission setting failed: %v", err)
	}
	if len(setting.LevelRates) != 2 || setting.LevelRates[0] != 12.35 || setting.LevelRates[1] != 0 {
		t.Fatalf("unexpected normalized rates: %v", setting.LevelRates)
	}

	saved, ok := repo.store[constants.SettingKeyCommissionConfig]
	if !ok {
		t.Fatalf("expected commission setting saved")
	}
	if saved["max_depth"] != 2 {
		t.Fatalf("expected saved depth 2, got %v", saved["max_depth"])
	}

	loaded, err := svc.GetCommissionSetting()
	if err != nil {
		t.Fatalf("reload commission setting failed: %v", err)
	}
	if loaded.MaxDepth != 2 || loaded.LevelRates[0] != 12.35 {
		t.Fatalf("unexpected reloaded setting: %+v", loaded)
	}
}

func TestUpdateCommissionSettingRejectsOverAllocation(t *testing.T) {
	svc := NewSettingService(newMockSettingRepo(), CommissionDefaultSetting())
	_, err := svc.UpdateCommissionSetting(CommissionSetting{MaxDepth: 2, LevelRates: []float64{60, 60}})
	if !errors.Is(err, ErrCommissionConfigInvalid) {
		t.Fatalf("expected ErrCommissionConfigInvalid, got %v", err)
	}
}

func TestCommissionSettingParsesLooseJSON(t *testing.T) {
	repo := newMockSettingRepo()
	repo.store[constants.SettingKeyCommissionConfig] = models.JSON{
		"max_depth":                  "4",
		"level_rates":                []interface{}{"8", 4.0, "bad", 2},
		"skip_root_commission":       "false",
		"record_platform_commission": "yes",
	}
	svc := NewSettingService(repo, CommissionDefaultSetting())

	setting, err := svc.GetCommissionSetting()
	if err != nil {
		t.Fatalf("get commission setting failed: %v", err)
	}
	if setting.MaxDepth != 4 || len(setting.LevelRates) != 3 {
		t.Fatalf("unexpected parsed setting: %+v", setting)
	}
	if setting.SkipRootCommission || !setting.RecordPlatformCommission {
		t.Fatalf("unexpected flags: %+v", setting)
	}
	if !setting.RatePercentForLevel(4).IsZero() {
		t.Fatalf("unconfigured level should have zero rate")
	}
}
