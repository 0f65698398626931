package repository

import (
	"testing"
	"time"

	"github.com/wldmarket/internal/models"

	"github.com/shopspring/decimal"
)

func TestUpsertLockOverwritesSnapshot(t *testing.T) {
	db := openRepositoryTestDB(t, "rate_lock_upsert")
	repo := NewExchangeRateRepository(db)

	now := time.Now()
	first := &models.RateLock{
		ScopeKey: "product:1",
		Currency: "THB",
		Quote:    "USD",
		Rate:     models.NewRateFromDecimal(decimal.RequireFromString("0.029")),
		LockedAt: now,
	}
	if err := repo.UpsertLock(first); err != nil {
		t.Fatalf("upsert lock failed: %v", err)
	}
	second := &models.RateLock{
		ScopeKey: "product:1",
		Currency: "THB",
		Quote:    "USD",
		Rate:     models.NewRateFromDecimal(decimal.RequireFromString("0.031")),
		LockedAt: now.Add(time.Minute),
	}
	if err := repo.UpsertLock(second); err != nil {
		t.Fatalf("second upsert lock failed: %v", err)
	}

	locks, err := repo.ListLocks("product:1")
	if err != nil {
		t.Fatalf("list locks failed: %v", err)
	}
	if len(locks) != 1 {
		t.Fatalf("expected single lock row, got %d", len(locks))
	}
	if !locks[0].Rate.Equal(decimal.RequireFromString("0.031")) {
		t.Fatalf("lock not superseded: %s", locks[0].Rate.String())
	}

	affected, err := repo.DeleteLock("product:1", "thb")
	if err != nil {
		t.Fatalf("delete lock failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("delete affected want 1 got %d", affected)
	}
	lock, err := repo.GetLock("product:1", "THB")
	if err != nil {
		t.Fatalf("get lock failed: %v", err)
	}
	if lock != nil {
		t.Fatalf("lock should be removed")
	}
}

func TestLatestRatesPerBase(t *testing.T) {
	db := openRepositoryTestDB(t, "rate_latest")
	repo := NewExchangeRateRepository(db)

	for _, item := range []struct {
		base string
		rate string
	}{
		{"THB", "0.028"},
		{"THB", "0.029"},
		{"EUR", "1.08"},
	} {
		record := &models.ExchangeRate{
			Base:      item.base,
			Quote:     "USD",
			Rate:      models.NewRateFromDecimal(decimal.RequireFromString(item.rate)),
			Source:    "test",
			FetchedAt: time.Now(),
		}
		if err := repo.CreateRate(record); err != nil {
			t.Fatalf("create rate failed: %v", err)
		}
	}

	rates, err := repo.LatestRates("usd")
	if err != nil {
		t.Fatalf("latest rates failed: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("latest rates want 2 got %d", len(rates))
	}
	for _, rate := range rates {
		if rate.Base == "THB" && !rate.Rate.Equal(decimal.RequireFromString("0.029")) {
			t.Fatalf("unexpected latest THB rate: %s", rate.Rate.String())
		}
	}
}

func TestLatestRatesIgnoresLateOlderFetch(t *testing.T) {
	db := openRepositoryTestDB(t, "rate_latest_late")
	repo := NewExchangeRateRepository(db)

	now := time.Now()
	for _, item := range []struct {
		rate      string
		fetchedAt time.Time
	}{
		{"0.031", now},
		{"0.020", now.Add(-time.Hour)},
	} {
		record := &models.ExchangeRate{
			Base:      "THB",
			Quote:     "USD",
			Rate:      models.NewRateFromDecimal(decimal.RequireFromString(item.rate)),
			Source:    "test",
			FetchedAt: item.fetchedAt,
		}
		if err := repo.CreateRate(record); err != nil {
			t.Fatalf("create rate failed: %v", err)
		}
	}

	rates, err := repo.LatestRates("USD")
	if err != nil {
		t.Fatalf("latest rates failed: %v", err)
	}
	if len(rates) != 1 || !rates[0].Rate.Equal(decimal.RequireFromString("0.031")) {
		t.Fatalf("latest rate should follow fetched_at: %+v", rates)
	}
}
