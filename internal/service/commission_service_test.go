package service

import (
	"errors"
	"testing"

	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"

	"github.com/shopspring/decimal"
)

func commissionTestOrder(subtotal, shipping, feePercent string) *models.Order {
	sub := decimal.RequireFromString(subtotal)
	ship := decimal.RequireFromString(shipping)
	return &models.Order{
		Subtotal:       models.NewMoneyFromDecimal(sub),
		ShippingFee:    models.NewMoneyFromDecimal(ship),
		TotalAmount:    models.NewMoneyFromDecimal(sub.Add(ship)),
		FinFeePercent:  models.NewMoneyFromDecimal(decimal.RequireFromString(feePercent)),
		ConversionRate: models.NewRateFromDecimal(decimal.NewFromInt(1)),
	}
}

func TestComputeCommissionThreeLevelChain(t *testing.T) {
	order := commissionTestOrder("300", "0", "7")
	ancestors := []Ancestor{
		{UserID: 11, Level: 1, Active: true},
		{UserID: 12, Level: 2, Active: true},
		{UserID: 13, Level: 3, Active: true},
		{UserID: 1, Level: 4, IsRoot: true, Active: true},
	}
	breakdown := ComputeCommission(order, ancestors, CommissionDefaultSetting())

	if breakdown.FeeAmount.StringFixed(2) != "21.00" {
		t.Fatalf("unexpected fee: %s", breakdown.FeeAmount)
	}
	if breakdown.SellerReceive.StringFixed(2) != "279.00" {
		t.Fatalf("unexpected seller receive: %s", breakdown.SellerReceive)
	}
	want := []string{"2.10", "1.05", "0.63"}
	if len(breakdown.Referrals) != len(want) {
		t.Fatalf("expected %d referral lines, got %d", len(want), len(breakdown.Referrals))
	}
	for i, line := range breakdown.Referrals {
		if line.Amount.StringFixed(2) != want[i] || line.Level != i+1 {
			t.Fatalf("line %d unexpected: %+v", i, line)
		}
	}
	if breakdown.Distributed.StringFixed(2) != "3.78" || breakdown.Unclaimed.StringFixed(2) != "17.22" {
		t.Fatalf("unexpected distribution: distributed=%s unclaimed=%s", breakdown.Distributed, breakdown.Unclaimed)
	}
	total := breakdown.SellerReceive.Add(breakdown.Distributed)
	if total.StringFixed(2) != "282.78" || total.GreaterThan(order.TotalAmount.Decimal) {
		t.Fatalf("unexpected total distributed: %s", total)
	}
}

func TestComputeCommissionExcludesShippingFromFeeBasis(t *testing.T) {
	order := commissionTestOrder("300", "50", "7")
	breakdown := ComputeCommission(order, nil, CommissionDefaultSetting())
	if breakdown.FeeAmount.StringFixed(2) != "21.00" {
		t.Fatalf("fee should ignore shipping, got %s", breakdown.FeeAmount)
	}
	if breakdown.SellerReceive.StringFixed(2) != "329.00" {
		t.Fatalf("seller should keep shipping, got %s", breakdown.SellerReceive)
	}
	if len(breakdown.Referrals) != 0 {
		t.Fatalf("expected no referral lines")
	}
}

func TestComputeCommissionSkipsRootAndDisabledWithoutShifting(t *testing.T) {
	order := commissionTestOrder("1000", "0", "10")
	ancestors := []Ancestor{
		{UserID: 21, Level: 1, Active: false},
		{UserID: 22, Level: 2, Active: true},
		{UserID: 1, Level: 3, IsRoot: true, Active: true},
	}
	breakdown := ComputeCommission(order, ancestors, CommissionDefaultSetting())
	if len(breakdown.Referrals) != 1 {
		t.Fatalf("expected one referral line, got %+v", breakdown.Referrals)
	}
	line := breakdown.Referrals[0]
	if line.UserID != 22 || line.Level != 2 || line.Amount.StringFixed(2) != "5.00" {
		t.Fatalf("unexpected line: %+v", line)
	}

	setting := CommissionDefaultSetting()
	setting.SkipRootCommission = false
	breakdown = ComputeCommission(order, ancestors, setting)
	if len(breakdown.Referrals) != 2 || breakdown.Referrals[1].UserID != 1 || breakdown.Referrals[1].Amount.StringFixed(2) != "3.00" {
		t.Fatalf("root should earn level 3 share when not skipped: %+v", breakdown.Referrals)
	}
}

func TestComputeCommissionCapsAtFee(t *testing.T) {
	order := commissionTestOrder("300", "0", "7")
	setting := NormalizeCommissionSetting(CommissionSetting{MaxDepth: 2, LevelRates: []float64{60, 60}})
	ancestors := []Ancestor{
		{UserID: 31, Level: 1, Active: true},
		{UserID: 32, Level: 2, Active: true},
		{UserID: 33, Level: 3, Active: true},
	}
	breakdown := ComputeCommission(order, ancestors, setting)
	if len(breakdown.Referrals) != 2 {
		t.Fatalf("levels beyond max depth must not earn: %+v", breakdown.Referrals)
	}
	if breakdown.Referrals[0].Amount.StringFixed(2) != "12.60" || breakdown.Referrals[1].Amount.StringFixed(2) != "8.40" {
		t.Fatalf("unexpected capped amounts: %+v", breakdown.Referrals)
	}
	if !breakdown.Distributed.Equal(breakdown.FeeAmount) || !breakdown.Unclaimed.IsZero() {
		t.Fatalf("distributed should equal fee: %s vs %s", breakdown.Distributed, breakdown.FeeAmount)
	}
}

func TestComputeCommissionTruncatesToCents(t *testing.T) {
	order := commissionTestOrder("199.99", "0", "5.5")
	ancestors := []Ancestor{{UserID: 41, Level: 3, Active: true}}
	breakdown := ComputeCommission(order, ancestors, CommissionDefaultSetting())
	// 11.00 * 3% = 0.33
	if breakdown.FeeAmount.StringFixed(2) != "11.00" || breakdown.Referrals[0].Amount.StringFixed(2) != "0.33" {
		t.Fatalf("unexpected amounts: fee=%s line=%+v", breakdown.FeeAmount, breakdown.Referrals)
	}

	order = commissionTestOrder("10.30", "0", "10")
	ancestors = []Ancestor{{UserID: 42, Level: 3, Active: true}}
	breakdown = ComputeCommission(order, ancestors, CommissionDefaultSetting())
	// 1.03 * 3% = 0.0309，截断为 0.03
	if breakdown.Referrals[0].Amount.StringFixed(2) != "0.03" {
		t.Fatalf("expected truncation, got %s", breakdown.Referrals[0].Amount)
	}
}

func TestSettleCreditsSellerAndAncestors(t *testing.T) {
	f := setupMarketTest(t)
	users := f.chain(t, "carol", "bob", "alice", "seller")
	carol, bob, alice, seller := users[0], users[1], users[2], users[3]
	buyer := f.register(t, "buyer", "")

	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	completed := f.advance(t, order, constants.OrderStatusCompleted)
	if completed.Status != constants.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}

	earnings := f.earningsOf(t, order.ID)
	if len(earnings) != 4 {
		t.Fatalf("expected 4 earnings, got %d", len(earnings))
	}
	expected := map[uint]struct {
		kind   string
		amount string
		level  int
	}{
		seller.ID: {constants.EarningTypeSale, "279.00", 0},
		alice.ID:  {constants.EarningTypeReferral, "2.10", 1},
		bob.ID:    {constants.EarningTypeReferral, "1.05", 2},
		carol.ID:  {constants.EarningTypeReferral, "0.63", 3},
	}
	sum := decimal.Zero
	for _, earning := range earnings {
		want, ok := expected[earning.UserID]
		if !ok {
			t.Fatalf("unexpected beneficiary %d", earning.UserID)
		}
		if earning.Type != want.kind || earning.Amount.String() != want.amount || earning.Level != want.level {
			t.Fatalf("unexpected earning for %d: %+v", earning.UserID, earning)
		}
		if earning.Type == constants.EarningTypeReferral && earning.ReferralID == nil {
			t.Fatalf("referral earning should link referral row")
		}
		sum = sum.Add(earning.Amount.Decimal)
	}
	if sum.StringFixed(2) != "282.78" {
		t.Fatalf("unexpected total distributed: %s", sum)
	}

	sellerRow := f.reloadUser(t, seller.ID)
	if sellerRow.WalletBalance.String() != "279.00" || sellerRow.SalesCount != 1 || sellerRow.EarningsFromSales.String() != "279.00" {
		t.Fatalf("unexpected seller stats: %+v", sellerRow.Stats())
	}
	buyerRow := f.reloadUser(t, buyer.ID)
	if buyerRow.PurchasesCount != 1 || buyerRow.PurchasesTotal.String() != "300.00" {
		t.Fatalf("unexpected buyer stats: %+v", buyerRow.Stats())
	}
	aliceRow := f.reloadUser(t, alice.ID)
	if aliceRow.EarningsFromReferral.String() != "2.10" || aliceRow.WalletBalance.String() != "2.10" {
		t.Fatalf("unexpected alice stats: %+v", aliceRow.Stats())
	}

	var referral models.Referral
	if err := f.db.Where("referrer_id = ? AND referred_id = ?", bob.ID, seller.ID).First(&referral).Error; err != nil {
		t.Fatalf("load referral failed: %v", err)
	}
	if referral.Level != 2 || referral.TotalEarnings.String() != "1.05" {
		t.Fatalf("unexpected referral row: %+v", referral)
	}

	var rootEarnings int64
	f.db.Model(&models.Earning{}).Where("user_id = ?", f.root.ID).Count(&rootEarnings)
	if rootEarnings != 0 {
		t.Fatalf("root should not earn by default")
	}
}

func TestSettleIsIdempotent(t *testing.T) {
	f := setupMarketTest(t)
	users := f.chain(t, "inviter", "seller")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, users[1].ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	f.advance(t, order, constants.OrderStatusCompleted)

	first := f.earningsOf(t, order.ID)
	for i := 0; i < 3; i++ {
		again, err := f.commission.Settle(order.ID)
		if err != nil {
			t.Fatalf("settle retry failed: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("expected %d earnings, got %d", len(first), len(again))
		}
	}
	if got := f.earningsOf(t, order.ID); len(got) != len(first) {
		t.Fatalf("duplicate earnings created: %d", len(got))
	}
	seller := f.reloadUser(t, users[1].ID)
	if seller.WalletBalance.String() != "279.00" {
		t.Fatalf("wallet credited twice: %s", seller.WalletBalance)
	}
	inviter := f.reloadUser(t, users[0].ID)
	if inviter.EarningsTotal.String() != "2.10" {
		t.Fatalf("referral credited twice: %s", inviter.EarningsTotal)
	}
}

func TestSettleSellerUnderRootOnlyCreatesSale(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	f.advance(t, order, constants.OrderStatusCompleted)

	earnings := f.earningsOf(t, order.ID)
	if len(earnings) != 1 {
		t.Fatalf("expected only sale earning, got %d", len(earnings))
	}
	if earnings[0].Type != constants.EarningTypeSale || earnings[0].Amount.String() != "279.00" {
		t.Fatalf("unexpected sale earning: %+v", earnings[0])
	}
}

func TestSettleRecordsPlatformCommission(t *testing.T) {
	f := setupMarketTest(t)
	setting := CommissionDefaultSetting()
	setting.RecordPlatformCommission = true
	if _, err := f.settings.UpdateCommissionSetting(setting); err != nil {
		t.Fatalf("update setting failed: %v", err)
	}
	users := f.chain(t, "inviter", "seller")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, users[1].ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	f.advance(t, order, constants.OrderStatusCompleted)

	var platform models.Earning
	if err := f.db.Where("source_order_id = ? AND type = ?", order.ID, constants.EarningTypeCommission).First(&platform).Error; err != nil {
		t.Fatalf("platform commission missing: %v", err)
	}
	if platform.UserID != f.root.ID || platform.Amount.String() != "18.90" {
		t.Fatalf("unexpected platform commission: %+v", platform)
	}
	var referralSum decimal.Decimal
	for _, earning := range f.earningsOf(t, order.ID) {
		if earning.Type != constants.EarningTypeSale {
			referralSum = referralSum.Add(earning.Amount.Decimal)
		}
	}
	if referralSum.StringFixed(2) != "21.00" {
		t.Fatalf("fee pool should be fully accounted, got %s", referralSum)
	}
}

func TestSettleRejectsUncompletedOrder(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	f.advance(t, order, constants.OrderStatusDelivered)

	if _, err := f.commission.Settle(order.ID); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
	if _, err := f.commission.Settle(999999); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestSettleRebuildsReferralAfterChainChange(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	mentor := f.register(t, "mentor", "")
	buyer := f.register(t, "buyer", "")
	if _, err := f.referrals.ReassignInviter(seller.ID, mentor.InviteCode); err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	// 模拟历史数据缺失推荐关系行
	if err := f.db.Where("referrer_id = ? AND referred_id = ?", mentor.ID, seller.ID).Delete(&models.Referral{}).Error; err != nil {
		t.Fatalf("delete referral failed: %v", err)
	}

	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	f.advance(t, order, constants.OrderStatusCompleted)

	var referral models.Referral
	if err := f.db.Where("referrer_id = ? AND referred_id = ?", mentor.ID, seller.ID).First(&referral).Error; err != nil {
		t.Fatalf("referral should be recreated: %v", err)
	}
	if referral.Level != 1 || referral.TotalEarnings.String() != "2.10" {
		t.Fatalf("unexpected referral: %+v", referral)
	}
}
