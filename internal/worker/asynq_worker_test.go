package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/provider"
	"github.com/wldmarket/internal/queue"
	"github.com/wldmarket/internal/ratefeed"
	"github.com/wldmarket/internal/repository"
	"github.com/wldmarket/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:worker_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	root, err := models.InitRootAccount(1, "ROOT")
	if err != nil {
		t.Fatalf("init root account failed: %v", err)
	}
	feed, err := ratefeed.NewStaticFeed(map[string]string{"THB": "0.031"})
	if err != nil {
		t.Fatalf("static feed failed: %v", err)
	}

	c := &provider.Container{
		Config:           &config.Config{Order: config.OrderConfig{NoPrefix: "WM", AutoDeliverHours: 240}},
		RateFeed:         feed,
		RootUser:         root,
		UserRepo:         repository.NewUserRepository(db),
		ReferralRepo:     repository.NewReferralRepository(db),
		OrderRepo:        repository.NewOrderRepository(db),
		ProductRepo:      repository.NewProductRepository(db),
		EarningRepo:      repository.NewEarningRepository(db),
		ExchangeRateRepo: repository.NewExchangeRateRepository(db),
		SettingRepo:      repository.NewSettingRepository(db),
	}
	c.SettingService = service.NewSettingService(c.SettingRepo, service.CommissionDefaultSetting())
	c.ExchangeRateService = service.NewExchangeRateService(c.ExchangeRateRepo, "USD")
	c.ReferralService = service.NewReferralService(c.UserRepo, c.ReferralRepo, c.SettingService, root.ID)
	c.CommissionService = service.NewCommissionService(c.OrderRepo, c.UserRepo, c.ReferralRepo, c.EarningRepo, c.SettingService, root.ID)
	c.ProductService = service.NewProductService(c.ProductRepo, c.UserRepo, c.ExchangeRateService, 7)
	c.OrderService = service.NewOrderService(service.OrderServiceOptions{
		OrderRepo:         c.OrderRepo,
		ProductRepo:       c.ProductRepo,
		UserRepo:          c.UserRepo,
		ExchangeService:   c.ExchangeRateService,
		CommissionService: c.CommissionService,
		SettingService:    c.SettingService,
		Config:            c.Config.Order,
	})
	return NewConsumer(c), db
}

// shippedOrder 创建一笔以结算币计价的订单并推进到已发货
func shippedOrder(t *testing.T, c *Consumer) *models.Order {
	t.Helper()
	seller, err := c.ReferralService.Register(service.RegisterInput{ExternalID: "ext-seller", DisplayName: "seller"})
	if err != nil {
		t.Fatalf("register seller failed: %v", err)
	}
	buyer, err := c.ReferralService.Register(service.RegisterInput{ExternalID: "ext-buyer", DisplayName: "buyer"})
	if err != nil {
		t.Fatalf("register buyer failed: %v", err)
	}
	product, err := c.ProductService.Create(seller.ID, service.CreateProductInput{
		Title:        "Film camera",
		PriceLocal:   decimal.RequireFromString("100"),
		CurrencyCode: "USD",
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	order, err := c.OrderService.CreateOrder(context.Background(), service.CreateOrderInput{BuyerID: buyer.ID, ProductID: product.ID})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	steps := []struct {
		target string
		actor  service.Actor
	}{
		{constants.OrderStatusConfirmed, service.UserActor(seller.ID)},
		{constants.OrderStatusPaid, service.UserActor(buyer.ID)},
		{constants.OrderStatusPaymentVerified, service.UserActor(seller.ID)},
		{constants.OrderStatusShipped, service.UserActor(seller.ID)},
	}
	for _, step := range steps {
		result, err := c.OrderService.Transition(context.Background(), service.TransitionInput{
			OrderID:          order.ID,
			Actor:            step.actor,
			Target:           step.target,
			TrackingNumber:   "TRK-9",
			ShippingProvider: "Thailand Post",
		})
		if err != nil {
			t.Fatalf("transition to %s failed: %v", step.target, err)
		}
		order = result.Order
	}
	return order
}

func reloadOrder(t *testing.T, db *gorm.DB, id uint) *models.Order {
	t.Helper()
	var order models.Order
	if err := db.First(&order, id).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	return &order
}

func TestHandleOrderAutoDeliver(t *testing.T) {
	c, db := setupWorkerTest(t)
	order := shippedOrder(t, c)

	stale, err := queue.NewOrderAutoDeliverTask(queue.OrderAutoDeliverPayload{OrderID: order.ID, ShippedVersion: order.Version + 5})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := c.handleOrderAutoDeliver(context.Background(), stale); err != nil {
		t.Fatalf("stale task should be dropped, got %v", err)
	}
	if got := reloadOrder(t, db, order.ID); got.Status != constants.OrderStatusShipped {
		t.Fatalf("stale task must not deliver, got %s", got.Status)
	}

	task, err := queue.NewOrderAutoDeliverTask(queue.OrderAutoDeliverPayload{OrderID: order.ID, ShippedVersion: order.Version})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := c.handleOrderAutoDeliver(context.Background(), task); err != nil {
		t.Fatalf("auto deliver failed: %v", err)
	}
	if got := reloadOrder(t, db, order.ID); got.Status != constants.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", got.Status)
	}

	// 重复投递不会再次推进
	if err := c.handleOrderAutoDeliver(context.Background(), task); err != nil {
		t.Fatalf("replayed task should be dropped, got %v", err)
	}
}

func TestHandleOrderAutoDeliverRejectsBadPayload(t *testing.T) {
	c, _ := setupWorkerTest(t)
	if err := c.handleOrderAutoDeliver(context.Background(), asynq.NewTask(queue.TaskOrderAutoDeliver, []byte("{"))); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	missing, err := queue.NewOrderAutoDeliverTask(queue.OrderAutoDeliverPayload{OrderID: 404, ShippedVersion: 1})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := c.handleOrderAutoDeliver(context.Background(), missing); err != nil {
		t.Fatalf("missing order should be dropped, got %v", err)
	}
}

func TestHandleOrderSettleSkipsUnfinishedOrder(t *testing.T) {
	c, db := setupWorkerTest(t)
	order := shippedOrder(t, c)

	task, err := queue.NewOrderSettleTask(queue.OrderSettlePayload{OrderID: order.ID})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := c.handleOrderSettle(context.Background(), task); err != nil {
		t.Fatalf("unfinished order should be skipped, got %v", err)
	}
	var count int64
	db.Model(&models.Earning{}).Where("source_order_id = ?", order.ID).Count(&count)
	if count != 0 {
		t.Fatalf("unfinished order must not be settled, got %d earnings", count)
	}
}

func TestReconcileSettlementsWithoutQueue(t *testing.T) {
	c, db := setupWorkerTest(t)
	order := shippedOrder(t, c)
	for _, target := range []string{constants.OrderStatusDelivered, constants.OrderStatusCompleted} {
		if _, err := c.OrderService.Transition(context.Background(), service.TransitionInput{
			OrderID: order.ID,
			Actor:   service.UserActor(order.BuyerID),
			Target:  target,
		}); err != nil {
			t.Fatalf("transition to %s failed: %v", target, err)
		}
	}

	// 模拟结算流水丢失
	if err := db.Where("source_order_id = ?", order.ID).Delete(&models.Earning{}).Error; err != nil {
		t.Fatalf("drop earnings failed: %v", err)
	}

	handled, err := c.ReconcileSettlements(10)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if handled != 1 {
		t.Fatalf("expected 1 reconciled order, got %d", handled)
	}
	var count int64
	db.Model(&models.Earning{}).Where("source_order_id = ?", order.ID).Count(&count)
	if count == 0 {
		t.Fatalf("reconcile should write earnings")
	}

	handled, err = c.ReconcileSettlements(10)
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if handled != 0 {
		t.Fatalf("settled order should not be picked again, got %d", handled)
	}
}

func TestRefreshRatesFromStaticFeed(t *testing.T) {
	c, _ := setupWorkerTest(t)
	count, err := c.RefreshRates(context.Background())
	if err != nil {
		t.Fatalf("refresh rates failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 rate, got %d", count)
	}
	rate, _, err := c.ExchangeRateService.LiveRate(context.Background(), "thb")
	if err != nil {
		t.Fatalf("live rate failed: %v", err)
	}
	if rate.String() != "0.031" {
		t.Fatalf("unexpected live rate: %s", rate)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	c, _ := setupWorkerTest(t)
	scheduler, err := NewScheduler(c, SchedulerOptions{RatePollInterval: time.Hour})
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- scheduler.Start(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(c.ExchangeRateService.LiveRates(context.Background())) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(c.ExchangeRateService.LiveRates(context.Background())) == 0 {
		t.Fatalf("scheduler should poll rates on start")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("scheduler exit failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
