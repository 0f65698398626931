package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"
)

func TestTransitionHappyPathSettlesAndMarksSold(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)

	if order.Status != constants.OrderStatusPending || order.Version != 0 {
		t.Fatalf("unexpected initial order: status=%s version=%d", order.Status, order.Version)
	}
	if order.FinFeePercent.String() != "7.00" || order.TotalAmount.String() != "300.00" {
		t.Fatalf("unexpected order snapshot: %+v", order)
	}

	completed := f.advance(t, order, constants.OrderStatusCompleted)
	if completed.Version != 6 {
		t.Fatalf("expected version 6, got %d", completed.Version)
	}
	if completed.CompletedAt == nil || completed.ShippedAt == nil || completed.TrackingNumber != "TRK-001" {
		t.Fatalf("expected timestamps and tracking to be stamped: %+v", completed)
	}

	var soldProduct models.Product
	if err := f.db.First(&soldProduct, product.ID).Error; err != nil {
		t.Fatalf("reload product failed: %v", err)
	}
	if soldProduct.Status != constants.ProductStatusSold || soldProduct.SoldOrderID == nil || *soldProduct.SoldOrderID != order.ID {
		t.Fatalf("product should be sold by order: %+v", soldProduct)
	}

	logs, err := f.orders.ListStatusLogs(UserActor(buyer.ID), order.ID)
	if err != nil {
		t.Fatalf("list logs failed: %v", err)
	}
	// 创建日志加六次推进
	if len(logs) != 7 {
		t.Fatalf("expected 7 status logs, got %d", len(logs))
	}
	if len(f.earningsOf(t, order.ID)) == 0 {
		t.Fatalf("completion should produce earnings")
	}
}

func TestTransitionRejectsUnknownEdges(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)

	if _, err := f.transition(order, UserActor(seller.ID), constants.OrderStatusShipped); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.transition(order, UserActor(seller.ID), "teleported"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for unknown status, got %v", err)
	}
	if _, err := f.transition(order, Actor{}, constants.OrderStatusConfirmed); !errors.Is(err, ErrActorInvalid) {
		t.Fatalf("expected ErrActorInvalid, got %v", err)
	}

	cancelled, err := f.transition(order, UserActor(buyer.ID), constants.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := f.transition(cancelled.Order, AdminActor(9, "ops"), constants.OrderStatusConfirmed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("terminal order should not move, got %v", err)
	}
}

func TestTransitionRejectsWrongActor(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	stranger := f.register(t, "stranger", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)

	if _, err := f.transition(order, UserActor(buyer.ID), constants.OrderStatusConfirmed); !errors.Is(err, ErrUnauthorizedActor) {
		t.Fatalf("buyer cannot confirm, got %v", err)
	}
	// 非参与方用户与查询接口一致，只会看到订单不存在
	if _, err := f.transition(order, UserActor(stranger.ID), constants.OrderStatusCancelled); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("stranger should not see the order, got %v", err)
	}
	if _, err := f.transition(order, UserActor(stranger.ID), constants.OrderStatusCompleted); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("stranger should not learn the order status, got %v", err)
	}
	if _, err := f.transition(order, SystemActor("cron"), constants.OrderStatusConfirmed); !errors.Is(err, ErrUnauthorizedActor) {
		t.Fatalf("system cannot confirm, got %v", err)
	}

	delivered := f.advance(t, order, constants.OrderStatusDelivered)
	if _, err := f.transition(delivered, UserActor(seller.ID), constants.OrderStatusCompleted); !errors.Is(err, ErrUnauthorizedActor) {
		t.Fatalf("seller cannot complete, got %v", err)
	}
	if _, err := f.transition(delivered, AdminActor(9, "ops"), constants.OrderStatusCompleted); !errors.Is(err, ErrUnauthorizedActor) {
		t.Fatalf("admin cannot complete, got %v", err)
	}
	if got := f.reloadOrder(t, order.ID); got.Status != constants.OrderStatusDelivered {
		t.Fatalf("order should stay delivered, got %s", got.Status)
	}
}

func TestTransitionShipRequiresTracking(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	verified := f.advance(t, order, constants.OrderStatusPaymentVerified)

	_, err := f.orders.Transition(context.Background(), TransitionInput{
		OrderID:          verified.ID,
		Actor:            UserActor(seller.ID),
		Target:           constants.OrderStatusShipped,
		ShippingProvider: "Kerry Express",
	})
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
	if got := f.reloadOrder(t, order.ID); got.Status != constants.OrderStatusPaymentVerified || got.Version != verified.Version {
		t.Fatalf("failed transition must not change order: %+v", got)
	}
}

func TestTransitionConfirmRequiresActiveProduct(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)

	if _, err := f.products.SetActive(seller.ID, product.ID, false); err != nil {
		t.Fatalf("deactivate product failed: %v", err)
	}
	if _, err := f.transition(order, UserActor(seller.ID), constants.OrderStatusConfirmed); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestProductCommittedToSingleOrder(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	first := f.register(t, "first", "")
	second := f.register(t, "second", "")
	product := f.createProduct(t, seller.ID, "300", "USD")

	orderA := f.createOrder(t, first.ID, product.ID)
	orderB := f.createOrder(t, second.ID, product.ID)
	if _, err := f.transition(orderA, UserActor(seller.ID), constants.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm first order failed: %v", err)
	}
	if _, err := f.transition(orderB, UserActor(seller.ID), constants.OrderStatusConfirmed); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("second confirm should fail precondition, got %v", err)
	}

	// 第一笔取消后，第二笔可以接手
	if _, err := f.transition(f.reloadOrder(t, orderA.ID), UserActor(first.ID), constants.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel first order failed: %v", err)
	}
	completed := f.advance(t, orderB, constants.OrderStatusCompleted)
	if completed.Status != constants.OrderStatusCompleted {
		t.Fatalf("second order should complete, got %s", completed.Status)
	}
	if got := f.reloadUser(t, seller.ID); got.WalletBalance.String() != "279.00" {
		t.Fatalf("seller paid once for one item, got %s", got.WalletBalance)
	}
}

func TestCompletionRejectsAlreadySoldProduct(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	delivered := f.advance(t, order, constants.OrderStatusDelivered)

	if err := f.db.Model(&models.Product{}).Where("id = ?", product.ID).Update("status", constants.ProductStatusSold).Error; err != nil {
		t.Fatalf("mark product sold failed: %v", err)
	}
	if _, err := f.transition(delivered, UserActor(buyer.ID), constants.OrderStatusCompleted); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("completing a sold product should fail precondition, got %v", err)
	}
	if got := f.reloadOrder(t, order.ID); got.Status != constants.OrderStatusDelivered {
		t.Fatalf("order should stay delivered, got %s", got.Status)
	}
	if earnings := f.earningsOf(t, order.ID); len(earnings) != 0 {
		t.Fatalf("no earnings expected, got %d", len(earnings))
	}
	if got := f.reloadUser(t, seller.ID); !got.WalletBalance.IsZero() {
		t.Fatalf("seller wallet should be untouched, got %s", got.WalletBalance)
	}
}

func TestTransitionExpectedVersionMismatch(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)

	stale := uint(3)
	_, err := f.orders.Transition(context.Background(), TransitionInput{
		OrderID:         order.ID,
		Actor:           UserActor(seller.ID),
		Target:          constants.OrderStatusConfirmed,
		ExpectedVersion: &stale,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestConcurrentShipHasSingleWinner(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	verified := f.advance(t, order, constants.OrderStatusPaymentVerified)

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = f.transition(verified, UserActor(seller.ID), constants.OrderStatusShipped)
		}(i)
	}
	wg.Wait()

	success, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 || conflicts != 1 {
		t.Fatalf("expected one winner and one conflict, got success=%d conflicts=%d", success, conflicts)
	}

	var shippedLogs int64
	f.db.Model(&models.OrderStatusLog{}).Where("order_id = ? AND to_status = ?", order.ID, constants.OrderStatusShipped).Count(&shippedLogs)
	if shippedLogs != 1 {
		t.Fatalf("expected one shipped log, got %d", shippedLogs)
	}
	if got := f.reloadOrder(t, order.ID); got.Version != verified.Version+1 {
		t.Fatalf("version should advance once, got %d", got.Version)
	}
}

func TestSettlementFailureRollsBackCompletion(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	delivered := f.advance(t, order, constants.OrderStatusDelivered)

	if err := f.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("conversion_rate", "0").Error; err != nil {
		t.Fatalf("corrupt rate failed: %v", err)
	}
	if _, err := f.transition(delivered, UserActor(buyer.ID), constants.OrderStatusCompleted); !errors.Is(err, ErrSettlement) {
		t.Fatalf("expected ErrSettlement, got %v", err)
	}

	got := f.reloadOrder(t, order.ID)
	if got.Status != constants.OrderStatusDelivered || got.Version != delivered.Version || got.CompletedAt != nil {
		t.Fatalf("order should stay delivered: %+v", got)
	}
	var reloaded models.Product
	if err := f.db.First(&reloaded, product.ID).Error; err != nil {
		t.Fatalf("reload product failed: %v", err)
	}
	if reloaded.Status != constants.ProductStatusActive {
		t.Fatalf("product should not be sold, got %s", reloaded.Status)
	}
	if len(f.earningsOf(t, order.ID)) != 0 {
		t.Fatalf("no earnings should be written")
	}
	var completedLogs int64
	f.db.Model(&models.OrderStatusLog{}).Where("order_id = ? AND to_status = ?", order.ID, constants.OrderStatusCompleted).Count(&completedLogs)
	if completedLogs != 0 {
		t.Fatalf("status log should roll back")
	}

	if err := f.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("conversion_rate", "1").Error; err != nil {
		t.Fatalf("restore rate failed: %v", err)
	}
	result, err := f.transition(delivered, UserActor(buyer.ID), constants.OrderStatusCompleted)
	if err != nil {
		t.Fatalf("retry completion failed: %v", err)
	}
	if result.Order.Status != constants.OrderStatusCompleted || len(result.Earnings) != 1 {
		t.Fatalf("unexpected retry result: %+v", result)
	}
}

func TestCancelAfterShipmentFollowsConfig(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	shipped := f.advance(t, order, constants.OrderStatusShipped)

	if _, err := f.transition(shipped, UserActor(buyer.ID), constants.OrderStatusCancelled); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}

	g := setupMarketTestWithConfig(t, config.OrderConfig{NoPrefix: "WM", AllowCancelAfterShipment: true})
	seller2 := g.register(t, "seller", "")
	buyer2 := g.register(t, "buyer", "")
	product2 := g.createProduct(t, seller2.ID, "300", "USD")
	order2 := g.createOrder(t, buyer2.ID, product2.ID)
	shipped2 := g.advance(t, order2, constants.OrderStatusShipped)
	result, err := g.orders.Transition(context.Background(), TransitionInput{
		OrderID: shipped2.ID,
		Actor:   AdminActor(9, "ops"),
		Target:  constants.OrderStatusCancelled,
		Note:    "lost in transit",
	})
	if err != nil {
		t.Fatalf("cancel after shipment failed: %v", err)
	}
	if result.Order.CancelReason != "lost in transit" || result.Order.CancelledAt == nil {
		t.Fatalf("unexpected cancelled order: %+v", result.Order)
	}
}

func TestAutoDeliverSkipsStaleVersion(t *testing.T) {
	f := setupMarketTest(t)
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	shipped := f.advance(t, order, constants.OrderStatusShipped)

	ok, err := f.orders.AutoDeliver(context.Background(), order.ID, shipped.Version-1)
	if err != nil || ok {
		t.Fatalf("stale version should be skipped: ok=%v err=%v", ok, err)
	}
	ok, err = f.orders.AutoDeliver(context.Background(), order.ID, shipped.Version)
	if err != nil || !ok {
		t.Fatalf("auto deliver failed: ok=%v err=%v", ok, err)
	}
	got := f.reloadOrder(t, order.ID)
	if got.Status != constants.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", got.Status)
	}
	var log models.OrderStatusLog
	if err := f.db.Where("order_id = ? AND to_status = ?", order.ID, constants.OrderStatusDelivered).First(&log).Error; err != nil {
		t.Fatalf("load log failed: %v", err)
	}
	if log.ActorRole != constants.ActorRoleSystem {
		t.Fatalf("expected system actor, got %s", log.ActorRole)
	}

	ok, err = f.orders.AutoDeliver(context.Background(), order.ID, shipped.Version)
	if err != nil || ok {
		t.Fatalf("delivered order should be skipped: ok=%v err=%v", ok, err)
	}
}

func TestAutoDeliverOverdueSweepsShippedOrders(t *testing.T) {
	f := setupMarketTestWithConfig(t, config.OrderConfig{NoPrefix: "WM", AutoDeliverHours: 1})
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	product := f.createProduct(t, seller.ID, "300", "USD")
	order := f.createOrder(t, buyer.ID, product.ID)
	f.advance(t, order, constants.OrderStatusShipped)

	if err := f.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("shipped_at", time.Now().Add(-2*time.Hour)).Error; err != nil {
		t.Fatalf("backdate shipment failed: %v", err)
	}
	delivered, err := f.orders.AutoDeliverOverdue(context.Background(), 10)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("expected 1 delivered, got %d", delivered)
	}
}

func TestRandomWalksOnlyFollowEdges(t *testing.T) {
	f := setupMarketTestWithConfig(t, config.OrderConfig{NoPrefix: "WM", AllowCancelAfterShipment: true})
	seller := f.register(t, "seller", "")
	buyer := f.register(t, "buyer", "")
	rng := rand.New(rand.NewSource(20240501))

	for walk := 0; walk < 20; walk++ {
		product := f.createProduct(t, seller.ID, "120", "USD")
		order := f.createOrder(t, buyer.ID, product.ID)
		current := order
		for !IsTerminalOrderStatus(current.Status) {
			next := NextOrderStatuses(current.Status)
			target := next[rng.Intn(len(next))]
			roles := orderEdges[current.Status][target]
			actor := walkActor(roles[rng.Intn(len(roles))], order)
			result, err := f.transition(current, actor, target)
			if err != nil {
				t.Fatalf("walk %d: %s -> %s failed: %v", walk, current.Status, target, err)
			}
			current = result.Order
		}

		logs, err := f.orders.ListStatusLogs(UserActor(buyer.ID), order.ID)
		if err != nil {
			t.Fatalf("list logs failed: %v", err)
		}
		seen := map[string]bool{constants.OrderStatusPending: true}
		for _, log := range logs[1:] {
			if !IsOrderEdge(log.FromStatus, log.ToStatus) {
				t.Fatalf("walk %d used non-edge %s -> %s", walk, log.FromStatus, log.ToStatus)
			}
			if seen[log.ToStatus] {
				t.Fatalf("walk %d revisited %s", walk, log.ToStatus)
			}
			seen[log.ToStatus] = true
		}
		if uint(len(logs)-1) != current.Version {
			t.Fatalf("walk %d: version %d does not match %d transitions", walk, current.Version, len(logs)-1)
		}

		earnings := f.earningsOf(t, order.ID)
		if (current.Status == constants.OrderStatusCompleted) != (len(earnings) > 0) {
			t.Fatalf("walk %d: earnings only for completed orders, status=%s earnings=%d", walk, current.Status, len(earnings))
		}
	}
}

func walkActor(role string, order *models.Order) Actor {
	switch role {
	case constants.ActorRoleBuyer:
		return UserActor(order.BuyerID)
	case constants.ActorRoleSeller:
		return UserActor(order.SellerID)
	case constants.ActorRoleAdmin:
		return AdminActor(9, "ops")
	default:
		return SystemActor("walker")
	}
}
