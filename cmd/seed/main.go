package main

import (
	"context"
	"os"
	"time"

	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/provider"
	"github.com/wldmarket/internal/service"

	"github.com/shopspring/decimal"
)

type seedUser struct {
	ExternalID  string
	DisplayName string
	Inviter     string
}

type seedProduct struct {
	Seller      string
	Title       string
	Description string
	Price       string
	Currency    string
	ShippingFee string
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 种子数据同步写入，不经过队列
	cfg.Queue.Enabled = false
	c := provider.NewContainer(cfg)
	ctx := context.Background()

	if password := os.Getenv("WM_DEFAULT_ADMIN_PASSWORD"); password != "" {
		if _, _, err := c.AuthService.EnsureSuperAdmin("admin", password); err != nil {
			stdLog.Fatalf("Failed to create admin: %v", err)
		}
	}

	// 演示汇率
	if _, err := c.ExchangeRateService.UpdateLiveRates(ctx, "seed", map[string]decimal.Decimal{
		"THB": decimal.RequireFromString("0.0285"),
		"EUR": decimal.RequireFromString("1.08"),
		"JPY": decimal.RequireFromString("0.0067"),
	}, time.Now()); err != nil {
		stdLog.Fatalf("Failed to seed exchange rates: %v", err)
	}

	// 推荐链：alice <- bob <- carol <- dave，erin 直接挂在平台根账户下
	users := []seedUser{
		{ExternalID: "demo-alice", DisplayName: "Alice"},
		{ExternalID: "demo-bob", DisplayName: "Bob", Inviter: "demo-alice"},
		{ExternalID: "demo-carol", DisplayName: "Carol", Inviter: "demo-bob"},
		{ExternalID: "demo-dave", DisplayName: "Dave", Inviter: "demo-carol"},
		{ExternalID: "demo-erin", DisplayName: "Erin"},
	}
	registered := make(map[string]*models.User, len(users))
	for _, item := range users {
		input := service.RegisterInput{ExternalID: item.ExternalID, DisplayName: item.DisplayName}
		if inviter, ok := registered[item.Inviter]; ok {
			input.InviteCode = inviter.InviteCode
		}
		user, err := c.ReferralService.Register(input)
		if err != nil {
			stdLog.Fatalf("Failed to register %s: %v", item.ExternalID, err)
		}
		registered[item.ExternalID] = user
	}

	products := []seedProduct{
		{Seller: "demo-dave", Title: "Vintage film camera", Description: "Fully working, with leather case", Price: "4500", Currency: "THB", ShippingFee: "120"},
		{Seller: "demo-dave", Title: "Mechanical keyboard", Description: "Brown switches", Price: "85", Currency: "EUR"},
		{Seller: "demo-carol", Title: "Handmade ceramic mug", Price: "25", Currency: "USD", ShippingFee: "5"},
		{Seller: "demo-erin", Title: "Manga box set", Description: "Volumes 1-20", Price: "12000", Currency: "JPY"},
	}
	created := make([]*models.Product, 0, len(products))
	for _, item := range products {
		input := service.CreateProductInput{
			Title:        item.Title,
			Description:  item.Description,
			PriceLocal:   decimal.RequireFromString(item.Price),
			CurrencyCode: item.Currency,
		}
		if item.ShippingFee != "" {
			input.ShippingFee = decimal.RequireFromString(item.ShippingFee)
		}
		product, err := c.ProductService.Create(registered[item.Seller].ID, input)
		if err != nil {
			stdLog.Fatalf("Failed to create product %s: %v", item.Title, err)
		}
		created = append(created, product)
	}

	// 一笔走完全流程的订单，完成时触发分佣结算
	buyer := registered["demo-erin"]
	seller := registered["demo-dave"]
	order, err := c.OrderService.CreateOrder(ctx, service.CreateOrderInput{BuyerID: buyer.ID, ProductID: created[0].ID})
	if err != nil {
		stdLog.Fatalf("Failed to create order: %v", err)
	}
	steps := []struct {
		Target string
		Actor  service.Actor
	}{
		{Target: constants.OrderStatusConfirmed, Actor: service.UserActor(seller.ID)},
		{Target: constants.OrderStatusPaid, Actor: service.UserActor(buyer.ID)},
		{Target: constants.OrderStatusPaymentVerified, Actor: service.UserActor(seller.ID)},
		{Target: constants.OrderStatusShipped, Actor: service.UserActor(seller.ID)},
		{Target: constants.OrderStatusDelivered, Actor: service.UserActor(buyer.ID)},
		{Target: constants.OrderStatusCompleted, Actor: service.UserActor(buyer.ID)},
	}
	for _, step := range steps {
		if _, err := c.OrderService.Transition(ctx, service.TransitionInput{
			OrderID:          order.ID,
			Actor:            step.Actor,
			Target:           step.Target,
			TrackingNumber:   "TH123456789",
			ShippingProvider: "Thailand Post",
			Note:             "seed",
		}); err != nil {
			stdLog.Fatalf("Failed to move order to %s: %v", step.Target, err)
		}
	}

	// 一笔待确认的订单
	if _, err := c.OrderService.CreateOrder(ctx, service.CreateOrderInput{BuyerID: registered["demo-alice"].ID, ProductID: created[2].ID}); err != nil {
		stdLog.Fatalf("Failed to create pending order: %v", err)
	}

	earnings, err := c.CommissionService.ListOrderEarnings(order.ID)
	if err != nil {
		stdLog.Fatalf("Failed to load earnings: %v", err)
	}
	stdLog.Printf("Seed data created: %d users, %d products, order %s settled into %d earnings",
		len(registered), len(created), order.OrderNo, len(earnings))
}
