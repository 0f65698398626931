package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type mockSettingRepo struct {
	store map[string]models.JSON
}

func newMockSettingRepo() *mockSettingRepo {
	return &mockSettingRepo{store: map[string]models.JSON{}}
}

func (m *mockSettingRepo) GetByKey(key string) (*models.Setting, error) {
	value, ok := m.store[key]
	if !ok {
		return nil, nil
	}
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

func (m *mockSettingRepo) Upsert(key string, value models.JSON) (*models.Setting, error) {
	m.store[key] = value
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

type marketFixture struct {
	db         *gorm.DB
	root       *models.User
	settings   *SettingService
	referrals  *ReferralService
	commission *CommissionService
	exchange   *ExchangeRateService
	products   *ProductService
	orders     *OrderService
	users      *UserService
}

func setupMarketTest(t *testing.T) *marketFixture {
	return setupMarketTestWithConfig(t, config.OrderConfig{NoPrefix: "WM", AutoDeliverHours: 240})
}

func setupMarketTestWithConfig(t *testing.T, orderCfg config.OrderConfig) *marketFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:market_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 单连接让并发事务串行执行
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

	settingSvc := NewSettingService(newMockSettingRepo(), CommissionDefaultSetting())
	userRepo := repository.NewUserRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	earningRepo := repository.NewEarningRepository(db)

	exchangeSvc := NewExchangeRateService(repository.NewExchangeRateRepository(db), "USD")
	referralSvc := NewReferralService(userRepo, referralRepo, settingSvc, root.ID)
	commissionSvc := NewCommissionService(orderRepo, userRepo, referralRepo, earningRepo, settingSvc, root.ID)
	productSvc := NewProductService(productRepo, userRepo, exchangeSvc, 7)
	orderSvc := NewOrderService(OrderServiceOptions{
		OrderRepo:         orderRepo,
		ProductRepo:       productRepo,
		UserRepo:          userRepo,
		ExchangeService:   exchangeSvc,
		CommissionService: commissionSvc,
		SettingService:    settingSvc,
		Config:            orderCfg,
	})

	return &marketFixture{
		db:         db,
		root:       root,
		settings:   settingSvc,
		referrals:  referralSvc,
		commission: commissionSvc,
		exchange:   exchangeSvc,
		products:   productSvc,
		orders:     orderSvc,
		users:      NewUserService(userRepo),
	}
}

func (f *marketFixture) register(t *testing.T, name, inviteCode string) *models.User {
	t.Helper()
	user, err := f.referrals.Register(RegisterInput{
		ExternalID:  "ext-" + name,
		DisplayName: name,
		InviteCode:  inviteCode,
	})
	if err != nil {
		t.Fatalf("register %s failed: %v", name, err)
	}
	return user
}

// chain 注册一条推荐链，返回值按注册顺序排列，第一个用户挂在根账户下
func (f *marketFixture) chain(t *testing.T, names ...string) []*models.User {
	t.Helper()
	users := make([]*models.User, 0, len(names))
	code := ""
	for _, name := range names {
		user := f.register(t, name, code)
		users = append(users, user)
		code = user.InviteCode
	}
	return users
}

func (f *marketFixture) createProduct(t *testing.T, sellerID uint, price string, currency string) *models.Product {
	t.Helper()
	product, err := f.products.Create(sellerID, CreateProductInput{
		Title:        "Vintage camera",
		PriceLocal:   decimal.RequireFromString(price),
		CurrencyCode: currency,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func (f *marketFixture) createOrder(t *testing.T, buyerID, productID uint) *models.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), CreateOrderInput{BuyerID: buyerID, ProductID: productID})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func (f *marketFixture) transition(order *models.Order, actor Actor, target string) (*TransitionResult, error) {
	input := TransitionInput{OrderID: order.ID, Actor: actor, Target: target}
	if target == constants.OrderStatusShipped {
		input.TrackingNumber = "TRK-001"
		input.ShippingProvider = "Kerry Express"
	}
	return f.orders.Transition(context.Background(), input)
}

// advance 按正常流程把订单推进到目标状态
func (f *marketFixture) advance(t *testing.T, order *models.Order, target string) *models.Order {
	t.Helper()
	steps := []struct {
		status string
		actor  Actor
	}{
		{constants.OrderStatusConfirmed, UserActor(order.SellerID)},
		{constants.OrderStatusPaid, UserActor(order.BuyerID)},
		{constants.OrderStatusPaymentVerified, UserActor(order.SellerID)},
		{constants.OrderStatusShipped, UserActor(order.SellerID)},
		{constants.OrderStatusDelivered, UserActor(order.BuyerID)},
		{constants.OrderStatusCompleted, UserActor(order.BuyerID)},
	}
	current := order
	for _, step := range steps {
		result, err := f.transition(current, step.actor, step.status)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", step.status, err)
		}
		current = result.Order
		if step.status == target {
			return current
		}
	}
	return current
}

func (f *marketFixture) reloadUser(t *testing.T, id uint) *models.User {
	t.Helper()
	var user models.User
	if err := f.db.First(&user, id).Error; err != nil {
		t.Fatalf("reload user failed: %v", err)
	}
	return &user
}

func (f *marketFixture) reloadOrder(t *testing.T, id uint) *models.Order {
	t.Helper()
	var order models.Order
	if err := f.db.First(&order, id).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	return &order
}

func (f *marketFixture) earningsOf(t *testing.T, orderID uint) []models.Earning {
	t.Helper()
	var earnings []models.Earning
	if err := f.db.Where("source_order_id = ?", orderID).Order("level asc, id asc").Find(&earnings).Error; err != nil {
		t.Fatalf("load earnings failed: %v", err)
	}
	return earnings
}
