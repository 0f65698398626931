package provider

import (
	"time"

	"github.com/wldmarket/internal/authz"
	"github.com/wldmarket/internal/cache"
	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/queue"
	"github.com/wldmarket/internal/ratefeed"
	"github.com/wldmarket/internal/repository"
	"github.com/wldmarket/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	RateFeed    ratefeed.Feed
	RootUser    *models.User

	// Repositories
	AdminRepo        repository.AdminRepository
	UserRepo         repository.UserRepository
	ReferralRepo     repository.ReferralRepository
	OrderRepo        repository.OrderRepository
	ProductRepo      repository.ProductRepository
	EarningRepo      repository.EarningRepository
	ExchangeRateRepo repository.ExchangeRateRepository
	SettingRepo      repository.SettingRepository

	// Services
	AuthzService        *authz.Service
	AuthService         *service.AuthService
	IdentityService     *service.IdentityService
	SettingService      *service.SettingService
	ExchangeRateService *service.ExchangeRateService
	ReferralService     *service.ReferralService
	CommissionService   *service.CommissionService
	ProductService      *service.ProductService
	OrderService        *service.OrderService
	UserService         *service.UserService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	feed, err := ratefeed.New(ratefeed.Config{
		URL:         cfg.Exchange.FeedURL,
		Timeout:     time.Duration(cfg.Exchange.RequestTimeoutSeconds) * time.Second,
		StaticRates: cfg.Exchange.StaticRates,
	})
	if err != nil {
		logger.Warnw("provider_init_rate_feed_failed", "error", err)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		RateFeed:    feed,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.ReferralRepo = repository.NewReferralRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.EarningRepo = repository.NewEarningRepository(db)
	c.ExchangeRateRepo = repository.NewExchangeRateRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}
	if err := c.AuthzService.BootstrapOrderEdges(service.OrderEdgeRules()); err != nil {
		logger.Errorw("provider_bootstrap_order_edges_failed", "error", err)
		panic(err)
	}

	root, err := models.InitRootAccount(c.Config.Referral.RootUserID, c.Config.Referral.RootInviteCode)
	if err != nil {
		logger.Errorw("provider_init_root_account_failed", "root_user_id", c.Config.Referral.RootUserID, "error", err)
		panic(err)
	}
	c.RootUser = root

	c.AuthService = service.NewAuthService(c.Config.JWT, c.AdminRepo)
	c.IdentityService = service.NewIdentityService(c.Config.UserJWT)
	c.SettingService = service.NewSettingService(c.SettingRepo, service.CommissionSettingFromConfig(c.Config.Referral))
	if _, err := c.SettingService.GetCommissionSetting(); err != nil {
		logger.Warnw("provider_load_commission_setting_failed", "error", err)
	}

	c.ExchangeRateService = service.NewExchangeRateService(c.ExchangeRateRepo, c.Config.Exchange.SettlementCurrency)
	if c.Config.Exchange.PollIntervalSeconds > 0 {
		c.ExchangeRateService.WithLiveRateMaxAge(time.Duration(c.Config.Exchange.PollIntervalSeconds) * time.Second)
	}
	c.ReferralService = service.NewReferralService(c.UserRepo, c.ReferralRepo, c.SettingService, root.ID)
	c.CommissionService = service.NewCommissionService(c.OrderRepo, c.UserRepo, c.ReferralRepo, c.EarningRepo, c.SettingService, root.ID)
	c.ProductService = service.NewProductService(c.ProductRepo, c.UserRepo, c.ExchangeRateService, c.Config.Order.DefaultFeePercent)
	c.OrderService = service.NewOrderService(service.OrderServiceOptions{
		OrderRepo:         c.OrderRepo,
		ProductRepo:       c.ProductRepo,
		UserRepo:          c.UserRepo,
		ExchangeService:   c.ExchangeRateService,
		CommissionService: c.CommissionService,
		SettingService:    c.SettingService,
		Policy:            authz.NewOrderPolicy(c.AuthzService),
		QueueClient:       c.QueueClient,
		Config:            c.Config.Order,
	})
	c.UserService = service.NewUserService(c.UserRepo)
}
