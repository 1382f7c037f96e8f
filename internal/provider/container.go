package provider

import (
	"strings"
	"time"

	"github.com/couponslot-next/internal/cache"
	"github.com/couponslot-next/internal/config"
	"github.com/couponslot-next/internal/constants"
	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/payment/sandbox"
	"github.com/couponslot-next/internal/queue"
	"github.com/couponslot-next/internal/repository"
	"github.com/couponslot-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	SiteRepo          repository.SiteRepository
	BusinessRepo      repository.BusinessRepository
	CouponRepo        repository.CouponRepository
	ProductRepo       repository.ProductRepository
	SlotRepo          repository.SlotRepository
	SlotTimeFrameRepo repository.SlotTimeFrameRepository
	OrderRepo         repository.OrderRepository
	PaymentRepo       repository.PaymentRepository
	PromotionRepo     repository.PromotionRepository
	ReferralRepo      repository.ReferralRepository

	// Services
	EmailService          *service.EmailService
	NotificationService   *service.NotificationService
	PricingService        *service.PricingService
	SlotService           *service.SlotService
	TimeFrameService      *service.TimeFrameService
	SlotAllocatorService  *service.SlotAllocatorService
	PublishService        *service.PublishService
	PromotionValidator    *service.PromotionValidator
	PromotionAdminService *service.PromotionAdminService
	OrderLedgerService    *service.OrderLedgerService
	PaymentService        *service.PaymentService
	CheckoutService       *service.CheckoutService
	RenewalService        *service.RenewalService
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

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.SiteRepo = repository.NewSiteRepository(db)
	c.BusinessRepo = repository.NewBusinessRepository(db)
	c.CouponRepo = repository.NewCouponRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.SlotRepo = repository.NewSlotRepository(db)
	c.SlotTimeFrameRepo = repository.NewSlotTimeFrameRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.PromotionRepo = repository.NewPromotionRepository(db)
	c.ReferralRepo = repository.NewReferralRepository(db)
}

func (c *Container) initServices() {
	tiers, err := service.ParsePriceTiers(c.Config.Pricing.FlyerTiers)
	if err != nil {
		logger.Errorw("provider_parse_price_tiers_failed", "error", err)
		panic(err)
	}
	processor, err := newCardProcessor(c.Config.Gateway)
	if err != nil {
		logger.Errorw("provider_init_gateway_failed", "provider", c.Config.Gateway.Provider, "error", err)
		panic(err)
	}

	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.NotificationService = service.NewNotificationService(c.EmailService, c.QueueClient, c.SiteRepo, c.Config.Renewal.NotifyEmails)
	c.PricingService = service.NewPricingService(c.ProductRepo, c.SiteRepo, tiers, time.Duration(c.Config.Pricing.CacheTTLSeconds)*time.Second)
	c.SlotService = service.NewSlotService(c.SlotRepo, c.Config.Slot.DefaultSiteID)
	c.TimeFrameService = service.NewTimeFrameService(c.SlotTimeFrameRepo)
	c.SlotAllocatorService = service.NewSlotAllocatorService(c.SlotRepo, c.SlotTimeFrameRepo, c.Config.Slot.MaxChildren)
	c.PublishService = service.NewPublishService(c.SlotService, c.TimeFrameService, c.Config.Slot.MaxChildren)
	c.PromotionValidator = service.NewPromotionValidator(c.PromotionRepo, c.OrderRepo, c.BusinessRepo)
	c.PromotionAdminService = service.NewPromotionAdminService(c.PromotionRepo, c.ProductRepo, c.OrderRepo, c.PromotionValidator)
	c.OrderLedgerService = service.NewOrderLedgerService(c.OrderRepo, c.PromotionRepo, c.PaymentRepo, c.PricingService, c.PromotionValidator)
	c.PaymentService = service.NewPaymentService(c.PaymentRepo, processor, time.Duration(c.Config.Gateway.TimeoutSeconds)*time.Second)
	c.CheckoutService = service.NewCheckoutService(service.CheckoutOptions{
		PublishLockTTL:  time.Duration(c.Config.Slot.PublishLockSeconds) * time.Second,
		DuplicateWindow: time.Duration(c.Config.Checkout.DuplicateWindowHours) * time.Hour,
	}, service.CheckoutDeps{
		BusinessRepo:  c.BusinessRepo,
		CouponRepo:    c.CouponRepo,
		SlotRepo:      c.SlotRepo,
		SiteRepo:      c.SiteRepo,
		OrderRepo:     c.OrderRepo,
		PaymentRepo:   c.PaymentRepo,
		PromotionRepo: c.PromotionRepo,
		Allocator:     c.SlotAllocatorService,
		Publisher:     c.PublishService,
		SlotService:   c.SlotService,
		Pricing:       c.PricingService,
		Ledger:        c.OrderLedgerService,
		Payments:      c.PaymentService,
	})
	c.RenewalService = service.NewRenewalService(service.RenewalOptions{
		DefaultSiteID:         c.Config.Slot.DefaultSiteID,
		WindowDays:            c.Config.Renewal.WindowDays,
		GraceDays:             c.Config.Renewal.GraceDays,
		Lookback:              time.Duration(c.Config.Renewal.LookbackHours) * time.Hour,
		ReferralPromotionCode: c.Config.Renewal.ReferralPromotionCode,
		BatchLockTTL:          time.Duration(c.Config.Renewal.BatchLockSeconds) * time.Second,
	},
		c.SiteRepo,
		c.SlotRepo,
		c.PaymentRepo,
		c.BusinessRepo,
		c.ProductRepo,
		c.ReferralRepo,
		c.OrderLedgerService,
		c.PaymentService,
		c.SlotService,
		c.NotificationService,
	)
}

func newCardProcessor(cfg config.GatewayConfig) (service.CardProcessor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", constants.GatewayProviderSandbox:
		return service.NewSandboxProcessor(&sandbox.Config{
			DeclineLast4: cfg.DeclineLast4,
			MaxAmount:    cfg.MaxAmount,
		})
	default:
		return nil, sandbox.ErrConfigInvalid
	}
}
