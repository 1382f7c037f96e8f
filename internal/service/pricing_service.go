package service

import (
	"context"
	"fmt"
	"time"

	"github.com/couponslot-next/internal/cache"
	"github.com/couponslot-next/internal/config"
	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/repository"

	"github.com/shopspring/decimal"
)

// PriceTier 传单阶梯：UpTo 为累计上限（0 表示无上限）
type PriceTier struct {
	UpTo     int
	UnitRate decimal.Decimal
}

// ParsePriceTiers 解析阶梯配置
func ParsePriceTiers(raw []config.PricingTier) ([]PriceTier, error) {
	tiers := make([]PriceTier, 0, len(raw))
	previous := 0
	for i, item := range raw {
		rate, err := decimal.NewFromString(item.UnitRate)
		if err != nil {
			return nil, newConfigurationError("pricing tier %d has invalid unit rate %q", i, item.UnitRate)
		}
		if item.UpTo != 0 && item.UpTo <= previous {
			return nil, newConfigurationError("pricing tier %d upper bound must increase", i)
		}
		if item.UpTo == 0 && i != len(raw)-1 {
			return nil, newConfigurationError("only the last pricing tier may be unbounded")
		}
		tiers = append(tiers, PriceTier{UpTo: item.UpTo, UnitRate: rate})
		previous = item.UpTo
	}
	return tiers, nil
}

// TieredAmount 按阶梯计算数量对应的费用
func TieredAmount(tiers []PriceTier, units int) decimal.Decimal {
	total := decimal.Zero
	lower := 0
	for _, tier := range tiers {
		if units <= lower {
			break
		}
		upper := units
		if tier.UpTo > 0 && tier.UpTo < upper {
			upper = tier.UpTo
		}
		total = total.Add(tier.UnitRate.Mul(decimal.NewFromInt(int64(upper - lower))))
		if tier.UpTo == 0 {
			break
		}
		lower = tier.UpTo
	}
	return total
}

// PricingService 商品定价
type PricingService struct {
	productRepo repository.ProductRepository
	siteRepo    repository.SiteRepository
	flyerTiers  []PriceTier
	cacheTTL    time.Duration
}

// NewPricingService 创建定价服务
func NewPricingService(productRepo repository.ProductRepository, siteRepo repository.SiteRepository, flyerTiers []PriceTier, cacheTTL time.Duration) *PricingService {
	return &PricingService{
		productRepo: productRepo,
		siteRepo:    siteRepo,
		flyerTiers:  flyerTiers,
		cacheTTL:    cacheTTL,
	}
}

// CalculateCurrentPrice 计算商品在站点上的当前价格
// flyer: 商品基础价 + 订阅用户阶梯费用
// slot_monthly: 商品基础价 + 站点基础价
// slot_annual: 商品基础价
func (s *PricingService) CalculateCurrentPrice(product *models.Product, site *models.Site, consumerCount int) (models.Money, error) {
	if product == nil {
		return models.Money{}, ErrProductNotFound
	}
	price := product.BaseRate.Decimal
	switch product.Code {
	case models.ProductCodeFlyer:
		price = price.Add(TieredAmount(s.flyerTiers, consumerCount))
	case models.ProductCodeSlotMonthly:
		if site == nil {
			return models.Money{}, ErrSiteNotFound
		}
		price = price.Add(site.BaseRate.Decimal)
	case models.ProductCodeSlotAnnual:
	default:
		return models.Money{}, newConfigurationError("product %q has no pricing rule", product.Code)
	}
	return models.NewMoneyFromDecimal(price), nil
}

// GetProductPrice 获取商品在站点上的价格，优先读取缓存
func (s *PricingService) GetProductPrice(ctx context.Context, productID uint, siteID uint) (models.Money, error) {
	if cached, hit, err := cache.GetProductPrice(ctx, productID, siteID); err != nil {
		logger.Warnw("product_price_cache_get_failed", "product_id", productID, "site_id", siteID, "error", err)
	} else if hit {
		if amount, parseErr := models.NewMoneyFromString(cached.Amount); parseErr == nil {
			return amount, nil
		}
	}

	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return models.Money{}, err
	}
	if product == nil {
		return models.Money{}, ErrProductNotFound
	}
	site, err := s.siteRepo.GetByID(siteID)
	if err != nil {
		return models.Money{}, err
	}
	if site == nil {
		return models.Money{}, ErrSiteNotFound
	}
	price, err := s.CalculateCurrentPrice(product, site, site.ConsumerCount)
	if err != nil {
		return models.Money{}, err
	}

	if err := cache.SetProductPrice(ctx, cache.ProductPrice{
		ProductID: productID,
		SiteID:    siteID,
		Amount:    price.String(),
	}, s.cacheTTL); err != nil {
		logger.Warnw("product_price_cache_set_failed", "product_id", productID, "site_id", siteID, "error", err)
	}
	return price, nil
}

// InvalidateProductPrice 站点或商品价格变动后清理缓存
func (s *PricingService) InvalidateProductPrice(ctx context.Context, productID, siteID uint) error {
	if err := cache.DelProductPrice(ctx, productID, siteID); err != nil {
		return fmt.Errorf("invalidate product price: %w", err)
	}
	return nil
}

// GetProductByCode 根据编码获取商品
func (s *PricingService) GetProductByCode(code string) (*models.Product, error) {
	product, err := s.productRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}
