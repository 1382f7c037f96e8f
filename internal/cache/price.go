package cache

import (
	"context"
	"fmt"
	"time"
)

const defaultPriceCacheTTL = 5 * time.Minute

// ProductPrice 商品价格缓存快照
type ProductPrice struct {
	ProductID uint   `json:"product_id"`
	SiteID    uint   `json:"site_id"`
	Amount    string `json:"amount"`
	CachedAt  int64  `json:"cached_at"`
}

func productPriceKey(productID, siteID uint) string {
	return fmt.Sprintf("price:product:%d:site:%d", productID, siteID)
}

// GetProductPrice 读取商品价格缓存
func GetProductPrice(ctx context.Context, productID, siteID uint) (*ProductPrice, bool, error) {
	var price ProductPrice
	hit, err := GetJSON(ctx, productPriceKey(productID, siteID), &price)
	if err != nil || !hit {
		return nil, false, err
	}
	return &price, true, nil
}

// SetProductPrice 写入商品价格缓存
func SetProductPrice(ctx context.Context, price ProductPrice, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultPriceCacheTTL
	}
	if price.CachedAt == 0 {
		price.CachedAt = time.Now().Unix()
	}
	return SetJSON(ctx, productPriceKey(price.ProductID, price.SiteID), price, ttl)
}

// DelProductPrice 删除商品价格缓存
func DelProductPrice(ctx context.Context, productID, siteID uint) error {
	return Del(ctx, productPriceKey(productID, siteID))
}
