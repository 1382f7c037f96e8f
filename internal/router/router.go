package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couponslot-next/internal/cache"
	"github.com/couponslot-next/internal/config"
	adminhandlers "github.com/couponslot-next/internal/http/handlers/admin"
	"github.com/couponslot-next/internal/http/response"
	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "cs"
	}
	redisClient := cache.Client()
	writeRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_write", redisPrefix),
		WindowSeconds: cfg.Server.WriteRateLimit.WindowSeconds,
		MaxRequests:   cfg.Server.WriteRateLimit.MaxRequests,
	}
	writeLimit := RateLimitMiddleware(redisClient, writeRule, KeyByIPAndPath)
	codeRule := writeRule
	codeRule.Prefix = fmt.Sprintf("%s:rate:promotion_code", redisPrefix)
	codeLimit := RateLimitMiddleware(redisClient, codeRule, KeyByIPAndJSONField("code"))

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", healthCheck)

	apiV1 := r.Group("/api/v1")
	admin := apiV1.Group("/admin")
	{
		// 槽位
		admin.GET("/businesses/:id/slot-allocation", adminHandler.GetSlotAllocation)
		admin.POST("/businesses/:id/coupons/:coupon_id/publish", writeLimit, adminHandler.PublishCoupon)
		admin.POST("/businesses/:id/slots/purchase", writeLimit, adminHandler.PurchaseSlot)

		// 订单与支付
		admin.GET("/orders", adminHandler.AdminListOrders)
		admin.GET("/orders/:id", adminHandler.AdminGetOrder)
		admin.DELETE("/orders/:id", adminHandler.AdminDeleteOrder)
		admin.POST("/orders/:id/promotion-code", codeLimit, adminHandler.AdminApplyPromotionCode)
		admin.POST("/orders/:id/lock", adminHandler.AdminLockOrder)
		admin.POST("/payments/:id/lock", adminHandler.AdminLockPayment)

		// 促销
		admin.POST("/promotions", adminHandler.CreatePromotion)
		admin.PUT("/promotions/:id", adminHandler.UpdatePromotion)
		admin.POST("/promotions/:id/codes", adminHandler.CreatePromotionCode)
		admin.POST("/promotions/preapproval", codeLimit, adminHandler.CheckPromotionPreapproval)
		admin.DELETE("/promotion-codes/:id", adminHandler.DeletePromotionCode)

		// 续费
		admin.POST("/renewals/run", writeLimit, adminHandler.RunRenewals)
	}

	return r
}

// healthCheck 数据库与缓存探活
func healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := gin.H{"database": "ok", "redis": "disabled"}
	if models.DB == nil {
		response.Error(c, response.CodeInternal, "database not initialized")
		return
	}
	sqlDB, err := models.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		logger.Warnw("healthz_database_ping_failed", "error", err)
		response.Error(c, response.CodeInternal, "database unavailable")
		return
	}
	if cache.Enabled() {
		if err := cache.Ping(ctx); err != nil {
			logger.Warnw("healthz_redis_ping_failed", "error", err)
			status["redis"] = "unavailable"
		} else {
			status["redis"] = "ok"
		}
	}
	response.Success(c, status)
}
