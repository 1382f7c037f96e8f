package config

import (
	"fmt"
	"strings"

	"github.com/couponslot-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Slot     SlotConfig     `mapstructure:"slot"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Renewal  RenewalConfig  `mapstructure:"renewal"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Email    EmailConfig    `mapstructure:"email"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release

	ReadHeaderTimeoutSeconds int             `mapstructure:"read_header_timeout_seconds"`
	WriteRateLimit           RateLimitConfig `mapstructure:"write_rate_limit"` // 发布/购买/续费接口限流
}

// RateLimitConfig 接口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// LogConfig 日志配置
type LogConfig struct {
	Service    string `mapstructure:"service"`
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Service:    c.Service,
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置（价格缓存与发布锁）
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// SlotConfig 槽位配置
type SlotConfig struct {
	MaxChildren        int  `mapstructure:"max_children"`         // 每个家族最多子槽位数
	DefaultSiteID      uint `mapstructure:"default_site_id"`      // 默认站点（不允许挂槽位）
	PublishLockSeconds int  `mapstructure:"publish_lock_seconds"` // 发布锁过期时间
}

// PricingTier 传单阶梯单价
type PricingTier struct {
	UpTo     int    `mapstructure:"up_to"`     // 阶梯上限（0 表示无上限）
	UnitRate string `mapstructure:"unit_rate"` // 每单位价格
}

// PricingConfig 定价配置
type PricingConfig struct {
	FlyerTiers      []PricingTier `mapstructure:"flyer_tiers"`
	CacheTTLSeconds int           `mapstructure:"cache_ttl_seconds"`
}

// CheckoutConfig 下单配置
type CheckoutConfig struct {
	DuplicateWindowHours int `mapstructure:"duplicate_window_hours"` // 重复购买保护时间窗
}

// RenewalConfig 自动续费配置
type RenewalConfig struct {
	Enabled               bool     `mapstructure:"enabled"`
	Cron                  string   `mapstructure:"cron"`
	WindowDays            int      `mapstructure:"window_days"`
	GraceDays             int      `mapstructure:"grace_days"`
	LookbackHours         int      `mapstructure:"lookback_hours"`
	ReferralPromotionCode string   `mapstructure:"referral_promotion_code"`
	NotifyEmails          []string `mapstructure:"notify_emails"`
	BatchLockSeconds      int      `mapstructure:"batch_lock_seconds"`
}

// GatewayConfig 支付网关配置
type GatewayConfig struct {
	Provider       string   `mapstructure:"provider"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	DeclineLast4   []string `mapstructure:"decline_last4"`
	MaxAmount      string   `mapstructure:"max_amount"`
}

// EmailConfig 邮件服务配置
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	UseTLS   bool   `mapstructure:"use_tls"`
	UseSSL   bool   `mapstructure:"use_ssl"`
}

// SetDefaults 注册全部默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_header_timeout_seconds", 10)
	v.SetDefault("server.write_rate_limit.window_seconds", 60)
	v.SetDefault("server.write_rate_limit.max_requests", 30)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("log.service", "couponslot")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "couponslot.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/couponslot.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "cs")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("slot.max_children", 9)
	v.SetDefault("slot.default_site_id", 1)
	v.SetDefault("slot.publish_lock_seconds", 30)
	v.SetDefault("pricing.flyer_tiers", []map[string]interface{}{
		{"up_to": 1000, "unit_rate": "0.05"},
		{"up_to": 10000, "unit_rate": "0.03"},
		{"up_to": 0, "unit_rate": "0.01"},
	})
	v.SetDefault("pricing.cache_ttl_seconds", 300)
	v.SetDefault("checkout.duplicate_window_hours", 3)
	v.SetDefault("renewal.enabled", true)
	v.SetDefault("renewal.cron", "0 6 * * *")
	v.SetDefault("renewal.window_days", 3)
	v.SetDefault("renewal.grace_days", 1)
	v.SetDefault("renewal.lookback_hours", 24)
	v.SetDefault("renewal.referral_promotion_code", "zero")
	v.SetDefault("renewal.notify_emails", []string{})
	v.SetDefault("renewal.batch_lock_seconds", 1800)
	v.SetDefault("gateway.provider", "sandbox")
	v.SetDefault("gateway.timeout_seconds", 30)
	v.SetDefault("gateway.decline_last4", []string{"0002"})
	v.SetDefault("gateway.max_amount", "5000.00")
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.from_name", "")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
}

// Load 从 config.yml 加载配置
func Load() *Config {
	v := viper.GetViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")     // 从当前目录查找
	v.AddConfigPath("../")   // 如果从 cmd/server 运行
	v.AddConfigPath("./etc") // etc 文件夹

	SetDefaults(v)

	// 环境变量支持（例如 renewal.window_days -> RENEWAL_WINDOW_DAYS）
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	cfg, err := Unmarshal(v)
	if err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(err)
	}
	return cfg
}

// Unmarshal 解析并校验配置
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("配置解析失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验关键配置
func (c *Config) Validate() error {
	if c.Slot.MaxChildren <= 0 {
		return fmt.Errorf("slot.max_children must be positive")
	}
	if c.Renewal.WindowDays <= 0 {
		return fmt.Errorf("renewal.window_days must be positive")
	}
	if c.Renewal.GraceDays < 0 || c.Renewal.LookbackHours <= 0 {
		return fmt.Errorf("renewal.grace_days/lookback_hours out of range")
	}
	if len(c.Pricing.FlyerTiers) == 0 {
		return fmt.Errorf("pricing.flyer_tiers must not be empty")
	}
	return nil
}
