package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid = errors.New("sandbox config invalid")
	ErrInputInvalid  = errors.New("sandbox charge input invalid")
)

// 交易结果
const (
	StatusApproved = "approved"
	StatusDeclined = "declined"
)

const defaultMaxAmount = "5000.00"

// Config 沙箱网关配置
type Config struct {
	DeclineLast4 []string      `json:"decline_last4"`
	MaxAmount    string        `json:"max_amount"`
	Latency      time.Duration `json:"-"`
}

func (c *Config) normalize() {
	cleaned := make([]string, 0, len(c.DeclineLast4))
	for _, last4 := range c.DeclineLast4 {
		if trimmed := strings.TrimSpace(last4); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	c.DeclineLast4 = cleaned
	if strings.TrimSpace(c.MaxAmount) == "" {
		c.MaxAmount = defaultMaxAmount
	}
}

// ValidateConfig 校验配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	cfg.normalize()
	limit, err := decimal.NewFromString(cfg.MaxAmount)
	if err != nil || !limit.IsPositive() {
		return fmt.Errorf("%w: max_amount must be a positive amount", ErrConfigInvalid)
	}
	return nil
}

// ChargeInput 卡支付请求
type ChargeInput struct {
	OrderID    uint
	PaymentID  uint
	Amount     string
	CardToken  string
	Last4      string
	ExpMonth   int
	ExpYear    int
	CardHolder string
	ZipPostal  string
}

// ChargeResult 卡支付结果
type ChargeResult struct {
	Status         string
	TransactionRef string
	Reason         string
	ProcessedAt    time.Time
}

// Approved 是否批准
func (r *ChargeResult) Approved() bool {
	return r != nil && r.Status == StatusApproved
}

// Charge 同步执行一次扣款，拒付通过 ChargeResult 返回，传输错误通过 error 返回
func Charge(ctx context.Context, cfg *Config, input ChargeInput) (*ChargeResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(input.Amount))
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInputInvalid)
	}
	if strings.TrimSpace(input.CardToken) == "" && len(strings.TrimSpace(input.Last4)) != 4 {
		return nil, fmt.Errorf("%w: card token or last4 is required", ErrInputInvalid)
	}

	if cfg.Latency > 0 {
		timer := time.NewTimer(cfg.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ChargeResult{
		TransactionRef: uuid.NewString(),
		ProcessedAt:    time.Now(),
	}
	limit, _ := decimal.NewFromString(cfg.MaxAmount)
	switch {
	case isDeclinedCard(cfg, input.Last4):
		result.Status = StatusDeclined
		result.Reason = "This transaction has been declined."
	case amount.GreaterThan(limit):
		result.Status = StatusDeclined
		result.Reason = fmt.Sprintf("Amount %s exceeds the card limit.", amount.StringFixed(2))
	case isExpired(input.ExpMonth, input.ExpYear, result.ProcessedAt):
		result.Status = StatusDeclined
		result.Reason = "The credit card has expired."
	default:
		result.Status = StatusApproved
	}
	return result, nil
}

func isDeclinedCard(cfg *Config, last4 string) bool {
	trimmed := strings.TrimSpace(last4)
	for _, declined := range cfg.DeclineLast4 {
		if declined == trimmed {
			return true
		}
	}
	return false
}

// isExpired 卡片在到期月最后一天之后视为过期
func isExpired(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return true
	}
	if year < 100 {
		year += 2000
	}
	firstAfter := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.UTC().Before(firstAfter)
}
