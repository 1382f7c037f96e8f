package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/payment/sandbox"
	"github.com/couponslot-next/internal/repository"
)

// CardCharge 发往卡网关的扣款请求
type CardCharge struct {
	OrderID   uint
	PaymentID uint
	Amount    models.Money
	Card      models.CreditCard
	ZipPostal string
}

// CardChargeResult 卡网关返回
type CardChargeResult struct {
	Approved       bool
	TransactionRef string
	Reason         string
}

// CardProcessor 卡网关（线协议由具体实现负责）
type CardProcessor interface {
	Name() string
	Charge(ctx context.Context, charge CardCharge) (*CardChargeResult, error)
}

// SandboxProcessor 基于沙箱网关的 CardProcessor
type SandboxProcessor struct {
	cfg *sandbox.Config
}

// NewSandboxProcessor 创建沙箱网关
func NewSandboxProcessor(cfg *sandbox.Config) (*SandboxProcessor, error) {
	if err := sandbox.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &SandboxProcessor{cfg: cfg}, nil
}

// Name 网关名称
func (p *SandboxProcessor) Name() string {
	return "sandbox"
}

// Charge 执行扣款
func (p *SandboxProcessor) Charge(ctx context.Context, charge CardCharge) (*CardChargeResult, error) {
	result, err := sandbox.Charge(ctx, p.cfg, sandbox.ChargeInput{
		OrderID:    charge.OrderID,
		PaymentID:  charge.PaymentID,
		Amount:     charge.Amount.String(),
		CardToken:  charge.Card.VaultToken,
		Last4:      charge.Card.Last4,
		ExpMonth:   charge.Card.ExpMonth,
		ExpYear:    charge.Card.ExpYear,
		CardHolder: charge.Card.CardHolder,
		ZipPostal:  charge.ZipPostal,
	})
	if err != nil {
		return nil, err
	}
	return &CardChargeResult{
		Approved:       result.Approved(),
		TransactionRef: result.TransactionRef,
		Reason:         result.Reason,
	}, nil
}

// PaymentService 支付网关：每次扣款都会先落一条支付记录
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	processor   CardProcessor
	timeout     time.Duration
}

// NewPaymentService 创建支付服务
func NewPaymentService(paymentRepo repository.PaymentRepository, processor CardProcessor, timeout time.Duration) *PaymentService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PaymentService{
		paymentRepo: paymentRepo,
		processor:   processor,
		timeout:     timeout,
	}
}

// ProcessPayment 使用已保存的信用卡为订单扣款
// 拒付或网关错误返回 Validation 类错误，同时保留失败的支付记录
func (s *PaymentService) ProcessPayment(ctx context.Context, order *models.Order, amount models.Money, card *models.CreditCard, billing *models.BillingRecord) (*models.Payment, error) {
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if card == nil {
		return nil, ErrStoredCardNotFound
	}
	if billing == nil {
		return nil, ErrBillingRecordNotFound
	}

	cardID := card.ID
	payment := &models.Payment{
		OrderID:      order.ID,
		CreditCardID: &cardID,
		Method:       models.OrderMethodCard,
		Amount:       amount,
		Status:       models.PaymentStatusPending,
		Provider:     s.processor.Name(),
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, err
	}

	if inputErr := checkChargeInput(amount, card); inputErr != nil {
		payment.Status = models.PaymentStatusError
		payment.Reason = ReasonOf(inputErr)
		if err := s.paymentRepo.Update(payment); err != nil {
			logger.Errorw("payment_status_update_failed", "payment_id", payment.ID, "order_id", order.ID, "status", payment.Status, "error", err)
		}
		logger.Warnw("payment_rejected_before_charge",
			"payment_id", payment.ID,
			"order_id", order.ID,
			"amount", amount.String(),
			"reason", payment.Reason,
		)
		return payment, inputErr
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result, chargeErr := s.processor.Charge(chargeCtx, CardCharge{
		OrderID:   order.ID,
		PaymentID: payment.ID,
		Amount:    amount,
		Card:      *card,
		ZipPostal: billing.ZipPostal,
	})

	var outcome error
	switch {
	case chargeErr != nil:
		payment.Status = models.PaymentStatusError
		payment.Reason = chargeErr.Error()
		if errors.Is(chargeErr, context.DeadlineExceeded) {
			payment.Reason = "payment gateway timed out"
		}
		outcome = newValidationError("Payment could not be processed: %s", payment.Reason)
	case !result.Approved:
		payment.Status = models.PaymentStatusDeclined
		payment.TransactionRef = result.TransactionRef
		payment.Reason = result.Reason
		outcome = newValidationError("%s", result.Reason)
	default:
		payment.Status = models.PaymentStatusApproved
		payment.TransactionRef = result.TransactionRef
	}

	if err := s.paymentRepo.Update(payment); err != nil {
		logger.Errorw("payment_status_update_failed", "payment_id", payment.ID, "order_id", order.ID, "status", payment.Status, "error", err)
		if outcome == nil {
			outcome = err
		}
	}
	logger.Infow("payment_processed",
		"payment_id", payment.ID,
		"order_id", order.ID,
		"amount", amount.String(),
		"status", payment.Status,
		"provider", payment.Provider,
		"reason", payment.Reason,
	)
	return payment, outcome
}

func checkChargeInput(amount models.Money, card *models.CreditCard) error {
	if !amount.IsPositive() {
		return ErrPaymentAmount
	}
	if card.ExpMonth < 1 || card.ExpMonth > 12 || strings.TrimSpace(card.Last4) == "" {
		return ErrCardInvalid
	}
	return nil
}

// UpdatePayment 修改支付记录，已锁定的记录不可修改
func (s *PaymentService) UpdatePayment(payment *models.Payment) error {
	persisted, err := s.paymentRepo.GetByID(payment.ID)
	if err != nil {
		return err
	}
	if persisted == nil {
		return ErrPaymentNotFound
	}
	if persisted.IsLocked {
		return ErrPaymentLocked
	}
	return s.paymentRepo.Update(payment)
}

// LockPayment 锁定支付记录
func (s *PaymentService) LockPayment(paymentID uint) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.IsLocked {
		return payment, nil
	}
	payment.IsLocked = true
	if err := s.paymentRepo.Update(payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// ListPayments 订单支付记录
func (s *PaymentService) ListPayments(orderID uint) ([]models.Payment, error) {
	return s.paymentRepo.ListByOrderID(orderID)
}
