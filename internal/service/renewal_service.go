package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/couponslot-next/internal/cache"
	"github.com/couponslot-next/internal/constants"
	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/repository"

	"github.com/shopspring/decimal"
)

// RenewalOptions 自动续费批处理参数
type RenewalOptions struct {
	DefaultSiteID         uint
	WindowDays            int
	GraceDays             int
	Lookback              time.Duration
	ReferralPromotionCode string
	BatchLockTTL          time.Duration
}

// ErrRenewalBatchRunning 已有批处理在执行
var ErrRenewalBatchRunning = &DomainError{Kind: ErrValidation, Reason: "a renewal batch is already running"}

// RenewalOutcome 单个槽位的续费结果
type RenewalOutcome struct {
	SlotID     uint         `json:"slot_id"`
	SiteID     uint         `json:"site_id"`
	BusinessID uint         `json:"business_id"`
	OrderID    uint         `json:"order_id"`
	PaymentID  uint         `json:"payment_id"`
	Amount     models.Money `json:"amount"`
	Status     string       `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	EndDate    time.Time    `json:"end_date"`
	AdRepID    *uint        `json:"ad_rep_id,omitempty"`
}

// RenewalSkip 未进入扣款流程的候选槽位
type RenewalSkip struct {
	SlotID     uint   `json:"slot_id"`
	SiteID     uint   `json:"site_id"`
	BusinessID uint   `json:"business_id"`
	Reason     string `json:"reason"`
}

// BatchResult 自动续费批处理汇总
type BatchResult struct {
	Good         []RenewalOutcome `json:"good"`
	Bad          []RenewalOutcome `json:"bad"`
	Skipped      []RenewalSkip    `json:"skipped"`
	TotalCharged models.Money     `json:"total_charged"`
}

// errRenewalSkipped 候选槽位缺少卡片或账单信息
type errRenewalSkipped struct {
	cause error
}

func (e *errRenewalSkipped) Error() string {
	return ReasonOf(e.cause)
}

func (e *errRenewalSkipped) Unwrap() error {
	return e.cause
}

// RenewalService 到期槽位自动续费
type RenewalService struct {
	opts          RenewalOptions
	siteRepo      repository.SiteRepository
	slotRepo      repository.SlotRepository
	paymentRepo   repository.PaymentRepository
	businessRepo  repository.BusinessRepository
	productRepo   repository.ProductRepository
	referralRepo  repository.ReferralRepository
	ledger        *OrderLedgerService
	payments      *PaymentService
	slotService   *SlotService
	notifications *NotificationService

	// 同进程内串行；跨进程由 redis 锁保证
	running sync.Mutex
}

// NewRenewalService 创建自动续费服务
func NewRenewalService(
	opts RenewalOptions,
	siteRepo repository.SiteRepository,
	slotRepo repository.SlotRepository,
	paymentRepo repository.PaymentRepository,
	businessRepo repository.BusinessRepository,
	productRepo repository.ProductRepository,
	referralRepo repository.ReferralRepository,
	ledger *OrderLedgerService,
	payments *PaymentService,
	slotService *SlotService,
	notifications *NotificationService,
) *RenewalService {
	if opts.WindowDays <= 0 {
		opts.WindowDays = 3
	}
	if opts.GraceDays < 0 {
		opts.GraceDays = 1
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if opts.BatchLockTTL <= 0 {
		opts.BatchLockTTL = 30 * time.Minute
	}
	return &RenewalService{
		opts:          opts,
		siteRepo:      siteRepo,
		slotRepo:      slotRepo,
		paymentRepo:   paymentRepo,
		businessRepo:  businessRepo,
		productRepo:   productRepo,
		referralRepo:  referralRepo,
		ledger:        ledger,
		payments:      payments,
		slotService:   slotService,
		notifications: notifications,
	}
}

// RunBatch 遍历非默认站点续费即将到期的槽位，单个槽位失败不影响其他槽位
func (s *RenewalService) RunBatch(ctx context.Context, now time.Time) (*BatchResult, error) {
	if !s.running.TryLock() {
		logger.Warnw("renewal_batch_already_running", "run_at", now.Format(time.RFC3339))
		return nil, ErrRenewalBatchRunning
	}
	defer s.running.Unlock()
	lock, err := cache.AcquireLock(ctx, cache.RenewalBatchLockKey, s.opts.BatchLockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockNotAcquired) {
			logger.Warnw("renewal_batch_locked_elsewhere", "run_at", now.Format(time.RFC3339))
			return nil, ErrRenewalBatchRunning
		}
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warnw("renewal_batch_lock_release_failed", "error", err)
		}
	}()

	result := &BatchResult{TotalCharged: models.ZeroMoney()}
	logger.Infow("renewal_batch_started", "run_at", now.Format(time.RFC3339))

	sites, err := s.siteRepo.ListActiveExcept(s.opts.DefaultSiteID)
	if err != nil {
		return nil, err
	}
	product, err := s.productRepo.GetByCode(models.ProductCodeSlotMonthly)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, newConfigurationError("product %q is not configured", models.ProductCodeSlotMonthly)
	}

	for i := range sites {
		if err := ctx.Err(); err != nil {
			logger.Warnw("renewal_batch_interrupted", "site_id", sites[i].ID, "error", err)
			break
		}
		if err := s.renewSite(ctx, now, &sites[i], product, result); err != nil {
			logger.Errorw("renewal_site_failed", "site_id", sites[i].ID, "error", err)
		}
	}

	total := decimal.Zero
	for _, good := range result.Good {
		total = total.Add(good.Amount.Decimal)
	}
	result.TotalCharged = models.NewMoneyFromDecimal(total)

	s.notify(ctx, now, result)
	logger.Infow("renewal_batch_finished",
		"approved", len(result.Good),
		"not_approved", len(result.Bad),
		"skipped", len(result.Skipped),
		"total_charged", result.TotalCharged.String(),
	)
	return result, nil
}

// RenewalCandidates 列出站点当前满足续费条件的槽位
func (s *RenewalService) RenewalCandidates(siteID uint, now time.Time) ([]models.Slot, error) {
	today := models.DateOf(now)
	renewed, err := s.paymentRepo.ListSlotIDsPaidSince(now.Add(-s.opts.Lookback), []string{
		models.ProductCodeSlotMonthly,
		models.ProductCodeSlotAnnual,
	})
	if err != nil {
		return nil, err
	}
	return s.slotRepo.ListRenewalCandidates(repository.RenewalCandidateFilter{
		SiteID:     siteID,
		EndBefore:  today.AddDate(0, 0, s.opts.WindowDays),
		EndAfter:   today.AddDate(0, 0, -s.opts.GraceDays),
		ExcludeIDs: renewed,
	})
}

func (s *RenewalService) renewSite(ctx context.Context, now time.Time, site *models.Site, product *models.Product, result *BatchResult) error {
	slots, err := s.RenewalCandidates(site.ID, now)
	if err != nil {
		return err
	}
	logger.Infow("renewal_site_candidates", "site_id", site.ID, "site_name", site.Name, "count", len(slots))

	for i := range slots {
		slot := slots[i]
		outcome, err := s.renewSlotIsolated(ctx, now, site, product, &slot)
		var skipped *errRenewalSkipped
		switch {
		case errors.As(err, &skipped):
			logger.Warnw("renewal_slot_skipped", "slot_id", slot.ID, "business_id", slot.BusinessID, "reason", skipped.Error())
			result.Skipped = append(result.Skipped, RenewalSkip{
				SlotID:     slot.ID,
				SiteID:     site.ID,
				BusinessID: slot.BusinessID,
				Reason:     skipped.Error(),
			})
		case outcome != nil && outcome.Status == models.PaymentStatusApproved:
			result.Good = append(result.Good, *outcome)
		case outcome != nil:
			result.Bad = append(result.Bad, *outcome)
		case err != nil:
			logger.Errorw("renewal_slot_failed", "slot_id", slot.ID, "business_id", slot.BusinessID, "error", err)
			result.Bad = append(result.Bad, RenewalOutcome{
				SlotID:     slot.ID,
				SiteID:     site.ID,
				BusinessID: slot.BusinessID,
				Status:     models.PaymentStatusError,
				Reason:     ReasonOf(err),
				EndDate:    slot.EndDate,
			})
		}
	}
	return nil
}

func (s *RenewalService) renewSlotIsolated(ctx context.Context, now time.Time, site *models.Site, product *models.Product, slot *models.Slot) (outcome *RenewalOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("renewal_slot_panic", "slot_id", slot.ID, "panic", r)
			outcome = nil
			err = fmt.Errorf("renewal of slot %d panicked: %v", slot.ID, r)
		}
	}()
	return s.RenewSlot(ctx, now, site, product, slot)
}

// RenewSlot 为单个槽位创建续费订单并扣款，成功后延长结束日期
func (s *RenewalService) RenewSlot(ctx context.Context, now time.Time, site *models.Site, product *models.Product, slot *models.Slot) (*RenewalOutcome, error) {
	if !slot.IsAutorenew {
		return nil, ErrSlotNotAutorenew
	}
	if !slot.HasRenewalRate() {
		return nil, ErrSlotNoRenewalRate
	}
	card, err := s.businessRepo.GetStoredCard(slot.BusinessID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, &errRenewalSkipped{cause: ErrStoredCardNotFound}
	}
	billing, err := s.businessRepo.GetBillingRecordByBusiness(slot.BusinessID)
	if err != nil {
		return nil, err
	}
	if billing == nil {
		return nil, &errRenewalSkipped{cause: ErrBillingRecordNotFound}
	}

	// 仅修正内存中的卡片年份，不回写
	today := models.DateOf(now)
	if today.After(card.ExpiresOn()) {
		card.ExpYear++
		logger.Debugw("renewal_card_year_bumped", "slot_id", slot.ID, "card_id", card.ID, "exp_year", card.ExpYear)
	}

	serviceStart := models.DateOf(slot.EndDate).AddDate(0, 0, 1)
	serviceEnd := slot.CalculateNextEndDate()

	order, err := s.ledger.CreateOrder(CreateOrderInput{
		BillingRecordID: billing.ID,
		Method:          models.OrderMethodCard,
	})
	if err != nil {
		return nil, err
	}
	amount := *slot.RenewalRate
	if _, err := s.ledger.AddItem(ctx, order.ID, NewOrderItemInput{
		ProductID:   product.ID,
		BusinessID:  slot.BusinessID,
		SiteID:      site.ID,
		ItemType:    models.OrderItemTypeSlot,
		ItemID:      slot.ID,
		Units:       1,
		Description: renewalDescription(product, site, serviceStart, serviceEnd, slot.StartDate),
		Amount:      &amount,
		StartDate:   &serviceStart,
		EndDate:     &serviceEnd,
	}); err != nil {
		return nil, err
	}
	order, err = s.ledger.GetOrder(order.ID)
	if err != nil {
		return nil, err
	}

	outcome := &RenewalOutcome{
		SlotID:     slot.ID,
		SiteID:     site.ID,
		BusinessID: slot.BusinessID,
		OrderID:    order.ID,
		Amount:     order.Total,
		EndDate:    slot.EndDate,
	}
	payment, payErr := s.payments.ProcessPayment(ctx, order, order.Total, card, billing)
	if payment == nil {
		return nil, payErr
	}
	outcome.PaymentID = payment.ID
	outcome.Status = payment.Status
	if payErr != nil {
		outcome.Reason = ReasonOf(payErr)
		logger.Warnw("renewal_slot_not_approved",
			"slot_id", slot.ID,
			"order_id", order.ID,
			"payment_id", payment.ID,
			"status", payment.Status,
			"reason", outcome.Reason,
		)
		return outcome, nil
	}

	outcome.AdRepID = s.linkReferral(order, billing)

	slot.EndDate = serviceEnd
	slot.Children = nil
	if err := s.slotService.SaveSlot(nil, slot); err != nil {
		// 已扣款但未延期，需要人工对账
		logger.Errorw("renewal_slot_extend_failed",
			"slot_id", slot.ID,
			"order_id", order.ID,
			"payment_id", payment.ID,
			"end_date", formatDate(serviceEnd),
			"error", err,
		)
		return outcome, nil
	}
	outcome.EndDate = serviceEnd
	logger.Infow("renewal_slot_approved",
		"slot_id", slot.ID,
		"order_id", order.ID,
		"payment_id", payment.ID,
		"amount", order.Total.String(),
		"end_date", formatDate(serviceEnd),
	)
	return outcome, nil
}

// linkReferral 广告主存在销售代表时记录推荐订单并挂载归因优惠码
func (s *RenewalService) linkReferral(order *models.Order, billing *models.BillingRecord) *uint {
	if s.referralRepo == nil || billing.Business == nil {
		return nil
	}
	rep, err := s.referralRepo.GetAdRepByAdvertiser(billing.Business.AdvertiserID)
	if err != nil {
		logger.Warnw("renewal_referral_lookup_failed", "order_id", order.ID, "error", err)
		return nil
	}
	if rep == nil {
		return nil
	}
	if err := s.referralRepo.CreateAdRepOrder(&models.AdRepOrder{AdRepID: rep.ID, OrderID: order.ID}); err != nil {
		logger.Warnw("renewal_referral_link_failed", "order_id", order.ID, "ad_rep_id", rep.ID, "error", err)
		return nil
	}
	if s.opts.ReferralPromotionCode != "" {
		if _, err := s.ledger.AttachAttributionCode(order.ID, s.opts.ReferralPromotionCode); err != nil {
			logger.Warnw("renewal_referral_code_attach_failed", "order_id", order.ID, "code", s.opts.ReferralPromotionCode, "error", err)
		}
	}
	repID := rep.ID
	return &repID
}

func (s *RenewalService) notify(ctx context.Context, now time.Time, result *BatchResult) {
	if s.notifications == nil {
		return
	}
	site, err := s.siteRepo.GetByID(s.opts.DefaultSiteID)
	if err != nil {
		logger.Warnw("renewal_notify_site_lookup_failed", "site_id", s.opts.DefaultSiteID, "error", err)
	}
	runDate := formatDate(now)

	if len(result.Good) > 0 {
		lines := make([]string, 0, len(result.Good))
		for _, good := range result.Good {
			lines = append(lines, fmt.Sprintf("slot %d (business %d, order %d): %s, now ends %s",
				good.SlotID, good.BusinessID, good.OrderID, good.Amount.String(), formatDate(good.EndDate)))
		}
		err := s.notifications.SendEmail(ctx, constants.NotifyTemplateRenewalApproved, site, map[string]interface{}{
			"count":    len(result.Good),
			"lines":    lines,
			"total":    result.TotalCharged.String(),
			"run_date": runDate,
		})
		if err != nil {
			logger.Warnw("renewal_notify_failed", "template", constants.NotifyTemplateRenewalApproved, "error", err)
		}
	}

	if len(result.Bad) > 0 || len(result.Skipped) > 0 {
		lines := make([]string, 0, len(result.Bad)+len(result.Skipped))
		for _, bad := range result.Bad {
			lines = append(lines, fmt.Sprintf("slot %d (business %d, order %d): %s %s",
				bad.SlotID, bad.BusinessID, bad.OrderID, bad.Status, bad.Reason))
		}
		for _, skip := range result.Skipped {
			lines = append(lines, fmt.Sprintf("slot %d (business %d): skipped, %s",
				skip.SlotID, skip.BusinessID, skip.Reason))
		}
		err := s.notifications.SendEmail(ctx, constants.NotifyTemplateRenewalNotApproved, site, map[string]interface{}{
			"count":    len(result.Bad) + len(result.Skipped),
			"lines":    lines,
			"run_date": runDate,
		})
		if err != nil {
			logger.Warnw("renewal_notify_failed", "template", constants.NotifyTemplateRenewalNotApproved, "error", err)
		}
	}
}

func renewalDescription(product *models.Product, site *models.Site, start, end, priceLocked time.Time) string {
	return fmt.Sprintf("%s on %s %s - %s. Price Locked on %s",
		product.Name,
		site.Name,
		start.Format("1/2/06"),
		end.Format("1/2/06"),
		priceLocked.Format("Jan 2, 2006"),
	)
}
