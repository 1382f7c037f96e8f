package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/provider"
	"github.com/couponslot-next/internal/queue"
	"github.com/couponslot-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskSlotAutoRenew, c.handleSlotAutoRenew)
	mux.HandleFunc(queue.TaskNotifyEmail, c.handleNotifyEmail)
}

func (c *Consumer) handleSlotAutoRenew(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_slot_auto_renew_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SlotAutoRenewPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_slot_auto_renew_unmarshal_failed", "error", err)
			return err
		}
	}
	if c.RenewalService == nil {
		logger.Warnw("worker_slot_auto_renew_skip_service_nil")
		return nil
	}
	runAt, err := resolveRunAt(payload.RunAt, time.Now())
	if err != nil {
		logger.Warnw("worker_slot_auto_renew_invalid_run_at", "run_at", payload.RunAt, "error", err)
		return nil
	}
	result, err := c.RenewalService.RunBatch(ctx, runAt)
	if errors.Is(err, service.ErrRenewalBatchRunning) {
		logger.Warnw("worker_slot_auto_renew_skip_running", "run_at", runAt.Format(time.RFC3339))
		return nil
	}
	if err != nil {
		logger.Errorw("worker_slot_auto_renew_failed", "error", err)
		return err
	}
	logger.Infow("worker_slot_auto_renew_done",
		"approved", len(result.Good),
		"not_approved", len(result.Bad),
		"skipped", len(result.Skipped),
		"total_charged", result.TotalCharged.String(),
	)
	return nil
}

func (c *Consumer) handleNotifyEmail(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_notify_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.NotifyEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_notify_email_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.Template) == "" {
		logger.Debugw("worker_notify_email_skip_invalid_payload", "site_id", payload.SiteID)
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_notify_email_skip_service_nil", "template", payload.Template)
		return nil
	}
	err := c.NotificationService.Deliver(ctx, payload)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrNotificationTemplateInvalid),
		errors.Is(err, service.ErrEmailServiceDisabled),
		errors.Is(err, service.ErrEmailServiceNotConfigured),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrEmailRecipientRejected):
		logger.Warnw("worker_notify_email_dropped", "template", payload.Template, "error", err)
		return nil
	default:
		logger.Warnw("worker_notify_email_failed", "template", payload.Template, "error", err)
		return err
	}
}

// resolveRunAt 解析批处理基准时间，为空时使用 fallback
func resolveRunAt(raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}
