package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/couponslot-next/internal/constants"
	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/queue"
	"github.com/couponslot-next/internal/repository"

	"github.com/hibiken/asynq"
)

var notificationTemplateVarPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// 通知错误
var (
	ErrNotificationTemplateInvalid = errors.New("notification template invalid")
	ErrNotificationSendFailed      = errors.New("notification send failed")
)

// notificationTemplate 邮件模板
type notificationTemplate struct {
	Subject string
	Body    string
}

var notificationTemplates = map[string]notificationTemplate{
	constants.NotifyTemplateRenewalApproved: {
		Subject: "[{{ site_name }}] {{ count }} slot renewals approved",
		Body: "The following slot renewals were charged on {{ run_date }}:\n\n" +
			"{{ lines }}\n\n" +
			"Total charged: {{ total }}",
	},
	constants.NotifyTemplateRenewalNotApproved: {
		Subject: "[{{ site_name }}] {{ count }} slot renewals not approved",
		Body: "The following slot renewals were not approved on {{ run_date }}:\n\n" +
			"{{ lines }}\n\n" +
			"These slots keep their current end date until billing is resolved.",
	},
}

// NotificationService 管理员邮件通知
type NotificationService struct {
	emailSender EmailSender
	queueClient *queue.Client
	siteRepo    repository.SiteRepository
	recipients  []string
}

// NewNotificationService 创建通知服务
func NewNotificationService(emailSender EmailSender, queueClient *queue.Client, siteRepo repository.SiteRepository, recipients []string) *NotificationService {
	cleaned := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	return &NotificationService{
		emailSender: emailSender,
		queueClient: queueClient,
		siteRepo:    siteRepo,
		recipients:  cleaned,
	}
}

// SendEmail 按模板发送站点通知，队列可用时异步投递
func (s *NotificationService) SendEmail(ctx context.Context, template string, site *models.Site, data map[string]interface{}) error {
	if s == nil {
		return nil
	}
	template = strings.ToLower(strings.TrimSpace(template))
	if _, ok := notificationTemplates[template]; !ok {
		return ErrNotificationTemplateInvalid
	}
	if len(s.recipients) == 0 {
		logger.Debugw("notification_skip_no_recipients", "template", template)
		return nil
	}
	payload := queue.NotifyEmailPayload{
		Template:   template,
		Recipients: append([]string(nil), s.recipients...),
		Context:    cloneNotificationVariables(data),
	}
	if site != nil {
		payload.SiteID = site.ID
		if _, ok := payload.Context["site_name"]; !ok {
			payload.Context["site_name"] = site.Name
		}
	}
	if s.queueClient.Enabled() {
		if err := s.queueClient.EnqueueNotifyEmail(payload, asynq.MaxRetry(5)); err != nil {
			logger.Warnw("notification_enqueue_failed", "template", template, "site_id", payload.SiteID, "error", err)
			return s.Deliver(ctx, payload)
		}
		return nil
	}
	return s.Deliver(ctx, payload)
}

// Deliver 渲染模板并逐个收件人发送
func (s *NotificationService) Deliver(ctx context.Context, payload queue.NotifyEmailPayload) error {
	if s == nil {
		return nil
	}
	tpl, ok := notificationTemplates[strings.ToLower(strings.TrimSpace(payload.Template))]
	if !ok {
		return ErrNotificationTemplateInvalid
	}
	if s.emailSender == nil {
		logger.Warnw("notification_skip_email_sender_nil", "template", payload.Template)
		return nil
	}
	variables := s.buildVariables(ctx, payload)
	subject := renderNotificationTemplate(tpl.Subject, variables)
	body := renderNotificationTemplate(tpl.Body, variables)

	recipients := payload.Recipients
	if len(recipients) == 0 {
		recipients = s.recipients
	}
	var firstErr error
	for _, recipient := range recipients {
		if err := s.emailSender.SendTextEmail(recipient, subject, body); err != nil {
			logger.Warnw("notification_email_send_failed",
				"template", payload.Template,
				"site_id", payload.SiteID,
				"recipient", recipient,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("%w: %v", ErrNotificationSendFailed, firstErr)
	}
	return nil
}

func (s *NotificationService) buildVariables(_ context.Context, payload queue.NotifyEmailPayload) map[string]interface{} {
	variables := cloneNotificationVariables(payload.Context)
	if _, ok := variables["site_name"]; !ok && payload.SiteID != 0 && s.siteRepo != nil {
		site, err := s.siteRepo.GetByID(payload.SiteID)
		if err != nil {
			logger.Warnw("notification_fetch_site_failed", "site_id", payload.SiteID, "error", err)
		} else if site != nil {
			variables["site_name"] = site.Name
		}
	}
	if _, ok := variables["run_date"]; !ok {
		variables["run_date"] = formatDate(time.Now())
	}
	if lines, ok := variables["lines"].([]interface{}); ok {
		parts := make([]string, 0, len(lines))
		for _, line := range lines {
			parts = append(parts, fmt.Sprintf("%v", line))
		}
		variables["lines"] = strings.Join(parts, "\n")
	}
	if lines, ok := variables["lines"].([]string); ok {
		variables["lines"] = strings.Join(lines, "\n")
	}
	return variables
}

func renderNotificationTemplate(template string, variables map[string]interface{}) string {
	template = strings.TrimSpace(template)
	if template == "" {
		return ""
	}
	return notificationTemplateVarPattern.ReplaceAllStringFunc(template, func(matched string) string {
		submatch := notificationTemplateVarPattern.FindStringSubmatch(matched)
		if len(submatch) != 2 {
			return matched
		}
		value, ok := variables[strings.TrimSpace(submatch[1])]
		if !ok {
			return ""
		}
		return strings.TrimSpace(fmt.Sprintf("%v", value))
	})
}

func cloneNotificationVariables(data map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(data))
	for key, value := range data {
		result[key] = value
	}
	return result
}
