package queue

import (
	"encoding/json"

	"github.com/couponslot-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskSlotAutoRenew 槽位自动续费批处理任务
	TaskSlotAutoRenew = constants.TaskSlotAutoRenew
	// TaskNotifyEmail 邮件通知任务
	TaskNotifyEmail = constants.TaskNotifyEmail
)

// SlotAutoRenewPayload 自动续费任务载荷
type SlotAutoRenewPayload struct {
	// RunAt 批处理基准时间（RFC3339），为空时使用执行时刻
	RunAt string `json:"run_at,omitempty"`
}

// NotifyEmailPayload 邮件通知任务载荷
type NotifyEmailPayload struct {
	Template   string                 `json:"template"`
	SiteID     uint                   `json:"site_id"`
	Recipients []string               `json:"recipients"`
	Context    map[string]interface{} `json:"context"`
}

// NewSlotAutoRenewTask 创建自动续费任务
func NewSlotAutoRenewTask(payload SlotAutoRenewPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSlotAutoRenew, body), nil
}

// NewNotifyEmailTask 创建邮件通知任务
func NewNotifyEmailTask(payload NotifyEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyEmail, body), nil
}
