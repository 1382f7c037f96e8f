package constants

// 队列名称
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskSlotAutoRenew = "slot:auto_renew"
	TaskNotifyEmail   = "notify:email"
)

// 通知模板
const (
	NotifyTemplateRenewalApproved    = "renewal_approved"
	NotifyTemplateRenewalNotApproved = "renewal_not_approved"
)

// 支付网关
const (
	GatewayProviderSandbox = "sandbox"
)
