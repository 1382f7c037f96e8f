package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/couponslot-next/internal/config"
	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务（任务消费 + 定时调度）
type Service struct {
	name      string
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	consumer  *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, renewal *config.RenewalConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	svc := &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}
	if renewal != nil && renewal.Enabled {
		scheduler, err := newRenewalScheduler(queue.BuildRedisOpt(cfg), renewal.Cron)
		if err != nil {
			return nil, err
		}
		svc.scheduler = scheduler
	}
	return svc, nil
}

func newRenewalScheduler(opt asynq.RedisClientOpt, cronSpec string) (*asynq.Scheduler, error) {
	cronSpec = strings.TrimSpace(cronSpec)
	if cronSpec == "" {
		return nil, errors.New("renewal cron is empty")
	}
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})
	task, err := queue.NewSlotAutoRenewTask(queue.SlotAutoRenewPayload{})
	if err != nil {
		return nil, err
	}
	entryID, err := scheduler.Register(cronSpec, task, asynq.Queue(queue.CriticalQueue), asynq.MaxRetry(0), asynq.Unique(time.Hour))
	if err != nil {
		return nil, err
	}
	logger.Infow("worker_renewal_schedule_registered", "cron", cronSpec, "entry_id", entryID)
	return scheduler, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			return err
		}
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	if s.scheduler != nil {
		s.scheduler.Shutdown()
	}
	s.server.Shutdown()
	return nil
}
