package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wldmarket/internal/logger"
)

const (
	defaultRatePollInterval  = 5 * time.Minute
	defaultReconcileInterval = 5 * time.Minute
	autoDeliverSweepInterval = 10 * time.Minute
	schedulerBatchSize       = 100
)

// SchedulerOptions 定时任务间隔
type SchedulerOptions struct {
	RatePollInterval    time.Duration
	ReconcileInterval   time.Duration
	AutoDeliverInterval time.Duration
}

// Scheduler 周期任务服务：轮询汇率、补结算、超时自动签收
//
// 不依赖队列，队列关闭时同样运行。
type Scheduler struct {
	name     string
	consumer *Consumer
	opts     SchedulerOptions

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler 创建周期任务服务
func NewScheduler(consumer *Consumer, opts SchedulerOptions) (*Scheduler, error) {
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	if opts.RatePollInterval <= 0 {
		opts.RatePollInterval = defaultRatePollInterval
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = defaultReconcileInterval
	}
	if opts.AutoDeliverInterval <= 0 {
		opts.AutoDeliverInterval = autoDeliverSweepInterval
	}
	return &Scheduler{
		name:     "scheduler",
		consumer: consumer,
		opts:     opts,
	}, nil
}

// Name 服务名称
func (s *Scheduler) Name() string {
	if s == nil || s.name == "" {
		return "scheduler"
	}
	return s.name
}

// Start 启动全部周期任务，阻塞直到 ctx 结束
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("scheduler not initialized")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.loop(ctx, "rate_poll", s.opts.RatePollInterval, s.pollRates)
	s.loop(ctx, "settlement_reconcile", s.opts.ReconcileInterval, s.reconcile)
	s.loop(ctx, "auto_deliver_sweep", s.opts.AutoDeliverInterval, s.deliverOverdue)

	<-ctx.Done()
	s.wg.Wait()
	return nil
}

// Stop 停止周期任务
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, job string, interval time.Duration, run func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runJob(ctx, job, run)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runJob(ctx, job, run)
			}
		}
	}()
}

// runJob 执行一次周期任务，单次 panic 不影响后续调度
func runJob(ctx context.Context, job string, run func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("scheduler_job_panic", "job", job, "panic", r)
		}
	}()
	run(ctx)
}

func (s *Scheduler) pollRates(ctx context.Context) {
	if s.consumer.RateFeed == nil {
		return
	}
	count, err := s.consumer.RefreshRates(ctx)
	if err != nil {
		logger.Warnw("scheduler_rate_poll_failed", "feed", s.consumer.RateFeed.Name(), "error", err)
		return
	}
	logger.Debugw("scheduler_rate_poll_done", "feed", s.consumer.RateFeed.Name(), "count", count)
}

func (s *Scheduler) reconcile(_ context.Context) {
	handled, err := s.consumer.ReconcileSettlements(schedulerBatchSize)
	if err != nil {
		logger.Warnw("scheduler_settlement_reconcile_failed", "error", err)
		return
	}
	if handled > 0 {
		logger.Infow("scheduler_settlement_reconciled", "orders", handled)
	}
}

func (s *Scheduler) deliverOverdue(ctx context.Context) {
	delivered, err := s.consumer.DeliverOverdue(ctx, schedulerBatchSize)
	if err != nil {
		logger.Warnw("scheduler_auto_deliver_failed", "error", err)
		return
	}
	if delivered > 0 {
		logger.Infow("scheduler_auto_delivered", "orders", delivered)
	}
}
