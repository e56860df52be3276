package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/repository"
	"github.com/havenloop/dispatch-api/internal/service/dispatch"
	"github.com/havenloop/dispatch-api/pkg/logger"
	"github.com/havenloop/dispatch-api/pkg/metrics"
)

type SchedulerConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// Scheduler drains due scheduled notifications into the dispatcher.
type Scheduler struct {
	repo       repository.RequestRepository
	dispatcher dispatch.Service
	config     SchedulerConfig
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewScheduler(
	repo repository.RequestRepository,
	dispatcher dispatch.Service,
	config SchedulerConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Scheduler {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}

	return &Scheduler{
		repo:       repo,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger,
		metrics:    metrics,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info("Starting notification scheduler")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down notification scheduler")
			return
		case <-ticker.C:
			if err := s.processDue(ctx); err != nil {
				s.logger.Error(err, "Failed to process due notifications")
			}
		}
	}
}

func (s *Scheduler) processDue(ctx context.Context) error {
	timer := prometheus.NewTimer(s.metrics.SchedulerLatency)
	defer timer.ObserveDuration()

	due, err := s.repo.ClaimDue(ctx, time.Now(), s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim due notifications: %w", err)
	}

	for _, req := range due {
		if err := s.processRequest(ctx, req); err != nil {
			s.logger.Error(err, "Failed to process scheduled notification",
				"notification_id", req.ID.String())
			continue
		}
	}

	return nil
}

func (s *Scheduler) processRequest(ctx context.Context, req *model.NotificationRequest) error {
	outcomes, err := s.dispatcher.Dispatch(ctx, req)
	if err != nil {
		s.metrics.ScheduledFailed.Inc()
		if markErr := s.repo.MarkFailed(ctx, req.ID, err.Error()); markErr != nil {
			s.logger.Error(markErr, "Failed to mark notification failed")
		}
		return err
	}

	s.metrics.ScheduledDispatched.Inc()
	if err := s.repo.MarkDispatched(ctx, req.ID); err != nil {
		s.logger.Error(err, "Failed to mark notification dispatched",
			"notification_id", req.ID.String())
		return err
	}

	sent := 0
	for _, o := range outcomes {
		if o.Delivered() {
			sent++
		}
	}
	s.logger.Debug("Scheduled notification dispatched",
		"notification_id", req.ID.String(), "channels", len(outcomes), "sent", sent)
	return nil
}
