package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/repository"
	"github.com/havenloop/dispatch-api/internal/service/dispatch"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
	"github.com/havenloop/dispatch-api/pkg/logger"
	"github.com/havenloop/dispatch-api/pkg/metrics"
)

const defaultWorkers = 5

type Service interface {
	Escalate(ctx context.Context, userID uuid.UUID, message string) (*model.CrisisAlertSummary, error)
}

type Config struct {
	// Workers bounds fan-out concurrency. 1 recovers sequential delivery.
	Workers int
	// GatewayRate/GatewayBurst pace outbound sends across the whole pool
	// so a burst cannot trip the messaging gateway's own limits.
	GatewayRate  float64
	GatewayBurst int
}

type service struct {
	contacts   repository.ContactRepository
	summaries  repository.SummaryRepository
	dispatcher dispatch.Service
	pacer      *rate.Limiter
	workers    int
	logger     *logger.Logger
	metrics    *metrics.Metrics

	now func() time.Time
}

func NewService(
	contacts repository.ContactRepository,
	summaries repository.SummaryRepository,
	dispatcher dispatch.Service,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) Service {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.GatewayRate <= 0 {
		cfg.GatewayRate = 10
	}
	if cfg.GatewayBurst <= 0 {
		cfg.GatewayBurst = cfg.Workers
	}
	return &service{
		contacts:   contacts,
		summaries:  summaries,
		dispatcher: dispatcher,
		pacer:      rate.NewLimiter(rate.Limit(cfg.GatewayRate), cfg.GatewayBurst),
		workers:    cfg.Workers,
		logger:     log,
		metrics:    m,
		now:        time.Now,
	}
}

// Escalate fans the message out to every active crisis contact in priority
// order with bounded concurrency, then persists one summary. Once started
// the fan-out runs to completion: the caller's context carries values but
// its cancellation does not abort in-flight contacts.
func (s *service) Escalate(ctx context.Context, userID uuid.UUID, message string) (*model.CrisisAlertSummary, error) {
	if userID == uuid.Nil {
		return nil, apperrors.NewBadRequest("user id is required", nil)
	}
	if message == "" {
		return nil, apperrors.NewBadRequest("message is required", nil)
	}

	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.EscalationLatency)
		defer timer.ObserveDuration()
	}
	started := s.now()

	// The summary id doubles as the idempotency scope for this trigger, so
	// dedup applies within one fan-out but never across distinct crises.
	alertID := uuid.New()

	// Detached from caller cancellation; once started, escalation runs to
	// completion so no outcome is dropped.
	runCtx := context.WithoutCancel(ctx)

	contacts, err := s.contacts.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load emergency contacts: %w", err)
	}

	eligible := make([]*model.EmergencyContact, 0, len(contacts))
	for _, c := range contacts {
		if c.ReceivesCategory(model.CategoryCrisisAlert) {
			eligible = append(eligible, c)
		}
	}
	if s.metrics != nil {
		s.metrics.EscalationContacts.Observe(float64(len(eligible)))
	}

	if len(eligible) == 0 {
		// Reportable, not a silent no-op: the user must be told to
		// configure emergency contacts.
		summary := s.finalize(runCtx, alertID, userID, message, started, nil)
		return summary, apperrors.NoEligibleContacts(userID.String())
	}

	results := make([]model.ContactResult, len(eligible))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := s.workers
	if workers > len(eligible) {
		workers = len(eligible)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = s.notifyContact(runCtx, alertID, userID, message, eligible[idx])
			}
		}()
	}

	// Jobs are handed out in priority order; completion order is up to
	// the pool, the indexed results slice keeps attribution correct.
	for i := range eligible {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	summary := s.finalize(runCtx, alertID, userID, message, started, results)
	return summary, nil
}

func (s *service) notifyContact(ctx context.Context, alertID, userID uuid.UUID, message string, contact *model.EmergencyContact) model.ContactResult {
	result := model.ContactResult{
		ContactID: contact.ID,
		Priority:  contact.Priority,
	}

	if err := s.pacer.Wait(ctx); err != nil {
		result.Error = err.Error()
		return result
	}

	contactID := contact.ID
	channel := contact.Channel
	req := &model.NotificationRequest{
		RecipientID:     userID,
		Category:        model.CategoryCrisisAlert,
		Priority:        model.PriorityUrgent,
		Title:           "Crisis alert",
		Body:            message,
		ChannelOverride: &channel,
		ContactAddress:  contact.Address,
		ContactID:       &contactID,
		IdempotencyKey:  fmt.Sprintf("crisis:%s:%s", alertID, contact.ID),
	}

	outcomes, err := s.dispatcher.Dispatch(ctx, req)
	if err != nil {
		s.logger.Error(err, "crisis dispatch failed",
			"user_id", userID.String(), "contact_id", contact.ID.String())
		result.Error = err.Error()
		return result
	}

	for _, o := range outcomes {
		if o.Delivered() {
			result.Notified = true
			return result
		}
		result.Error = o.ErrorDetail
	}
	return result
}

func (s *service) finalize(ctx context.Context, alertID, userID uuid.UUID, message string, started time.Time, results []model.ContactResult) *model.CrisisAlertSummary {
	notified := 0
	for _, r := range results {
		if r.Notified {
			notified++
		}
	}

	status := model.SummaryFailed
	switch {
	case len(results) > 0 && notified == len(results):
		status = model.SummarySent
	case notified > 0:
		status = model.SummaryPartial
	}

	summary := &model.CrisisAlertSummary{
		ID:               alertID,
		UserID:           userID,
		TotalContacts:    len(results),
		NotifiedContacts: notified,
		Status:           status,
		Message:          message,
		Results:          results,
		CreatedAt:        started,
		CompletedAt:      s.now(),
	}

	if err := s.summaries.Create(ctx, summary); err != nil {
		s.logger.Error(err, "failed to persist crisis summary",
			"user_id", userID.String(), "status", string(status))
	}
	if s.metrics != nil {
		s.metrics.EscalationSummaries.WithLabelValues(string(status)).Inc()
	}
	s.logger.Info("crisis escalation finished",
		"user_id", userID.String(), "status", string(status),
		"total", len(results), "notified", notified)

	return summary
}
