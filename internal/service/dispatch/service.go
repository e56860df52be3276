package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/repository"
	"github.com/havenloop/dispatch-api/internal/sender"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
	"github.com/havenloop/dispatch-api/pkg/logger"
	"github.com/havenloop/dispatch-api/pkg/metrics"
)

const (
	defaultMaxRetries  = 3
	defaultBackoffBase = 500 * time.Millisecond
	defaultSendTimeout = 10 * time.Second
)

// RateLimiter answers allow/deny for one (user, operation) pair. The
// check-and-increment is a single atomic operation in the implementation.
type RateLimiter interface {
	Allow(ctx context.Context, userID, operation string, maxOperations int, window time.Duration) (bool, error)
}

type Service interface {
	Dispatch(ctx context.Context, req *model.NotificationRequest) ([]*model.DeliveryOutcome, error)
}

type Config struct {
	MaxRetries  int
	BackoffBase time.Duration
	SendTimeout time.Duration
}

type service struct {
	prefs    repository.PreferenceRepository
	outcomes repository.OutcomeRepository
	limiter  RateLimiter
	senders  sender.Registry
	idem     IdempotencyStore
	cfg      Config
	logger   *logger.Logger
	metrics  *metrics.Metrics

	// overridable in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewService(
	prefs repository.PreferenceRepository,
	outcomes repository.OutcomeRepository,
	limiter RateLimiter,
	senders sender.Registry,
	idem IdempotencyStore,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	return &service{
		prefs:    prefs,
		outcomes: outcomes,
		limiter:  limiter,
		senders:  senders,
		idem:     idem,
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Dispatch runs the gate sequence once per request: preferences, quiet
// hours, rate limit, send. It never errors on partial failure; callers
// inspect the outcome set.
func (s *service) Dispatch(ctx context.Context, req *model.NotificationRequest) ([]*model.DeliveryOutcome, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.DispatchLatency)
		defer timer.ObserveDuration()
	}

	prefs, err := s.prefs.Get(ctx, req.RecipientID)
	if err != nil {
		// Store unreachable: assume defaults for routine traffic, assume
		// all-enabled when the message is a crisis alert.
		if req.Urgent() {
			prefs = model.AllEnabledPreferences(req.RecipientID)
		} else {
			prefs = model.DefaultPreferences(req.RecipientID)
		}
		s.logger.Warn("preference store unreachable, using fallback",
			"user_id", req.RecipientID.String(), "urgent", req.Urgent())
	}

	channels := selectChannels(req, prefs)
	outcomes := make([]*model.DeliveryOutcome, 0, len(channels))

	if prefs.CategoryOptedOut(req.Category) {
		for _, ch := range channels {
			outcomes = append(outcomes, s.record(ctx, req, ch, model.OutcomeSuppressedPreference, "",
				fmt.Sprintf("category %s opted out", req.Category), 0))
		}
		return outcomes, nil
	}

	quiet := req.Priority != model.PriorityUrgent && inQuietHours(prefs, s.now())

	for _, ch := range channels {
		// In-app is passive/pull, never an interruption, so quiet hours
		// do not suppress it.
		if quiet && ch != model.ChannelInApp {
			outcomes = append(outcomes, s.record(ctx, req, ch, model.OutcomeSuppressedQuietHours, "",
				"inside quiet hours window", 0))
			continue
		}

		if skip := s.alreadyDelivered(ctx, req, ch); skip {
			outcomes = append(outcomes, s.record(ctx, req, ch, model.OutcomeDuplicate, "",
				fmt.Sprintf("already delivered under idempotency key %q", req.IdempotencyKey), 0))
			continue
		}

		if !s.allow(ctx, req, prefs, ch) {
			outcomes = append(outcomes, s.record(ctx, req, ch, model.OutcomeSuppressedRateLimit, "",
				apperrors.RateLimited(req.RecipientID.String(), string(ch)).Message, 0))
			continue
		}

		outcomes = append(outcomes, s.send(ctx, req, prefs, ch))
	}

	return outcomes, nil
}

func (s *service) validateRequest(req *model.NotificationRequest) error {
	if req == nil {
		return apperrors.NewBadRequest("request is required", nil)
	}
	if req.RecipientID == uuid.Nil {
		return apperrors.NewBadRequest("recipient id is required", nil)
	}
	if !req.Category.Valid() {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown category %q", req.Category), nil)
	}
	if !req.Priority.Valid() {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown priority %q", req.Priority), nil)
	}
	if req.Body == "" {
		return apperrors.NewBadRequest("body is required", nil)
	}
	if req.ChannelOverride != nil && !req.ChannelOverride.Valid() {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown channel %q", *req.ChannelOverride), nil)
	}
	return nil
}

// selectChannels applies preference enablement. An explicit override
// bypasses enablement but nothing else.
func selectChannels(req *model.NotificationRequest, prefs *model.EffectivePreferences) []model.Channel {
	if req.ChannelOverride != nil {
		return []model.Channel{*req.ChannelOverride}
	}
	var out []model.Channel
	for _, ch := range req.Category.Channels() {
		if prefs.ChannelEnabled(ch) {
			out = append(out, ch)
		}
	}
	return out
}

func (s *service) alreadyDelivered(ctx context.Context, req *model.NotificationRequest, ch model.Channel) bool {
	if s.idem == nil || req.IdempotencyKey == "" {
		return false
	}
	sent, err := s.idem.AlreadySent(ctx, req.IdempotencyKey, ch)
	if err != nil {
		s.logger.Error(err, "idempotency check failed, proceeding",
			"notification_id", req.ID.String(), "channel", string(ch))
		return false
	}
	if sent {
		s.logger.Debug("skipping already-delivered channel",
			"notification_id", req.ID.String(), "channel", string(ch))
	}
	return sent
}

// allow consults both caps for the (user, channel) pair. A store failure
// fails closed for routine traffic and open for crisis traffic.
func (s *service) allow(ctx context.Context, req *model.NotificationRequest, prefs *model.EffectivePreferences, ch model.Channel) bool {
	userID := req.RecipientID.String()
	op := "notify:" + string(ch)

	ok, err := s.limiter.Allow(ctx, userID, op, prefs.MaxPerHour, time.Hour)
	if err != nil {
		return req.Urgent()
	}
	if !ok {
		return false
	}

	ok, err = s.limiter.Allow(ctx, userID, op+":daily", prefs.MaxPerDay, 24*time.Hour)
	if err != nil {
		return req.Urgent()
	}
	return ok
}

func (s *service) send(ctx context.Context, req *model.NotificationRequest, prefs *model.EffectivePreferences, ch model.Channel) *model.DeliveryOutcome {
	snd, ok := s.senders.For(ch)
	if !ok {
		return s.record(ctx, req, ch, model.OutcomeFailed, "",
			fmt.Sprintf("no sender configured for channel %s", ch), 0)
	}

	address := resolveAddress(req, prefs, ch)
	if err := sender.ValidateAddress(ch, address); err != nil {
		// Terminal: a malformed address never succeeds on retry.
		return s.record(ctx, req, ch, model.OutcomeFailed, "", err.Error(), 0)
	}

	var lastErr error
	retries := 0
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			retries++
			if s.metrics != nil {
				s.metrics.SendRetries.WithLabelValues(string(ch)).Inc()
			}
			if err := s.sleep(ctx, s.backoff(attempt)); err != nil {
				lastErr = err
				break
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		started := time.Now()
		providerID, err := snd.Send(callCtx, address, req.Title, req.Body)
		cancel()
		if s.metrics != nil {
			s.metrics.SenderLatency.WithLabelValues(string(ch)).Observe(time.Since(started).Seconds())
			if err != nil {
				s.metrics.SenderErrors.WithLabelValues(string(ch)).Inc()
			}
		}

		if err == nil {
			s.markDelivered(ctx, req, ch)
			return s.record(ctx, req, ch, model.OutcomeSent, providerID, "", retries)
		}

		lastErr = err
		if apperrors.HasCode(err, apperrors.ErrInvalidAddress) {
			break
		}
		s.logger.Warn("send attempt failed",
			"notification_id", req.ID.String(), "channel", string(ch),
			"attempt", attempt+1, "error", err.Error())
	}

	return s.record(ctx, req, ch, model.OutcomeFailed, "", lastErr.Error(), retries)
}

func (s *service) markDelivered(ctx context.Context, req *model.NotificationRequest, ch model.Channel) {
	if s.idem == nil || req.IdempotencyKey == "" {
		return
	}
	if err := s.idem.MarkSent(ctx, req.IdempotencyKey, ch); err != nil {
		s.logger.Error(err, "failed to mark idempotency key",
			"notification_id", req.ID.String(), "channel", string(ch))
	}
}

func (s *service) backoff(attempt int) time.Duration {
	return s.cfg.BackoffBase << (attempt - 1)
}

func resolveAddress(req *model.NotificationRequest, prefs *model.EffectivePreferences, ch model.Channel) string {
	if req.ContactAddress != "" {
		return req.ContactAddress
	}
	switch ch {
	case model.ChannelEmail:
		return prefs.EmailAddress
	case model.ChannelSMS:
		return prefs.PhoneNumber
	case model.ChannelInApp:
		return req.RecipientID.String()
	}
	return ""
}

// record appends the outcome to the audit sink. A sink failure is logged,
// not propagated: the delivery already happened or was already decided.
func (s *service) record(ctx context.Context, req *model.NotificationRequest, ch model.Channel, status model.OutcomeStatus, providerID, detail string, retries int) *model.DeliveryOutcome {
	outcome := &model.DeliveryOutcome{
		ID:                uuid.New(),
		NotificationID:    req.ID,
		UserID:            req.RecipientID,
		ContactID:         req.ContactID,
		Channel:           ch,
		Status:            status,
		ProviderMessageID: providerID,
		ErrorDetail:       detail,
		RetryCount:        retries,
		CreatedAt:         s.now(),
	}

	if err := s.outcomes.Create(ctx, outcome); err != nil {
		s.logger.Error(err, "failed to persist delivery outcome",
			"notification_id", req.ID.String(), "channel", string(ch))
	}
	if s.metrics != nil {
		s.metrics.DispatchOutcomes.WithLabelValues(string(ch), string(status)).Inc()
	}
	return outcome
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
