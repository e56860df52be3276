package escalation

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/service/dispatch"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
	"github.com/havenloop/dispatch-api/pkg/logger"
)

type contactList struct {
	contacts []*model.EmergencyContact
	err      error
}

func (c *contactList) ListActive(ctx context.Context, userID uuid.UUID) ([]*model.EmergencyContact, error) {
	return c.contacts, c.err
}

func (c *contactList) Get(ctx context.Context, id uuid.UUID) (*model.EmergencyContact, error) {
	return nil, nil
}

func (c *contactList) Create(ctx context.Context, contact *model.EmergencyContact) error { return nil }
func (c *contactList) Update(ctx context.Context, contact *model.EmergencyContact) error { return nil }
func (c *contactList) Delete(ctx context.Context, id uuid.UUID) error                    { return nil }
func (c *contactList) Reorder(ctx context.Context, userID uuid.UUID, orderedIDs []uuid.UUID) error {
	return nil
}

type summaryStore struct {
	mu        sync.Mutex
	summaries []*model.CrisisAlertSummary
}

func (s *summaryStore) Create(ctx context.Context, summary *model.CrisisAlertSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
	return nil
}

func (s *summaryStore) Get(ctx context.Context, id uuid.UUID) (*model.CrisisAlertSummary, error) {
	return nil, nil
}

func (s *summaryStore) ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*model.CrisisAlertSummary, error) {
	return nil, nil
}

// fakeDispatcher returns one sent outcome per request, or a failed one for
// addresses registered in failAddr. delay lets tests skew completion order.
type fakeDispatcher struct {
	mu       sync.Mutex
	requests []*model.NotificationRequest
	failAddr map[string]string
	delay    func(req *model.NotificationRequest) time.Duration
	onFirst  func()
	calls    int
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, req *model.NotificationRequest) ([]*model.DeliveryOutcome, error) {
	d.mu.Lock()
	d.calls++
	first := d.calls == 1
	d.requests = append(d.requests, req)
	detail := d.failAddr[req.ContactAddress]
	var wait time.Duration
	if d.delay != nil {
		wait = d.delay(req)
	}
	d.mu.Unlock()

	if first && d.onFirst != nil {
		d.onFirst()
	}
	if wait > 0 {
		time.Sleep(wait)
	}

	outcome := &model.DeliveryOutcome{
		ID:             uuid.New(),
		NotificationID: req.ID,
		UserID:         req.RecipientID,
		ContactID:      req.ContactID,
		Channel:        *req.ChannelOverride,
		Status:         model.OutcomeSent,
	}
	if detail != "" {
		outcome.Status = model.OutcomeFailed
		outcome.ErrorDetail = detail
	}
	return []*model.DeliveryOutcome{outcome}, nil
}

func (d *fakeDispatcher) sentRequests() []*model.NotificationRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*model.NotificationRequest, len(d.requests))
	copy(out, d.requests)
	return out
}

func makeContact(userID uuid.UUID, priority int, channel model.Channel, address string) *model.EmergencyContact {
	return &model.EmergencyContact{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       fmt.Sprintf("Contact %d", priority),
		Address:    address,
		Channel:    channel,
		Priority:   priority,
		Categories: []string{string(model.CategoryCrisisAlert)},
		Active:     true,
	}
}

func newTestService(contacts *contactList, dispatcher dispatch.Service, cfg Config) (*service, *summaryStore) {
	store := &summaryStore{}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	if cfg.GatewayRate == 0 {
		cfg.GatewayRate = 10000
		cfg.GatewayBurst = 100
	}
	svc := NewService(contacts, store, dispatcher, cfg, log, nil).(*service)
	return svc, store
}

func TestEscalate_AllContactsNotified(t *testing.T) {
	userID := uuid.New()
	contacts := &contactList{contacts: []*model.EmergencyContact{
		makeContact(userID, 1, model.ChannelSMS, "+15550000001"),
		makeContact(userID, 2, model.ChannelEmail, "two@example.com"),
	}}
	dispatcher := &fakeDispatcher{}
	svc, store := newTestService(contacts, dispatcher, Config{Workers: 2})

	summary, err := svc.Escalate(context.Background(), userID, "I need help now")
	require.NoError(t, err)

	assert.Equal(t, model.SummarySent, summary.Status)
	assert.Equal(t, 2, summary.TotalContacts)
	assert.Equal(t, 2, summary.NotifiedContacts)
	require.Len(t, store.summaries, 1)
	assert.Equal(t, summary.ID, store.summaries[0].ID)

	for _, req := range dispatcher.sentRequests() {
		assert.Equal(t, model.CategoryCrisisAlert, req.Category)
		assert.Equal(t, model.PriorityUrgent, req.Priority)
		require.NotNil(t, req.ContactID)
		assert.Equal(t, fmt.Sprintf("crisis:%s:%s", summary.ID, *req.ContactID), req.IdempotencyKey)
	}
}

// dedupDispatcher honors idempotency keys the way the real dispatcher does:
// a key it has already delivered yields a duplicate outcome, not a send.
type dedupDispatcher struct {
	mu   sync.Mutex
	seen map[string]bool
	sent int
}

func (d *dedupDispatcher) Dispatch(ctx context.Context, req *model.NotificationRequest) ([]*model.DeliveryOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	outcome := &model.DeliveryOutcome{
		ID:             uuid.New(),
		NotificationID: req.ID,
		UserID:         req.RecipientID,
		ContactID:      req.ContactID,
		Channel:        *req.ChannelOverride,
		Status:         model.OutcomeDuplicate,
	}
	if !d.seen[req.IdempotencyKey] {
		d.seen[req.IdempotencyKey] = true
		d.sent++
		outcome.Status = model.OutcomeSent
	}
	return []*model.DeliveryOutcome{outcome}, nil
}

func TestEscalate_SecondCrisisSameDayDeliversAgain(t *testing.T) {
	userID := uuid.New()
	contacts := &contactList{contacts: []*model.EmergencyContact{
		makeContact(userID, 1, model.ChannelSMS, "+15550000001"),
		makeContact(userID, 2, model.ChannelEmail, "two@example.com"),
	}}
	dispatcher := &dedupDispatcher{}
	svc, store := newTestService(contacts, dispatcher, Config{Workers: 2})

	first, err := svc.Escalate(context.Background(), userID, "I need help now")
	require.NoError(t, err)
	assert.Equal(t, model.SummarySent, first.Status)

	second, err := svc.Escalate(context.Background(), userID, "It happened again")
	require.NoError(t, err)

	// A fresh trigger gets fresh deliveries, not yesterday's dedup.
	assert.Equal(t, model.SummarySent, second.Status)
	assert.Equal(t, 2, second.NotifiedContacts)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 4, dispatcher.sent)
	assert.Len(t, store.summaries, 2)
}

func TestEscalate_PartialWhenOneContactUnreachable(t *testing.T) {
	userID := uuid.New()
	bad := makeContact(userID, 2, model.ChannelSMS, "not-a-number")
	contacts := &contactList{contacts: []*model.EmergencyContact{
		makeContact(userID, 1, model.ChannelSMS, "+15550000001"),
		bad,
		makeContact(userID, 3, model.ChannelEmail, "three@example.com"),
	}}
	dispatcher := &fakeDispatcher{failAddr: map[string]string{
		"not-a-number": `invalid delivery address "not-a-number"`,
	}}
	svc, _ := newTestService(contacts, dispatcher, Config{Workers: 3})

	summary, err := svc.Escalate(context.Background(), userID, "I need help now")
	require.NoError(t, err)

	assert.Equal(t, model.SummaryPartial, summary.Status)
	assert.Equal(t, 3, summary.TotalContacts)
	assert.Equal(t, 2, summary.NotifiedContacts)

	require.Len(t, summary.Results, 3)
	for i, r := range summary.Results {
		assert.Equal(t, i+1, r.Priority)
	}
	assert.False(t, summary.Results[1].Notified)
	assert.Equal(t, bad.ID, summary.Results[1].ContactID)
	assert.Contains(t, summary.Results[1].Error, "invalid delivery address")
}

func TestEscalate_NoEligibleContacts(t *testing.T) {
	userID := uuid.New()

	milestoneOnly := makeContact(userID, 1, model.ChannelSMS, "+15550000001")
	milestoneOnly.Categories = []string{string(model.CategoryMilestone)}
	contacts := &contactList{contacts: []*model.EmergencyContact{milestoneOnly}}

	dispatcher := &fakeDispatcher{}
	svc, store := newTestService(contacts, dispatcher, Config{})

	summary, err := svc.Escalate(context.Background(), userID, "I need help now")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNoEligibleContacts))

	// The failure is still recorded, not silently dropped.
	require.NotNil(t, summary)
	assert.Equal(t, model.SummaryFailed, summary.Status)
	assert.Zero(t, summary.TotalContacts)
	require.Len(t, store.summaries, 1)
	assert.Empty(t, dispatcher.sentRequests())
}

func TestEscalate_PriorityAttributionUnderConcurrency(t *testing.T) {
	userID := uuid.New()
	var list []*model.EmergencyContact
	for i := 1; i <= 6; i++ {
		list = append(list, makeContact(userID, i, model.ChannelSMS, fmt.Sprintf("+1555000000%d", i)))
	}
	contacts := &contactList{contacts: list}

	// Higher-priority contacts finish last, so completion order is the
	// reverse of hand-out order.
	dispatcher := &fakeDispatcher{delay: func(req *model.NotificationRequest) time.Duration {
		for _, c := range list {
			if c.ID == *req.ContactID {
				return time.Duration(7-c.Priority) * 5 * time.Millisecond
			}
		}
		return 0
	}}
	svc, _ := newTestService(contacts, dispatcher, Config{Workers: 6})

	summary, err := svc.Escalate(context.Background(), userID, "I need help now")
	require.NoError(t, err)

	require.Len(t, summary.Results, 6)
	for i, r := range summary.Results {
		assert.Equal(t, i+1, r.Priority)
		assert.Equal(t, list[i].ID, r.ContactID)
		assert.True(t, r.Notified)
	}
	assert.Equal(t, model.SummarySent, summary.Status)
}

func TestEscalate_RunsToCompletionAfterCallerCancels(t *testing.T) {
	userID := uuid.New()
	contacts := &contactList{contacts: []*model.EmergencyContact{
		makeContact(userID, 1, model.ChannelSMS, "+15550000001"),
		makeContact(userID, 2, model.ChannelSMS, "+15550000002"),
		makeContact(userID, 3, model.ChannelSMS, "+15550000003"),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &fakeDispatcher{onFirst: cancel}
	svc, store := newTestService(contacts, dispatcher, Config{Workers: 1})

	summary, err := svc.Escalate(ctx, userID, "I need help now")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalContacts)
	assert.Equal(t, 3, summary.NotifiedContacts)
	assert.Len(t, dispatcher.sentRequests(), 3)
	require.Len(t, store.summaries, 1)
}

func TestEscalate_ValidatesInput(t *testing.T) {
	svc, _ := newTestService(&contactList{}, &fakeDispatcher{}, Config{})

	_, err := svc.Escalate(context.Background(), uuid.Nil, "help")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))

	_, err = svc.Escalate(context.Background(), uuid.New(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}
