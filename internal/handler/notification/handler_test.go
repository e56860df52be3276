package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/dispatch-api/internal/middleware"
	"github.com/havenloop/dispatch-api/internal/model"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
)

type dispatcherStub struct {
	req      *model.NotificationRequest
	outcomes []*model.DeliveryOutcome
	err      error
}

func (d *dispatcherStub) Dispatch(ctx context.Context, req *model.NotificationRequest) ([]*model.DeliveryOutcome, error) {
	d.req = req
	return d.outcomes, d.err
}

type requestRepoStub struct {
	enqueued *model.NotificationRequest
}

func (r *requestRepoStub) Enqueue(ctx context.Context, req *model.NotificationRequest) error {
	r.enqueued = req
	return nil
}

func (r *requestRepoStub) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.NotificationRequest, error) {
	return nil, nil
}

func (r *requestRepoStub) MarkDispatched(ctx context.Context, id uuid.UUID) error { return nil }

func (r *requestRepoStub) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return nil
}

type outcomeRepoStub struct {
	outcomes []*model.DeliveryOutcome
	err      error
}

func (r *outcomeRepoStub) Create(ctx context.Context, outcome *model.DeliveryOutcome) error {
	return nil
}

func (r *outcomeRepoStub) ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*model.DeliveryOutcome, error) {
	return r.outcomes, r.err
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreate_DispatchesImmediately(t *testing.T) {
	dispatcher := &dispatcherStub{outcomes: []*model.DeliveryOutcome{
		{ID: uuid.New(), Channel: model.ChannelInApp, Status: model.OutcomeSent},
	}}
	h := NewHandler(dispatcher, &requestRepoStub{}, &outcomeRepoStub{})

	w := postJSON(t, newRouter(h), "/api/v1/notifications", gin.H{
		"recipient_id": uuid.New().String(),
		"category":     "check_in",
		"body":         "Time for your evening check-in.",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, dispatcher.req)
	assert.Equal(t, model.PriorityNormal, dispatcher.req.Priority)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Outcomes []json.RawMessage `json:"outcomes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Len(t, resp.Data.Outcomes, 1)
}

func TestCreate_SchedulesFutureDelivery(t *testing.T) {
	dispatcher := &dispatcherStub{}
	requests := &requestRepoStub{}
	h := NewHandler(dispatcher, requests, &outcomeRepoStub{})

	w := postJSON(t, newRouter(h), "/api/v1/notifications", gin.H{
		"recipient_id":  uuid.New().String(),
		"category":      "check_in",
		"body":          "Time for your evening check-in.",
		"scheduled_for": time.Now().Add(time.Hour).Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Nil(t, dispatcher.req)
	require.NotNil(t, requests.enqueued)
	assert.Equal(t, model.RequestStatusPending, requests.enqueued.Status)
}

func TestCreate_RejectsMissingFields(t *testing.T) {
	h := NewHandler(&dispatcherStub{}, &requestRepoStub{}, &outcomeRepoStub{})

	w := postJSON(t, newRouter(h), "/api/v1/notifications", gin.H{
		"category": "check_in",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreate_DispatcherErrorMapped(t *testing.T) {
	dispatcher := &dispatcherStub{err: apperrors.NewBadRequest("unknown category \"newsletter\"", nil)}
	h := NewHandler(dispatcher, &requestRepoStub{}, &outcomeRepoStub{})

	w := postJSON(t, newRouter(h), "/api/v1/notifications", gin.H{
		"recipient_id": uuid.New().String(),
		"category":     "newsletter",
		"body":         "hello",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOutcomes(t *testing.T) {
	userID := uuid.New()
	outcomes := &outcomeRepoStub{outcomes: []*model.DeliveryOutcome{
		{ID: uuid.New(), UserID: userID, Channel: model.ChannelSMS, Status: model.OutcomeSent},
	}}
	h := NewHandler(&dispatcherStub{}, &requestRepoStub{}, outcomes)
	r := newRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/users/%s/outcomes", userID), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/users/%s/outcomes?from=yesterday", userID), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/not-a-uuid/outcomes", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
