package notification

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/havenloop/dispatch-api/internal/handler"
	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/repository"
	"github.com/havenloop/dispatch-api/internal/service/dispatch"
)

type Handler struct {
	dispatcher dispatch.Service
	requests   repository.RequestRepository
	outcomes   repository.OutcomeRepository
}

func NewHandler(dispatcher dispatch.Service, requests repository.RequestRepository, outcomes repository.OutcomeRepository) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		requests:   requests,
		outcomes:   outcomes,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/notifications", h.Create)
	r.GET("/users/:id/outcomes", h.ListOutcomes)
}

type createRequest struct {
	RecipientID    uuid.UUID       `json:"recipient_id" binding:"required"`
	Category       model.Category  `json:"category" binding:"required"`
	Priority       model.Priority  `json:"priority"`
	Title          string          `json:"title"`
	Body           string          `json:"body" binding:"required"`
	Payload        json.RawMessage `json:"payload"`
	ScheduledFor   *time.Time      `json:"scheduled_for"`
	Channel        *model.Channel  `json:"channel"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Create dispatches immediately, or enqueues when scheduled_for is in the
// future.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if req.Priority == "" {
		req.Priority = model.PriorityNormal
	}

	notification := &model.NotificationRequest{
		ID:              uuid.New(),
		RecipientID:     req.RecipientID,
		Category:        req.Category,
		Priority:        req.Priority,
		Title:           req.Title,
		Body:            req.Body,
		Payload:         req.Payload,
		ScheduledFor:    req.ScheduledFor,
		ChannelOverride: req.Channel,
		IdempotencyKey:  req.IdempotencyKey,
		Status:          model.RequestStatusPending,
		CreatedAt:       time.Now(),
	}

	if req.ScheduledFor != nil && req.ScheduledFor.After(time.Now()) {
		if err := h.requests.Enqueue(c.Request.Context(), notification); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusAccepted, handler.NewSuccessResponse(gin.H{
			"notification_id": notification.ID,
			"status":          "scheduled",
			"scheduled_for":   req.ScheduledFor,
		}))
		return
	}

	outcomes, err := h.dispatcher.Dispatch(c.Request.Context(), notification)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"notification_id": notification.ID,
		"outcomes":        outcomes,
	}))
}

func (h *Handler) ListOutcomes(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user id"))
		return
	}

	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	outcomes, err := h.outcomes.ListByUser(c.Request.Context(), userID, from, to)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(outcomes))
}

func parseTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -7)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}
	return from, to, nil
}
