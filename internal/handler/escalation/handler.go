package escalation

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/havenloop/dispatch-api/internal/handler"
	"github.com/havenloop/dispatch-api/internal/repository"
	"github.com/havenloop/dispatch-api/internal/service/escalation"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
)

type Handler struct {
	svc       escalation.Service
	summaries repository.SummaryRepository
}

func NewHandler(svc escalation.Service, summaries repository.SummaryRepository) *Handler {
	return &Handler{svc: svc, summaries: summaries}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/crisis/escalate", h.Escalate)
	r.GET("/crisis/summaries/:id", h.GetSummary)
	r.GET("/users/:id/crisis/summaries", h.ListSummaries)
}

type escalateRequest struct {
	UserID  uuid.UUID `json:"user_id" binding:"required"`
	Message string    `json:"message" binding:"required"`
}

func (h *Handler) Escalate(c *gin.Context) {
	var req escalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	summary, err := h.svc.Escalate(c.Request.Context(), req.UserID, req.Message)
	if err != nil {
		// No one could be reached is an honest signal, not a 500. The
		// summary, when present, still goes back for accounting.
		if apperrors.HasCode(err, apperrors.ErrNoEligibleContacts) {
			c.JSON(http.StatusConflict, &handler.Response{
				Status:  "error",
				Message: err.Error(),
				Data:    summary,
			})
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func (h *Handler) GetSummary(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid summary id"))
		return
	}

	summary, err := h.summaries.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func (h *Handler) ListSummaries(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user id"))
		return
	}

	to := time.Now()
	from := to.AddDate(0, -1, 0)
	summaries, err := h.summaries.ListByUser(c.Request.Context(), userID, from, to)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summaries))
}
