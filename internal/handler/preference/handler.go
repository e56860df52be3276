package preference

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/havenloop/dispatch-api/internal/handler"
	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/repository"
)

type Handler struct {
	prefs repository.PreferenceRepository
}

func NewHandler(prefs repository.PreferenceRepository) *Handler {
	return &Handler{prefs: prefs}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/users/:id/preferences", h.Get)
	r.PUT("/users/:id/preferences", h.Update)
}

func (h *Handler) Get(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user id"))
		return
	}

	prefs, err := h.prefs.Get(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(prefs))
}

func (h *Handler) Update(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user id"))
		return
	}

	var update model.PreferenceUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.prefs.Upsert(c.Request.Context(), userID, &update); err != nil {
		c.Error(err)
		return
	}

	prefs, err := h.prefs.Get(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(prefs))
}
