package contact

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/havenloop/dispatch-api/internal/handler"
	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/internal/repository"
	"github.com/havenloop/dispatch-api/internal/sender"
)

type Handler struct {
	contacts repository.ContactRepository
}

func NewHandler(contacts repository.ContactRepository) *Handler {
	return &Handler{contacts: contacts}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/users/:id/contacts", h.List)
	r.POST("/users/:id/contacts", h.Create)
	r.PUT("/users/:id/contacts/:contactID", h.Update)
	r.DELETE("/users/:id/contacts/:contactID", h.Delete)
	// Separate path, gin cannot mix a static segment with :contactID.
	r.PUT("/users/:id/contact-order", h.Reorder)
}

type contactRequest struct {
	Name         string        `json:"name" binding:"required"`
	Address      string        `json:"address" binding:"required"`
	Channel      model.Channel `json:"channel" binding:"required"`
	Relationship string        `json:"relationship"`
	Categories   []string      `json:"categories"`
	Active       *bool         `json:"active"`
}

func (h *Handler) List(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user id"))
		return
	}

	contacts, err := h.contacts.ListActive(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(contacts))
}

func (h *Handler) Create(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user id"))
		return
	}

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if !req.Channel.Valid() || req.Channel == model.ChannelInApp {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("contact channel must be sms or email"))
		return
	}
	if err := sender.ValidateAddress(req.Channel, req.Address); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	categories := req.Categories
	if len(categories) == 0 {
		categories = []string{string(model.CategoryCrisisAlert)}
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	contact := &model.EmergencyContact{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         req.Name,
		Address:      req.Address,
		Channel:      req.Channel,
		Relationship: req.Relationship,
		Categories:   pq.StringArray(categories),
		Active:       active,
	}
	if err := h.contacts.Create(c.Request.Context(), contact); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(contact))
}

func (h *Handler) Update(c *gin.Context) {
	contactID, err := uuid.Parse(c.Param("contactID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid contact id"))
		return
	}

	existing, err := h.contacts.Get(c.Request.Context(), contactID)
	if err != nil {
		c.Error(err)
		return
	}

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := sender.ValidateAddress(req.Channel, req.Address); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	existing.Name = req.Name
	existing.Address = req.Address
	existing.Channel = req.Channel
	existing.Relationship = req.Relationship
	if len(req.Categories) > 0 {
		existing.Categories = pq.StringArray(req.Categories)
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}

	if err := h.contacts.Update(c.Request.Context(), existing); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(existing))
}

func (h *Handler) Delete(c *gin.Context) {
	contactID, err := uuid.Parse(c.Param("contactID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid contact id"))
		return
	}

	if err := h.contacts.Delete(c.Request.Context(), contactID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

type reorderRequest struct {
	OrderedIDs []uuid.UUID `json:"ordered_ids" binding:"required"`
}

func (h *Handler) Reorder(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user id"))
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.contacts.Reorder(c.Request.Context(), userID, req.OrderedIDs); err != nil {
		c.Error(err)
		return
	}

	contacts, err := h.contacts.ListActive(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(contacts))
}
