// internal/crm/handler.go
package crm

import (
	"net/http"

	apperrors "intake-crm/internal/common/errors"
	"intake-crm/internal/common/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	config  *Config
	service *Service
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, service *Service, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"component": "crm-api"})
	return &Handler{
		config:  config,
		service: service,
		errors:  apperrors.NewErrorHandler(scoped),
		logger:  scoped,
	}
}

// Register mounts the application routes behind auth.
func (h *Handler) Register(r gin.IRouter, auth gin.HandlerFunc) {
	api := r.Group("/api/applications", auth)
	api.POST("/webhook", h.Webhook)
	api.GET("", h.List)
	api.GET("/:id", h.Get)
	api.PATCH("/:id", h.Update)
}

func (h *Handler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.errors.Respond(c, "crm_ingest_failed", apperrors.NewInvalidRequestError("unable to read request body"))
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), body)
	if err != nil {
		h.errors.Respond(c, "crm_ingest_failed", err)
		return
	}

	if !result.Created {
		c.JSON(http.StatusOK, WebhookResponse{
			Success:       true,
			Message:       "Application already exists",
			ApplicationID: result.ApplicationID,
		})
		return
	}

	c.JSON(http.StatusCreated, WebhookResponse{
		Success:       true,
		Message:       "Application saved to CRM",
		ApplicationID: result.ApplicationID,
	})
}

func (h *Handler) List(c *gin.Context) {
	params, err := ParseQueryParams(c.Request.URL.Query(), h.config)
	if err != nil {
		h.errors.Respond(c, "crm_list_failed", err)
		return
	}

	result, err := h.service.Query(c.Request.Context(), params)
	if err != nil {
		h.errors.Respond(c, "crm_list_failed", err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Count:   len(result.Items),
		Total:   result.Total,
		Page:    params.Page,
		Limit:   params.Limit,
		Data:    result.Items,
	})
}

func (h *Handler) Get(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.errors.Respond(c, "crm_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, RecordResponse{Success: true, Data: rec})
}

func (h *Handler) Update(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.errors.Respond(c, "crm_update_failed", apperrors.NewInvalidRequestError("unable to read request body"))
		return
	}

	rec, err := h.service.Update(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		h.errors.Respond(c, "crm_update_failed", err)
		return
	}
	c.JSON(http.StatusOK, RecordResponse{Success: true, Data: rec})
}
