// internal/intake/handler.go
package intake

import (
	"net/http"
	"time"

	apperrors "intake-crm/internal/common/errors"
	"intake-crm/internal/common/logger"
	"intake-crm/internal/common/metrics"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
	relay   Relayer
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(service *Service, relay Relayer, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"component": "intake-api"})
	return &Handler{
		service: service,
		relay:   relay,
		errors:  apperrors.NewErrorHandler(scoped),
		logger:  scoped,
	}
}

// Register mounts the intake routes under /api.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/submit", h.Submit)
	api.GET("/applications", h.List)
	api.GET("/applications/:id", h.Get)
}

func (h *Handler) Submit(c *gin.Context) {
	start := time.Now()
	defer func() {
		metrics.ApplicationSubmissionDuration.Observe(time.Since(start).Seconds())
	}()

	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, apperrors.NewInvalidRequestError("unable to read request body"))
		return
	}

	rec, err := h.service.Submit(c.Request.Context(), body)
	if err != nil {
		h.fail(c, err)
		return
	}

	metrics.ApplicationSubmissions.Inc()

	// the record is committed; the relay runs detached from this request
	h.relay.Dispatch(*rec)

	c.JSON(http.StatusCreated, SubmitResponse{
		Success:       true,
		Message:       "Application submitted successfully",
		ApplicationID: rec.ApplicationID,
		TransactionID: rec.TransactionID,
		SessionID:     rec.SessionID,
		ThankYouURL:   rec.ThankYouURL,
		Data:          rec,
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	metrics.ApplicationSubmissionErrors.WithLabelValues(string(apperrors.As(err).Code)).Inc()
	h.errors.Respond(c, "submit_failed", err)
}

func (h *Handler) List(c *gin.Context) {
	records, err := h.service.List(c.Request.Context())
	if err != nil {
		h.errors.Respond(c, "list_failed", err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Count:   len(records),
		Data:    records,
	})
}

func (h *Handler) Get(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.errors.Respond(c, "get_failed", err)
		return
	}

	c.JSON(http.StatusOK, GetResponse{Success: true, Data: rec})
}
