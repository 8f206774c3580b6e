package contact

import (
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/dekaandassociates/booking-relay/internal/errors"
	"github.com/dekaandassociates/booking-relay/internal/logger"
	"github.com/dekaandassociates/booking-relay/internal/metrics"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewHandler(service *Service, metrics *metrics.Metrics, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		metrics: metrics,
		logger:  logger,
	}
}

// Submit handles POST /contact.
func (h *Handler) Submit(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("contact-handler")

	var req SubmitRequest
	if err := c.ShouldBind(&req); err != nil {
		log.Warn("failed to bind contact form", slog.String("error", err.Error()))
		apierrors.AbortWithBadRequest(c, "name, a valid email and message are required", map[string]any{
			"validation": err.Error(),
		})
		return
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Message) == "" {
		apierrors.AbortWithBadRequest(c, "name, a valid email and message are required", nil)
		return
	}

	submission, err := h.service.Submit(c.Request.Context(), &req)
	h.metrics.ContactSubmission(err == nil)
	if err != nil {
		log.Error("failed to store contact submission", slog.String("error", err.Error()))
		apierrors.AbortWithInternal(c, "failed to submit contact form", nil)
		return
	}

	log.Info("contact submission stored",
		slog.String("service", submission.Service),
		slog.Bool("has_phone", submission.Phone != nil))

	c.JSON(http.StatusCreated, gin.H{"success": true})
}
