package relay

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dekaandassociates/booking-relay/internal/booking"
	apierrors "github.com/dekaandassociates/booking-relay/internal/errors"
	"github.com/dekaandassociates/booking-relay/internal/logger"
	"github.com/dekaandassociates/booking-relay/internal/metrics"
	"github.com/dekaandassociates/booking-relay/internal/notifications"
	"github.com/gin-gonic/gin"
)

// SecretHeader is an alternative to the Authorization header for webhook sources
// that cannot send bearer tokens.
const SecretHeader = "X-Webhook-Secret"

// Handler serves the booking webhook.
type Handler struct {
	service *Service
	secret  string
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewHandler creates the webhook handler. An empty secret accepts every caller.
func NewHandler(service *Service, secret string, metrics *metrics.Metrics, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		secret:  secret,
		metrics: metrics,
		logger:  logger,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type dispatchResponse struct {
	Success  bool                    `json:"success"`
	Message  string                  `json:"message"`
	Sent     int                     `json:"sent"`
	Failed   int                     `json:"failed"`
	Outcomes []notifications.Outcome `json:"outcomes"`
}

// Webhook handles POST / with a database change event.
func (h *Handler) Webhook(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("webhook")

	if !h.authorized(c.Request) {
		log.Warn("rejected webhook with missing or wrong secret")
		apierrors.AbortWithUnauthorized(c, "invalid webhook secret", nil)
		return
	}

	event, err := booking.DecodeEvent(c.Request.Body)
	if err != nil {
		log.Error("failed to decode webhook payload", slog.String("error", err.Error()))
		h.metrics.WebhookEvent(metrics.OutcomeFailed)
		apierrors.AbortWithError(c, err)
		return
	}

	result, err := h.service.Handle(c.Request.Context(), event)
	if err != nil {
		apierrors.AbortWithError(c, err)
		return
	}

	switch result.Kind {
	case KindFiltered:
		c.JSON(http.StatusOK, messageResponse{Message: "Not a booking insert"})
	case KindNoTokens:
		c.JSON(http.StatusOK, messageResponse{Message: "No admin tokens found."})
	default:
		c.JSON(http.StatusOK, dispatchResponse{
			Success:  true,
			Message:  "Notifications sent",
			Sent:     result.Summary.Sent,
			Failed:   result.Summary.Failed,
			Outcomes: result.Summary.Outcomes,
		})
	}
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}

	presented := r.Header.Get(SecretHeader)
	if presented == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			presented = strings.TrimPrefix(auth, "Bearer ")
		}
	}

	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.secret)) == 1
}
