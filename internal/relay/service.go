package relay

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dekaandassociates/booking-relay/internal/booking"
	"github.com/dekaandassociates/booking-relay/internal/config"
	"github.com/dekaandassociates/booking-relay/internal/credentials"
	"github.com/dekaandassociates/booking-relay/internal/logger"
	"github.com/dekaandassociates/booking-relay/internal/metrics"
	"github.com/dekaandassociates/booking-relay/internal/notifications"
	"github.com/dekaandassociates/booking-relay/internal/tokens"
	"golang.org/x/oauth2"
)

// Kind says how far a webhook call got through the pipeline.
type Kind string

const (
	KindFiltered   Kind = "filtered"
	KindNoTokens   Kind = "no_tokens"
	KindDispatched Kind = "dispatched"
)

// Result is the outcome of a handled event. Summary is set for KindDispatched.
type Result struct {
	Kind    Kind
	Summary notifications.Summary
}

// Credentials mints the bearer token used for the push gateway.
type Credentials interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	Invalidate()
}

// Service turns booking webhooks into admin push notifications.
type Service struct {
	tokens       tokens.Store
	credentials  Credentials
	dispatcher   *notifications.Dispatcher
	notification config.NotificationConfig
	metrics      *metrics.Metrics
	logger       *logger.Logger
}

// NewService wires the relay pipeline. creds is nil when no service account is
// configured; events that reach dispatch then fail with ErrMissingServiceAccount.
func NewService(
	store tokens.Store,
	creds Credentials,
	dispatcher *notifications.Dispatcher,
	notification config.NotificationConfig,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		tokens:       store,
		credentials:  creds,
		dispatcher:   dispatcher,
		notification: notification,
		metrics:      metrics,
		logger:       logger,
	}
}

// Handle runs one event through filter, token lookup, credential exchange and
// fan-out. Any returned error is fatal for the request; per-device failures
// are only reported in the summary.
func (s *Service) Handle(ctx context.Context, event *booking.Event) (Result, error) {
	log := s.logger.WithContext(ctx).WithComponent("relay")

	if !event.IsBookingInsert() {
		log.Debug("ignoring non-booking-insert event",
			slog.String("type", string(event.Type)),
			slog.String("table", event.Table))
		s.metrics.WebhookEvent(metrics.OutcomeFiltered)
		return Result{Kind: KindFiltered}, nil
	}

	ctx = logger.WithBookingID(ctx, event.Record.ID.String())
	log = s.logger.WithContext(ctx).WithComponent("relay")

	log.Info("🔔 new booking received",
		slog.String("business", event.Record.ResolveBusinessName(s.notification.DefaultBusiness)),
		slog.String("service", event.Record.ServiceDescription()))

	adminTokens, err := s.tokens.AdminTokens(ctx)
	if err != nil {
		log.Error("failed to retrieve admin tokens", slog.String("error", err.Error()))
		s.metrics.WebhookEvent(metrics.OutcomeFailed)
		return Result{}, err
	}

	if len(adminTokens) == 0 {
		log.Warn("no admin tokens registered, skipping dispatch")
		s.metrics.WebhookEvent(metrics.OutcomeNoTokens)
		return Result{Kind: KindNoTokens}, nil
	}

	if s.credentials == nil {
		log.Error("cannot dispatch without a service account")
		s.metrics.WebhookEvent(metrics.OutcomeFailed)
		return Result{}, credentials.ErrMissingServiceAccount
	}

	// Mint the bearer token once up front so a rejected credential fails the
	// request before any gateway call is made.
	if _, err := s.credentials.Token(ctx); err != nil {
		log.Error("failed to obtain bearer token", slog.String("error", err.Error()))
		s.metrics.WebhookEvent(metrics.OutcomeFailed)
		return Result{}, err
	}

	n := notifications.NewBookingNotification(event.Record, s.notification)
	summary := s.dispatcher.Dispatch(ctx, adminTokens, n)

	if rejectedBearer(summary) {
		log.Warn("gateway rejected the bearer token, dropping cached token")
		s.credentials.Invalidate()
	}

	s.metrics.WebhookEvent(metrics.OutcomeDispatched)
	return Result{Kind: KindDispatched, Summary: summary}, nil
}

func rejectedBearer(summary notifications.Summary) bool {
	for _, outcome := range summary.Outcomes {
		if outcome.StatusCode == http.StatusUnauthorized {
			return true
		}
	}
	return false
}
