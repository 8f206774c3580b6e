package notifications

import (
	"fmt"

	"github.com/dekaandassociates/booking-relay/internal/booking"
	"github.com/dekaandassociates/booking-relay/internal/config"
)

// NewBookingNotification builds the admin alert for a freshly inserted booking.
func NewBookingNotification(b *booking.Booking, cfg config.NotificationConfig) Notification {
	return Notification{
		Title: cfg.Title,
		Body:  fmt.Sprintf("New booking received from %s.", b.ResolveBusinessName(cfg.DefaultBusiness)),
		Data: map[string]string{
			"bookingId": b.ID.String(),
			"service":   b.ServiceDescription(),
		},
		Web: WebPush{
			Icon:               cfg.Icon,
			Badge:              cfg.Badge,
			Link:               cfg.Link,
			Urgency:            cfg.Urgency,
			RequireInteraction: cfg.RequireInteraction,
		},
	}
}
