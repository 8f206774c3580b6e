package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dekaandassociates/booking-relay/internal/logger"
	"github.com/dekaandassociates/booking-relay/internal/metrics"
)

// Dispatcher fans a notification out to many devices at once.
type Dispatcher struct {
	sender  Sender
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewDispatcher creates a dispatcher that delivers through sender.
func NewDispatcher(sender Sender, metrics *metrics.Metrics, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		metrics: metrics,
		logger:  logger,
	}
}

// Dispatch sends n to every token concurrently and waits for all of them to
// settle. A failed delivery never cancels or fails its siblings; it is logged
// and reported in the summary.
func (d *Dispatcher) Dispatch(ctx context.Context, tokens []string, n Notification) Summary {
	log := d.logger.WithContext(ctx).WithComponent("push-notifications")
	start := time.Now()

	log.Info("📤 sending to devices",
		slog.Int("device_count", len(tokens)),
		slog.String("title", n.Title))

	outcomes := make([]Outcome, len(tokens))

	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.sendToDevice(ctx, log, i, len(tokens), token, n)
		}()
	}
	wg.Wait()

	summary := Summary{Total: len(tokens), Outcomes: outcomes}
	for _, outcome := range outcomes {
		if outcome.Success {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}

	d.metrics.ObserveDispatch(time.Since(start))

	log.Info("📊 notification summary",
		slog.Int("total_devices", summary.Total),
		slog.Int("successful", summary.Sent),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", time.Since(start)))

	switch {
	case summary.Sent == summary.Total:
		log.Info("✅ all notifications sent successfully")
	case summary.Sent > 0:
		log.Warn("⚠️  partial success",
			slog.String("status", fmt.Sprintf("%d/%d sent", summary.Sent, summary.Total)))
	default:
		log.Error("❌ all notifications failed")
	}

	return summary
}

// sendToDevice delivers to a single device.
func (d *Dispatcher) sendToDevice(
	ctx context.Context,
	log *logger.Logger,
	idx, total int,
	token string,
	n Notification,
) Outcome {
	outcome := Outcome{Token: logger.TokenPrefix(token)}

	messageID, err := d.sender.Send(ctx, token, n)
	d.metrics.Delivery(err == nil)

	if err != nil {
		outcome.Error = err.Error()
		var deliveryErr *DeliveryError
		if errors.As(err, &deliveryErr) {
			outcome.StatusCode = deliveryErr.StatusCode
		}
		log.Error(fmt.Sprintf("device %d/%d ❌ failed", idx+1, total),
			slog.String("token_prefix", outcome.Token),
			slog.Int("status", outcome.StatusCode),
			slog.String("error", outcome.Error))
		return outcome
	}

	outcome.Success = true
	outcome.MessageID = messageID
	log.Info(fmt.Sprintf("device %d/%d ✅ sent", idx+1, total),
		slog.String("token_prefix", outcome.Token),
		slog.String("response", messageID))

	return outcome
}
