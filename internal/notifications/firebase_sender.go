package notifications

import (
	"context"
	"strings"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"github.com/dekaandassociates/booking-relay/internal/upstream"
)

// FirebaseSender sends through the Firebase Admin SDK.
type FirebaseSender struct {
	client *messaging.Client
	policy upstream.Policy
}

func NewFirebaseSender(client *messaging.Client, policy upstream.Policy) *FirebaseSender {
	return &FirebaseSender{client: client, policy: policy}
}

func (s *FirebaseSender) Send(ctx context.Context, token string, n Notification) (string, error) {
	msg := newMessage(token, n)

	var messageID string
	err := upstream.Do(ctx, s.policy, func(ctx context.Context) error {
		id, err := s.client.Send(ctx, msg)
		if err != nil {
			if retryableSDKError(err) {
				return upstream.Retryable(sdkDeliveryError(err))
			}
			return sdkDeliveryError(err)
		}
		messageID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	return messageID, nil
}

// sdkDeliveryError carries the gateway status of an SDK error so callers can
// tell a rejected bearer token from other failures.
func sdkDeliveryError(err error) error {
	resp := errorutils.HTTPResponse(err)
	if resp == nil {
		return err
	}
	return &DeliveryError{StatusCode: resp.StatusCode, Body: err.Error()}
}

func retryableSDKError(err error) bool {
	return errorutils.IsInternal(err) || errorutils.IsUnavailable(err) || errorutils.IsDeadlineExceeded(err)
}

func newMessage(token string, n Notification) *messaging.Message {
	webpush := &messaging.WebpushConfig{
		Notification: &messaging.WebpushNotification{
			Title:              n.Title,
			Body:               n.Body,
			Icon:               n.Web.Icon,
			Badge:              n.Web.Badge,
			RequireInteraction: n.Web.RequireInteraction,
		},
	}
	if n.Web.Urgency != "" {
		webpush.Headers = map[string]string{"Urgency": n.Web.Urgency}
	}
	if n.Web.Link != "" {
		webpush.Notification.CustomData = map[string]interface{}{"click_action": n.Web.Link}
		// The SDK rejects non-HTTPS links.
		if strings.HasPrefix(n.Web.Link, "https://") {
			webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: n.Web.Link}
		}
	}

	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Webpush: webpush,
		Data:    n.Data,
	}
}
