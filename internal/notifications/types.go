package notifications

import (
	"context"
	"fmt"
)

// Notification is one push, addressed to any number of devices.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
	Web   WebPush
}

// WebPush carries browser presentation hints.
type WebPush struct {
	Icon               string
	Badge              string
	Link               string
	Urgency            string
	RequireInteraction bool
}

// Sender delivers a notification to a single device token and returns the
// gateway's message ID.
type Sender interface {
	Send(ctx context.Context, token string, n Notification) (string, error)
}

// DeliveryError is returned when the gateway rejects a message.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("FCM send failed (status %d): %s", e.StatusCode, e.Body)
}

// Outcome is the result of sending to one device. Token is redacted.
type Outcome struct {
	Token      string `json:"token"`
	Success    bool   `json:"success"`
	MessageID  string `json:"messageId,omitempty"`
	StatusCode int    `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Summary describes a settled fan-out. Outcomes follow the order of the input tokens.
type Summary struct {
	Total    int       `json:"total"`
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
}
