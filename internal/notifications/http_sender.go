package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dekaandassociates/booking-relay/internal/upstream"
	"golang.org/x/oauth2"
)

// DefaultFCMBaseURL is the FCM HTTP v1 API host.
const DefaultFCMBaseURL = "https://fcm.googleapis.com"

const maxErrorBody = 64 << 10

// BearerSource supplies the bearer token and project for FCM calls.
type BearerSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	ProjectID() string
}

// HTTPSender posts messages to the FCM HTTP v1 send endpoint.
type HTTPSender struct {
	baseURL    string
	bearer     BearerSource
	httpClient *http.Client
	policy     upstream.Policy
}

func NewHTTPSender(baseURL string, bearer BearerSource, httpClient *http.Client, policy upstream.Policy) *HTTPSender {
	if baseURL == "" {
		baseURL = DefaultFCMBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPSender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bearer:     bearer,
		httpClient: httpClient,
		policy:     policy,
	}
}

type sendRequest struct {
	Message v1Message `json:"message"`
}

type v1Message struct {
	Token        string            `json:"token"`
	Notification v1Notification    `json:"notification"`
	Webpush      *v1Webpush        `json:"webpush,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
}

type v1Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type v1Webpush struct {
	Headers      map[string]string     `json:"headers,omitempty"`
	Notification v1WebpushNotification `json:"notification"`
}

type v1WebpushNotification struct {
	Icon               string `json:"icon,omitempty"`
	Badge              string `json:"badge,omitempty"`
	ClickAction        string `json:"click_action,omitempty"`
	RequireInteraction bool   `json:"requireInteraction"`
}

type sendResponse struct {
	Name string `json:"name"`
}

func newV1Message(token string, n Notification) v1Message {
	msg := v1Message{
		Token:        token,
		Notification: v1Notification{Title: n.Title, Body: n.Body},
		Data:         n.Data,
		Webpush: &v1Webpush{
			Notification: v1WebpushNotification{
				Icon:               n.Web.Icon,
				Badge:              n.Web.Badge,
				ClickAction:        n.Web.Link,
				RequireInteraction: n.Web.RequireInteraction,
			},
		},
	}
	if n.Web.Urgency != "" {
		msg.Webpush.Headers = map[string]string{"Urgency": n.Web.Urgency}
	}
	return msg
}

func (s *HTTPSender) Send(ctx context.Context, token string, n Notification) (string, error) {
	bearer, err := s.bearer.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get bearer token: %w", err)
	}

	payload, err := json.Marshal(sendRequest{Message: newV1Message(token, n)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send", s.baseURL, s.bearer.ProjectID())

	var messageID string
	err = upstream.Do(ctx, s.policy, func(ctx context.Context) error {
		id, err := s.post(ctx, endpoint, bearer.AccessToken, payload)
		if err != nil {
			return err
		}
		messageID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	return messageID, nil
}

func (s *HTTPSender) post(ctx context.Context, endpoint, accessToken string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", upstream.Retryable(fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", upstream.Retryable(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		deliveryErr := &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if upstream.IsRetryableStatus(resp.StatusCode) {
			return "", upstream.Retryable(deliveryErr)
		}
		return "", deliveryErr
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("failed to decode send response: %w", err)
	}

	return sr.Name, nil
}
