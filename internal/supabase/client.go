package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dekaandassociates/booking-relay/internal/upstream"
)

// Error is a non-2xx response from the Supabase REST API.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to a Supabase project's PostgREST and auth endpoints with the
// service-role key, which bypasses row-level security.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	policy     upstream.Policy
}

// NewClient creates a client for the project at baseURL.
func NewClient(baseURL, serviceKey string, httpClient *http.Client, policy upstream.Policy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: httpClient,
		policy:     policy,
	}
}

// Select reads every row of table, projecting columns, into dest.
// Reads are idempotent and retried on 5xx.
func (c *Client) Select(ctx context.Context, table, columns string, dest any) error {
	endpoint := c.restURL(table) + "?" + url.Values{"select": {columns}}.Encode()

	return upstream.Do(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create select request: %w", err)
		}

		body, err := c.do(req)
		if err != nil {
			return err
		}

		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("failed to decode %s rows: %w", table, err)
		}
		return nil
	})
}

// Insert writes rows into table. Inserts are attempted once.
func (c *Client) Insert(ctx context.Context, table string, rows any) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal %s rows: %w", table, err)
	}

	policy := c.policy
	policy.MaxRetries = 0

	return upstream.Do(ctx, policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL(table), bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create insert request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=minimal")

		_, err = c.do(req)
		return err
	})
}

// AuthorizeURL is the hosted OAuth sign-in URL for provider, returning the
// browser to redirectTo afterwards.
func (c *Client) AuthorizeURL(provider, redirectTo string) string {
	query := url.Values{
		"provider":    {provider},
		"redirect_to": {redirectTo},
	}
	return c.baseURL + "/auth/v1/authorize?" + query.Encode()
}

func (c *Client) restURL(table string) string {
	return c.baseURL + "/rest/v1/" + url.PathEscape(table)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, upstream.Retryable(fmt.Errorf("failed to call supabase: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, upstream.Retryable(fmt.Errorf("failed to read supabase response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if upstream.IsRetryableStatus(resp.StatusCode) {
			return nil, upstream.Retryable(apiErr)
		}
		return nil, apiErr
	}

	return body, nil
}
