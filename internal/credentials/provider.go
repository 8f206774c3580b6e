package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dekaandassociates/booking-relay/internal/logger"
	"github.com/dekaandassociates/booking-relay/internal/metrics"
	"github.com/dekaandassociates/booking-relay/internal/upstream"
	"golang.org/x/oauth2"
)

const (
	// GrantTypeJWTBearer is the OAuth grant for exchanging a signed assertion.
	GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// DefaultTokenURL is Google's OAuth token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	// MessagingScope authorises sends through the FCM HTTP v1 API.
	MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

	// expiryDelta refreshes a cached token slightly before it actually expires.
	expiryDelta = time.Minute

	maxErrorBody = 64 << 10
)

// ExchangeError is returned when the identity provider rejects an assertion.
// Body is the provider's response, kept for diagnosis.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("failed to get Google access token (status %d): %s", e.StatusCode, e.Body)
}

// Options configures a Provider. Zero values select Google's endpoint and the
// messaging scope.
type Options struct {
	TokenURL   string
	Scope      string
	HTTPClient *http.Client
	Policy     upstream.Policy
	Metrics    *metrics.Metrics

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Provider mints bearer tokens for the push gateway from a service account and
// caches each one until shortly before it expires.
type Provider struct {
	account    *ServiceAccount
	tokenURL   string
	scope      string
	httpClient *http.Client
	policy     upstream.Policy
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *logger.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewProvider creates a provider for account. The account's token_uri is used
// when opts does not name a token endpoint.
func NewProvider(account *ServiceAccount, opts Options, logger *logger.Logger) *Provider {
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = account.TokenURI
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	scope := opts.Scope
	if scope == "" {
		scope = MessagingScope
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Provider{
		account:    account,
		tokenURL:   tokenURL,
		scope:      scope,
		httpClient: httpClient,
		policy:     opts.Policy,
		metrics:    opts.Metrics,
		now:        now,
		logger:     logger,
	}
}

// ProjectID returns the Firebase project the service account belongs to.
func (p *Provider) ProjectID() string {
	return p.account.ProjectID
}

// Token returns a valid bearer token, exchanging a fresh assertion when the
// cached one is missing or about to expire. Concurrent callers share one exchange.
func (p *Provider) Token(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.valid(p.token) {
		return p.token, nil
	}

	token, err := p.exchange(ctx)
	if err != nil {
		p.metrics.TokenExchange(false)
		return nil, err
	}
	p.metrics.TokenExchange(true)

	p.token = token
	return token, nil
}

// Invalidate drops the cached token so the next call mints a new one.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.token = nil
	p.mu.Unlock()
}

// TokenSource adapts the provider to oauth2.TokenSource. ctx bounds every
// exchange made through the returned source.
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, provider: p}
}

type tokenSource struct {
	ctx      context.Context
	provider *Provider
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	return s.provider.Token(s.ctx)
}

func (p *Provider) valid(token *oauth2.Token) bool {
	if token == nil || token.AccessToken == "" {
		return false
	}
	return p.now().Add(expiryDelta).Before(token.Expiry)
}

func (p *Provider) exchange(ctx context.Context) (*oauth2.Token, error) {
	log := p.logger.WithContext(ctx).WithComponent("credentials")

	assertion, err := p.account.SignAssertion(p.tokenURL, p.scope, p.now())
	if err != nil {
		return nil, err
	}

	var token *oauth2.Token
	err = upstream.Do(ctx, p.policy, func(ctx context.Context) error {
		t, err := p.postAssertion(ctx, assertion)
		if err != nil {
			log.Warn("token exchange attempt failed", slog.String("error", err.Error()))
			return err
		}
		token = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("minted bearer token",
		slog.String("client_email", p.account.ClientEmail),
		slog.Time("expires_at", token.Expiry))

	return token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (p *Provider) postAssertion(ctx context.Context, assertion string) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type": {GrantTypeJWTBearer},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, upstream.Retryable(fmt.Errorf("failed to call token endpoint: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, upstream.Retryable(fmt.Errorf("failed to read token response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		exchangeErr := &ExchangeError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if upstream.IsRetryableStatus(resp.StatusCode) {
			return nil, upstream.Retryable(exchangeErr)
		}
		return nil, exchangeErr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	lifetime := AssertionLifetime
	if tr.ExpiresIn > 0 {
		lifetime = time.Duration(tr.ExpiresIn) * time.Second
	}

	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		Expiry:      p.now().Add(lifetime),
	}, nil
}
