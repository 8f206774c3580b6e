package relay

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dekaandassociates/booking-relay/internal/config"
	"github.com/dekaandassociates/booking-relay/internal/credentials"
	"github.com/dekaandassociates/booking-relay/internal/logger"
	"github.com/dekaandassociates/booking-relay/internal/notifications"
	"github.com/dekaandassociates/booking-relay/internal/upstream"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLog = logger.New(logger.Config{Level: slog.LevelError})

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	tokens []string
	err    error
}

func (s *fakeStore) AdminTokens(context.Context) ([]string, error) {
	return s.tokens, s.err
}

// fakeFCM records every message it receives and rejects the tokens in reject.
type fakeFCM struct {
	mu       sync.Mutex
	messages []map[string]any
	reject   map[string]int
}

func (f *fakeFCM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message map[string]any `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.messages = append(f.messages, body.Message)
	f.mu.Unlock()

	token, _ := body.Message["token"].(string)
	if status, ok := f.reject[token]; ok {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"code":%d,"status":"UNREGISTERED"}}`, status)
		return
	}
	fmt.Fprintf(w, `{"name":"projects/demo-project/messages/%s"}`, token)
}

func (f *fakeFCM) tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m["token"].(string))
	}
	return out
}

// tokenEndpoint answers assertion exchanges with status, or 200 and a token.
type tokenEndpoint struct {
	calls  atomic.Int32
	status int
	body   string
}

func (e *tokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := e.calls.Add(1)
	if e.status != 0 && e.status != http.StatusOK {
		w.WriteHeader(e.status)
		fmt.Fprint(w, e.body)
		return
	}
	fmt.Fprintf(w, `{"access_token":"ya29.relay-%d","token_type":"Bearer","expires_in":3599}`, call)
}

type harness struct {
	router   *gin.Engine
	fcm      *fakeFCM
	endpoint *tokenEndpoint
}

type harnessOptions struct {
	store         *fakeStore
	endpoint      *tokenEndpoint
	reject        map[string]int
	secret        string
	noCredentials bool
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	if opts.endpoint == nil {
		opts.endpoint = &tokenEndpoint{}
	}
	if opts.store == nil {
		opts.store = &fakeStore{}
	}

	tokenSrv := httptest.NewServer(opts.endpoint)
	t.Cleanup(tokenSrv.Close)

	fcm := &fakeFCM{reject: opts.reject}
	fcmSrv := httptest.NewServer(fcm)
	t.Cleanup(fcmSrv.Close)

	policy := upstream.Policy{Timeout: 2 * time.Second, BaseDelay: time.Millisecond}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]string{
		"project_id":   "demo-project",
		"client_email": "relay@demo-project.iam.gserviceaccount.com",
		"private_key":  string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
	})
	require.NoError(t, err)
	account, err := credentials.ParseServiceAccount(raw)
	require.NoError(t, err)

	provider := credentials.NewProvider(account, credentials.Options{
		TokenURL:   tokenSrv.URL,
		HTTPClient: tokenSrv.Client(),
		Policy:     policy,
	}, testLog)

	sender := notifications.NewHTTPSender(fcmSrv.URL, provider, fcmSrv.Client(), policy)
	dispatcher := notifications.NewDispatcher(sender, nil, testLog)

	var creds Credentials = provider
	if opts.noCredentials {
		creds = nil
	}

	service := NewService(opts.store, creds, dispatcher, config.DefaultNotification(), nil, testLog)
	handler := NewHandler(service, opts.secret, nil, testLog)

	router := gin.New()
	router.POST("/", handler.Webhook)

	return &harness{router: router, fcm: fcm, endpoint: opts.endpoint}
}

func (h *harness) post(t *testing.T, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

const acmeInsert = `{
	"type": "INSERT",
	"table": "bookings",
	"schema": "public",
	"record": {"id": "42", "business_name": "Acme Salon", "service": "Haircut", "status": "pending"},
	"old_record": null
}`

func TestWebhook_FiltersNonBookingInserts(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "update", body: `{"type":"UPDATE","table":"bookings","record":{"id":1},"old_record":{"id":1}}`},
		{name: "delete", body: `{"type":"DELETE","table":"bookings","record":null,"old_record":{"id":1}}`},
		{name: "insert into other table", body: `{"type":"INSERT","table":"contact_submissions","record":{"id":1}}`},
		{name: "lower-case update", body: `{"type":"update","table":"bookings","record":{"id":1}}`},
		{name: "other table with integer status", body: `{"type":"INSERT","table":"payments","record":{"id":1,"status":3}}`},
		{name: "update with numeric service", body: `{"type":"UPDATE","table":"services","record":{"id":1,"service":7}}`},
		{name: "other table with boolean id", body: `{"type":"INSERT","table":"profiles","record":{"id":true}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, harnessOptions{store: &fakeStore{tokens: []string{"a"}}})

			w, resp := h.post(t, tt.body, nil)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "Not a booking insert", resp["message"])
			assert.Empty(t, h.fcm.tokens())
			assert.Zero(t, h.endpoint.calls.Load())
		})
	}
}

func TestWebhook_NoAdminTokens(t *testing.T) {
	h := newHarness(t, harnessOptions{store: &fakeStore{}})

	w, resp := h.post(t, acmeInsert, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No admin tokens found.", resp["message"])
	assert.Empty(t, h.fcm.tokens())
	assert.Zero(t, h.endpoint.calls.Load())
}

func TestWebhook_OnePostPerToken(t *testing.T) {
	adminTokens := []string{"token-1", "token-2", "token-3", "token-4"}
	h := newHarness(t, harnessOptions{
		store:  &fakeStore{tokens: adminTokens},
		reject: map[string]int{"token-1": http.StatusNotFound},
	})

	w, resp := h.post(t, acmeInsert, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Notifications sent", resp["message"])
	assert.EqualValues(t, 3, resp["sent"])
	assert.EqualValues(t, 1, resp["failed"])
	assert.ElementsMatch(t, adminTokens, h.fcm.tokens())

	outcomes := resp["outcomes"].([]any)
	require.Len(t, outcomes, 4)
	first := outcomes[0].(map[string]any)
	assert.Equal(t, false, first["success"])
	assert.EqualValues(t, http.StatusNotFound, first["status"])
}

func TestWebhook_AllDeliveriesFailStillSucceeds(t *testing.T) {
	h := newHarness(t, harnessOptions{
		store:  &fakeStore{tokens: []string{"a", "b"}},
		reject: map[string]int{"a": http.StatusBadRequest, "b": http.StatusNotFound},
	})

	w, resp := h.post(t, acmeInsert, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.EqualValues(t, 0, resp["sent"])
	assert.EqualValues(t, 2, resp["failed"])
	assert.Len(t, h.fcm.tokens(), 2)
}

func TestWebhook_NotificationContent(t *testing.T) {
	h := newHarness(t, harnessOptions{store: &fakeStore{tokens: []string{"device"}}})

	w, _ := h.post(t, strings.Replace(acmeInsert, `"id": "42"`, `"id": 42`, 1), nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, h.fcm.messages, 1)
	msg := h.fcm.messages[0]
	notification := msg["notification"].(map[string]any)
	assert.Equal(t, "New Booking Alert!", notification["title"])
	assert.Equal(t, "New booking received from Acme Salon.", notification["body"])

	data := msg["data"].(map[string]any)
	assert.Equal(t, "42", data["bookingId"])
	assert.Equal(t, "Haircut", data["service"])
}

func TestWebhook_BusinessAndServiceFallbacks(t *testing.T) {
	tests := []struct {
		name        string
		record      string
		wantBody    string
		wantService string
	}{
		{
			name:        "nested relation",
			record:      `{"id":"7","services":["Haircut","Shave"],"businesses":{"name":"Barber Co"}}`,
			wantBody:    "New booking received from Barber Co.",
			wantService: "Haircut, Shave",
		},
		{
			name:        "literal default",
			record:      `{"id":"8","services":["Haircut","Shave"]}`,
			wantBody:    "New booking received from a client.",
			wantService: "Haircut, Shave",
		},
		{
			name:        "no service at all",
			record:      `{"id":"9","business_name":"Acme"}`,
			wantBody:    "New booking received from Acme.",
			wantService: "a service",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, harnessOptions{store: &fakeStore{tokens: []string{"device"}}})

			w, _ := h.post(t, `{"type":"INSERT","table":"bookings","record":`+tt.record+`}`, nil)
			require.Equal(t, http.StatusOK, w.Code)

			require.Len(t, h.fcm.messages, 1)
			msg := h.fcm.messages[0]
			assert.Equal(t, tt.wantBody, msg["notification"].(map[string]any)["body"])
			assert.Equal(t, tt.wantService, msg["data"].(map[string]any)["service"])
		})
	}
}

func TestWebhook_RejectedCredentials(t *testing.T) {
	endpoint := &tokenEndpoint{
		status: http.StatusUnauthorized,
		body:   `{"error":"invalid_grant","error_description":"Invalid JWT Signature."}`,
	}
	h := newHarness(t, harnessOptions{store: &fakeStore{tokens: []string{"a", "b"}}, endpoint: endpoint})

	w, resp := h.post(t, acmeInsert, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, resp["error"], "Invalid JWT Signature.")
	assert.Contains(t, resp["error"], "status 401")
	assert.Empty(t, h.fcm.tokens())
}

func TestWebhook_FatalErrors(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		h := newHarness(t, harnessOptions{store: &fakeStore{tokens: []string{"a"}}})

		w, resp := h.post(t, `{"type":`, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, resp["error"], "malformed webhook payload")
		assert.Empty(t, h.fcm.tokens())
	})

	t.Run("empty body", func(t *testing.T) {
		h := newHarness(t, harnessOptions{})

		w, resp := h.post(t, ``, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, resp["error"], "empty body")
	})

	t.Run("token store failure", func(t *testing.T) {
		h := newHarness(t, harnessOptions{store: &fakeStore{err: errors.New("connection refused")}})

		w, resp := h.post(t, acmeInsert, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, resp["error"], "connection refused")
	})

	t.Run("missing service account", func(t *testing.T) {
		h := newHarness(t, harnessOptions{store: &fakeStore{tokens: []string{"a"}}, noCredentials: true})

		w, resp := h.post(t, acmeInsert, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, credentials.ErrMissingServiceAccount.Error(), resp["error"])
		assert.Empty(t, h.fcm.tokens())
	})
}

func TestWebhook_Secret(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
	}{
		{name: "missing", wantCode: http.StatusUnauthorized},
		{name: "wrong bearer", headers: map[string]string{"Authorization": "Bearer nope"}, wantCode: http.StatusUnauthorized},
		{name: "bearer", headers: map[string]string{"Authorization": "Bearer s3cret"}, wantCode: http.StatusOK},
		{name: "header", headers: map[string]string{SecretHeader: "s3cret"}, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, harnessOptions{secret: "s3cret"})

			w, _ := h.post(t, acmeInsert, tt.headers)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestWebhook_ReusesBearerToken(t *testing.T) {
	h := newHarness(t, harnessOptions{store: &fakeStore{tokens: []string{"a", "b"}}})

	for range 3 {
		w, _ := h.post(t, acmeInsert, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, int32(1), h.endpoint.calls.Load())
	assert.Len(t, h.fcm.tokens(), 6)
}

func TestWebhook_GatewayRejectsBearer(t *testing.T) {
	h := newHarness(t, harnessOptions{
		store:  &fakeStore{tokens: []string{"a"}},
		reject: map[string]int{"a": http.StatusUnauthorized},
	})

	for range 2 {
		w, resp := h.post(t, acmeInsert, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, resp["failed"])
	}

	assert.Equal(t, int32(2), h.endpoint.calls.Load(), "a rejected bearer must be re-minted")
}
