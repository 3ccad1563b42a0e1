package controller

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/pixgateway/internal/domain/pix"
	"github.com/cassiomorais/pixgateway/internal/infrastructure/config"
	"github.com/cassiomorais/pixgateway/internal/infrastructure/observability"
	"github.com/cassiomorais/pixgateway/internal/providers"
	"github.com/cassiomorais/pixgateway/internal/service"
	"github.com/cassiomorais/pixgateway/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a stand-in for the FairPayments API.
type fakeProvider struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Header: r.Header.Clone(), Body: body})
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeProvider) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

type testEnv struct {
	router     http.Handler
	provider   *fakeProvider
	dispatcher *testutil.MockDispatcher
}

func setupRouter(t *testing.T, handler http.HandlerFunc, clientOpts ...providers.FairClientOption) *testEnv {
	t.Helper()
	fp := &fakeProvider{handler: handler}
	srv := httptest.NewServer(fp)
	t.Cleanup(srv.Close)

	headers, err := providers.NewHeaderBuilder("sk_test", "company-1", "")
	require.NoError(t, err)

	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	gateway := providers.NewFairClient(srv.URL, clientOpts...)
	dispatcher := &testutil.MockDispatcher{}
	mapper := pix.NewMapper(pix.WithPublicBaseURL("https://gw.example.com/"))

	svc := service.NewPixService(gateway, headers, mapper, pix.MustSchemaValidator(), dispatcher, zerolog.Nop(), metrics)
	router := NewRouter(RouterDeps{
		PixService: svc,
		Metrics:    metrics,
		Logger:     zerolog.Nop(),
		CORSConfig: config.CORSConfig{AllowedOrigins: []string{"*"}},
	})
	return &testEnv{router: router, provider: fp, dispatcher: dispatcher}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func okCreate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"id":"tx_1","status":"waiting_payment","pix":{"qrcode":"000201"},"paymentUrl":"https://pay/tx_1"}`))
}

func TestLivenessRoutes(t *testing.T) {
	env := setupRouter(t, okCreate)

	w := env.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"message":"root OK"}`, w.Body.String())

	w = env.do(http.MethodGet, "/api", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"message":"/api OK"}`, w.Body.String())

	w = env.do(http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.provider.Requests())
}

func TestCreate_Success(t *testing.T) {
	env := setupRouter(t, okCreate)

	w := env.do(http.MethodPost, "/api/pix/create", testutil.ProductsOrder)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"transactionId": "tx_1",
		"qrUrl": "000201",
		"paymentUrl": "https://pay/tx_1",
		"pix": {"qrcode": "000201"}
	}`, w.Body.String())

	reqs := env.provider.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/transactions", reqs[0].Path)
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("sk_test:x")), reqs[0].Header.Get("Authorization"))
	assert.Equal(t, "company-1", reqs[0].Header.Get("x-company-id"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	assert.Equal(t, "BRL", sent["currency"])
	assert.Equal(t, "PIX", sent["paymentMethod"])
	assert.Equal(t, float64(11979), sent["amount"])
	assert.Equal(t, "https://gw.example.com/api/webhook/pix", sent["postbackUrl"])
	assert.Equal(t, "Order A1", sent["description"])
	assert.Equal(t, map[string]any{"name": "Ana", "email": "ana@example.com", "document": "12345678909"}, sent["customer"])
}

func TestCreate_UpstreamErrorPassthrough(t *testing.T) {
	env := setupRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"insufficient"}`))
	})

	w := env.do(http.MethodPost, "/api/pix/create", testutil.AmountOrder)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.JSONEq(t, `{"error":"insufficient"}`, w.Body.String())
}

func TestCreate_UpstreamNonJSONBody(t *testing.T) {
	env := setupRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})

	w := env.do(http.MethodPost, "/api/pix/create", testutil.AmountOrder)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `"upstream exploded"`, w.Body.String())
}

func TestCreate_TransportFailureIs500(t *testing.T) {
	env := setupRouter(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		okCreate(w, r)
	}, providers.WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))

	w := env.do(http.MethodPost, "/api/pix/create", testutil.AmountOrder)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["message"])
	assert.Len(t, body, 1)
}

func TestCreate_ValidationError(t *testing.T) {
	env := setupRouter(t, okCreate)

	w := env.do(http.MethodPost, "/api/pix/create", `{"customer": {"name": "x"}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Code)
	assert.Equal(t, "amount", body.Field)
	assert.NotEmpty(t, body.Message)
	assert.Empty(t, env.provider.Requests(), "provider must not be called")
}

func TestStatus_RawBodyAndEscapedID(t *testing.T) {
	doc := `{"id":"a/b","status":"paid","custom":{"x":[1,2,3]}}`
	env := setupRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	})

	w := env.do(http.MethodGet, "/api/pix/status/a%2Fb", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, doc, w.Body.String())

	reqs := env.provider.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/transactions/a%2Fb", reqs[0].Path)
}

func TestStatus_NonJSONBodyIsEncoded(t *testing.T) {
	env := setupRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("paid"))
	})

	w := env.do(http.MethodGet, "/api/pix/status/tx_1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `"paid"`, w.Body.String())
}

func TestStatus_NotFoundPassthrough(t *testing.T) {
	env := setupRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	w := env.do(http.MethodGet, "/api/pix/status/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Request failed with status code 404"}`, w.Body.String())
}

func TestWebhook_AlwaysOK(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		dispatched int
	}{
		{"well formed", testutil.WebhookPaid, 1},
		{"missing data", `{"id":"x"}`, 0},
		{"not json", `garbage`, 0},
		{"empty", ``, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupRouter(t, okCreate)

			w := env.do(http.MethodPost, "/api/webhook/pix", tt.body)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "OK", w.Body.String())
			assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
			assert.Len(t, env.dispatcher.Events(), tt.dispatched)
			assert.Empty(t, env.provider.Requests())
		})
	}
}

func TestWebhook_OKWhenQueueFull(t *testing.T) {
	env := setupRouter(t, okCreate)
	env.dispatcher.Reject = true

	w := env.do(http.MethodPost, "/api/webhook/pix", testutil.WebhookPaid)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhook_OKWhenSinkFails(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	sink := testutil.NewRecordingSink("failing")
	sink.Err = errors.New("sink down")
	dispatcher := service.NewWebhookDispatcher(service.DispatcherConfig{Workers: 1}, zerolog.Nop(), metrics, sink)

	headers, err := providers.NewHeaderBuilder("sk_test", "", "")
	require.NoError(t, err)
	svc := service.NewPixService(testutil.NewMockGateway(), headers, pix.NewMapper(), pix.MustSchemaValidator(), dispatcher, zerolog.Nop(), metrics)
	router := NewRouter(RouterDeps{PixService: svc, Metrics: metrics, Logger: zerolog.Nop()})

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = dispatcher.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/webhook/pix", strings.NewReader(testutil.WebhookPaid)))

	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, sink.WaitFor(1, time.Second))
}

func TestUnknownRoute(t *testing.T) {
	env := setupRouter(t, okCreate)

	w := env.do(http.MethodGet, "/api/pix/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	svc := service.NewPixService(testutil.NewMockGateway(), mustHeaders(t), pix.NewMapper(), pix.MustSchemaValidator(), &testutil.MockDispatcher{}, zerolog.Nop(), metrics)

	hidden := NewRouter(RouterDeps{PixService: svc, Metrics: metrics, Logger: zerolog.Nop()})
	w := httptest.NewRecorder()
	hidden.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	exposed := NewRouter(RouterDeps{PixService: svc, Metrics: metrics, Logger: zerolog.Nop(), ExposeMetrics: true})
	w = httptest.NewRecorder()
	exposed.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func mustHeaders(t *testing.T) *providers.HeaderBuilder {
	t.Helper()
	b, err := providers.NewHeaderBuilder("sk_test", "", "")
	require.NoError(t, err)
	return b
}
