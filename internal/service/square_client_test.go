package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kosmo-admin/internal/config"
	"kosmo-admin/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSquareClient(t *testing.T, handler http.HandlerFunc, token string) (*SquareClient, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	c := NewSquareClient(config.SquareConfig{
		Environment: "sandbox",
		AccessToken: token,
		Timeout:     2 * time.Second,
		BaseURL:     srv.URL,
	}, m, zap.NewNop())
	c.httpClient.SetRetryCount(0)
	return c, m
}

func TestSquareCreateCustomer(t *testing.T) {
	var got SquareCustomerRequest
	c, m := newTestSquareClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/customers", r.URL.Path)
		assert.Equal(t, "Bearer sq-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"customer":{"id":"CUST_9","reference_id":"tenant_3"}}`))
	}, "sq-token")

	customer, err := c.CreateCustomer(context.Background(), SquareCustomerRequest{
		IdempotencyKey: "tenant_3_1",
		GivenName:      "Acme",
		EmailAddress:   "a@acme.com",
		ReferenceID:    "tenant_3",
	})
	require.NoError(t, err)
	assert.Equal(t, "CUST_9", customer.ID)
	assert.Equal(t, "tenant_3_1", got.IdempotencyKey)
	assert.Equal(t, "a@acme.com", got.EmailAddress)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SquareRequestsTotal.WithLabelValues("create_customer", "ok")))
}

func TestSquareCreateCustomer_APIError(t *testing.T) {
	c, m := newTestSquareClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"INVALID_EMAIL_ADDRESS","detail":"bad email"}]}`))
	}, "sq-token")

	_, err := c.CreateCustomer(context.Background(), SquareCustomerRequest{ReferenceID: "tenant_3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
	assert.Contains(t, err.Error(), "INVALID_EMAIL_ADDRESS")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SquareRequestsTotal.WithLabelValues("create_customer", "error")))
}

func TestSquareClient_NotConnected(t *testing.T) {
	c := NewSquareClient(config.SquareConfig{Environment: "production"}, nil, zap.NewNop())
	assert.False(t, c.Connected())
	assert.Equal(t, "production", c.Environment())

	_, err := c.CreateCustomer(context.Background(), SquareCustomerRequest{})
	assert.Error(t, err)
}
