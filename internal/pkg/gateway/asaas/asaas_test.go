package asaas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tricket/tricket-integrations/internal/pkg/gateway"
)

func TestCreateTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transfers", r.URL.Path)
		assert.Equal(t, "payer-key", r.Header.Get("access_token"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wallet-rcv", body["walletId"])
		assert.Equal(t, 150.75, body["value"])
		assert.Equal(t, "rent", body["description"])

		_, _ = w.Write([]byte(`{"id":"tra_1","value":150.75,"status":"PENDING","walletId":"wallet-rcv"}`))
	}))
	defer srv.Close()

	c := New(gateway.NewClient(ServiceName, srv.URL))
	tr, raw, err := c.CreateTransfer(context.Background(), "payer-key", TransferRequest{
		WalletID:    "wallet-rcv",
		Value:       decimal.RequireFromString("150.75"),
		Description: "rent",
	})
	require.NoError(t, err)
	assert.Equal(t, "tra_1", tr.ID)
	assert.True(t, decimal.RequireFromString("150.75").Equal(tr.Value))
	assert.Equal(t, "PENDING", tr.Status)
	assert.NotNil(t, raw)
}

func TestCreateTransferUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"insufficient_balance"}]}`))
	}))
	defer srv.Close()

	_, _, err := New(gateway.NewClient(ServiceName, srv.URL)).CreateTransfer(context.Background(), "k", TransferRequest{WalletID: "w", Value: decimal.NewFromInt(1)})
	assert.Error(t, err)
}
