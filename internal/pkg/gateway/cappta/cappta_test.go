package cappta

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tricket/tricket-integrations/internal/pkg/gateway"
)

func TestListDevicesDecodesArrayAndEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"id":"pos-1","serialKey":"SN1","modelId":"1","status":1,"statusDescription":"Available"}]`},
		{"items envelope", `{"items":[{"id":"pos-1","serialKey":"SN1","modelId":1,"status":"1","statusDescription":"Available"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "12345678000199", r.URL.Query().Get("resellerDocument"))
				assert.Equal(t, "SN1", r.URL.Query().Get("serialKey"))
				assert.Empty(t, r.URL.Query().Get("status"))
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(gateway.NewClient(ServiceName, srv.URL), "12345678000199")
			devices, err := c.ListDevices(context.Background(), "tok", DeviceFilter{SerialKey: "SN1"})
			require.NoError(t, err)
			require.Len(t, devices, 1)
			assert.Equal(t, "pos-1", devices[0].ID)
			assert.Equal(t, FlexInt(1), devices[0].ModelID)
			assert.Equal(t, FlexInt(1), devices[0].Status)
		})
	}
}

func TestCreateDeviceSendsResellerDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "12345678000199", body["resellerDocument"])
		assert.Equal(t, "SN9", body["serialKey"])
		assert.Equal(t, "2", body["modelId"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pos-9"}`))
	}))
	defer srv.Close()

	d, err := New(gateway.NewClient(ServiceName, srv.URL), "12345678000199").CreateDevice(context.Background(), "tok", "SN9", 2)
	require.NoError(t, err)
	assert.Equal(t, "pos-9", d.ID)
}

func TestDeleteDeviceToleratesEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pos/device/pos-1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res, err := New(gateway.NewClient(ServiceName, srv.URL), "doc").DeleteDevice(context.Background(), "tok", "pos-1")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "", res.Data)
}

func TestMerchantStatusString(t *testing.T) {
	assert.Equal(t, "ACTIVE", MerchantStatus{Status: json.RawMessage(`"ACTIVE"`)}.StatusString())
	assert.Equal(t, "3", MerchantStatus{Status: json.RawMessage(`3`)}.StatusString())
}

func TestBindDevice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/pos/device/pos-1/bind", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "12345678000199", body["resellerDocument"])
		assert.Equal(t, "11222333000144", body["merchantDocument"])
		_, _ = w.Write([]byte(`{"token":"pos-token-1"}`))
	}))
	defer srv.Close()

	b, raw, err := New(gateway.NewClient(ServiceName, srv.URL), "12345678000199").
		BindDevice(context.Background(), "tok", "pos-1", "", "11222333000144")
	require.NoError(t, err)
	assert.Equal(t, "pos-token-1", b.Token)
	assert.NotNil(t, raw)
}

func TestUnbindDeviceToleratesEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/pos/device/pos-1/unbind", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res, err := New(gateway.NewClient(ServiceName, srv.URL), "doc").UnbindDevice(context.Background(), "tok", "pos-1")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "", res.Data)
}
