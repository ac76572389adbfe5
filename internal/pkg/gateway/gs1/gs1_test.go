package gs1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway"
	"github.com/tricket/tricket-integrations/internal/pkg/tokenbroker"
)

func TestExchangeSendsPasswordGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/access-token", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "csecret", pass)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"grant_type": "password", "username": "ops@tricket.com.br", "password": "pw"}, body)

		_, _ = w.Write([]byte(`{"access_token":"at-1","expires_in":3600}`))
	}))
	defer srv.Close()

	c := New(gateway.NewClient(ServiceName, srv.URL))
	tok, err := c.Exchange(context.Background(), tokenbroker.Credentials{ClientID: "cid", ClientSecret: "csecret", Username: "ops@tricket.com.br", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.Value)
	assert.Equal(t, time.Hour, tok.ExpiresIn)
}

func TestExchangeRejectsMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"expires_in":3600}`))
	}))
	defer srv.Close()

	_, err := New(gateway.NewClient(ServiceName, srv.URL)).Exchange(context.Background(), tokenbroker.Credentials{})
	assert.True(t, apperror.Is(err, apperror.KindUpstream))
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantNil bool
		wantErr bool
	}{
		{"first element returned", http.StatusOK, `[{"gtin":"7891000100103"},{"gtin":"other"}]`, false, false},
		{"empty array", http.StatusOK, `[]`, true, false},
		{"not found", http.StatusNotFound, `{"message":"not found"}`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "cid", r.Header.Get("Client_id"))
				assert.Equal(t, "at", r.Header.Get("Access_Token"))
				assert.Equal(t, "7891000100103", r.URL.Query().Get("gtin"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			item, err := New(gateway.NewClient(ServiceName, srv.URL)).Lookup(context.Background(), "cid", "at", "7891000100103")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantNil {
				assert.Nil(t, item)
			} else {
				assert.Equal(t, "7891000100103", item["gtin"])
			}
		})
	}
}
