// Package gs1 is the typed client for the product-data lookup service.
package gs1

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway"
	"github.com/tricket/tricket-integrations/internal/pkg/tokenbroker"
)

const ServiceName = "gs1"

// Secret names for the password-grant credentials.
const (
	ClientIDSecret     = "GS1_CLIENT_ID"
	ClientSecretSecret = "GS1_CLIENT_SECRET"
	UserEmailSecret    = "GS1_USER_EMAIL"
	PasswordSecret     = "GS1_PASSWORD"
)

// CredentialSecrets lists every secret a lookup needs.
var CredentialSecrets = []string{ClientIDSecret, ClientSecretSecret, UserEmailSecret, PasswordSecret}

// CredentialsFrom builds token-broker credentials from resolved secrets.
func CredentialsFrom(values map[string]string) tokenbroker.Credentials {
	return tokenbroker.Credentials{
		ClientID:     values[ClientIDSecret],
		ClientSecret: values[ClientSecretSecret],
		Username:     values[UserEmailSecret],
		Password:     values[PasswordSecret],
	}
}

type Client struct {
	gw *gateway.Client
}

func New(gw *gateway.Client) *Client {
	return &Client{gw: gw}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Exchange performs the password grant. It satisfies tokenbroker.Exchanger.
func (c *Client) Exchange(ctx context.Context, creds tokenbroker.Credentials) (tokenbroker.Token, error) {
	res := c.gw.Call(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/oauth/access-token",
		Body: map[string]string{
			"grant_type": "password",
			"username":   creds.Username,
			"password":   creds.Password,
		},
		Credential: gateway.BasicAuth(creds.ClientID, creds.ClientSecret),
	})
	if err := res.Err(ServiceName); err != nil {
		return tokenbroker.Token{}, err
	}

	var tr tokenResponse
	if err := res.Decode(&tr); err != nil {
		return tokenbroker.Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return tokenbroker.Token{}, apperror.Upstream(ServiceName, res.Status, "token response without access_token")
	}
	return tokenbroker.Token{Value: tr.AccessToken, ExpiresIn: time.Duration(tr.ExpiresIn) * time.Second}, nil
}

// Lookup fetches the verified record for a GTIN. A missing record is
// (nil, nil); upstream failures are returned as errors.
func (c *Client) Lookup(ctx context.Context, clientID, accessToken, gtin string) (map[string]any, error) {
	res := c.gw.Call(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/provider/v2/verified",
		Query:  url.Values{"gtin": {gtin}},
		Credential: gateway.Headers{
			"Client_id":    clientID,
			"Access_Token": accessToken,
		},
	})
	if err := res.Err(ServiceName); err != nil {
		return nil, err
	}

	items, ok := res.Data.([]any)
	if !ok || len(items) == 0 {
		return nil, nil
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return nil, nil
	}
	return first, nil
}
