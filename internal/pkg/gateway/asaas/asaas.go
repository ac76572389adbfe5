// Package asaas is the typed client for the payments provider.
package asaas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tricket/tricket-integrations/internal/pkg/gateway"
)

const (
	ServiceName = "asaas"
	// AccessTokenHeader carries the per-account API key.
	AccessTokenHeader = "access_token"
	// WebhookTokenSecret is the shared token Asaas sends with webhook deliveries.
	WebhookTokenSecret = "ASAAS_WEBHOOK_TOKEN"
)

type TransferRequest struct {
	WalletID    string
	Value       decimal.Decimal
	Description string
}

type Transfer struct {
	ID          string          `json:"id"`
	Value       decimal.Decimal `json:"value"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	WalletID    string          `json:"walletId"`
}

type Client struct {
	gw *gateway.Client
}

func New(gw *gateway.Client) *Client {
	return &Client{gw: gw}
}

// CreateTransfer moves funds from the account owning apiKey to walletID.
// It returns the raw provider payload alongside the decoded transfer.
func (c *Client) CreateTransfer(ctx context.Context, apiKey string, req TransferRequest) (*Transfer, any, error) {
	body := map[string]any{
		"walletId": req.WalletID,
		// sent as a JSON number, not decimal's default quoted string
		"value": json.Number(req.Value.String()),
	}
	if req.Description != "" {
		body["description"] = req.Description
	}
	res := c.gw.Call(ctx, gateway.Request{
		Method:     http.MethodPost,
		Path:       "/transfers",
		Body:       body,
		Credential: gateway.APIKey(AccessTokenHeader, apiKey),
	})
	if err := res.Err(ServiceName); err != nil {
		return nil, nil, err
	}
	var t Transfer
	if err := res.Decode(&t); err != nil {
		return nil, nil, fmt.Errorf("decode transfer: %w", err)
	}
	if t.ID == "" {
		return nil, nil, fmt.Errorf("asaas did not return a transfer id")
	}
	return &t, res.Data, nil
}
