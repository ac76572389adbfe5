// Package cappta is the typed client for the acquiring gateway.
package cappta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tricket/tricket-integrations/internal/pkg/gateway"
)

const ServiceName = "cappta"

// TokenSecret is the secret holding the gateway bearer token.
const TokenSecret = "CAPPTA_API_TOKEN"

// FlexInt accepts both 1 and "1" on the wire.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", b, err)
	}
	*f = FlexInt(n)
	return nil
}

// Device is a POS terminal as the gateway reports it.
type Device struct {
	ID                string  `json:"id"`
	ResellerDocument  string  `json:"resellerDocument"`
	ModelID           FlexInt `json:"modelId"`
	SerialKey         string  `json:"serialKey"`
	Status            FlexInt `json:"status"`
	StatusDescription string  `json:"statusDescription"`
	MerchantDocument  string  `json:"merchantDocument,omitempty"`
}

// DeviceFilter narrows a device listing. Empty fields are omitted.
type DeviceFilter struct {
	MerchantDocument string
	Status           string
	SerialKey        string
}

type MerchantStatus struct {
	Status            json.RawMessage `json:"status"`
	StatusDescription string          `json:"statusDescription"`
}

// StatusString renders the status value whether it arrived as a number or a string.
func (m MerchantStatus) StatusString() string {
	var s string
	if err := json.Unmarshal(m.Status, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(m.Status))
}

type Client struct {
	gw               *gateway.Client
	resellerDocument string
}

func New(gw *gateway.Client, resellerDocument string) *Client {
	return &Client{gw: gw, resellerDocument: resellerDocument}
}

func (c *Client) ResellerDocument() string { return c.resellerDocument }

func (c *Client) ListDevices(ctx context.Context, token string, filter DeviceFilter) ([]Device, error) {
	q := url.Values{"resellerDocument": {c.resellerDocument}}
	if filter.MerchantDocument != "" {
		q.Set("merchantDocument", filter.MerchantDocument)
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.SerialKey != "" {
		q.Set("serialKey", filter.SerialKey)
	}

	res := c.gw.Call(ctx, gateway.Request{Method: http.MethodGet, Path: "/pos/device", Query: q, Credential: gateway.Bearer(token)})
	if err := res.Err(ServiceName); err != nil {
		return nil, err
	}
	return decodeDevices(res)
}

func (c *Client) GetDevice(ctx context.Context, token, id string) (*Device, error) {
	res := c.gw.Call(ctx, gateway.Request{Method: http.MethodGet, Path: "/pos/device/" + url.PathEscape(id), Credential: gateway.Bearer(token)})
	if err := res.Err(ServiceName); err != nil {
		return nil, err
	}
	var d Device
	if err := res.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode device: %w", err)
	}
	return &d, nil
}

func (c *Client) CreateDevice(ctx context.Context, token, serialKey string, modelID int) (*Device, error) {
	body := map[string]any{
		"resellerDocument": c.resellerDocument,
		"serialKey":        serialKey,
		"modelId":          strconv.Itoa(modelID),
	}
	res := c.gw.Call(ctx, gateway.Request{Method: http.MethodPost, Path: "/pos/device", Body: body, Credential: gateway.Bearer(token)})
	if err := res.Err(ServiceName); err != nil {
		return nil, err
	}
	var d Device
	if err := res.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode created device: %w", err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("gateway did not return a device id")
	}
	return &d, nil
}

// DeleteDevice removes a terminal upstream. The gateway often answers with
// an empty body, which is a success.
func (c *Client) DeleteDevice(ctx context.Context, token, id string) (gateway.Result, error) {
	res := c.gw.Call(ctx, gateway.Request{Method: http.MethodDelete, Path: "/pos/device/" + url.PathEscape(id), Credential: gateway.Bearer(token)})
	return res, res.Err(ServiceName)
}

// Binding is the gateway's answer to a bind request. Token identifies the
// terminal session for the bound merchant.
type Binding struct {
	Token string `json:"token"`
}

// BindDevice associates a terminal with a merchant. An empty
// resellerDocument falls back to the client's.
func (c *Client) BindDevice(ctx context.Context, token, id, resellerDocument, merchantDocument string) (*Binding, any, error) {
	if resellerDocument == "" {
		resellerDocument = c.resellerDocument
	}
	body := map[string]any{"resellerDocument": resellerDocument, "merchantDocument": merchantDocument}
	res := c.gw.Call(ctx, gateway.Request{Method: http.MethodPatch, Path: "/pos/device/" + url.PathEscape(id) + "/bind", Body: body, Credential: gateway.Bearer(token)})
	if err := res.Err(ServiceName); err != nil {
		return nil, nil, err
	}
	// the bind already happened upstream, so an unexpected body only loses the token
	var b Binding
	if m, ok := res.Data.(map[string]any); ok {
		b.Token, _ = m["token"].(string)
	}
	return &b, res.Data, nil
}

// UnbindDevice releases a terminal from its merchant. Like delete, the
// gateway may answer with an empty body.
func (c *Client) UnbindDevice(ctx context.Context, token, id string) (gateway.Result, error) {
	res := c.gw.Call(ctx, gateway.Request{Method: http.MethodPatch, Path: "/pos/device/" + url.PathEscape(id) + "/unbind", Credential: gateway.Bearer(token)})
	return res, res.Err(ServiceName)
}

func (c *Client) MerchantStatus(ctx context.Context, token, merchantDocument string) (*MerchantStatus, any, error) {
	res := c.gw.Call(ctx, gateway.Request{
		Method:     http.MethodGet,
		Path:       "/onboarding/merchant/" + url.PathEscape(merchantDocument) + "/status",
		Query:      url.Values{"resellerDocument": {c.resellerDocument}},
		Credential: gateway.Bearer(token),
	})
	if err := res.Err(ServiceName); err != nil {
		return nil, nil, err
	}
	var st MerchantStatus
	if err := res.Decode(&st); err != nil {
		return nil, nil, fmt.Errorf("decode merchant status: %w", err)
	}
	return &st, res.Data, nil
}

func (c *Client) RegisterWebhook(ctx context.Context, token, family, targetURL string) (any, error) {
	body := map[string]any{"type": family, "url": targetURL, "resellerDocument": c.resellerDocument}
	res := c.gw.Call(ctx, gateway.Request{Method: http.MethodPost, Path: "/api/webhooks/register", Body: body, Credential: gateway.Bearer(token)})
	return res.Data, res.Err(ServiceName)
}

func (c *Client) QueryWebhooks(ctx context.Context, token, family string) (any, error) {
	q := url.Values{"resellerDocument": {c.resellerDocument}}
	if family != "" {
		q.Set("type", family)
	}
	res := c.gw.Call(ctx, gateway.Request{Method: http.MethodGet, Path: "/api/webhooks/query", Query: q, Credential: gateway.Bearer(token)})
	return res.Data, res.Err(ServiceName)
}

func (c *Client) InactivateWebhook(ctx context.Context, token, family string) (any, error) {
	body := map[string]any{"resellerDocument": c.resellerDocument, "type": family}
	res := c.gw.Call(ctx, gateway.Request{Method: http.MethodPost, Path: "/api/webhooks/inactivate", Body: body, Credential: gateway.Bearer(token)})
	return res.Data, res.Err(ServiceName)
}

// decodeDevices accepts either a bare array or an envelope with items/data.
func decodeDevices(res gateway.Result) ([]Device, error) {
	if s, ok := res.Data.(string); ok && s == "" {
		return nil, nil
	}
	var devices []Device
	if err := res.Decode(&devices); err == nil {
		return devices, nil
	}
	var envelope struct {
		Items []Device `json:"items"`
		Data  []Device `json:"data"`
	}
	if err := res.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode device list: %w", err)
	}
	if len(envelope.Items) > 0 {
		return envelope.Items, nil
	}
	return envelope.Data, nil
}
