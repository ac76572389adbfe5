package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/metrics"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseBody = 1 << 20
)

// Credential decorates an outbound request with authentication headers.
type Credential interface {
	Apply(h http.Header)
}

type bearerCredential string

func (b bearerCredential) Apply(h http.Header) {
	h.Set("Authorization", "Bearer "+string(b))
}

// Bearer authenticates with an Authorization: Bearer header.
func Bearer(token string) Credential { return bearerCredential(token) }

type apiKeyCredential struct {
	header string
	key    string
}

func (a apiKeyCredential) Apply(h http.Header) {
	h.Set(a.header, a.key)
}

// APIKey authenticates with a static key in the named header.
func APIKey(header, key string) Credential { return apiKeyCredential{header: header, key: key} }

type basicCredential struct {
	user string
	pass string
}

func (b basicCredential) Apply(h http.Header) {
	req := http.Request{Header: h}
	req.SetBasicAuth(b.user, b.pass)
}

func BasicAuth(user, pass string) Credential { return basicCredential{user: user, pass: pass} }

// Headers sets arbitrary header pairs.
type Headers map[string]string

func (hs Headers) Apply(h http.Header) {
	for k, v := range hs {
		h.Set(k, v)
	}
}

// Request describes one outbound call. Body is JSON-encoded when non-nil.
type Request struct {
	Method     string
	Path       string
	Query      url.Values
	Body       any
	Credential Credential
}

// Result is the outcome of a call. Exactly one of three shapes holds:
//   - OK: 2xx, Data holds the parsed body ("" when the body was empty)
//   - upstream error: non-2xx, Status and Error hold the upstream answer
//   - transport error: TransportErr set, Status is 0
type Result struct {
	OK           bool
	Status       int
	Data         any
	Error        any
	TransportErr error
}

// Decode re-marshals Data into v.
func (r Result) Decode(v any) error {
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Err converts a failed result into an application error. It returns nil for OK results.
func (r Result) Err(service string) error {
	switch {
	case r.OK:
		return nil
	case r.TransportErr != nil:
		appErr := apperror.Upstream(service, http.StatusBadGateway, nil)
		appErr.Message = service + " is unreachable"
		appErr.Err = r.TransportErr
		return appErr
	default:
		return apperror.Upstream(service, r.Status, r.Error)
	}
}

// Client is a thin JSON-over-HTTP wrapper around one external service.
type Client struct {
	Name       string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(name, baseURL string) *Client {
	return &Client{
		Name:       name,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Call performs the request. It never returns an error for upstream
// failures; they are reported through the Result.
func (c *Client) Call(ctx context.Context, req Request) Result {
	res := c.do(ctx, req)
	outcome := "ok"
	switch {
	case res.TransportErr != nil:
		outcome = "transport_error"
		log.Warnf("[Gateway] %s %s %s transport error: %v", c.Name, req.Method, req.Path, res.TransportErr)
	case !res.OK:
		outcome = "upstream_error"
		log.Warnf("[Gateway] %s %s %s failed: status=%d", c.Name, req.Method, req.Path, res.Status)
	}
	metrics.GatewayCallsTotal.WithLabelValues(c.Name, outcome).Inc()
	return res
}

func (c *Client) do(ctx context.Context, req Request) Result {
	endpoint := c.BaseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return Result{TransportErr: fmt.Errorf("encode request body: %w", err)}
		}
		body = bytes.NewReader(raw)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return Result{TransportErr: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Credential != nil {
		req.Credential.Apply(httpReq.Header)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return Result{TransportErr: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Result{TransportErr: fmt.Errorf("read response body: %w", err)}
	}

	payload := parseBody(raw)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{OK: true, Status: resp.StatusCode, Data: payload}
	}
	return Result{Status: resp.StatusCode, Error: payload}
}

// parseBody decodes JSON when possible. Empty bodies become "" and anything
// unparseable is kept as raw text.
func parseBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return string(trimmed)
	}
	return v
}
