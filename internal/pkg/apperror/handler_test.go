package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respondWith(t *testing.T, err error) (int, map[string]any) {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/", func(c *fiber.Ctx) error { return err })

	resp, testErr := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, testErr)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestRespondMapsKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"configuration", Configuration("GS1_CLIENT_ID"), fiber.StatusInternalServerError, "configuration_error"},
		{"authentication", Authentication("Missing bearer token"), fiber.StatusUnauthorized, "unauthorized"},
		{"authorization", Authorization("Insufficient role"), fiber.StatusForbidden, "forbidden"},
		{"validation", Validation("", "serial_key", "model_id"), fiber.StatusBadRequest, "validation_error"},
		{"not found", NotFound("Merchant not found"), fiber.StatusNotFound, "not_found"},
		{"upstream", Upstream("cappta", fiber.StatusConflict, map[string]any{"message": "duplicate"}), fiber.StatusConflict, "upstream_error"},
		{"wrapped", fmt.Errorf("create terminal: %w", NotFound("gone")), fiber.StatusNotFound, "not_found"},
		{"fiber error", fiber.ErrTooManyRequests, fiber.StatusTooManyRequests, "too_many_requests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := respondWith(t, tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestRespondValidationListsFields(t *testing.T) {
	_, body := respondWith(t, Validation("", "serial_key", "model_id"))
	assert.Equal(t, "serial_key, model_id are required", body["message"])
	assert.Equal(t, []any{"serial_key", "model_id"}, body["fields"])
}

func TestRespondRedactsInternalErrors(t *testing.T) {
	status, body := respondWith(t, errors.New("dial tcp 10.0.0.7:3306: connection refused"))
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body["message"])
	assert.NotEmpty(t, body["correlation_id"])
	assert.NotContains(t, fmt.Sprint(body), "10.0.0.7")
}

func TestRespondHidesConfigurationKeys(t *testing.T) {
	_, body := respondWith(t, Configuration("GS1_PASSWORD"))
	assert.Equal(t, "Server configuration error", body["message"])
}

func TestUpstreamStatusOutsideErrorRange(t *testing.T) {
	err := Upstream("asaas", 0, nil)
	assert.Equal(t, fiber.StatusBadGateway, err.HTTPStatus())
	assert.True(t, Is(err, KindUpstream))
}
