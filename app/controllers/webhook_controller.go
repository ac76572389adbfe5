package controllers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/app/repository"
	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/crypto"
	"github.com/tricket/tricket-integrations/internal/pkg/usercontext"
	"github.com/tricket/tricket-integrations/internal/pkg/validation"
	"github.com/tricket/tricket-integrations/internal/pkg/webhook"
)

const (
	// WebhookTokenHeader authenticates deliveries from the acquiring gateway.
	WebhookTokenHeader = "X-Webhook-Token"
	// AsaasTokenHeader authenticates deliveries from the payments provider.
	AsaasTokenHeader = "asaas-access-token"

	deliveryTokenLength = 32
)

// gatewayFamilies maps local families to the gateway's webhook types.
var gatewayFamilies = map[string]string{
	models.WebhookFamilyMerchantAccreditation: "merchantAccreditation",
	models.WebhookFamilyTransaction:           "transaction",
}

type WebhookController struct {
	deps *Dependencies
}

func NewWebhookController(deps *Dependencies) *WebhookController {
	return &WebhookController{deps: deps}
}

type registerWebhookRequest struct {
	ProfileID string `json:"profile_id" validate:"required"`
	Family    string `json:"family" validate:"required,oneof=MERCHANT_ACCREDITATION TRANSACTION"`
	TargetURL string `json:"target_url" validate:"required,url"`
}

type deactivateWebhookRequest struct {
	ProfileID string `json:"profile_id" validate:"required"`
	Family    string `json:"family" validate:"required,oneof=MERCHANT_ACCREDITATION TRANSACTION"`
}

// HandleRegister registers a webhook with the gateway and records the
// subscription. Re-registering the same (profile, family) rotates its token.
func (wc *WebhookController) HandleRegister(c *fiber.Ctx) error {
	var req registerWebhookRequest
	if err := validation.BindJSON(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	token, err := capptaToken(ctx, wc.deps.Secrets)
	if err != nil {
		return err
	}

	deliveryToken, err := crypto.GenerateToken(deliveryTokenLength)
	if err != nil {
		return apperror.Internal("failed to generate delivery token", err)
	}
	target, err := withToken(req.TargetURL, deliveryToken)
	if err != nil {
		return apperror.Validation("target_url is not a valid URL", "target_url")
	}

	raw, err := wc.deps.Cappta.RegisterWebhook(ctx, token, gatewayFamilies[req.Family], target)
	if err != nil {
		return err
	}

	actor := usercontext.Actor(c)
	sub := &models.WebhookSubscription{
		ProfileID:     req.ProfileID,
		Family:        req.Family,
		DeliveryToken: deliveryToken,
		TargetURL:     req.TargetURL,
		ExternalID:    externalID(raw),
		IsActive:      true,
		CreatedBy:     actor,
		UpdatedBy:     actor,
	}
	if err := wc.deps.Repos.WebhookSubscription.Upsert(ctx, sub); err != nil {
		log.Errorf("[Webhook] Registered %s for %s upstream but could not store it: %v", req.Family, req.ProfileID, err)
	}

	log.Infof("[Webhook] Registered %s webhook for profile %s", req.Family, req.ProfileID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"profile_id":     req.ProfileID,
		"family":         req.Family,
		"target_url":     req.TargetURL,
		"delivery_token": deliveryToken,
		"cappta":         raw,
	})
}

// HandleQuery lists local subscriptions next to what the gateway reports.
// A gateway failure does not hide the local view.
func (wc *WebhookController) HandleQuery(c *fiber.Ctx) error {
	ctx := c.UserContext()
	family := strings.ToUpper(c.Query("family"))

	subs, err := wc.deps.Repos.WebhookSubscription.List(ctx, repository.WebhookSubscriptionFilter{
		ProfileID:  c.Query("profile_id"),
		Family:     family,
		ActiveOnly: c.QueryBool("active_only"),
	})
	if err != nil {
		return apperror.Internal("failed to list webhook subscriptions", err)
	}

	res := fiber.Map{
		"subscriptions": subs,
		"count":         len(subs),
	}

	token, err := capptaToken(ctx, wc.deps.Secrets)
	if err != nil {
		return err
	}
	upstream, err := wc.deps.Cappta.QueryWebhooks(ctx, token, gatewayFamilies[family])
	if err != nil {
		log.Warnf("[Webhook] Gateway webhook query failed: %v", err)
		res["upstream_error"] = err.Error()
	} else {
		res["cappta"] = upstream
	}
	return c.JSON(res)
}

// HandleDeactivate inactivates the webhook upstream and flips the local flag.
func (wc *WebhookController) HandleDeactivate(c *fiber.Ctx) error {
	var req deactivateWebhookRequest
	if err := validation.BindJSON(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	token, err := capptaToken(ctx, wc.deps.Secrets)
	if err != nil {
		return err
	}

	raw, err := wc.deps.Cappta.InactivateWebhook(ctx, token, gatewayFamilies[req.Family])
	if err != nil {
		return err
	}

	deactivated, err := wc.deps.Repos.WebhookSubscription.Deactivate(ctx, req.ProfileID, req.Family, usercontext.Actor(c))
	if err != nil {
		log.Errorf("[Webhook] Inactivated %s for %s upstream but could not store it: %v", req.Family, req.ProfileID, err)
	}

	return c.JSON(fiber.Map{
		"profile_id":  req.ProfileID,
		"family":      req.Family,
		"deactivated": deactivated,
		"cappta":      raw,
	})
}

// HandleRotateAccountToken issues a new delivery token for a profile's
// payments account. The provider must be reconfigured with the returned value.
func (wc *WebhookController) HandleRotateAccountToken(c *fiber.Ctx) error {
	profileID := c.Params("profile_id")
	token, err := crypto.GenerateToken(deliveryTokenLength)
	if err != nil {
		return apperror.Internal("failed to generate delivery token", err)
	}

	if err := wc.deps.Repos.AsaasAccount.SetWebhookToken(c.UserContext(), profileID, token); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("Payments account not found for profile")
		}
		return apperror.Internal("failed to store account webhook token", err)
	}

	log.Infof("[Webhook] Rotated payments webhook token for profile %s", profileID)
	return c.JSON(fiber.Map{
		"profile_id":    profileID,
		"webhook_token": token,
	})
}

// HandleCapptaAccreditation receives merchant accreditation deliveries.
func (wc *WebhookController) HandleCapptaAccreditation(c *fiber.Ctx) error {
	return wc.ingest(c, capptaDeliveryToken(c), webhook.CapptaMerchantAccreditation)
}

// HandleCapptaTransaction receives transaction and settlement deliveries.
func (wc *WebhookController) HandleCapptaTransaction(c *fiber.Ctx) error {
	return wc.ingest(c, capptaDeliveryToken(c), webhook.CapptaTransaction)
}

// HandleAsaasTransferStatus receives transfer status deliveries.
func (wc *WebhookController) HandleAsaasTransferStatus(c *fiber.Ctx) error {
	return wc.ingest(c, c.Get(AsaasTokenHeader), webhook.AsaasTransferStatus)
}

// HandleAsaasAccountStatus receives account status deliveries.
func (wc *WebhookController) HandleAsaasAccountStatus(c *fiber.Ctx) error {
	return wc.ingest(c, c.Get(AsaasTokenHeader), webhook.AsaasAccountStatus)
}

// capptaDeliveryToken reads the header, falling back to the query parameter
// appended to the registered target URL.
func capptaDeliveryToken(c *fiber.Ctx) string {
	if token := c.Get(WebhookTokenHeader); token != "" {
		return token
	}
	return c.Query("token")
}

func (wc *WebhookController) ingest(c *fiber.Ctx, token string, spec webhook.Spec) error {
	outcome, err := wc.deps.Ingestor.Ingest(c.UserContext(), webhook.Delivery{
		Token: strings.TrimSpace(token),
		Body:  c.Body(),
	}, spec)
	if err != nil {
		return err
	}
	return c.JSON(outcome)
}

func withToken(target, token string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// externalID picks the webhook id out of the gateway's register response.
func externalID(raw any) string {
	m, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	switch v := m["id"].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
