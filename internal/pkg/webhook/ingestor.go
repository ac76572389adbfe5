// Package webhook authenticates and stores inbound webhook deliveries.
// Stored events stay PENDING; consumers live elsewhere.
package webhook

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/app/repository"
	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/metrics"
	"github.com/tricket/tricket-integrations/internal/pkg/secrets"
)

const (
	StatusReceived  = "received"
	StatusDuplicate = "duplicate"
)

// Delivery is one inbound request: the authentication token and raw body.
type Delivery struct {
	Token string
	Body  []byte
}

// Owner selects what a delivery token resolves to.
type Owner int

const (
	// OwnerSubscription resolves the token to an active subscription of the
	// endpoint's family.
	OwnerSubscription Owner = iota
	// OwnerAsaasAccount resolves the token to a payments account's webhook token.
	OwnerAsaasAccount
)

// Spec describes what an endpoint accepts.
type Spec struct {
	Family string
	Source string
	Owner  Owner
	// Required top-level payload fields. Every missing one is reported.
	Required []string
	// EventPrefix, when set, must prefix the payload's "event" field.
	EventPrefix string
	// MinTokenLength rejects obviously malformed tokens before any lookup.
	MinTokenLength int
	// SharedSecret names a provider-wide token accepted when no owner
	// matches the delivered token. Events accepted this way have no owner.
	SharedSecret string
	// NaturalKey derives a dedup key when the payload carries no "id".
	// Nil, or an empty result, falls back to a hash of the payload.
	NaturalKey func(payload map[string]any) string
}

// Outcome is reported back to the sender.
type Outcome struct {
	Status  string `json:"status"`
	EventID uint   `json:"event_id,omitempty"`
}

var (
	// CapptaMerchantAccreditation receives accreditation changes from the acquiring gateway.
	CapptaMerchantAccreditation = Spec{
		Family: models.WebhookFamilyMerchantAccreditation,
		Source: "cappta",
	}

	// CapptaTransaction receives transaction and settlement notices from the acquiring gateway.
	CapptaTransaction = Spec{
		Family:   models.WebhookFamilyTransaction,
		Source:   "cappta",
		Required: []string{"event", "data"},
		NaturalKey: func(p map[string]any) string {
			data, _ := p["data"].(map[string]any)
			for _, field := range []string{"transaction_id", "settlement_id"} {
				if id := stringField(data, field); id != "" {
					return stringField(p, "event") + ":" + id
				}
			}
			return ""
		},
	}

	// AsaasTransferStatus receives transfer status transitions from the payments provider.
	AsaasTransferStatus = Spec{
		Family:         models.WebhookFamilyTransfer,
		Source:         "asaas",
		Owner:          OwnerAsaasAccount,
		Required:       []string{"event", "transfer"},
		EventPrefix:    "TRANSFER_",
		MinTokenLength: 10,
		SharedSecret:   "ASAAS_WEBHOOK_TOKEN",
		NaturalKey: func(p map[string]any) string {
			if id := nestedID(p, "transfer"); id != "" && stringField(p, "event") != "" {
				return stringField(p, "event") + ":" + id
			}
			return ""
		},
	}

	// AsaasAccountStatus receives account onboarding status changes from the payments provider.
	AsaasAccountStatus = Spec{
		Family:         models.WebhookFamilyAccountStatus,
		Source:         "asaas",
		Owner:          OwnerAsaasAccount,
		Required:       []string{"id", "event"},
		MinTokenLength: 10,
		SharedSecret:   "ASAAS_WEBHOOK_TOKEN",
	}
)

// owner is who a delivery belongs to. Zero value means no owner.
type owner struct {
	subscriptionID *uint
	accountID      *uint
	profileID      string
}

func (o owner) keyPrefix() string {
	switch {
	case o.subscriptionID != nil:
		return fmt.Sprintf("%d:", *o.subscriptionID)
	case o.accountID != nil:
		return fmt.Sprintf("acct:%d:", *o.accountID)
	default:
		return ""
	}
}

type Ingestor struct {
	subscriptions repository.WebhookSubscriptionRepository
	accounts      repository.AsaasAccountRepository
	events        repository.WebhookEventRepository
	secrets       *secrets.Store
}

func NewIngestor(subs repository.WebhookSubscriptionRepository, accounts repository.AsaasAccountRepository, events repository.WebhookEventRepository, store *secrets.Store) *Ingestor {
	return &Ingestor{subscriptions: subs, accounts: accounts, events: events, secrets: store}
}

// Ingest authenticates the delivery, validates the payload and stores it
// as a PENDING event. Redelivery of an already stored event is reported as
// a duplicate, never as an error.
func (i *Ingestor) Ingest(ctx context.Context, d Delivery, spec Spec) (Outcome, error) {
	own, err := i.authenticate(ctx, d.Token, spec)
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues(spec.Source, "unauthorized").Inc()
		return Outcome{}, err
	}

	payload, err := parsePayload(d.Body)
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues(spec.Source, "invalid").Inc()
		return Outcome{}, err
	}
	if err := validate(payload, spec); err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues(spec.Source, "invalid").Inc()
		return Outcome{}, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Outcome{}, apperror.Internal("failed to encode webhook payload", err)
	}

	event := &models.WebhookEvent{
		SubscriptionID:   own.subscriptionID,
		AsaasAccountID:   own.accountID,
		ProfileID:        own.profileID,
		Source:           spec.Source,
		DedupKey:         own.keyPrefix() + dedupKey(payload, raw, spec.NaturalKey),
		Family:           spec.Family,
		ExternalEventID:  stringField(payload, "id"),
		EventType:        eventType(payload, spec.Family),
		PayloadJSON:      string(raw),
		ProcessingStatus: models.WebhookEventPending,
	}

	created, stored, err := i.events.CreateIfNotExists(ctx, event)
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues(spec.Source, "error").Inc()
		return Outcome{}, apperror.Internal("failed to store webhook event", err)
	}
	if !created {
		log.Warnf("[Webhook] Duplicate %s delivery ignored (dedup key %s)", spec.Source, event.DedupKey)
		metrics.WebhookDeliveriesTotal.WithLabelValues(spec.Source, StatusDuplicate).Inc()
		return Outcome{Status: StatusDuplicate, EventID: stored.ID}, nil
	}

	log.Infof("[Webhook] Stored %s event %d (%s)", spec.Source, stored.ID, event.EventType)
	metrics.WebhookDeliveriesTotal.WithLabelValues(spec.Source, StatusReceived).Inc()
	return Outcome{Status: StatusReceived, EventID: stored.ID}, nil
}

func (i *Ingestor) authenticate(ctx context.Context, token string, spec Spec) (owner, error) {
	if token == "" {
		return owner{}, apperror.Authentication("Webhook token is required")
	}
	if len(token) < spec.MinTokenLength {
		return owner{}, apperror.Authentication("Invalid webhook token")
	}

	own, found, err := i.resolveOwner(ctx, token, spec)
	if err != nil || found {
		return own, err
	}

	if spec.SharedSecret != "" && i.secrets != nil {
		values, err := i.secrets.GetRequired(ctx, spec.SharedSecret)
		if err != nil {
			if !apperror.Is(err, apperror.KindConfiguration) {
				return owner{}, err
			}
		} else if subtle.ConstantTimeCompare([]byte(values[spec.SharedSecret]), []byte(token)) == 1 {
			log.Warnf("[Webhook] %s delivery accepted with the shared token, no owner recorded", spec.Source)
			return owner{}, nil
		}
	}

	return owner{}, apperror.Authentication("Invalid or inactive webhook token")
}

func (i *Ingestor) resolveOwner(ctx context.Context, token string, spec Spec) (owner, bool, error) {
	switch spec.Owner {
	case OwnerAsaasAccount:
		if i.accounts == nil {
			return owner{}, false, nil
		}
		account, err := i.accounts.GetByWebhookToken(ctx, token)
		if err != nil {
			return owner{}, false, apperror.Internal("failed to resolve payments account", err)
		}
		if account == nil {
			return owner{}, false, nil
		}
		if account.AccountStatus == models.AsaasAccountCancelled {
			return owner{}, false, apperror.Authorization("Account is cancelled and cannot receive webhooks")
		}
		return owner{accountID: &account.ID, profileID: account.ProfileID}, true, nil
	default:
		sub, err := i.subscriptions.GetActiveByToken(ctx, token, spec.Family)
		if err != nil {
			return owner{}, false, apperror.Internal("failed to resolve webhook subscription", err)
		}
		if sub == nil {
			return owner{}, false, nil
		}
		return owner{subscriptionID: &sub.ID, profileID: sub.ProfileID}, true, nil
	}
}

func parsePayload(body []byte) (map[string]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperror.Validation("Invalid JSON payload")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

func validate(payload map[string]any, spec Spec) error {
	var missing []string
	for _, field := range spec.Required {
		if v, ok := payload[field]; !ok || v == nil {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return apperror.Validation("", missing...)
	}

	if spec.EventPrefix != "" {
		event, _ := payload["event"].(string)
		if !strings.HasPrefix(event, spec.EventPrefix) {
			return apperror.Validation(fmt.Sprintf("Event type is invalid for this webhook, expected %s*", spec.EventPrefix), "event")
		}
	}
	return nil
}

// dedupKey prefers the sender's event id, then the endpoint's natural key,
// and finally a hash of the canonical payload.
func dedupKey(payload map[string]any, raw []byte, natural func(map[string]any) string) string {
	if id := stringField(payload, "id"); id != "" {
		return id
	}
	if natural != nil {
		if key := natural(payload); key != "" {
			return key
		}
	}
	sum := sha256.Sum256(raw)
	return "hash:" + hex.EncodeToString(sum[:])
}

func eventType(payload map[string]any, family string) string {
	if event := stringField(payload, "event"); event != "" {
		return event
	}
	return family
}

func stringField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func nestedID(payload map[string]any, key string) string {
	obj, ok := payload[key].(map[string]any)
	if !ok {
		return ""
	}
	return stringField(obj, "id")
}
