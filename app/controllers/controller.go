package controllers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/app/repository"
	"github.com/tricket/tricket-integrations/internal/pkg/crypto"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway/asaas"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway/cappta"
	"github.com/tricket/tricket-integrations/internal/pkg/jobqueue"
	"github.com/tricket/tricket-integrations/internal/pkg/pipeline"
	"github.com/tricket/tricket-integrations/internal/pkg/reconcile"
	"github.com/tricket/tricket-integrations/internal/pkg/secrets"
	"github.com/tricket/tricket-integrations/internal/pkg/webhook"
)

// Dependencies is everything the HTTP handlers need, built once at startup.
type Dependencies struct {
	Repos    *repository.Repositories
	Store    *reconcile.Store
	Secrets  *secrets.Store
	Cappta   *cappta.Client
	Asaas    *asaas.Client
	Cipher   *crypto.Cipher
	Ingestor *webhook.Ingestor
	Pipeline *pipeline.Orchestrator
	// Queue is nil when enrichment runs inline.
	Queue *jobqueue.Queue
}

const defaultResweepLimit = 200

// capptaToken resolves the gateway bearer token for this request.
func capptaToken(ctx context.Context, store *secrets.Store) (string, error) {
	values, err := store.GetRequired(ctx, cappta.TokenSecret)
	if err != nil {
		return "", err
	}
	return values[cappta.TokenSecret], nil
}

// deviceModel maps a gateway device onto the local mirror row.
func deviceModel(d cappta.Device, resellerDocument string) models.CapptaPosDevice {
	m := models.CapptaPosDevice{
		CapptaPosID:       d.ID,
		ResellerDocument:  d.ResellerDocument,
		SerialKey:         d.SerialKey,
		ModelID:           int(d.ModelID),
		Status:            int(d.Status),
		StatusDescription: d.StatusDescription,
	}
	if m.ResellerDocument == "" {
		m.ResellerDocument = resellerDocument
	}
	if d.MerchantDocument != "" {
		doc := d.MerchantDocument
		m.MerchantDocument = &doc
	}
	return m
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
