// Package pipeline runs product enrichment: code lookup, response
// processing into catalog rows, and image ingestion.
package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/gateway/gs1"
	"github.com/tricket/tricket-integrations/internal/pkg/metrics"
	"github.com/tricket/tricket-integrations/internal/pkg/objectstore"
	"github.com/tricket/tricket-integrations/internal/pkg/reconcile"
	"github.com/tricket/tricket-integrations/internal/pkg/secrets"
	"github.com/tricket/tricket-integrations/internal/pkg/tokenbroker"
)

const (
	DefaultFanOut = 8

	stageLookup  = "lookup"
	stageProcess = "process"
	stageImages  = "images"
)

// Looker fetches one product record by code. A missing record is (nil, nil).
type Looker interface {
	Lookup(ctx context.Context, clientID, accessToken, gtin string) (map[string]any, error)
}

// TokenSource hands out access tokens for the lookup service.
type TokenSource interface {
	AccessToken(ctx context.Context, creds tokenbroker.Credentials) (string, error)
}

// LookupResult is returned to the caller of a batch lookup.
type LookupResult struct {
	Processed   int    `json:"processed"`
	Found       int    `json:"found"`
	ResponseIDs []uint `json:"response_ids"`
}

type Orchestrator struct {
	secrets *secrets.Store
	tokens  TokenSource
	lookup  Looker
	store   *reconcile.Store
	objects objectstore.Store
	handoff Handoff
	http    *http.Client
	fanOut  int
	now     func() time.Time
}

type Option func(*Orchestrator)

// WithFanOut bounds the number of concurrent branches per stage.
func WithFanOut(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.fanOut = n
		}
	}
}

// WithHTTPClient replaces the client used to download images.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) { o.http = c }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New wires an orchestrator. Until SetHandoff is called, stage 2 runs
// in-process through DirectHandoff.
func New(store *secrets.Store, tokens TokenSource, lookup Looker, catalog *reconcile.Store, objects objectstore.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		secrets: store,
		tokens:  tokens,
		lookup:  lookup,
		store:   catalog,
		objects: objects,
		http:    &http.Client{Timeout: 15 * time.Second},
		fanOut:  DefaultFanOut,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.handoff = DirectHandoff{o: o}
	return o
}

func (o *Orchestrator) SetHandoff(h Handoff) {
	o.handoff = h
}

// LookupCodes fans out one lookup per submitted code, persists every result
// as a PENDING response row and hands the new row ids to stage 2. Per-code
// failures are logged and skipped; only missing credentials or a failed
// token exchange abort the batch.
func (o *Orchestrator) LookupCodes(ctx context.Context, codes []string, actor string) (LookupResult, error) {
	codes = normalizeCodes(codes)
	if len(codes) == 0 {
		return LookupResult{}, apperror.Validation("At least one product code is required", "codes")
	}

	values, err := o.secrets.GetRequired(ctx, gs1.CredentialSecrets...)
	if err != nil {
		return LookupResult{}, err
	}
	creds := gs1.CredentialsFrom(values)
	token, err := o.tokens.AccessToken(ctx, creds)
	if err != nil {
		return LookupResult{}, err
	}

	ids := make([]uint, len(codes))
	var g errgroup.Group
	g.SetLimit(o.fanOut)
	for i, code := range codes {
		g.Go(func() error {
			ids[i] = o.lookupOne(ctx, creds.ClientID, token, code, actor)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LookupResult{}, apperror.Internal("lookup batch failed", err)
	}

	result := LookupResult{Processed: len(codes), ResponseIDs: []uint{}}
	for _, id := range ids {
		if id != 0 {
			result.ResponseIDs = append(result.ResponseIDs, id)
		}
	}
	result.Found = len(result.ResponseIDs)
	log.Infof("[Pipeline] Lookup batch done: %d codes, %d found", result.Processed, result.Found)

	if result.Found == 0 {
		return result, nil
	}
	// rows stay PENDING on a failed handoff and are picked up by the resweep
	if err := o.handoff.Handoff(ctx, result.ResponseIDs, actor); err != nil {
		log.Errorf("[Pipeline] Handoff of %d responses failed: %v", result.Found, err)
	}
	return result, nil
}

func (o *Orchestrator) lookupOne(ctx context.Context, clientID, token, code, actor string) uint {
	item, err := o.lookup.Lookup(ctx, clientID, token, code)
	if err != nil {
		log.Warnf("[Pipeline] Lookup for %s failed: %v", code, err)
		metrics.PipelineItemsTotal.WithLabelValues(stageLookup, "error").Inc()
		return 0
	}
	if item == nil {
		log.Warnf("[Pipeline] No product data returned for %s", code)
		metrics.PipelineItemsTotal.WithLabelValues(stageLookup, "empty").Inc()
		return 0
	}

	raw, err := json.Marshal(item)
	if err != nil {
		log.Errorf("[Pipeline] Encoding lookup result for %s: %v", code, err)
		metrics.PipelineItemsTotal.WithLabelValues(stageLookup, "error").Inc()
		return 0
	}
	id, err := o.store.InsertLookupResponse(ctx, code, string(raw), actor)
	if err != nil {
		log.Errorf("[Pipeline] %v", err)
		metrics.PipelineItemsTotal.WithLabelValues(stageLookup, "error").Inc()
		return 0
	}
	metrics.PipelineItemsTotal.WithLabelValues(stageLookup, "found").Inc()
	return id
}

// normalizeCodes trims codes and drops blanks. Repeated codes are kept so
// every submitted code gets its own lookup and response row.
func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
