package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/internal/pkg/metrics"
)

const (
	defaultProductName = "Sem nome"
	defaultBrandName   = "Marca não informada"
	missingDataMessage = "Dados do produto não disponíveis."
	productImageType   = "PRODUCT_IMAGE"
)

// ProductImages lists the image URLs to ingest for one product.
type ProductImages struct {
	ProductID uint
	Name      string
	URLs      []string
}

// ProcessReport summarizes one stage 2 run.
type ProcessReport struct {
	Processed  int `json:"processed"`
	Skipped    int `json:"skipped"`
	Errored    int `json:"errored"`
	WithImages int `json:"with_images"`
}

type processOutcome int

const (
	outcomeProcessed processOutcome = iota
	outcomeSkipped
	outcomeErrored
)

type processResult struct {
	outcome processOutcome
	images  *ProductImages
	err     error
}

// ProcessResponses turns stored lookup responses into brand and product
// rows, then ingests the images of every product that has any. Rows that
// are already PROCESSED are skipped. Payloads without product data are
// marked ERROR. A non-nil error means at least one row hit a store failure
// and the batch is worth retrying.
func (o *Orchestrator) ProcessResponses(ctx context.Context, ids []uint, actor string) (ProcessReport, error) {
	results := make([]processResult, len(ids))
	var g errgroup.Group
	g.SetLimit(o.fanOut)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = o.processOne(ctx, id, actor)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ProcessReport{}, err
	}

	var report ProcessReport
	var products []ProductImages
	var errs []error
	for _, r := range results {
		switch r.outcome {
		case outcomeProcessed:
			report.Processed++
			metrics.PipelineItemsTotal.WithLabelValues(stageProcess, "processed").Inc()
		case outcomeSkipped:
			report.Skipped++
			metrics.PipelineItemsTotal.WithLabelValues(stageProcess, "skipped").Inc()
		case outcomeErrored:
			report.Errored++
			metrics.PipelineItemsTotal.WithLabelValues(stageProcess, "error").Inc()
		}
		if r.err != nil {
			errs = append(errs, r.err)
		}
		if r.images != nil && len(r.images.URLs) > 0 {
			products = append(products, *r.images)
		}
	}
	report.WithImages = len(products)
	log.Infof("[Pipeline] Processed responses: %d ok, %d skipped, %d errored, %d with images",
		report.Processed, report.Skipped, report.Errored, report.WithImages)

	if len(products) > 0 {
		o.IngestImages(ctx, products)
	}
	return report, errors.Join(errs...)
}

func (o *Orchestrator) processOne(ctx context.Context, id uint, actor string) processResult {
	row, err := o.store.GetLookupResponse(ctx, id)
	if err != nil {
		log.Errorf("[Pipeline] Loading response %d: %v", id, err)
		return processResult{outcome: outcomeErrored, err: fmt.Errorf("load response %d: %w", id, err)}
	}
	if row.Status == models.LookupStatusProcessed {
		return processResult{outcome: outcomeSkipped}
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(row.RawResponse), &raw); err != nil {
		o.markError(ctx, id, "invalid raw response: "+err.Error())
		return processResult{outcome: outcomeErrored}
	}

	national := object(raw, "dadosNacionais")
	international := object(raw, "dadosInternacionais")
	licensee := text(object(international, "gs1Licence"), "licenseeName")

	product := object(national, "product")
	if product == nil {
		message := firstNonEmpty(text(national, "message"), missingDataMessage)
		log.Warnf("[Pipeline] No product data for %s: %s", row.Gtin, message)
		o.markError(ctx, id, message)
		if licensee != "" {
			if _, err := o.store.UpsertBrand(ctx, licensee); err != nil {
				log.Errorf("[Pipeline] %v", err)
			}
		}
		return processResult{outcome: outcomeErrored}
	}

	name := firstNonEmpty(text(first(product, "tradeItemDescriptionInformationLang"), "tradeItemDescription"), defaultProductName)
	brandName := firstNonEmpty(text(first(product, "brandNameInformationLang"), "brandName"), licensee, defaultBrandName)

	brandID, err := o.store.UpsertBrand(ctx, brandName)
	if err != nil {
		o.markError(ctx, id, err.Error())
		return processResult{outcome: outcomeErrored, err: err}
	}

	classification := object(product, "tradeItemClassification")
	netContent := object(object(product, "tradeItemMeasurements"), "netContent")
	grossWeight := object(object(product, "tradeItemWeight"), "grossWeight")

	p := &models.Product{
		Gtin:                row.Gtin,
		Name:                name,
		Description:         name,
		BrandID:             brandID,
		Status:              "ACTIVE",
		GpcCategoryCode:     text(classification, "gpcCategoryCode"),
		NcmCode:             findClassification(classification, "NCM"),
		CestCode:            findClassification(classification, "CEST"),
		NetContent:          text(netContent, "value"),
		NetContentUnit:      text(netContent, "measurementUnitCode"),
		GrossWeight:         text(grossWeight, "value"),
		WeightUnit:          text(grossWeight, "measurementUnitCode"),
		CountryOfOriginCode: text(first(international, "countryOfSaleCode"), "alpha2"),
		Gs1CompanyName:      licensee,
		CreatedBy:           firstNonEmpty(row.CreatedBy, actor),
	}
	productID, err := o.store.UpsertProduct(ctx, p)
	if err != nil {
		o.markError(ctx, id, err.Error())
		return processResult{outcome: outcomeErrored, err: err}
	}
	if err := o.store.MarkLookupProcessed(ctx, id); err != nil {
		return processResult{outcome: outcomeErrored, err: fmt.Errorf("mark response %d processed: %w", id, err)}
	}

	return processResult{
		outcome: outcomeProcessed,
		images:  &ProductImages{ProductID: productID, Name: name, URLs: imageURLs(product)},
	}
}

func (o *Orchestrator) markError(ctx context.Context, id uint, message string) {
	if err := o.store.MarkLookupError(ctx, id, message); err != nil {
		log.Errorf("[Pipeline] Marking response %d as error: %v", id, err)
	}
}

func imageURLs(product map[string]any) []string {
	files, _ := product["referencedFileInformations"].([]any)
	var urls []string
	for _, f := range files {
		file, ok := f.(map[string]any)
		if !ok || text(file, "referencedFileTypeCode") != productImageType {
			continue
		}
		if u := text(file, "uniformResourceIdentifier"); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func findClassification(classification map[string]any, system string) string {
	entries, _ := classification["additionalTradeItemClassifications"].([]any)
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if ok && text(entry, "additionalTradeItemClassificationSystemCode") == system {
			return text(entry, "additionalTradeItemClassificationCodeValue")
		}
	}
	return ""
}

func object(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func first(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	list, _ := m[key].([]any)
	if len(list) == 0 {
		return nil
	}
	v, _ := list[0].(map[string]any)
	return v
}

func text(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
