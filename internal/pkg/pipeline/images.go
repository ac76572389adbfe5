package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/internal/pkg/imageprocessor"
	"github.com/tricket/tricket-integrations/internal/pkg/metrics"
)

const defaultAltText = "Imagem do produto"

// ImageReport summarizes one stage 3 run.
type ImageReport struct {
	Products int `json:"products"`
	Stored   int `json:"stored"`
	Failed   int `json:"failed"`
}

// IngestImages fetches, validates and stores every image of every product
// in parallel. A failed image never affects its siblings. Each product's
// records are inserted once all of its images have finished.
func (o *Orchestrator) IngestImages(ctx context.Context, products []ProductImages) ImageReport {
	reports := make([]ImageReport, len(products))
	var g errgroup.Group
	g.SetLimit(o.fanOut)
	for i, p := range products {
		g.Go(func() error {
			reports[i] = o.ingestProduct(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	total := ImageReport{Products: len(products)}
	for _, r := range reports {
		total.Stored += r.Stored
		total.Failed += r.Failed
	}
	log.Infof("[Pipeline] Image ingestion done for %d products: %d stored, %d failed", total.Products, total.Stored, total.Failed)
	return total
}

func (o *Orchestrator) ingestProduct(ctx context.Context, p ProductImages) ImageReport {
	if len(p.URLs) == 0 {
		return ImageReport{}
	}
	seen, err := o.store.ImageSources(ctx, p.ProductID)
	if err != nil {
		log.Warnf("[Pipeline] Reading stored images of product %d: %v", p.ProductID, err)
		seen = map[string]bool{}
	}
	alt := firstNonEmpty(p.Name, defaultAltText)

	records := make([]*models.ProductImage, len(p.URLs))
	failed := make([]bool, len(p.URLs))
	var g errgroup.Group
	g.SetLimit(o.fanOut)
	for i, src := range p.URLs {
		if seen[src] {
			continue
		}
		g.Go(func() error {
			imageURL, err := o.storeImage(ctx, p.ProductID, i, src)
			if err != nil {
				log.Errorf("[Pipeline] Image %s of product %d: %v", src, p.ProductID, err)
				metrics.PipelineItemsTotal.WithLabelValues(stageImages, "error").Inc()
				failed[i] = true
				return nil
			}
			records[i] = &models.ProductImage{
				ProductID: p.ProductID,
				SourceURL: src,
				ImageURL:  imageURL,
				AltText:   alt,
				SortOrder: i,
			}
			return nil
		})
	}
	_ = g.Wait()

	var report ImageReport
	rows := make([]models.ProductImage, 0, len(records))
	for i, r := range records {
		if r != nil {
			rows = append(rows, *r)
		}
		if failed[i] {
			report.Failed++
		}
	}
	if len(rows) == 0 {
		return report
	}

	inserted, err := o.store.InsertProductImages(ctx, rows)
	if err != nil {
		log.Errorf("[Pipeline] %v", err)
		report.Failed += len(rows)
		return report
	}
	report.Stored = int(inserted)
	metrics.PipelineItemsTotal.WithLabelValues(stageImages, "stored").Add(float64(inserted))
	return report
}

func (o *Orchestrator) storeImage(ctx context.Context, productID uint, index int, src string) (string, error) {
	body, err := o.fetch(ctx, src)
	if err != nil {
		return "", err
	}
	info, err := imageprocessor.Inspect(body, imageprocessor.MaxImageBytes)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%d/%d-%d-%d.%s", productID, productID, o.now().UnixMilli(), index, info.Ext)
	return o.objects.Put(ctx, key, body, info.ContentType)
}

func (o *Orchestrator) fetch(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d downloading image", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, imageprocessor.MaxImageBytes+1))
}
