package reconcile

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tricket/tricket-integrations/app/models"
)

// InsertLookupResponse persists one raw lookup payload as PENDING.
func (s *Store) InsertLookupResponse(ctx context.Context, gtin, raw, actor string) (uint, error) {
	row := models.Gs1APIResponse{
		Gtin:        gtin,
		RawResponse: raw,
		Status:      models.LookupStatusPending,
		CreatedBy:   actor,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("insert lookup response for %s: %w", gtin, err)
	}
	return row.ID, nil
}

func (s *Store) GetLookupResponse(ctx context.Context, id uint) (*models.Gs1APIResponse, error) {
	var row models.Gs1APIResponse
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) MarkLookupProcessed(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.Gs1APIResponse{}).Where("id = ?", id).
		Updates(map[string]any{"status": models.LookupStatusProcessed, "error_message": ""}).Error
}

func (s *Store) MarkLookupError(ctx context.Context, id uint, message string) error {
	return s.db.WithContext(ctx).Model(&models.Gs1APIResponse{}).Where("id = ?", id).
		Updates(map[string]any{"status": models.LookupStatusError, "error_message": message}).Error
}

// PendingLookupIDs returns up to limit PENDING response ids created before
// the cutoff, oldest first.
func (s *Store) PendingLookupIDs(ctx context.Context, before time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Gs1APIResponse{}).
		Where("status = ? AND created_at < ?", models.LookupStatusPending, before).
		Order("id").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

// UpsertBrand returns the id of the brand with the given name, creating it if needed.
func (s *Store) UpsertBrand(ctx context.Context, name string) (uint, error) {
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&models.Brand{Name: name}).Error; err != nil {
		return 0, fmt.Errorf("upsert brand %q: %w", name, err)
	}

	var brand models.Brand
	if err := db.Where("name = ?", name).First(&brand).Error; err != nil {
		return 0, err
	}
	return brand.ID, nil
}

var productUpdateColumns = []string{
	"name", "description", "brand_id", "status", "gpc_category_code", "ncm_code",
	"cest_code", "net_content", "net_content_unit", "gross_weight", "weight_unit",
	"country_of_origin_code", "gs1_company_name", "updated_at",
}

// UpsertProduct inserts or refreshes the product keyed by GTIN and returns its id.
func (s *Store) UpsertProduct(ctx context.Context, p *models.Product) (uint, error) {
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gtin"}},
		DoUpdates: clause.AssignmentColumns(productUpdateColumns),
	}).Create(p).Error; err != nil {
		return 0, fmt.Errorf("upsert product %s: %w", p.Gtin, err)
	}

	var stored models.Product
	if err := db.Select("id").Where("gtin = ?", p.Gtin).First(&stored).Error; err != nil {
		return 0, err
	}
	p.ID = stored.ID
	return stored.ID, nil
}

// ImageSources returns the source URLs already ingested for a product.
func (s *Store) ImageSources(ctx context.Context, productID uint) (map[string]bool, error) {
	var urls []string
	if err := s.db.WithContext(ctx).Model(&models.ProductImage{}).
		Where("product_id = ?", productID).Pluck("source_url", &urls).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		seen[u] = true
	}
	return seen, nil
}

// InsertProductImages bulk-inserts image records, skipping any already stored.
func (s *Store) InsertProductImages(ctx context.Context, images []models.ProductImage) (int64, error) {
	if len(images) == 0 {
		return 0, nil
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&images)
	if tx.Error != nil {
		return 0, fmt.Errorf("insert %d product images: %w", len(images), tx.Error)
	}
	return tx.RowsAffected, nil
}

// DB exposes the underlying handle for read-side repositories sharing the connection.
func (s *Store) DB() *gorm.DB { return s.db }
