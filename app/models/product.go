package models

import "time"

type Brand struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Product is the catalog entry enriched from a lookup response, keyed by GTIN.
type Product struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Gtin                string    `gorm:"type:varchar(20);not null;uniqueIndex" json:"gtin"`
	Name                string    `gorm:"type:varchar(255);not null" json:"name"`
	Description         string    `gorm:"type:text" json:"description"`
	BrandID             uint      `gorm:"index" json:"brand_id"`
	Status              string    `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	GpcCategoryCode     string    `gorm:"type:varchar(20)" json:"gpc_category_code,omitempty"`
	NcmCode             string    `gorm:"type:varchar(20)" json:"ncm_code,omitempty"`
	CestCode            string    `gorm:"type:varchar(20)" json:"cest_code,omitempty"`
	NetContent          string    `gorm:"type:varchar(30)" json:"net_content,omitempty"`
	NetContentUnit      string    `gorm:"type:varchar(10)" json:"net_content_unit,omitempty"`
	GrossWeight         string    `gorm:"type:varchar(30)" json:"gross_weight,omitempty"`
	WeightUnit          string    `gorm:"type:varchar(10)" json:"weight_unit,omitempty"`
	CountryOfOriginCode string    `gorm:"type:varchar(2)" json:"country_of_origin_code,omitempty"`
	Gs1CompanyName      string    `gorm:"type:varchar(255)" json:"gs1_company_name,omitempty"`
	CreatedBy           string    `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductImage is one ingested product image. (ProductID, SourceURL) is
// unique so replaying an ingest is a no-op.
type ProductImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;index:ux_product_images_product_source,unique,priority:1" json:"product_id"`
	SourceURL string    `gorm:"type:varchar(512);not null;index:ux_product_images_product_source,unique,priority:2" json:"source_url"`
	ImageURL  string    `gorm:"type:varchar(512);not null" json:"image_url"`
	AltText   string    `gorm:"type:varchar(255)" json:"alt_text"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
