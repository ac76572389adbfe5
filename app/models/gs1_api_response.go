package models

import "time"

// Lookup response processing states.
const (
	LookupStatusPending   = "PENDING"
	LookupStatusProcessed = "PROCESSED"
	LookupStatusError     = "ERROR"
)

// Gs1APIResponse is one successfully completed product-code lookup.
type Gs1APIResponse struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Gtin         string    `gorm:"type:varchar(20);not null;index" json:"gtin"`
	RawResponse  string    `gorm:"type:longtext;not null" json:"raw_response"`
	Status       string    `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedBy    string    `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
