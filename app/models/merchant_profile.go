package models

import "time"

// MerchantProfile binds an internal profile to the merchant document used by the gateway.
type MerchantProfile struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ProfileID        string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"profile_id"`
	Document         string    `gorm:"type:varchar(20);not null;index" json:"document"`
	CapptaStatus     string    `gorm:"type:varchar(50)" json:"cappta_status"`
	CapptaStatusDesc string    `gorm:"column:cappta_status_description;type:varchar(255)" json:"cappta_status_description"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
