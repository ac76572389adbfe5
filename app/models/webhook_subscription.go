package models

import "time"

// Webhook families.
const (
	WebhookFamilyMerchantAccreditation = "MERCHANT_ACCREDITATION"
	WebhookFamilyTransaction           = "TRANSACTION"
	WebhookFamilyTransfer              = "TRANSFER"
	WebhookFamilyAccountStatus         = "ACCOUNT_STATUS"
)

// WebhookSubscription is a registered inbound webhook. (ProfileID, Family)
// is the natural key; deactivation only flips IsActive.
type WebhookSubscription struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProfileID     string    `gorm:"type:varchar(64);not null;index:ux_webhook_subscriptions_profile_family,unique,priority:1" json:"profile_id"`
	Family        string    `gorm:"type:varchar(50);not null;index:ux_webhook_subscriptions_profile_family,unique,priority:2" json:"family"`
	DeliveryToken string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"-"`
	TargetURL     string    `gorm:"type:varchar(512)" json:"target_url"`
	ExternalID    string    `gorm:"type:varchar(64)" json:"external_id,omitempty"`
	IsActive      bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedBy     string    `gorm:"type:varchar(64)" json:"created_by"`
	UpdatedBy     string    `gorm:"type:varchar(64)" json:"updated_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
