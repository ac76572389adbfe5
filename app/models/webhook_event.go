package models

import "time"

// Webhook event processing states.
const (
	WebhookEventPending   = "PENDING"
	WebhookEventProcessed = "PROCESSED"
	WebhookEventError     = "ERROR"
)

// WebhookEvent stores a delivered webhook payload. (Source, DedupKey) is
// unique so redelivery never creates a second row.
type WebhookEvent struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	SubscriptionID   *uint      `gorm:"index" json:"subscription_id,omitempty"`
	AsaasAccountID   *uint      `gorm:"index" json:"asaas_account_id,omitempty"`
	ProfileID        string     `gorm:"type:varchar(64);not null;default:'';index" json:"profile_id"`
	Source           string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_source_dedup,unique,priority:1" json:"source"`
	DedupKey         string     `gorm:"type:varchar(191);not null;index:ux_webhook_events_source_dedup,unique,priority:2" json:"dedup_key"`
	Family           string     `gorm:"type:varchar(50);not null;index" json:"family"`
	ExternalEventID  string     `gorm:"type:varchar(191);not null;default:''" json:"external_event_id"`
	EventType        string     `gorm:"type:varchar(100);not null;default:''" json:"event_type"`
	PayloadJSON      string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessingStatus string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"processing_status"`
	ProcessingError  string     `gorm:"type:text" json:"processing_error,omitempty"`
	ProcessedAt      *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ReceivedAt       time.Time  `gorm:"autoCreateTime;index" json:"received_at"`
}
