package models

import "time"

// Payments account states that matter locally.
const (
	AsaasAccountPending   = "PENDING"
	AsaasAccountCancelled = "CANCELLED"
)

// AsaasAccount holds the payments-provider account created for a profile
// during onboarding. APIKeyEncrypted is AES-GCM ciphertext. WebhookToken is
// the value the provider sends back in asaas-access-token.
type AsaasAccount struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ProfileID       string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"profile_id"`
	AsaasAccountID  string    `gorm:"type:varchar(64);not null" json:"asaas_account_id"`
	APIKeyEncrypted string    `gorm:"type:text;not null" json:"-"`
	WalletID        string    `gorm:"type:varchar(64);not null" json:"wallet_id"`
	WebhookToken    *string   `gorm:"type:varchar(128);uniqueIndex" json:"-"`
	AccountStatus   string    `gorm:"type:varchar(30);not null;default:'PENDING'" json:"account_status"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
