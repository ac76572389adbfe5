package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AsaasTransfer records a transfer accepted by the payments provider.
// Append-only; status changes arrive through webhooks.
type AsaasTransfer struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	AsaasTransferID   string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"asaas_transfer_id"`
	PayerProfileID    string          `gorm:"type:varchar(64);not null;index" json:"payer_profile_id"`
	ReceiverProfileID string          `gorm:"type:varchar(64);not null;index" json:"receiver_profile_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Description       string          `gorm:"type:varchar(255)" json:"description"`
	Status            string          `gorm:"type:varchar(30);not null" json:"status"`
	CreatedBy         string          `gorm:"type:varchar(64)" json:"created_by"`
	UpdatedBy         string          `gorm:"type:varchar(64)" json:"updated_by"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
