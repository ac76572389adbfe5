package models

import "time"

// Terminal status codes as reported by the acquiring gateway.
const (
	TerminalStatusDeleted    = 0
	TerminalStatusAvailable  = 1
	TerminalStatusAssociated = 2
)

// Terminal binding actions.
const (
	TerminalBind   = "BIND"
	TerminalUnbind = "UNBIND"
)

// CapptaPosDevice mirrors a POS terminal owned by the acquiring gateway.
// Rows are never hard-deleted; deletion is a status transition.
type CapptaPosDevice struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	CapptaPosID       string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_cappta_pos_devices_pos_id" json:"cappta_pos_id"`
	ResellerDocument  string     `gorm:"type:varchar(20);not null;default:''" json:"reseller_document"`
	SerialKey         string     `gorm:"type:varchar(100);not null;index" json:"serial_key"`
	ModelID           int        `gorm:"not null;default:0" json:"model_id"`
	Status            int        `gorm:"not null;index" json:"status"`
	StatusDescription string     `gorm:"type:varchar(100)" json:"status_description"`
	MerchantDocument  *string    `gorm:"type:varchar(20);index" json:"merchant_document,omitempty"`
	Keys              string     `gorm:"type:text" json:"keys,omitempty"`
	CreatedBy         string     `gorm:"type:varchar(64)" json:"created_by"`
	UpdatedBy         string     `gorm:"type:varchar(64)" json:"updated_by"`
	DeletedBy         string     `gorm:"type:varchar(64)" json:"deleted_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `gorm:"type:timestamp;default:null" json:"deleted_at,omitempty"`
}

// CapptaPosDeletion is the append-only audit trail of terminal deletions.
type CapptaPosDeletion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CapptaPosID string    `gorm:"type:varchar(64);not null;index" json:"cappta_pos_id"`
	SerialKey   string    `gorm:"type:varchar(100)" json:"serial_key"`
	Reason      string    `gorm:"type:varchar(255)" json:"reason"`
	DeletedBy   string    `gorm:"type:varchar(64);not null" json:"deleted_by"`
	DeletedAt   time.Time `gorm:"autoCreateTime" json:"deleted_at"`
}

// CapptaPosBinding is the append-only history of merchant bindings. Token is
// the terminal token the gateway returns on bind.
type CapptaPosBinding struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CapptaPosID      string    `gorm:"type:varchar(64);not null;index" json:"cappta_pos_id"`
	Action           string    `gorm:"type:varchar(10);not null" json:"action"`
	ResellerDocument string    `gorm:"type:varchar(20)" json:"reseller_document,omitempty"`
	MerchantDocument string    `gorm:"type:varchar(20);not null;index" json:"merchant_document"`
	Token            string    `gorm:"type:varchar(255)" json:"-"`
	PerformedBy      string    `gorm:"type:varchar(64);not null" json:"performed_by"`
	PerformedAt      time.Time `gorm:"autoCreateTime" json:"performed_at"`
}
