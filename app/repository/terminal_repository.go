package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tricket/tricket-integrations/app/models"
)

const maxTerminalPageSize = 200

type terminalRepository struct {
	db *gorm.DB
}

// NewTerminalRepository creates a new terminal repository instance
func NewTerminalRepository(db *gorm.DB) TerminalRepository {
	return &terminalRepository{db: db}
}

func (r *terminalRepository) GetByExternalID(ctx context.Context, capptaPosID string) (*models.CapptaPosDevice, error) {
	var d models.CapptaPosDevice
	if err := r.db.WithContext(ctx).Where("cappta_pos_id = ?", capptaPosID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *terminalRepository) List(ctx context.Context, filter TerminalFilter) ([]models.CapptaPosDevice, error) {
	q := r.db.WithContext(ctx).Model(&models.CapptaPosDevice{})
	if filter.SerialKey != "" {
		q = q.Where("serial_key = ?", filter.SerialKey)
	}
	if filter.MerchantDocument != "" {
		q = q.Where("merchant_document = ?", filter.MerchantDocument)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 || limit > maxTerminalPageSize {
		limit = maxTerminalPageSize
	}
	var devices []models.CapptaPosDevice
	err := q.Order("id").Offset(filter.Offset).Limit(limit).Find(&devices).Error
	return devices, err
}
