package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/internal/pkg/metrics"
)

// Action reports what an upsert did.
type Action string

const (
	Inserted Action = "inserted"
	Updated  Action = "updated"
)

// Entity names a mirrored table and the column holding the external id.
// Every entity table carries created_by/updated_by and created_at/updated_at.
type Entity struct {
	Name      string
	Table     string
	KeyColumn string
}

var (
	Terminals = Entity{Name: "terminal", Table: "cappta_pos_devices", KeyColumn: "cappta_pos_id"}
	Transfers = Entity{Name: "transfer", Table: "asaas_transfers", KeyColumn: "asaas_transfer_id"}
)

// Store mirrors externally-owned entities into the local database.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// UpsertByExternalID updates the row keyed by externalID, or inserts it when
// absent. Updates stamp updated_by/at; inserts also stamp created_by/at.
func (s *Store) UpsertByExternalID(ctx context.Context, entity Entity, externalID string, fields map[string]any, actor string) (Action, error) {
	if externalID == "" {
		return "", fmt.Errorf("%s: external id is required", entity.Name)
	}

	var action Action
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		action, err = upsertRow(tx, entity, externalID, fields, actor, s.now())
		return err
	})
	if err != nil {
		return "", fmt.Errorf("upsert %s %s: %w", entity.Name, externalID, err)
	}
	metrics.ReconciledRowsTotal.WithLabelValues(entity.Name, string(action)).Inc()
	return action, nil
}

func upsertRow(tx *gorm.DB, entity Entity, externalID string, fields map[string]any, actor string, now time.Time) (Action, error) {
	var count int64
	if err := tx.Table(entity.Table).Where(entity.KeyColumn+" = ?", externalID).Count(&count).Error; err != nil {
		return "", err
	}

	values := make(map[string]any, len(fields)+5)
	for k, v := range fields {
		values[k] = v
	}
	values["updated_by"] = actor
	values["updated_at"] = now

	if count > 0 {
		if err := tx.Table(entity.Table).Where(entity.KeyColumn+" = ?", externalID).Updates(values).Error; err != nil {
			return "", err
		}
		return Updated, nil
	}

	values[entity.KeyColumn] = externalID
	values["created_by"] = actor
	values["created_at"] = now
	if err := tx.Table(entity.Table).Create(values).Error; err != nil {
		return "", err
	}
	return Inserted, nil
}

// SyncReport summarises a batch sync.
type SyncReport struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

var terminalSyncColumns = []string{
	"reseller_document", "model_id", "serial_key", "status",
	"status_description", "merchant_document", "updated_by", "updated_at",
}

// SyncTerminals reconciles a device listing in one transactional batch
// upsert keyed by cappta_pos_id. If the batch fails every device is retried
// on its own so one bad row cannot block the rest.
func (s *Store) SyncTerminals(ctx context.Context, devices []models.CapptaPosDevice, actor string) (SyncReport, error) {
	rows := dedupeDevices(devices)
	if len(rows) == 0 {
		return SyncReport{}, nil
	}

	now := s.now()
	ids := make([]string, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].CapptaPosID)
		rows[i].CreatedBy = actor
		rows[i].UpdatedBy = actor
		rows[i].CreatedAt = now
		rows[i].UpdatedAt = now
	}

	var report SyncReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&models.CapptaPosDevice{}).Where("cappta_pos_id IN ?", ids).Pluck("cappta_pos_id", &existing).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cappta_pos_id"}},
			DoUpdates: clause.AssignmentColumns(terminalSyncColumns),
		}).Create(&rows).Error; err != nil {
			return err
		}
		report.Updated = len(existing)
		report.Inserted = len(rows) - len(existing)
		return nil
	})
	if err == nil {
		metrics.ReconciledRowsTotal.WithLabelValues(Terminals.Name, string(Inserted)).Add(float64(report.Inserted))
		metrics.ReconciledRowsTotal.WithLabelValues(Terminals.Name, string(Updated)).Add(float64(report.Updated))
		return report, nil
	}

	log.Warnf("[Reconcile] Batch terminal sync failed, reconciling %d devices individually: %v", len(rows), err)
	report = SyncReport{}
	for _, d := range rows {
		action, rowErr := s.UpsertByExternalID(ctx, Terminals, d.CapptaPosID, terminalFields(d), actor)
		if rowErr != nil {
			log.Errorf("[Reconcile] Terminal %s not reconciled: %v", d.CapptaPosID, rowErr)
			report.Failed++
			continue
		}
		if action == Inserted {
			report.Inserted++
		} else {
			report.Updated++
		}
	}
	if report.Failed == len(rows) {
		return report, fmt.Errorf("terminal sync failed for all %d devices: %w", len(rows), err)
	}
	return report, nil
}

// UpsertTerminal mirrors a single device.
func (s *Store) UpsertTerminal(ctx context.Context, d models.CapptaPosDevice, actor string) (Action, error) {
	return s.UpsertByExternalID(ctx, Terminals, d.CapptaPosID, terminalFields(d), actor)
}

func terminalFields(d models.CapptaPosDevice) map[string]any {
	fields := map[string]any{
		"reseller_document":  d.ResellerDocument,
		"model_id":           d.ModelID,
		"serial_key":         d.SerialKey,
		"status":             d.Status,
		"status_description": d.StatusDescription,
		"merchant_document":  d.MerchantDocument,
	}
	if d.Keys != "" {
		fields["keys"] = d.Keys
	}
	return fields
}

// dedupeDevices keeps the last occurrence of each external id.
func dedupeDevices(devices []models.CapptaPosDevice) []models.CapptaPosDevice {
	index := make(map[string]int, len(devices))
	out := make([]models.CapptaPosDevice, 0, len(devices))
	for _, d := range devices {
		if d.CapptaPosID == "" {
			continue
		}
		if i, ok := index[d.CapptaPosID]; ok {
			out[i] = d
			continue
		}
		index[d.CapptaPosID] = len(out)
		out = append(out, d)
	}
	return out
}

// RecordTerminalDeletion soft-deletes the local terminal and appends a
// deletion record. A terminal never seen locally still gets the record.
func (s *Store) RecordTerminalDeletion(ctx context.Context, capptaPosID, reason, actor string) error {
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var device models.CapptaPosDevice
		err := tx.Where("cappta_pos_id = ?", capptaPosID).First(&device).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			if err := tx.Model(&device).Updates(map[string]any{
				"status":             models.TerminalStatusDeleted,
				"status_description": "Deleted",
				"deleted_at":         now,
				"deleted_by":         actor,
				"updated_by":         actor,
				"updated_at":         now,
			}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&models.CapptaPosDeletion{
			CapptaPosID: capptaPosID,
			SerialKey:   device.SerialKey,
			Reason:      reason,
			DeletedBy:   actor,
			DeletedAt:   now,
		}).Error
	})
}

// RecordTerminalBinding marks the local terminal as associated with the
// merchant and appends a binding record. It reports whether the terminal is
// mirrored locally; the record is written either way.
func (s *Store) RecordTerminalBinding(ctx context.Context, capptaPosID, resellerDocument, merchantDocument, token, actor string) (bool, error) {
	now := s.now()
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CapptaPosDevice{}).
			Where("cappta_pos_id = ?", capptaPosID).
			Updates(map[string]any{
				"merchant_document":  merchantDocument,
				"status":             models.TerminalStatusAssociated,
				"status_description": "Associated",
				"updated_by":         actor,
				"updated_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		found = res.RowsAffected > 0
		return tx.Create(&models.CapptaPosBinding{
			CapptaPosID:      capptaPosID,
			Action:           models.TerminalBind,
			ResellerDocument: resellerDocument,
			MerchantDocument: merchantDocument,
			Token:            token,
			PerformedBy:      actor,
			PerformedAt:      now,
		}).Error
	})
	if err != nil {
		return false, fmt.Errorf("record binding of terminal %s: %w", capptaPosID, err)
	}
	if found {
		metrics.ReconciledRowsTotal.WithLabelValues(Terminals.Name, string(Updated)).Inc()
	}
	return found, nil
}

// RecordTerminalUnbinding returns the local terminal to Available and clears
// its merchant. An unbinding record is appended only when a merchant was
// bound. It returns the previous merchant document.
func (s *Store) RecordTerminalUnbinding(ctx context.Context, capptaPosID, actor string) (string, error) {
	now := s.now()
	var previous string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var device models.CapptaPosDevice
		err := tx.Where("cappta_pos_id = ?", capptaPosID).First(&device).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if device.MerchantDocument != nil {
			previous = *device.MerchantDocument
		}
		if err := tx.Model(&device).Updates(map[string]any{
			"merchant_document":  nil,
			"status":             models.TerminalStatusAvailable,
			"status_description": "Available",
			"updated_by":         actor,
			"updated_at":         now,
		}).Error; err != nil {
			return err
		}
		if previous == "" {
			return nil
		}
		return tx.Create(&models.CapptaPosBinding{
			CapptaPosID:      capptaPosID,
			Action:           models.TerminalUnbind,
			ResellerDocument: device.ResellerDocument,
			MerchantDocument: previous,
			PerformedBy:      actor,
			PerformedAt:      now,
		}).Error
	})
	if err != nil {
		return "", fmt.Errorf("record unbinding of terminal %s: %w", capptaPosID, err)
	}
	return previous, nil
}

// CreateTransfer records a transfer the provider accepted.
func (s *Store) CreateTransfer(ctx context.Context, t *models.AsaasTransfer, actor string) error {
	now := s.now()
	t.CreatedBy, t.UpdatedBy = actor, actor
	t.CreatedAt, t.UpdatedAt = now, now
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("insert transfer %s: %w", t.AsaasTransferID, err)
	}
	metrics.ReconciledRowsTotal.WithLabelValues(Transfers.Name, string(Inserted)).Inc()
	return nil
}
