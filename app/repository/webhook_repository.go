package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tricket/tricket-integrations/app/models"
)

type webhookSubscriptionRepository struct {
	db *gorm.DB
}

// NewWebhookSubscriptionRepository creates a new webhook subscription repository instance
func NewWebhookSubscriptionRepository(db *gorm.DB) WebhookSubscriptionRepository {
	return &webhookSubscriptionRepository{db: db}
}

// Upsert registers or re-activates the subscription for (profile, family).
// Re-registering rotates the delivery token and keeps created_by.
func (r *webhookSubscriptionRepository) Upsert(ctx context.Context, sub *models.WebhookSubscription) error {
	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	sub.IsActive = true
	if sub.UpdatedBy == "" {
		sub.UpdatedBy = sub.CreatedBy
	}

	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "profile_id"}, {Name: "family"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"delivery_token", "target_url", "external_id", "is_active", "updated_by", "updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}
	return db.Where("profile_id = ? AND family = ?", sub.ProfileID, sub.Family).First(sub).Error
}

// Deactivate reports whether an active subscription was switched off
func (r *webhookSubscriptionRepository) Deactivate(ctx context.Context, profileID, family, actor string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.WebhookSubscription{}).
		Where("profile_id = ? AND family = ? AND is_active = ?", profileID, family, true).
		Updates(map[string]any{
			"is_active":  false,
			"updated_by": actor,
			"updated_at": time.Now(),
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *webhookSubscriptionRepository) List(ctx context.Context, filter WebhookSubscriptionFilter) ([]models.WebhookSubscription, error) {
	q := r.db.WithContext(ctx).Model(&models.WebhookSubscription{})
	if filter.ProfileID != "" {
		q = q.Where("profile_id = ?", filter.ProfileID)
	}
	if filter.Family != "" {
		q = q.Where("family = ?", filter.Family)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var subs []models.WebhookSubscription
	err := q.Order("id").Find(&subs).Error
	return subs, err
}

// GetActiveByToken returns nil, nil when no active subscription matches
func (r *webhookSubscriptionRepository) GetActiveByToken(ctx context.Context, token, family string) (*models.WebhookSubscription, error) {
	var sub models.WebhookSubscription
	err := r.db.WithContext(ctx).
		Where("delivery_token = ? AND family = ? AND is_active = ?", token, family, true).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists stores the event unless (source, dedup_key) is already
// present. It returns whether a row was created and the stored row.
func (r *webhookEventRepository) CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "dedup_key"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrDuplicatedKey) {
		return false, nil, tx.Error
	}

	created := tx.Error == nil && tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := db.Where("source = ? AND dedup_key = ?", event.Source, event.DedupKey).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id uint, processingError string) error {
	status := models.WebhookEventProcessed
	if processingError != "" {
		status = models.WebhookEventError
	}
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processing_status": status,
			"processing_error":  processingError,
			"processed_at":      &now,
		}).Error
}
