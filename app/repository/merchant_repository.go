package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tricket/tricket-integrations/app/models"
)

type merchantProfileRepository struct {
	db *gorm.DB
}

// NewMerchantProfileRepository creates a new merchant profile repository instance
func NewMerchantProfileRepository(db *gorm.DB) MerchantProfileRepository {
	return &merchantProfileRepository{db: db}
}

// GetByProfileID returns gorm.ErrRecordNotFound for unknown profiles
func (r *merchantProfileRepository) GetByProfileID(ctx context.Context, profileID string) (*models.MerchantProfile, error) {
	var profile models.MerchantProfile
	if err := r.db.WithContext(ctx).Where("profile_id = ?", profileID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *merchantProfileRepository) Save(ctx context.Context, profile *models.MerchantProfile) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
	}).Create(profile).Error
}

func (r *merchantProfileRepository) UpdateCapptaStatus(ctx context.Context, profileID, status, description string) error {
	return r.db.WithContext(ctx).Model(&models.MerchantProfile{}).
		Where("profile_id = ?", profileID).
		Updates(map[string]any{
			"cappta_status":             status,
			"cappta_status_description": description,
		}).Error
}

type asaasAccountRepository struct {
	db *gorm.DB
}

// NewAsaasAccountRepository creates a new payments account repository instance
func NewAsaasAccountRepository(db *gorm.DB) AsaasAccountRepository {
	return &asaasAccountRepository{db: db}
}

func (r *asaasAccountRepository) GetByProfileID(ctx context.Context, profileID string) (*models.AsaasAccount, error) {
	var account models.AsaasAccount
	if err := r.db.WithContext(ctx).Where("profile_id = ?", profileID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByWebhookToken returns nil, nil when no account owns the token
func (r *asaasAccountRepository) GetByWebhookToken(ctx context.Context, token string) (*models.AsaasAccount, error) {
	var account models.AsaasAccount
	err := r.db.WithContext(ctx).Where("webhook_token = ?", token).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// SetWebhookToken replaces the account's delivery token. It returns
// gorm.ErrRecordNotFound when the profile has no account.
func (r *asaasAccountRepository) SetWebhookToken(ctx context.Context, profileID, token string) error {
	res := r.db.WithContext(ctx).Model(&models.AsaasAccount{}).
		Where("profile_id = ?", profileID).
		Update("webhook_token", token)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *asaasAccountRepository) Create(ctx context.Context, account *models.AsaasAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new role repository instance
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	var roles []string
	err := r.db.WithContext(ctx).Model(&models.RbacUserRole{}).
		Where("user_id = ?", userID).
		Order("role_name").
		Pluck("role_name", &roles).Error
	return roles, err
}

// Assign is idempotent
func (r *roleRepository) Assign(ctx context.Context, userID, role string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RbacUserRole{UserID: userID, RoleName: role}).Error
}
