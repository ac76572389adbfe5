package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tricket/tricket-integrations/app/models"
)

// MerchantProfileRepository defines the interface for merchant profile lookups
type MerchantProfileRepository interface {
	GetByProfileID(ctx context.Context, profileID string) (*models.MerchantProfile, error)
	Save(ctx context.Context, profile *models.MerchantProfile) error
	UpdateCapptaStatus(ctx context.Context, profileID, status, description string) error
}

// AsaasAccountRepository defines the interface for payments account lookups
type AsaasAccountRepository interface {
	GetByProfileID(ctx context.Context, profileID string) (*models.AsaasAccount, error)
	GetByWebhookToken(ctx context.Context, token string) (*models.AsaasAccount, error)
	SetWebhookToken(ctx context.Context, profileID, token string) error
	Create(ctx context.Context, account *models.AsaasAccount) error
}

// WebhookSubscriptionFilter narrows a subscription listing
type WebhookSubscriptionFilter struct {
	ProfileID string
	Family    string
	// ActiveOnly hides deactivated subscriptions
	ActiveOnly bool
}

// WebhookSubscriptionRepository defines the interface for inbound webhook subscriptions
type WebhookSubscriptionRepository interface {
	Upsert(ctx context.Context, sub *models.WebhookSubscription) error
	Deactivate(ctx context.Context, profileID, family, actor string) (bool, error)
	List(ctx context.Context, filter WebhookSubscriptionFilter) ([]models.WebhookSubscription, error)
	GetActiveByToken(ctx context.Context, token, family string) (*models.WebhookSubscription, error)
}

// WebhookEventRepository defines the interface for stored webhook deliveries
type WebhookEventRepository interface {
	CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
}

// TerminalFilter narrows a terminal listing
type TerminalFilter struct {
	SerialKey        string
	MerchantDocument string
	Status           *int
	Offset           int
	Limit            int
}

// TerminalRepository defines the read side of the mirrored terminals
type TerminalRepository interface {
	GetByExternalID(ctx context.Context, capptaPosID string) (*models.CapptaPosDevice, error)
	List(ctx context.Context, filter TerminalFilter) ([]models.CapptaPosDevice, error)
}

// RoleRepository defines the interface for role assignments
type RoleRepository interface {
	RolesForUser(ctx context.Context, userID string) ([]string, error)
	Assign(ctx context.Context, userID, role string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	MerchantProfile     MerchantProfileRepository
	AsaasAccount        AsaasAccountRepository
	WebhookSubscription WebhookSubscriptionRepository
	WebhookEvent        WebhookEventRepository
	Terminal            TerminalRepository
	Role                RoleRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		MerchantProfile:     NewMerchantProfileRepository(db),
		AsaasAccount:        NewAsaasAccountRepository(db),
		WebhookSubscription: NewWebhookSubscriptionRepository(db),
		WebhookEvent:        NewWebhookEventRepository(db),
		Terminal:            NewTerminalRepository(db),
		Role:                NewRoleRepository(db),
	}
}
