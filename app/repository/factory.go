package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

func (f *Factory) GetMerchantProfileRepository() MerchantProfileRepository {
	return f.GetRepositories().MerchantProfile
}

func (f *Factory) GetAsaasAccountRepository() AsaasAccountRepository {
	return f.GetRepositories().AsaasAccount
}

func (f *Factory) GetWebhookSubscriptionRepository() WebhookSubscriptionRepository {
	return f.GetRepositories().WebhookSubscription
}

func (f *Factory) GetWebhookEventRepository() WebhookEventRepository {
	return f.GetRepositories().WebhookEvent
}

func (f *Factory) GetTerminalRepository() TerminalRepository {
	return f.GetRepositories().Terminal
}

func (f *Factory) GetRoleRepository() RoleRepository {
	return f.GetRepositories().Role
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
