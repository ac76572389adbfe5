package models

// All lists every persisted model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&VaultSecret{},
		&RbacUserRole{},
		&MerchantProfile{},
		&CapptaPosDevice{},
		&CapptaPosDeletion{},
		&CapptaPosBinding{},
		&WebhookSubscription{},
		&WebhookEvent{},
		&AsaasAccount{},
		&AsaasTransfer{},
		&Gs1APIResponse{},
		&Brand{},
		&Product{},
		&ProductImage{},
	}
}
