package secrets

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/internal/pkg/crypto"
	"github.com/tricket/tricket-integrations/internal/pkg/env"
)

// EnvSource reads secrets from the loaded .env map and the process environment.
type EnvSource struct{}

func (EnvSource) Lookup(_ context.Context, name string) (string, bool, error) {
	v := env.GetEnv(name, "")
	return v, v != "", nil
}

// VaultSource reads encrypted secrets from the vault_secrets table.
type VaultSource struct {
	db     *gorm.DB
	cipher *crypto.Cipher
}

func NewVaultSource(db *gorm.DB, cipher *crypto.Cipher) *VaultSource {
	return &VaultSource{db: db, cipher: cipher}
}

func (v *VaultSource) Lookup(ctx context.Context, name string) (string, bool, error) {
	var row models.VaultSecret
	err := v.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	plain, err := v.cipher.Decrypt(row.Value)
	if err != nil {
		return "", false, fmt.Errorf("vault secret %s is unreadable: %w", name, err)
	}
	return plain, true, nil
}

// Put encrypts and stores a secret, replacing any previous value.
func (v *VaultSource) Put(ctx context.Context, name, value string) error {
	encrypted, err := v.cipher.Encrypt(value)
	if err != nil {
		return err
	}
	row := models.VaultSecret{Name: name, Value: encrypted}
	return v.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}
