package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/crypto"
	"github.com/tricket/tricket-integrations/internal/pkg/testutil"
)

type failingSource struct{}

func (failingSource) Lookup(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection reset")
}

func TestGetRequiredReturnsAllValues(t *testing.T) {
	store := NewStore(MapSource{"GS1_CLIENT_ID": "client", "GS1_PASSWORD": "pw"})

	values, err := store.GetRequired(context.Background(), "GS1_CLIENT_ID", "GS1_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"GS1_CLIENT_ID": "client", "GS1_PASSWORD": "pw"}, values)
}

func TestGetRequiredNamesEveryMissingKey(t *testing.T) {
	store := NewStore(MapSource{"GS1_CLIENT_ID": "client", "GS1_USER_EMAIL": "  "})

	values, err := store.GetRequired(context.Background(), "GS1_CLIENT_ID", "GS1_CLIENT_SECRET", "GS1_USER_EMAIL", "GS1_PASSWORD")
	require.Error(t, err)
	assert.Nil(t, values)

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindConfiguration, appErr.Kind)
	assert.Equal(t, []string{"GS1_CLIENT_SECRET", "GS1_USER_EMAIL", "GS1_PASSWORD"}, appErr.Fields)
}

func TestGetRequiredPropagatesBackendErrors(t *testing.T) {
	_, err := NewStore(failingSource{}).GetRequired(context.Background(), "X")
	require.Error(t, err)
	assert.False(t, apperror.Is(err, apperror.KindConfiguration))
}

func TestChainFirstSourceWins(t *testing.T) {
	chain := Chain{MapSource{"A": ""}, MapSource{"A": "second", "B": "b"}}

	v, ok, err := chain.Lookup(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", v)

	_, ok, err = chain.Lookup(context.Background(), "C")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVaultSourceStoresEncryptedValues(t *testing.T) {
	db := testutil.NewDB(t)
	cipher, err := crypto.NewCipher("vault-secret")
	require.NoError(t, err)
	vault := NewVaultSource(db, cipher)
	ctx := context.Background()

	require.NoError(t, vault.Put(ctx, "CAPPTA_API_TOKEN", "first"))
	require.NoError(t, vault.Put(ctx, "CAPPTA_API_TOKEN", "second"))

	var stored string
	require.NoError(t, db.Table("vault_secrets").Select("value").Where("name = ?", "CAPPTA_API_TOKEN").Scan(&stored).Error)
	assert.NotContains(t, stored, "second")

	values, err := NewStore(vault).GetRequired(ctx, "CAPPTA_API_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "second", values["CAPPTA_API_TOKEN"])

	_, err = NewStore(vault).GetRequired(ctx, "ASAAS_WEBHOOK_TOKEN")
	assert.True(t, apperror.Is(err, apperror.KindConfiguration))
}
