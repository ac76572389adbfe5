package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher("master-secret")
	require.NoError(t, err)

	encrypted, err := c.Encrypt("$aact_prod_000MzkwODA2MWY2OGM3MWRlMDU2NWM3MzJlNzZmNGZhZGY")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	assert.Greater(t, len(raw), ivLength)

	plain, err := c.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "$aact_prod_000MzkwODA2MWY2OGM3MWRlMDU2NWM3MzJlNzZmNGZhZGY", plain)
}

func TestCipherRejectsWrongSecret(t *testing.T) {
	a, err := NewCipher("secret-a")
	require.NoError(t, err)
	b, err := NewCipher("secret-b")
	require.NoError(t, err)

	encrypted, err := a.Encrypt("api-key")
	require.NoError(t, err)

	_, err = b.Decrypt(encrypted)
	assert.Error(t, err)

	_, err = a.Decrypt("bm9wZQ==")
	assert.Error(t, err)
}

func TestNewCipherRequiresSecret(t *testing.T) {
	_, err := NewCipher("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken(14)
	require.NoError(t, err)
	assert.Len(t, tok, 14)
	assert.Regexp(t, "^[0-9a-zA-Z]+$", tok)

	other, err := GenerateToken(14)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}
