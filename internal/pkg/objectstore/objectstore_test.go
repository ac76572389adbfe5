package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		endpoint string
		want     string
	}{
		{"public base wins", "https://cdn.tricket.com.br/", "https://s3.example.com", "https://cdn.tricket.com.br/product-images/12/12-1-0.jpg"},
		{"custom endpoint", "", "https://s3.example.com", "https://s3.example.com/product-images/12/12-1-0.jpg"},
		{"aws default", "", "", "https://product-images.s3.sa-east-1.amazonaws.com/12/12-1-0.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicURL(tt.base, tt.endpoint, "sa-east-1", "product-images", "/12/12-1-0.jpg"))
		})
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore("http://local/")

	url, err := m.Put(context.Background(), "1/a.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://local/1/a.png", url)

	obj, ok := m.Get("1/a.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, []string{"1/a.png"}, m.Keys())
}
