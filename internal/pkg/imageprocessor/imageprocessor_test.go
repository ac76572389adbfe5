package imageprocessor

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, nil)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	tests := []struct {
		format      string
		ext         string
		contentType string
	}{
		{"png", "png", "image/png"},
		{"gif", "gif", "image/gif"},
		{"jpeg", "jpg", "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			info, err := Inspect(sample(t, tt.format), 0)
			require.NoError(t, err)
			assert.Equal(t, tt.ext, info.Ext)
			assert.Equal(t, tt.contentType, info.ContentType)
			assert.Equal(t, 4, info.Width)
			assert.Equal(t, 3, info.Height)
		})
	}
}

func TestInspectRejects(t *testing.T) {
	valid := sample(t, "png")

	_, err := Inspect(nil, 0)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Inspect(valid, len(valid)-1)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = Inspect([]byte("<html>not an image</html>"), 0)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Inspect(valid[:len(valid)/2], 0)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestExtensionForUnknownFallsBackToJPEG(t *testing.T) {
	ext, ct := ExtensionFor("bmp")
	assert.Equal(t, "jpg", ext)
	assert.Equal(t, "image/jpeg", ct)
}
