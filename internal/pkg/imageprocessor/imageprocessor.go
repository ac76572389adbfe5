// Package imageprocessor validates product images fetched from upstream
// before they are stored.
package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageBytes bounds a single fetched image.
	MaxImageBytes = 10 << 20
	// MaxDimension bounds either side of a decoded image.
	MaxDimension = 8000
)

var (
	ErrEmptyImage    = errors.New("image body is empty")
	ErrImageTooLarge = errors.New("image exceeds size limit")
	ErrUnsupported   = errors.New("unsupported image format")
)

// Info describes a validated image.
type Info struct {
	Format      string
	Ext         string
	ContentType string
	Width       int
	Height      int
	Size        int
}

// Inspect decodes body and reports its format and dimensions. Bodies that
// are empty, larger than maxBytes, or not decodable are rejected.
// maxBytes <= 0 uses MaxImageBytes.
func Inspect(body []byte, maxBytes int) (Info, error) {
	if maxBytes <= 0 {
		maxBytes = MaxImageBytes
	}
	if len(body) == 0 {
		return Info{}, ErrEmptyImage
	}
	if len(body) > maxBytes {
		return Info{}, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(body))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return Info{}, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	// full decode catches truncated payloads that still carry a valid header
	img, err := imaging.Decode(bytes.NewReader(body))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	ext, contentType := ExtensionFor(format)
	return Info{
		Format:      format,
		Ext:         ext,
		ContentType: contentType,
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		Size:        len(body),
	}, nil
}

// ExtensionFor maps a decoder format name to a file extension and content
// type. Anything unknown is stored as JPEG.
func ExtensionFor(format string) (ext, contentType string) {
	switch format {
	case "png":
		return "png", "image/png"
	case "gif":
		return "gif", "image/gif"
	case "webp":
		return "webp", "image/webp"
	default:
		return "jpg", "image/jpeg"
	}
}
