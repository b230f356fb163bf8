// Package media normalises the document photos captured in the data-entry step
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

var (
	ErrEmptyImage       = errors.New("empty image data")
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrUnsupportedImage = errors.New("unsupported image format")
)

var dataURLPattern = regexp.MustCompile(`^data:image/[\w.+-]+;base64,`)

// ProcessorConfig bounds the stored documents.
type ProcessorConfig struct {
	BasePath string
	MaxWidth int
	MaxBytes int
	Quality  float32
}

// StoredImage describes a normalised photo on disk. Path is relative to
// the processor's base path.
type StoredImage struct {
	Path   string
	Width  int
	Height int
	Size   int64
}

// ImageProcessor decodes uploaded photos, fixes their orientation, scales
// them down and stores them as WebP.
type ImageProcessor struct {
	cfg ProcessorConfig
}

// NewImageProcessor creates a processor writing under cfg.BasePath.
func NewImageProcessor(cfg ProcessorConfig) *ImageProcessor {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1600
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 82
	}
	return &ImageProcessor{cfg: cfg}
}

// DecodeDataURL turns a base64 data URL into raw bytes. Plain base64 is
// accepted as well.
func DecodeDataURL(data string) ([]byte, error) {
	if data == "" {
		return nil, ErrEmptyImage
	}
	if strings.HasPrefix(data, "data:image/svg+xml") {
		return nil, ErrUnsupportedImage
	}
	b64 := dataURLPattern.ReplaceAllString(data, "")
	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return decoded, nil
}

// Store normalises raw and writes it to {subdir}/{name}.webp.
func (p *ImageProcessor) Store(raw []byte, subdir, name string) (*StoredImage, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyImage
	}
	if len(raw) > p.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(raw))
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	img = p.fit(img)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: p.cfg.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}

	rel := filepath.Join(subdir, name+".webp")
	full := filepath.Join(p.cfg.BasePath, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(full, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	b := img.Bounds()
	return &StoredImage{
		Path:   filepath.ToSlash(rel),
		Width:  b.Dx(),
		Height: b.Dy(),
		Size:   int64(buf.Len()),
	}, nil
}

func (p *ImageProcessor) fit(img image.Image) image.Image {
	if img.Bounds().Dx() <= p.cfg.MaxWidth {
		return img
	}
	return imaging.Resize(img, p.cfg.MaxWidth, 0, imaging.Lanczos)
}

// Open returns the full path of a stored document, refusing paths that
// leave the base directory.
func (p *ImageProcessor) Open(rel string) (string, error) {
	clean := filepath.Clean("/" + rel)
	full := filepath.Join(p.cfg.BasePath, clean)
	if _, err := os.Stat(full); err != nil {
		return "", err
	}
	return full, nil
}

// Remove deletes every stored document under subdir.
func (p *ImageProcessor) Remove(subdir string) error {
	if subdir == "" || strings.Contains(subdir, "..") {
		return fmt.Errorf("invalid document directory %q", subdir)
	}
	return os.RemoveAll(filepath.Join(p.cfg.BasePath, subdir))
}
