package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStoreScalesAndWritesWebP(t *testing.T) {
	dir := t.TempDir()
	p := NewImageProcessor(ProcessorConfig{BasePath: dir, MaxWidth: 100})

	out, err := p.Store(samplePNG(t, 400, 200), "session-1", "tenant-id-front")
	require.NoError(t, err)
	require.Equal(t, "session-1/tenant-id-front.webp", out.Path)
	require.Equal(t, 100, out.Width)
	require.Equal(t, 50, out.Height)

	info, err := os.Stat(filepath.Join(dir, out.Path))
	require.NoError(t, err)
	require.Equal(t, out.Size, info.Size())

	full, err := p.Open("../../session-1/tenant-id-front.webp")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "session-1", "tenant-id-front.webp"), full)

	require.NoError(t, p.Remove("session-1"))
	_, err = os.Stat(full)
	require.True(t, os.IsNotExist(err))
}

func TestStoreRejectsBadInput(t *testing.T) {
	p := NewImageProcessor(ProcessorConfig{BasePath: t.TempDir(), MaxBytes: 1024})

	_, err := p.Store(nil, "s", "n")
	require.ErrorIs(t, err, ErrEmptyImage)

	_, err = p.Store([]byte("not an image"), "s", "n")
	require.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = p.Store(make([]byte, 2048), "s", "n")
	require.ErrorIs(t, err, ErrImageTooLarge)
}

func TestDecodeDataURL(t *testing.T) {
	raw := samplePNG(t, 4, 4)
	got, err := DecodeDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, raw, got)

	_, err = DecodeDataURL("data:image/svg+xml;base64,PHN2Zy8+")
	require.ErrorIs(t, err, ErrUnsupportedImage)
}
