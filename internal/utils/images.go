package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists supported file extensions for page uploads.
var SupportedImageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".bmp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// NamedImage pairs an uploaded page's name with its canonical PNG bytes.
type NamedImage struct {
	Name string
	PNG  []byte
}

// DecodeImage decodes page image bytes in any supported format.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// FlattenToRGB composites transparent images onto a white background.
// Scanned book pages are opaque; transparency only shows up from PNG/WebP
// re-encodes and confuses the downstream editing model.
func FlattenToRGB(img image.Image) *image.NRGBA {
	if img, ok := img.(*image.NRGBA); ok && img.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.NRGBA{255, 255, 255, 255})
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeUpload decodes uploaded page bytes, flattens transparency, and
// re-encodes as PNG. The returned bytes are the canonical representation used
// for fingerprinting and capability calls.
func NormalizeUpload(data []byte) ([]byte, image.Image, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, nil, err
	}
	flat := FlattenToRGB(img)
	out, err := EncodePNG(flat)
	if err != nil {
		return nil, nil, err
	}
	return out, flat, nil
}
