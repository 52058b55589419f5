package utils

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// MaxPagesPerUpload caps the number of pages accepted in one session.
const MaxPagesPerUpload = 500

// ValidateUploadNames checks upload count and file extensions before any
// decoding work happens.
func ValidateUploadNames(names []string) error {
	if len(names) == 0 {
		return errors.New("no files uploaded")
	}
	if len(names) > MaxPagesPerUpload {
		return fmt.Errorf("maximum %d pages allowed per upload, got %d", MaxPagesPerUpload, len(names))
	}
	for _, n := range names {
		if !IsSupportedImage(n) {
			return fmt.Errorf("unsupported file type: %s", n)
		}
	}
	return nil
}

// ExtractZipImages unpacks page images from a ZIP archive, skipping
// directories, macOS resource forks, and hidden files. Entries are returned
// in natural filename order and normalized to PNG.
func ExtractZipImages(data []byte) ([]NamedImage, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var images []NamedImage
	for _, f := range zr.File {
		name := f.Name
		if strings.HasSuffix(name, "/") || strings.HasPrefix(name, "__MACOSX") ||
			strings.Contains(name, "/.") || strings.HasPrefix(filepath.Base(name), ".") {
			continue
		}
		if !IsSupportedImage(name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			continue
		}

		normalized, _, err := NormalizeUpload(raw)
		if err != nil {
			// Not a decodable image despite the extension.
			continue
		}
		images = append(images, NamedImage{Name: filepath.Base(name), PNG: normalized})
	}

	if len(images) == 0 {
		return nil, errors.New("no page images found in zip")
	}
	if len(images) > MaxPagesPerUpload {
		return nil, fmt.Errorf("maximum %d pages allowed per upload, got %d", MaxPagesPerUpload, len(images))
	}

	sort.SliceStable(images, func(i, j int) bool { return NaturalLess(images[i].Name, images[j].Name) })
	return images, nil
}
