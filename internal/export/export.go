// Package export packages completed session output for download.
package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ivritype/tirgum/internal/session"
)

// OutputName derives the archive entry name for a completed page from its
// upload name: the extension becomes .png and the stem gets a marker prefix
// so originals and outputs sort side by side.
func OutputName(uploadName string) string {
	base := filepath.Base(uploadName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return "translated_" + stem + ".png"
}

// Archive builds a ZIP archive of completed pages, ordered by page index.
// Name collisions after stem normalization get a numeric suffix.
func Archive(pages []session.CompletedPage) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no completed pages to export")
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	seen := make(map[string]int)
	for _, page := range pages {
		name := OutputName(page.Name)
		if n := seen[name]; n > 0 {
			stem := strings.TrimSuffix(name, ".png")
			name = fmt.Sprintf("%s_%d.png", stem, n)
		}
		seen[OutputName(page.Name)]++

		f, err := w.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", name, err)
		}
		if _, err := f.Write(page.Output); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
