package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivritype/tirgum/internal/export"
	"github.com/ivritype/tirgum/internal/pdf"
	"github.com/ivritype/tirgum/internal/session"
	"github.com/ivritype/tirgum/internal/utils"
)

// collectInputs loads pages from the given arguments. Each argument may be a
// directory of images, a ZIP archive, a PDF, or a single image file.
// pageRange applies to PDF inputs only.
func collectInputs(args []string, pageRange string) ([]utils.NamedImage, error) {
	var inputs []utils.NamedImage

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access input %s: %w", arg, err)
		}

		switch {
		case info.IsDir():
			pages, err := collectDirImages(arg)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, pages...)
		case strings.EqualFold(filepath.Ext(arg), ".zip"):
			data, err := os.ReadFile(arg)
			if err != nil {
				return nil, fmt.Errorf("failed to read archive %s: %w", arg, err)
			}
			pages, err := utils.ExtractZipImages(data)
			if err != nil {
				return nil, fmt.Errorf("failed to extract archive %s: %w", arg, err)
			}
			inputs = append(inputs, pages...)
		case strings.EqualFold(filepath.Ext(arg), ".pdf"):
			pages, err := pdf.ExtractPageImages(arg, pageRange)
			if err != nil {
				return nil, fmt.Errorf("failed to extract PDF %s: %w", arg, err)
			}
			inputs = append(inputs, pages...)
		default:
			page, err := loadImageFile(arg)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, page)
		}
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("no pages found in inputs")
	}
	if len(inputs) > utils.MaxPagesPerUpload {
		return nil, fmt.Errorf("maximum %d pages allowed per session, got %d",
			utils.MaxPagesPerUpload, len(inputs))
	}
	return inputs, nil
}

// collectDirImages loads every supported image in dir, non-recursively, in
// natural filename order.
func collectDirImages(dir string) ([]utils.NamedImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !utils.IsSupportedImage(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no supported images in directory %s", dir)
	}
	utils.SortNatural(names)

	pages := make([]utils.NamedImage, 0, len(names))
	for _, name := range names {
		page, err := loadImageFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func loadImageFile(path string) (utils.NamedImage, error) {
	if !utils.IsSupportedImage(path) {
		return utils.NamedImage{}, fmt.Errorf("unsupported input file: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return utils.NamedImage{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	png, _, err := utils.NormalizeUpload(data)
	if err != nil {
		return utils.NamedImage{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return utils.NamedImage{Name: filepath.Base(path), PNG: png}, nil
}

// writeOutputs writes the session's completed pages either as individual PNG
// files under outDir or as a single ZIP archive at zipPath.
func writeOutputs(s *session.Session, outDir, zipPath string) error {
	pages := s.CompletedPages()
	if len(pages) == 0 {
		return fmt.Errorf("no pages completed")
	}

	if zipPath != "" {
		data, err := export.Archive(pages)
		if err != nil {
			return fmt.Errorf("failed to build archive: %w", err)
		}
		if err := os.WriteFile(zipPath, data, 0o600); err != nil {
			return fmt.Errorf("failed to write archive %s: %w", zipPath, err)
		}
		fmt.Printf("Wrote %d pages to %s\n", len(pages), zipPath)
		return nil
	}

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}
	for _, page := range pages {
		name := export.OutputName(page.Name)
		if err := os.WriteFile(filepath.Join(outDir, name), page.Output, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	fmt.Printf("Wrote %d pages to %s\n", len(pages), outDir)
	return nil
}

// printSummary reports final page statuses, listing failed pages by name.
func printSummary(s *session.Session) {
	stats := s.Stats()
	parts := make([]string, 0, len(stats))
	for status, n := range stats {
		parts = append(parts, fmt.Sprintf("%s=%d", status, n))
	}
	sort.Strings(parts)
	fmt.Printf("Session %s finished: %s\n", s.ID, strings.Join(parts, " "))

	for _, page := range s.Snapshot() {
		if page.Status == session.StatusFailed {
			fmt.Fprintf(os.Stderr, "page %s failed: %s\n", page.Name, page.Err)
		}
	}
}
