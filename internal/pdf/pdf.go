// Package pdf turns scanned-book PDFs into per-page images for ingestion.
package pdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ivritype/tirgum/internal/utils"
)

// ExtractPageImages pulls embedded images out of a PDF and returns one
// normalized image per page. Scanned books carry one full-page image per
// page; when a page has several, the largest by encoded size wins.
// pageRange follows the form "1-5" or "1,3,5"; empty means all pages.
func ExtractPageImages(filename, pageRange string) ([]utils.NamedImage, error) {
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "tirgum-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	if len(pageNumbers) > 0 {
		pageStrings = make([]string, len(pageNumbers))
		for i, n := range pageNumbers {
			pageStrings[i] = strconv.Itoa(n)
		}
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, nil); err != nil {
		return nil, fmt.Errorf("extract images from %s: %w", filename, err)
	}

	return collectPageImages(tempDir)
}

// collectPageImages walks the extraction directory, picks one image per
// page, and normalizes it to PNG. pdfcpu names files page_<num>_image_<idx>.
func collectPageImages(dir string) ([]utils.NamedImage, error) {
	best := make(map[int]string)
	bestSize := make(map[int]int64)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		pageNum, perr := parsePageFromFilename(info.Name())
		if perr != nil {
			return nil
		}
		if info.Size() > bestSize[pageNum] {
			best[pageNum] = path
			bestSize[pageNum] = info.Size()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan extracted images: %w", err)
	}
	if len(best) == 0 {
		return nil, errors.New("no page images found in PDF")
	}

	pages := make([]int, 0, len(best))
	for n := range best {
		pages = append(pages, n)
	}
	sort.Ints(pages)

	out := make([]utils.NamedImage, 0, len(pages))
	for _, n := range pages {
		raw, err := os.ReadFile(best[n])
		if err != nil {
			return nil, fmt.Errorf("read extracted page %d: %w", n, err)
		}
		png, _, err := utils.NormalizeUpload(raw)
		if err != nil {
			return nil, fmt.Errorf("normalize page %d: %w", n, err)
		}
		out = append(out, utils.NamedImage{Name: fmt.Sprintf("page_%04d.png", n), PNG: png})
	}
	return out, nil
}

// parsePageFromFilename extracts the page number from a pdfcpu output name
// like page_3_image_1.png.
func parsePageFromFilename(filename string) (int, error) {
	if !strings.HasPrefix(filename, "page_") {
		return 0, errors.New("not a page file")
	}
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return 0, errors.New("invalid filename format")
	}
	return strconv.Atoi(parts[1])
}

// parsePageRange parses a page range string like "1-5" or "1,3,5". Empty
// means all pages.
func parsePageRange(pageRange string) ([]int, error) {
	if pageRange == "" {
		return nil, nil
	}
	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
