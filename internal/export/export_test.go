package export

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivritype/tirgum/internal/session"
)

func TestOutputName(t *testing.T) {
	assert.Equal(t, "translated_page_001.png", OutputName("page_001.jpg"))
	assert.Equal(t, "translated_cover.png", OutputName("cover.png"))
	assert.Equal(t, "translated_scan.png", OutputName("book/scan.webp"))
	assert.Equal(t, "translated_noext.png", OutputName("noext"))
}

func TestArchiveOrdersByPageIndex(t *testing.T) {
	pages := []session.CompletedPage{
		{Index: 0, Name: "page_001.png", Output: []byte("first")},
		{Index: 1, Name: "page_002.png", Output: []byte("second")},
		{Index: 4, Name: "page_005.png", Output: []byte("fifth")},
	}

	data, err := Archive(pages)
	require.NoError(t, err)

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, r.File, 3)

	assert.Equal(t, "translated_page_001.png", r.File[0].Name)
	assert.Equal(t, "translated_page_002.png", r.File[1].Name)
	assert.Equal(t, "translated_page_005.png", r.File[2].Name)

	rc, err := r.File[2].Open()
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("fifth"), body)
}

func TestArchiveDisambiguatesCollidingNames(t *testing.T) {
	pages := []session.CompletedPage{
		{Index: 0, Name: "scan.jpg", Output: []byte("a")},
		{Index: 1, Name: "scan.png", Output: []byte("b")},
	}

	data, err := Archive(pages)
	require.NoError(t, err)

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, r.File, 2)
	assert.Equal(t, "translated_scan.png", r.File[0].Name)
	assert.Equal(t, "translated_scan_1.png", r.File[1].Name)
}

func TestArchiveRejectsEmptyInput(t *testing.T) {
	_, err := Archive(nil)
	assert.Error(t, err)
}
