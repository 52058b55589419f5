package cmd

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivritype/tirgum/internal/session"
	"github.com/ivritype/tirgum/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v := uint8(rng.Intn(256))
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCollectInputsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page_10.png"), testPNG(t, 1), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page_2.png"), testPNG(t, 2), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))

	inputs, err := collectInputs([]string{dir}, "")
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "page_2.png", inputs[0].Name)
	assert.Equal(t, "page_10.png", inputs[1].Name)
}

func TestCollectInputsFromFiles(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.png")
	p2 := filepath.Join(dir, "b.png")
	require.NoError(t, os.WriteFile(p1, testPNG(t, 3), 0o600))
	require.NoError(t, os.WriteFile(p2, testPNG(t, 4), 0o600))

	inputs, err := collectInputs([]string{p1, p2}, "")
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "a.png", inputs[0].Name)
	assert.Equal(t, "b.png", inputs[1].Name)
}

func TestCollectInputsFromZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"p1.png", "p2.png"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(testPNG(t, int64(len(name))))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "scans.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	inputs, err := collectInputs([]string{path}, "")
	require.NoError(t, err)
	assert.Len(t, inputs, 2)
}

func TestCollectInputsRejectsUnsupportedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	_, err := collectInputs([]string{path}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported input file")
}

func TestCollectInputsMissingPath(t *testing.T) {
	_, err := collectInputs([]string{filepath.Join(t.TempDir(), "nope.png")}, "")
	require.Error(t, err)
}

func TestWriteOutputsToDirectory(t *testing.T) {
	inputs := []utils.NamedImage{
		{Name: "page_1.png", PNG: testPNG(t, 10)},
		{Name: "page_2.png", PNG: testPNG(t, 11)},
	}
	s, err := session.New(inputs, session.Options{})
	require.NoError(t, err)
	for _, idx := range s.Runnable() {
		require.NoError(t, s.Begin(idx, session.StatusPending, session.StatusExtracting))
		require.NoError(t, s.Begin(idx, session.StatusExtracting, session.StatusEditing))
		require.NoError(t, s.Complete(idx, []byte("output"), 0))
	}

	outDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, writeOutputs(s, outDir, ""))

	for _, name := range []string{"translated_page_1.png", "translated_page_2.png"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err)
		assert.Equal(t, []byte("output"), data)
	}
}

func TestWriteOutputsToZip(t *testing.T) {
	inputs := []utils.NamedImage{{Name: "page_1.png", PNG: testPNG(t, 12)}}
	s, err := session.New(inputs, session.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Begin(0, session.StatusPending, session.StatusExtracting))
	require.NoError(t, s.Begin(0, session.StatusExtracting, session.StatusEditing))
	require.NoError(t, s.Complete(0, []byte("output"), 0))

	zipPath := filepath.Join(t.TempDir(), "translated.zip")
	require.NoError(t, writeOutputs(s, "", zipPath))

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "translated_page_1.png", zr.File[0].Name)
}

func TestWriteOutputsWithNoCompletedPages(t *testing.T) {
	inputs := []utils.NamedImage{{Name: "page_1.png", PNG: testPNG(t, 13)}}
	s, err := session.New(inputs, session.Options{})
	require.NoError(t, err)

	err = writeOutputs(s, t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pages completed")
}
