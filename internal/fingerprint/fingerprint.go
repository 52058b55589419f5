// Package fingerprint computes content signatures for uploaded page images
// and detects exact or near-duplicate pages before they consume API budget.
package fingerprint

import (
	"image"
	"math/bits"
	"sync"

	"github.com/disintegration/imaging"
)

// hashWidth/hashHeight define the normalized thumbnail a difference hash is
// computed over: 8 horizontal gradients per row, 8 rows.
const (
	hashWidth  = 9
	hashHeight = 8
)

// Key is a 64-bit perceptual difference hash of a page image. Identical
// images always produce identical keys; trivially re-encoded or lightly
// rescaled copies produce keys within a small Hamming distance.
type Key uint64

// Compute returns the fingerprint of an image. The image is downscaled and
// converted to grayscale first so that resizing and re-encoding artifacts do
// not change the key.
func Compute(img image.Image) Key {
	small := imaging.Grayscale(imaging.Resize(img, hashWidth, hashHeight, imaging.Lanczos))

	var key Key
	bit := 0
	for y := range hashHeight {
		for x := range hashWidth - 1 {
			left := small.NRGBAAt(x, y).R
			right := small.NRGBAAt(x+1, y).R
			if left > right {
				key |= 1 << bit
			}
			bit++
		}
	}
	return key
}

// Distance returns the Hamming distance between two keys.
func (k Key) Distance(other Key) int {
	return bits.OnesCount64(uint64(k ^ other))
}

// Index detects duplicates among pages added in upload order. The first page
// seen with a given fingerprint becomes the representative for every later
// page whose key falls within MaxDistance of it.
type Index struct {
	mu          sync.Mutex
	maxDistance int
	entries     []indexEntry
}

type indexEntry struct {
	id  int
	key Key
}

// NewIndex creates a duplicate index. maxDistance 0 means exact matches only.
func NewIndex(maxDistance int) *Index {
	if maxDistance < 0 {
		maxDistance = 0
	}
	return &Index{maxDistance: maxDistance}
}

// Add registers a page key and reports whether it duplicates an earlier page.
// When dup is true, rep is the representative page's id. Only representatives
// are retained for future comparisons, so chains of near-duplicates all
// resolve to the first page in upload order.
func (ix *Index) Add(id int, key Key) (rep int, dup bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, e := range ix.entries {
		if key.Distance(e.key) <= ix.maxDistance {
			return e.id, true
		}
	}
	ix.entries = append(ix.entries, indexEntry{id: id, key: key})
	return 0, false
}

// Len returns the number of distinct representatives seen so far.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.entries)
}
