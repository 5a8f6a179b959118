// Package dedupe finds near-duplicate media by combining vector
// similarity with structural cross-checks: a perceptual hash for
// images, duration agreement for videos and a sequential-filename
// filter for burst shots.
package dedupe

import (
	"fmt"
	"image"
	"math/bits"
	"os"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const hashSize = 8

// DHash computes a 64-bit difference hash of the image at path.
// Embeddings are semantic; the hash is structural, so a pair that an
// embedding model considers identical but the hash refutes is likely
// the same subject in a different composition.
func DHash(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return HashImage(img), nil
}

// HashImage pads the image to a square, downsamples it to a 9x8
// grayscale grid and emits one bit per horizontally adjacent pixel
// pair: 1 when the left pixel is brighter.
func HashImage(img image.Image) uint64 {
	bounds := img.Bounds()
	side := bounds.Dx()
	if bounds.Dy() > side {
		side = bounds.Dy()
	}
	if side == 0 {
		return 0
	}

	square := image.NewGray(image.Rect(0, 0, side, side))
	offset := image.Pt((side-bounds.Dx())/2, (side-bounds.Dy())/2)
	draw.Copy(square, offset, img, bounds, draw.Src, nil)

	small := image.NewGray(image.Rect(0, 0, hashSize+1, hashSize))
	draw.BiLinear.Scale(small, small.Bounds(), square, square.Bounds(), draw.Src, nil)

	var hash uint64
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			if small.GrayAt(x, y).Y > small.GrayAt(x+1, y).Y {
				hash |= 1 << uint(y*hashSize+x)
			}
		}
	}
	return hash
}

// HammingDistance counts differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
