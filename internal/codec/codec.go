// Package codec implements the pure image operations used by the
// processing pipeline: square thumbnail generation and dominant color
// extraction. All functions are stateless and safe for concurrent use.
package codec

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const (
	// jpegQuality is the quality factor used for encoded thumbnails.
	jpegQuality = 90

	// paletteWorkSize is the edge length of the working image used for
	// color quantization. Downsampling keeps extraction cheap on large
	// originals.
	paletteWorkSize = 200
)

// Thumbnail decodes the original image bytes and produces an exact
// size×size JPEG thumbnail. The image is center-cropped to fit, so the
// result always fully fills the square; content outside the fitted
// region is discarded.
func Thumbnail(data []byte, size int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}

// DominantColors extracts up to topN dominant colors from the original
// image bytes, ordered by pixel population (most populous first). Each
// entry is a "#rrggbb" hex string. Images with fewer than topN distinct
// colors yield a shorter slice.
func DominantColors(data []byte, topN int) ([]string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	// Nearest neighbor keeps palette entries exact for flat-color
	// regions instead of blending edges.
	small := imaging.Resize(img, paletteWorkSize, paletteWorkSize, imaging.NearestNeighbor)

	clusters := quantize(small, topN)

	colors := make([]string, 0, len(clusters))
	for _, c := range clusters {
		colors = append(colors, fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
	}

	return colors, nil
}
