// Package histogram extracts the intensity and color-code histograms of an image.
package histogram

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/kozaktomas/cbir/internal/constants"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrUnreadableImage is returned when image data cannot be read or decoded.
var ErrUnreadableImage = errors.New("unreadable image")

// Histograms holds the bin counts of one image. Both histograms sum to PixelCount.
type Histograms struct {
	PixelCount int                           `json:"pixel_count"`
	Intensity  [constants.IntensityBins]int `json:"intensity"`
	ColorCode  [constants.ColorCodeBins]int `json:"color_code"`
}

// Intensity returns the luma of an 8-bit RGB triple (ITU-R BT.601 weights).
func Intensity(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// IntensityBin maps an intensity in [0,255] to its bin: width-10 bins over
// [0,250) and a terminal bin for [250,255].
func IntensityBin(v float64) int {
	if v >= constants.IntensityTerminalEdge {
		return constants.IntensityBins - 1
	}
	if v < 0 {
		return 0
	}
	return int(v / constants.IntensityBinWidth)
}

// ColorCode concatenates the two most significant bits of each channel into a 6-bit code.
func ColorCode(r, g, b uint8) int {
	return int(r>>6)<<4 | int(g>>6)<<2 | int(b>>6)
}

// Extract computes both histograms over every pixel of the image.
func Extract(img image.Image) Histograms {
	var h Histograms
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r32, g32, b32, _ := img.At(x, y).RGBA()
			r, g, b := uint8(r32>>8), uint8(g32>>8), uint8(b32>>8)

			h.Intensity[IntensityBin(Intensity(r, g, b))]++
			h.ColorCode[ColorCode(r, g, b)]++
			h.PixelCount++
		}
	}
	return h
}

// Decode decodes image data in any registered format.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableImage, err)
	}
	return img, nil
}

// ExtractBytes decodes image data and extracts its histograms.
func ExtractBytes(data []byte) (Histograms, error) {
	img, err := Decode(data)
	if err != nil {
		return Histograms{}, err
	}
	return Extract(img), nil
}

// ExtractFile reads an image file and extracts its histograms.
func ExtractFile(path string) (Histograms, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the corpus resolver
	if err != nil {
		return Histograms{}, fmt.Errorf("%w: %s: %w", ErrUnreadableImage, path, err)
	}
	h, err := ExtractBytes(data)
	if err != nil {
		return Histograms{}, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// Fractions returns the feature vector of the image: intensity bin fractions
// followed by color-code bin fractions, each count divided by the pixel count.
func (h *Histograms) Fractions() ([]float64, error) {
	if h.PixelCount <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrUnreadableImage)
	}
	size := float64(h.PixelCount)
	out := make([]float64, 0, constants.FeatureDim)
	for _, c := range h.Intensity {
		out = append(out, float64(c)/size)
	}
	for _, c := range h.ColorCode {
		out = append(out, float64(c)/size)
	}
	return out, nil
}

// ColumnNames returns the feature column names in canonical order.
func ColumnNames() []string {
	names := make([]string, 0, constants.FeatureDim)
	for i := range constants.IntensityBins {
		names = append(names, fmt.Sprintf("intensity_%02d", i))
	}
	for i := range constants.ColorCodeBins {
		names = append(names, fmt.Sprintf("color_code_%02d", i))
	}
	return names
}
