// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Histogram layout constants
const (
	// IntensityBins is the number of intensity bins: 25 bins of width 10 over
	// [0,250) plus one terminal bin covering [250,255]
	IntensityBins = 26

	// IntensityBinWidth is the width of every non-terminal intensity bin
	IntensityBinWidth = 10

	// IntensityTerminalEdge is the lower edge of the terminal intensity bin
	IntensityTerminalEdge = 250

	// ColorCodeBins is the number of 6-bit color codes (2 bits per RGB channel)
	ColorCodeBins = 64

	// FeatureDim is the canonical feature vector length (intensity + color-code)
	FeatureDim = IntensityBins + ColorCodeBins
)

// Corpus constants
const (
	// DefaultCorpusSize is the number of images in the demonstration corpus
	DefaultCorpusSize = 100

	// DefaultPathPattern maps an image identifier to a file name inside the image directory
	DefaultPathPattern = "{id}.jpg"
)

// Relevance feedback constants
const (
	// ZeroStdFactor scales the smallest non-zero std substituted for a
	// zero-std feature on which the relevant images agree on a non-zero value
	ZeroStdFactor = 0.5
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for histogram extraction
	WorkerPoolSize = 8

	// MaxThumbnailSize is the largest thumbnail edge served by the web API
	MaxThumbnailSize = 1024

	// DefaultThumbnailQuality is the JPEG quality for thumbnails
	DefaultThumbnailQuality = 85
)

// Pagination constants
const (
	// DefaultResultsPerPage matches the 5x4 result grid of the interactive front-end
	DefaultResultsPerPage = 20

	// DefaultNeighborLimit is the default number of approximate neighbors returned
	DefaultNeighborLimit = 10
)
