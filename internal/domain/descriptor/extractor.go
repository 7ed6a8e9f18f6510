// Package descriptor turns raw image bytes into a fixed-size numeric
// descriptor plus quality flags. Extraction is a pure function of the input
// bytes: no network, no disk, no randomness.
package descriptor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"math"

	// Register decoders for the supported raster formats.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/apsara-ai/derma/internal/domain/model"
)

// Default extraction configuration constants.
const (
	// Quality tier boundaries, mirroring the production quality model.
	lowResolutionEdge  = 224
	midResolutionEdge  = 512
	highResolutionEdge = 1024
	minBodyBytes       = 10_000

	darkBrightness       = 30.0
	dimBrightness        = 80.0
	brightBrightness     = 180.0
	overexposedBrightness = 220.0

	flatContrast = 20.0
	lowContrast  = 40.0

	qualityFloor = 0.1
	qualityCeil  = 1.0

	// Face localization heuristics over the luma grid.
	defaultMinCenterContrast = 0.035
	defaultSymmetryTolerance = 0.22
	defaultMinFrameContrast  = 12.0
)

// Extractor produces descriptors from raw image bytes.
type Extractor interface {
	// Extract decodes data and computes a descriptor. It returns
	// ErrUnreadableImage when the bytes do not decode, and
	// ErrNoFaceDetected (alongside a degraded but valid descriptor) when
	// face localization fails.
	Extract(data []byte) (model.ImageDescriptor, error)
}

// Option applies a configuration option to the GridExtractor.
type Option func(*GridExtractor)

// WithMinCenterContrast sets the minimum luma spread in the center region
// for a face to be considered present.
func WithMinCenterContrast(v float64) Option {
	return func(e *GridExtractor) {
		if v > 0 {
			e.minCenterContrast = v
		}
	}
}

// WithSymmetryTolerance sets the maximum mirrored-column difference for a
// face to be considered present.
func WithSymmetryTolerance(v float64) Option {
	return func(e *GridExtractor) {
		if v > 0 {
			e.symmetryTolerance = v
		}
	}
}

// GridExtractor implements Extractor over a fixed luma grid.
type GridExtractor struct {
	minCenterContrast float64
	symmetryTolerance float64
	minFrameContrast  float64
}

// New creates a GridExtractor with configuration options.
func New(opts ...Option) *GridExtractor {
	e := &GridExtractor{
		minCenterContrast: defaultMinCenterContrast,
		symmetryTolerance: defaultSymmetryTolerance,
		minFrameContrast:  defaultMinFrameContrast,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Extract implements Extractor.
func (e *GridExtractor) Extract(data []byte) (model.ImageDescriptor, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return model.ImageDescriptor{}, fmt.Errorf("%w: %w", ErrUnreadableImage, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return model.ImageDescriptor{}, fmt.Errorf("%w: empty bounds", ErrUnreadableImage)
	}

	d := model.ImageDescriptor{
		Width:     width,
		Height:    height,
		Format:    format,
		SizeBytes: len(data),
		Hash:      hashBytes(data),
	}

	fillGrid(img, &d)
	d.QualityScore = qualityScore(&d)
	d.FaceDetected = e.localizeFace(&d)

	if !d.FaceDetected {
		return d, ErrNoFaceDetected
	}
	return d, nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fillGrid computes the normalized luma grid, the channel means, and the
// whole-frame brightness/contrast statistics in a single pass.
func fillGrid(img image.Image, d *model.ImageDescriptor) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var cellSum [model.DescriptorLen]float64
	var cellCount [model.DescriptorLen]float64
	var rgbSum [3]float64
	var lumaSum, lumaSqSum float64
	pixels := float64(width * height)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		gy := (y - bounds.Min.Y) * model.DescriptorGrid / height
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gx := (x - bounds.Min.X) * model.DescriptorGrid / width

			r, g, b, _ := img.At(x, y).RGBA()
			// 16-bit channels scaled to 0..255.
			rf := float64(r) / 257.0
			gf := float64(g) / 257.0
			bf := float64(b) / 257.0
			luma := 0.299*rf + 0.587*gf + 0.114*bf

			cell := gy*model.DescriptorGrid + gx
			cellSum[cell] += luma
			cellCount[cell]++
			rgbSum[0] += rf
			rgbSum[1] += gf
			rgbSum[2] += bf
			lumaSum += luma
			lumaSqSum += luma * luma
		}
	}

	for i := range d.Vector {
		if cellCount[i] > 0 {
			d.Vector[i] = cellSum[i] / cellCount[i] / 255.0
		}
	}
	for i := range d.MeanRGB {
		d.MeanRGB[i] = rgbSum[i] / pixels / 255.0
	}
	d.Brightness = lumaSum / pixels
	variance := lumaSqSum/pixels - d.Brightness*d.Brightness
	if variance > 0 {
		d.Contrast = math.Sqrt(variance)
	}
}

// qualityScore applies the tiered quality model: resolution, brightness,
// contrast and payload size each scale a multiplicative score clamped to
// [0.1, 1.0].
func qualityScore(d *model.ImageDescriptor) float64 {
	q := 1.0

	switch {
	case d.Width < lowResolutionEdge || d.Height < lowResolutionEdge:
		q *= 0.4
	case d.Width < midResolutionEdge || d.Height < midResolutionEdge:
		q *= 0.7
	case d.Width >= highResolutionEdge && d.Height >= highResolutionEdge:
		q *= 1.1
	}

	switch {
	case d.Brightness < darkBrightness:
		q *= 0.3
	case d.Brightness < dimBrightness:
		q *= 0.6
	case d.Brightness > overexposedBrightness:
		q *= 0.4
	case d.Brightness > brightBrightness:
		q *= 0.7
	}

	switch {
	case d.Contrast < flatContrast:
		q *= 0.5
	case d.Contrast < lowContrast:
		q *= 0.8
	}

	if d.SizeBytes < minBodyBytes {
		q *= 0.3
	}

	return math.Max(qualityFloor, math.Min(qualityCeil, q))
}

// localizeFace applies a cheap center-prior heuristic over the luma grid: a
// facial photograph has texture in the center region, rough left/right
// symmetry, and a non-flat frame overall. It is deliberately conservative;
// callers treat a miss as a degraded descriptor, never a hard failure.
func (e *GridExtractor) localizeFace(d *model.ImageDescriptor) bool {
	if d.Contrast < e.minFrameContrast {
		return false
	}

	// Center 4x4 region of the 8x8 grid.
	var center []float64
	for gy := 2; gy < 6; gy++ {
		for gx := 2; gx < 6; gx++ {
			center = append(center, d.Vector[gy*model.DescriptorGrid+gx])
		}
	}
	var sum, sqSum float64
	for _, v := range center {
		sum += v
		sqSum += v * v
	}
	n := float64(len(center))
	mean := sum / n
	variance := sqSum/n - mean*mean
	if variance <= 0 || math.Sqrt(variance) < e.minCenterContrast {
		return false
	}

	// Mirrored-column symmetry across the full grid.
	var diff float64
	var pairs float64
	for gy := 0; gy < model.DescriptorGrid; gy++ {
		for gx := 0; gx < model.DescriptorGrid/2; gx++ {
			left := d.Vector[gy*model.DescriptorGrid+gx]
			right := d.Vector[gy*model.DescriptorGrid+(model.DescriptorGrid-1-gx)]
			diff += math.Abs(left - right)
			pairs++
		}
	}
	return diff/pairs <= e.symmetryTolerance
}
