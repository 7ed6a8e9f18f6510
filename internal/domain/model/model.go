// Package model contains domain records passed between layers.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Skin type labels. The label set is fixed; classification picks exactly one.
const (
	SkinTypeDry         = "dry"
	SkinTypeOily        = "oily"
	SkinTypeCombination = "combination"
	SkinTypeNormal      = "normal"
	SkinTypeSensitive   = "sensitive"
)

// SkinTypes lists all labels in lexicographic order, which is also the
// argmax tie-break order.
var SkinTypes = []string{
	SkinTypeCombination,
	SkinTypeDry,
	SkinTypeNormal,
	SkinTypeOily,
	SkinTypeSensitive,
}

// Concern names recognized by the classifier.
const (
	ConcernAcne        = "acne"
	ConcernWrinkles    = "wrinkles"
	ConcernDarkSpots   = "dark_spots"
	ConcernRedness     = "redness"
	ConcernPores       = "pores"
	ConcernDryness     = "dryness"
	ConcernDullness    = "dullness"
	ConcernDarkCircles = "dark_circles"
)

// DescriptorGrid is the side length of the luma grid; the descriptor vector
// holds DescriptorGrid*DescriptorGrid cells.
const DescriptorGrid = 8

// DescriptorLen is the fixed descriptor vector length.
const DescriptorLen = DescriptorGrid * DescriptorGrid

// ImageDescriptor is a fixed-size numeric summary of an uploaded image plus
// quality flags. It is immutable once produced.
type ImageDescriptor struct {
	Vector       [DescriptorLen]float64 // row-major normalized luma cells, 0..1
	MeanRGB      [3]float64             // whole-frame channel means, 0..1
	Width        int
	Height       int
	Format       string // decoded format name: jpeg, png, webp
	SizeBytes    int
	Hash         string // content hash of the raw bytes
	Brightness   float64 // whole-frame mean luma, 0..255 scale
	Contrast     float64 // whole-frame luma stddev
	FaceDetected bool
	QualityScore float64 // 0..1
}

// Concern is a named skin condition with an independent confidence score.
type Concern struct {
	Name       string
	Confidence float64
}

// SkinAssessment is the classifier output for one image: exactly one skin
// type and zero or more concerns. Concern confidences are independent, not
// normalized to sum to one.
type SkinAssessment struct {
	SkinType       string
	Concerns       []Concern
	SourceImageRef string
}

// HasConcern reports whether the assessment includes the named concern.
func (a SkinAssessment) HasConcern(name string) bool {
	for _, c := range a.Concerns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Product is a catalog row. The catalog is loaded once at process start and
// read-only for the lifetime of the process.
type Product struct {
	ID                string
	Name              string
	Brand             string
	Category          string
	ConcernsAddressed []string
	SkinTypes         []string // empty means suitable for all types
	Price             decimal.Decimal
	URL               string
}

// AddressesConcern reports whether the product targets the named concern.
func (p Product) AddressesConcern(name string) bool {
	for _, c := range p.ConcernsAddressed {
		if c == name {
			return true
		}
	}
	return false
}

// SuitsSkinType reports whether the product suits the given skin type.
// An empty skin-type list means the product suits all types.
func (p Product) SuitsSkinType(skinType string) bool {
	if len(p.SkinTypes) == 0 {
		return true
	}
	for _, s := range p.SkinTypes {
		if s == skinType {
			return true
		}
	}
	return false
}

// ScoredProduct pairs a catalog product with its derived match score. The
// score is recomputed per request and never stored on the Product.
type ScoredProduct struct {
	Product
	MatchScore float64
}

// Review is a single third-party video review result.
type Review struct {
	Title     string
	URL       string
	Channel   string
	Thumbnail string
}

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry in a session's append-only history.
type Turn struct {
	Role      string
	Text      string
	Timestamp time.Time
}
