// Package classify maps image descriptors to skin assessments: a single
// skin-type label plus an independent multi-label set of concerns.
//
// The backend is a deterministic linear model: repeated calls with an
// identical descriptor and parameter set produce identical assessments.
package classify

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/apsara-ai/derma/internal/domain/model"
	"github.com/apsara-ai/derma/internal/domain/types"
)

// Default classification configuration constants.
const (
	defaultConcernThreshold = 0.3
	defaultEpsilon          = 1e-6
)

// Feature names produced from a descriptor.
const (
	featBrightness     = "brightness"
	featContrast       = "contrast"
	featShine          = "shine"
	featShadow         = "shadow"
	featRedness        = "redness"
	featTexture        = "texture"
	featForeheadLines  = "forehead_lines"
	featUnderEyeShadow = "under_eye_shadow"
)

// Classifier maps a descriptor to a skin assessment.
type Classifier interface {
	// Classify scores the descriptor. It returns ErrUnavailable if the
	// scoring backend cannot produce a result; it never substitutes a
	// default assessment for a failure.
	Classify(ctx context.Context, d model.ImageDescriptor) (model.SkinAssessment, error)
}

// Option applies a configuration option to the LinearClassifier.
type Option func(*LinearClassifier)

// WithConcernThreshold sets the minimum confidence for a concern to be
// included in the assessment.
func WithConcernThreshold(v float64) Option {
	return func(c *LinearClassifier) {
		if v > 0 && v < 1 {
			c.threshold = v
		}
	}
}

// WithEpsilon sets the argmax tie-break window.
func WithEpsilon(v float64) Option {
	return func(c *LinearClassifier) {
		if v > 0 {
			c.epsilon = v
		}
	}
}

// WithWeights injects an explicit parameter set, replacing the built-in one.
func WithWeights(w Weights) Option {
	return func(c *LinearClassifier) {
		c.weights = w
		c.loaded = true
	}
}

// WithWeightsPath configures a JSON weights artifact. The artifact is loaded
// lazily on first classification; while it stays unreadable every call
// reports ErrUnavailable so callers can retry after the artifact appears.
func WithWeightsPath(path string) Option {
	return func(c *LinearClassifier) {
		if path != "" {
			c.weightsPath = path
			c.loaded = false
		}
	}
}

// LinearClassifier implements Classifier with a linear scoring backend.
type LinearClassifier struct {
	mu          sync.Mutex
	weights     Weights
	weightsPath string
	loaded      bool
	threshold   float64
	epsilon     float64
}

// New creates a LinearClassifier with configuration options.
func New(opts ...Option) *LinearClassifier {
	c := &LinearClassifier{
		weights:   defaultWeights(),
		loaded:    true,
		threshold: defaultConcernThreshold,
		epsilon:   defaultEpsilon,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ensureWeights loads the configured artifact if one is pending. Failures
// are surfaced, not latched: a later call retries the load.
func (c *LinearClassifier) ensureWeights() (Weights, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.weights, nil
	}
	w, err := loadWeights(c.weightsPath)
	if err != nil {
		return Weights{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.weights = w
	c.loaded = true
	return c.weights, nil
}

// Classify implements Classifier.
func (c *LinearClassifier) Classify(ctx context.Context, d model.ImageDescriptor) (model.SkinAssessment, error) {
	if err := ctx.Err(); err != nil {
		return model.SkinAssessment{}, fmt.Errorf("context cancelled: %w", err)
	}

	w, err := c.ensureWeights()
	if err != nil {
		return model.SkinAssessment{}, err
	}

	feats := features(d)

	assessment := model.SkinAssessment{
		SkinType: pickSkinType(w, feats, c.epsilon),
	}

	// Concern selection: independent per-label thresholding. Region-gated
	// concerns are never scored from a descriptor without a localized
	// face; fabricating them would corrupt downstream recommendations.
	names := make([]string, 0, len(w.Concerns))
	for name := range w.Concerns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if w.gated(name) && !d.FaceDetected {
			continue
		}
		conf := sigmoid(w.Concerns[name].score(feats))
		if conf > c.threshold {
			assessment.Concerns = append(assessment.Concerns, model.Concern{
				Name:       name,
				Confidence: conf,
			})
		}
	}

	return assessment, nil
}

// Info describes the active backend for diagnostics.
func (c *LinearClassifier) Info() types.BackendInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	source := "builtin"
	if c.weightsPath != "" {
		source = c.weightsPath
	}
	version := c.weights.Version
	if !c.loaded {
		version = ""
	}
	return types.BackendInfo{
		Name:      "linear",
		Version:   version,
		Available: c.loaded,
		Source:    source,
	}
}

// pickSkinType runs single-label argmax over the fixed label set with a
// lexicographic tie-break: labels are visited in lexicographic order and a
// later label wins only when it beats the incumbent by more than epsilon.
func pickSkinType(w Weights, feats map[string]float64, epsilon float64) string {
	best := ""
	bestScore := math.Inf(-1)
	for _, label := range model.SkinTypes {
		lw, ok := w.SkinTypes[label]
		if !ok {
			continue
		}
		score := lw.score(feats)
		if score > bestScore+epsilon {
			best = label
			bestScore = score
		}
	}
	return best
}

// score accumulates terms in sorted name order. Map iteration order would
// reorder the float additions and shift the sum at ULP level between calls.
func (lw LabelWeights) score(feats map[string]float64) float64 {
	names := make([]string, 0, len(lw.Terms))
	for name := range lw.Terms {
		names = append(names, name)
	}
	sort.Strings(names)

	s := lw.Bias
	for _, name := range names {
		s += lw.Terms[name] * feats[name]
	}
	return s
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// features derives the named scalar features the linear heads consume. All
// values are clamped to 0..1 so weight magnitudes stay comparable.
func features(d model.ImageDescriptor) map[string]float64 {
	grid := model.DescriptorGrid

	var shine, shadow float64
	for _, v := range d.Vector {
		if v > 0.78 {
			shine++
		}
		if v < 0.25 {
			shadow++
		}
	}
	shine /= float64(len(d.Vector))
	shadow /= float64(len(d.Vector))

	// Mean absolute difference between horizontally adjacent cells.
	var texture float64
	var pairs float64
	for gy := 0; gy < grid; gy++ {
		for gx := 0; gx+1 < grid; gx++ {
			texture += math.Abs(d.Vector[gy*grid+gx] - d.Vector[gy*grid+gx+1])
			pairs++
		}
	}
	texture = clamp01(texture / pairs * 8)

	// Variance across the forehead band (rows 1-2).
	var fSum, fSqSum, fN float64
	for gy := 1; gy <= 2; gy++ {
		for gx := 1; gx < grid-1; gx++ {
			v := d.Vector[gy*grid+gx]
			fSum += v
			fSqSum += v * v
			fN++
		}
	}
	fMean := fSum / fN
	forehead := clamp01((fSqSum/fN - fMean*fMean) * 40)

	// Under-eye band darkness relative to the whole grid.
	var gridSum float64
	for _, v := range d.Vector {
		gridSum += v
	}
	gridMean := gridSum / float64(len(d.Vector))
	var uSum, uN float64
	for gx := 2; gx < 6; gx++ {
		uSum += d.Vector[4*grid+gx]
		uN++
	}
	underEye := clamp01((gridMean - uSum/uN) * 4)

	redness := clamp01((d.MeanRGB[0] - (d.MeanRGB[1]+d.MeanRGB[2])/2) * 4)

	return map[string]float64{
		featBrightness:     clamp01(d.Brightness / 255.0),
		featContrast:       clamp01(d.Contrast / 64.0),
		featShine:          shine,
		featShadow:         shadow,
		featRedness:        redness,
		featTexture:        texture,
		featForeheadLines:  forehead,
		featUnderEyeShadow: underEye,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
