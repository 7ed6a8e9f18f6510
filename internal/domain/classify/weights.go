package classify

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/apsara-ai/derma/internal/domain/model"
)

// LabelWeights is one linear scoring head: bias + sum of term weights over
// named features.
type LabelWeights struct {
	Bias  float64            `json:"bias"`
	Terms map[string]float64 `json:"terms"`
}

// Weights is the full parameter set of the linear backend. Artifacts are
// plain JSON so a retrained model can be dropped in without a rebuild.
type Weights struct {
	Version     string                  `json:"version"`
	SkinTypes   map[string]LabelWeights `json:"skin_types"`
	Concerns    map[string]LabelWeights `json:"concerns"`
	RegionGated []string                `json:"region_gated"`
}

// gated reports whether the concern requires localized facial regions.
func (w Weights) gated(concern string) bool {
	for _, g := range w.RegionGated {
		if g == concern {
			return true
		}
	}
	return false
}

// validate rejects artifacts that cannot drive the label set.
func (w Weights) validate() error {
	if len(w.SkinTypes) == 0 {
		return fmt.Errorf("weights define no skin types")
	}
	for _, label := range model.SkinTypes {
		if _, ok := w.SkinTypes[label]; !ok {
			return fmt.Errorf("weights missing skin type %q", label)
		}
	}
	if len(w.Concerns) == 0 {
		return fmt.Errorf("weights define no concerns")
	}
	return nil
}

// loadWeights reads and validates a JSON weights artifact.
func loadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read weights artifact: %w", err)
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return Weights{}, fmt.Errorf("parse weights artifact: %w", err)
	}
	if err := w.validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// defaultWeights returns the built-in parameter set. Hand-tuned against the
// descriptor feature ranges; replaced wholesale by a weights artifact when
// one is configured.
func defaultWeights() Weights {
	return Weights{
		Version: "builtin-1",
		SkinTypes: map[string]LabelWeights{
			model.SkinTypeOily: {
				Bias:  -0.8,
				Terms: map[string]float64{featShine: 2.0, featBrightness: 0.5},
			},
			model.SkinTypeDry: {
				Bias:  -0.2,
				Terms: map[string]float64{featShine: -1.5, featTexture: 0.8, featShadow: 0.7},
			},
			model.SkinTypeCombination: {
				Bias:  -0.6,
				Terms: map[string]float64{featContrast: 1.2, featShine: 0.8},
			},
			model.SkinTypeNormal: {
				Bias:  0.3,
				Terms: map[string]float64{featContrast: -0.5, featRedness: -0.8},
			},
			model.SkinTypeSensitive: {
				Bias:  -0.7,
				Terms: map[string]float64{featRedness: 2.0},
			},
		},
		Concerns: map[string]LabelWeights{
			model.ConcernAcne: {
				Bias:  -1.8,
				Terms: map[string]float64{featTexture: 1.6, featRedness: 1.2, featShine: 0.6},
			},
			model.ConcernWrinkles: {
				Bias:  -2.0,
				Terms: map[string]float64{featForeheadLines: 2.0, featContrast: 0.8},
			},
			model.ConcernDarkSpots: {
				Bias:  -1.9,
				Terms: map[string]float64{featShadow: 1.5, featContrast: 0.9},
			},
			model.ConcernRedness: {
				Bias:  -1.6,
				Terms: map[string]float64{featRedness: 2.5},
			},
			model.ConcernPores: {
				Bias:  -1.9,
				Terms: map[string]float64{featTexture: 1.4, featShine: 0.9},
			},
			model.ConcernDryness: {
				Bias:  -1.2,
				Terms: map[string]float64{featTexture: 0.9, featShine: -1.2},
			},
			model.ConcernDullness: {
				Bias:  0.2,
				Terms: map[string]float64{featBrightness: -1.5, featContrast: -0.8},
			},
			model.ConcernDarkCircles: {
				Bias:  -1.7,
				Terms: map[string]float64{featUnderEyeShadow: 2.4},
			},
		},
		RegionGated: []string{model.ConcernWrinkles, model.ConcernDarkCircles},
	}
}
