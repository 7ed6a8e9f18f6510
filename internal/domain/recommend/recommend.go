// Package recommend ranks catalog products against a skin assessment.
//
// Scoring is a confidence-weighted concern overlap plus a fixed bonus when
// the product suits the assessed skin type. Results are recomputed on every
// request and never cached across differing assessments.
package recommend

import (
	"sort"

	"github.com/apsara-ai/derma/internal/domain/model"
)

// Default matcher configuration constants.
const (
	defaultTopN          = 10
	defaultSkinTypeBonus = 0.5
)

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithTopN caps the number of products returned.
func WithTopN(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.topN = n
		}
	}
}

// WithSkinTypeBonus sets the fixed score bonus for a skin-type match.
func WithSkinTypeBonus(bonus float64) Option {
	return func(m *Matcher) {
		if bonus >= 0 {
			m.skinTypeBonus = bonus
		}
	}
}

// Matcher scores and ranks products for an assessment.
type Matcher struct {
	topN          int
	skinTypeBonus float64
}

// New creates a Matcher with configuration options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		topN:          defaultTopN,
		skinTypeBonus: defaultSkinTypeBonus,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Match returns the ranked subset of catalog products matching the
// assessment. An empty catalog yields an empty result, not an error; fewer
// qualifying products than the cap yields only the qualifying set, never
// padded with irrelevant products.
func (m *Matcher) Match(assessment model.SkinAssessment, catalog []model.Product) []model.ScoredProduct {
	scored := make([]model.ScoredProduct, 0, len(catalog))

	for _, p := range catalog {
		overlap := 0.0
		for _, c := range assessment.Concerns {
			if p.AddressesConcern(c.Name) {
				overlap += c.Confidence
			}
		}
		typeMatch := p.SuitsSkinType(assessment.SkinType)

		// A product with no overlapping concerns and an explicit
		// skin-type list that excludes the assessment is irrelevant:
		// excluded entirely, not merely ranked low.
		if overlap == 0 && !typeMatch {
			continue
		}

		score := overlap
		if typeMatch {
			score += m.skinTypeBonus
		}
		scored = append(scored, model.ScoredProduct{Product: p, MatchScore: score})
	}

	// Descending score; ties broken by ascending product id for
	// determinism.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].MatchScore != scored[j].MatchScore {
			return scored[i].MatchScore > scored[j].MatchScore
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) > m.topN {
		scored = scored[:m.topN]
	}
	return scored
}
