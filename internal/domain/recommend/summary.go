package recommend

import (
	"fmt"
	"strings"

	"github.com/apsara-ai/derma/internal/domain/model"
)

// routine advice per skin type.
var skinTypeAdvice = map[string]string{
	model.SkinTypeOily:        "Use an oil-free gel moisturizer and a niacinamide serum; avoid heavy, comedogenic products.",
	model.SkinTypeDry:         "Use a cream or milk cleanser and a ceramide-rich moisturizer with hyaluronic acid; avoid sulfates and alcohol.",
	model.SkinTypeCombination: "Target the T-zone with lightweight products and hydrate drier areas separately.",
	model.SkinTypeNormal:      "Maintain a gentle routine with a mild cleanser and daily SPF.",
	model.SkinTypeSensitive:   "Stick to fragrance-free formulas, patch test new products, and introduce actives slowly.",
}

// concern-specific additions.
var concernAdvice = map[string]string{
	model.ConcernAcne:        "a salicylic acid (BHA) treatment can help with breakouts",
	model.ConcernWrinkles:    "consider a low-strength retinol in the evening, building tolerance gradually",
	model.ConcernDarkSpots:   "a brightening serum with niacinamide or alpha arbutin targets pigmentation",
	model.ConcernRedness:     "look for soothing ingredients like centella or azelaic acid",
	model.ConcernPores:       "a clay mask once or twice a week helps minimize pores",
	model.ConcernDryness:     "layer a hydrating toner under your moisturizer",
	model.ConcernDullness:    "a gentle AHA exfoliant once or twice a week brightens dull skin",
	model.ConcernDarkCircles: "an eye cream with caffeine or vitamin K can reduce under-eye circles",
}

// RoutineSummary renders a short human-readable routine for the assessment.
// It backs the "recommendations" field of the analyze response.
func RoutineSummary(assessment model.SkinAssessment) string {
	var b strings.Builder

	advice, ok := skinTypeAdvice[assessment.SkinType]
	if !ok {
		advice = skinTypeAdvice[model.SkinTypeNormal]
	}
	b.WriteString(advice)

	for _, c := range assessment.Concerns {
		if extra, ok := concernAdvice[c.Name]; ok {
			b.WriteString(" ")
			b.WriteString(fmt.Sprintf("For %s, %s.", strings.ReplaceAll(c.Name, "_", " "), extra))
		}
	}

	b.WriteString(" Daily broad-spectrum SPF 30+ is essential for all skin types.")
	return b.String()
}
