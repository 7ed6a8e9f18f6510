package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apsara-ai/derma/internal/domain/model"
)

// kbEntry is one knowledge-base rule: trigger keywords, a canned response,
// and the follow-up suggestions it leaves pending. entity, when set, is the
// skin type or concern label the keywords imply about the speaker.
type kbEntry struct {
	keywords    []string
	response    string
	suggestions []string
	entity      string
}

// skinTypeEntries answer "what is my skin type"-style messages about a
// named type.
var skinTypeEntries = []kbEntry{
	{
		keywords: []string{"oily", "greasy", "shiny", "sebum"},
		entity: model.SkinTypeOily,
		response: "Oily skin produces excess sebum. Look for gel or foaming cleansers with salicylic acid, lightweight gel moisturizers, and niacinamide serums. Avoid heavy oils and comedogenic ingredients.",
		suggestions: []string{"What about large pores?", "Recommend a cleanser", "How do I use niacinamide?"},
	},
	{
		keywords: []string{"dry skin", "flaky", "dehydrated", "tight"},
		entity: model.SkinTypeDry,
		response: "Dry skin lacks moisture and often feels tight. Use a cream or milk cleanser, a ceramide-rich moisturizer with hyaluronic acid, and avoid sulfates and alcohol-based products.",
		suggestions: []string{"What is hyaluronic acid?", "Recommend a moisturizer", "Help with flaky patches"},
	},
	{
		keywords: []string{"combination", "t-zone", "combo skin"},
		entity: model.SkinTypeCombination,
		response: "Combination skin has an oily T-zone with drier cheeks. Use lightweight products on the T-zone and richer hydration where skin is dry; a gentle gel cleanser suits the whole face.",
		suggestions: []string{"Products for the T-zone", "What counts as lightweight?", "Analyze my skin"},
	},
	{
		keywords: []string{"sensitive", "reactive", "irritat"},
		entity: model.SkinTypeSensitive,
		response: "Sensitive skin reacts easily. Stick to fragrance-free formulas, patch test everything new, and introduce actives one at a time at low strength.",
		suggestions: []string{"Which actives are gentle?", "What should I avoid?", "Analyze my skin"},
	},
}

// concernEntries answer questions about a named concern.
var concernEntries = []kbEntry{
	{
		keywords: []string{"acne", "pimple", "breakout", "zit", "blackhead", "whitehead"},
		entity: model.ConcernAcne,
		response: "For acne, a salicylic acid (BHA) cleanser or serum helps unclog pores, and niacinamide calms inflammation. Avoid picking, and keep the rest of the routine simple while treating breakouts.",
		suggestions: []string{"Is salicylic acid daily-safe?", "Recommend acne products", "What about acne scars?"},
	},
	{
		keywords: []string{"wrinkle", "fine line", "aging", "anti-aging", "crow's feet"},
		entity: model.ConcernWrinkles,
		response: "For fine lines and wrinkles, a vitamin C serum in the morning and a low-strength retinol in the evening are the best-studied options. Build retinol tolerance gradually and always wear SPF.",
		suggestions: []string{"How do I start retinol?", "Vitamin C or retinol first?", "Recommend anti-aging products"},
	},
	{
		keywords: []string{"dark spot", "hyperpigmentation", "melasma", "sun spot", "age spot", "pigment"},
		entity: model.ConcernDarkSpots,
		response: "For dark spots and hyperpigmentation, brightening ingredients like niacinamide, alpha arbutin, and azelaic acid fade discoloration over weeks. Daily sunscreen is non-negotiable or the spots return.",
		suggestions: []string{"How long until spots fade?", "Recommend a brightening serum", "Best sunscreen for me?"},
	},
	{
		keywords: []string{"pore"},
		entity: model.ConcernPores,
		response: "Pores can't shrink permanently, but salicylic acid keeps them clear and niacinamide reduces their appearance. A clay mask once or twice a week helps oily areas.",
		suggestions: []string{"Clay mask recommendations", "Why are my pores visible?", "Analyze my skin"},
	},
	{
		keywords: []string{"redness", "rosacea", "inflam"},
		entity: model.ConcernRedness,
		response: "For redness, look for soothing ingredients like centella asiatica, azelaic acid, and panthenol. Avoid hot water, harsh scrubs, and fragrance. Persistent rosacea deserves a dermatologist visit.",
		suggestions: []string{"What is azelaic acid?", "Gentle routine for redness", "Analyze my skin"},
	},
	{
		keywords: []string{"dull", "lackluster", "tired skin", "glow"},
		entity: model.ConcernDullness,
		response: "Dull skin usually needs gentle exfoliation and hydration. An AHA like glycolic or lactic acid once or twice a week plus a vitamin C serum restores glow.",
		suggestions: []string{"AHA or BHA for me?", "How often to exfoliate?", "Recommend a vitamin C serum"},
	},
	{
		keywords: []string{"dark circle", "under eye", "eye bag", "puffy eye"},
		entity: model.ConcernDarkCircles,
		response: "Dark circles respond to caffeine eye creams, consistent sleep, and sunscreen. If they're structural (shadows from hollows), topicals only help so much.",
		suggestions: []string{"Recommend an eye cream", "Do eye creams work?", "Analyze my skin"},
	},
}

// productEntries answer questions about a product category.
var productEntries = []kbEntry{
	{
		keywords: []string{"cleanser", "face wash", "cleansing"},
		response: "Choose a cleanser by skin type: gel or foaming with salicylic acid for oily skin, cream or milk for dry skin, and a gentle gel for everyone else. Cleanse twice daily, never with hot water.",
		suggestions: []string{"Recommend for oily skin", "Recommend for dry skin", "Double cleansing?"},
	},
	{
		keywords: []string{"moisturizer", "moisturiser", "lotion", "hydrator"},
		response: "Every skin type needs a moisturizer: lightweight gel formulas with hyaluronic acid for oily skin, ceramide and peptide creams for dry or normal skin.",
		suggestions: []string{"Gel or cream for me?", "What are ceramides?", "Recommend a moisturizer"},
	},
	{
		keywords: []string{"sunscreen", "spf", "sunblock", "sun protection"},
		response: "Broad-spectrum SPF 30+ every morning is the single most effective skincare step. Reapply every two hours outdoors. Mineral filters (zinc oxide) suit sensitive skin.",
		suggestions: []string{"Mineral vs chemical SPF?", "SPF under makeup?", "Analyze my skin"},
	},
	{
		keywords: []string{"serum", "essence", "ampoule"},
		response: "Serums deliver concentrated actives: niacinamide for oil and pores, vitamin C for brightness, hyaluronic acid for hydration, retinol for aging. Apply after cleansing, before moisturizer.",
		suggestions: []string{"Can I layer serums?", "Which serum first?", "Recommend a serum"},
	},
	{
		keywords: []string{"toner", "astringent"},
		response: "Modern toners hydrate or gently exfoliate rather than strip. A hydrating toner layers well under moisturizer for dry skin; a BHA toner suits oily, congestion-prone skin.",
		suggestions: []string{"Do I need a toner?", "BHA toner how often?", "Recommend a toner"},
	},
	{
		keywords: []string{"exfoliant", "exfoliate", "scrub", "peel", "aha", "bha"},
		response: "Chemical exfoliants beat physical scrubs: AHAs (glycolic, lactic) for surface texture and dullness, BHA (salicylic) for oily, congested pores. Start once a week and never combine with retinol the same night.",
		suggestions: []string{"AHA or BHA for me?", "Exfoliating with retinol?", "Signs of over-exfoliation"},
	},
	{
		keywords: []string{"retinol", "retinoid", "tretinoin"},
		response: "Retinol is the gold standard for aging and texture. Start with 0.3% two or three nights a week, moisturize well, and expect an adjustment period. Always pair with morning SPF.",
		suggestions: []string{"Retinol purge?", "Retinol with vitamin C?", "Recommend a starter retinol"},
	},
	{
		keywords: []string{"niacinamide", "vitamin b3"},
		response: "Niacinamide regulates oil, calms redness, and brightens. It's gentle enough for daily use and layers with almost everything, including retinol and vitamin C.",
		suggestions: []string{"Niacinamide percentage?", "Layering with vitamin C", "Recommend a niacinamide serum"},
	},
	{
		keywords: []string{"vitamin c", "ascorbic"},
		response: "Vitamin C brightens and protects against environmental damage. Use it in the morning under sunscreen; L-ascorbic acid at 10-20% is the most potent form but derivatives are gentler.",
		suggestions: []string{"Which vitamin C form?", "Storage tips", "Vitamin C with niacinamide?"},
	},
	{
		keywords: []string{"hyaluronic", "sodium hyaluronate"},
		response: "Hyaluronic acid is a humectant that draws water into skin. Apply it to damp skin and seal with moisturizer, otherwise it can pull moisture out instead.",
		suggestions: []string{"Apply to damp skin why?", "HA for oily skin?", "Recommend an HA serum"},
	},
}

// assessmentKeywords trigger a reply built from the session's last
// assessment instead of the knowledge base.
var assessmentKeywords = []string{
	"my analysis", "my result", "my results", "my skin type", "my concerns",
	"what did you find", "last analysis", "the analysis", "my assessment",
}

var defaultSuggestions = []string{
	"What's a good routine for oily skin?",
	"How do I treat dark spots?",
	"Tell me about retinol",
	"Analyze my skin from a photo",
}

const greeting = "Hi! I'm your skincare consultant. Ask me about skin types, concerns like acne or dark spots, or specific ingredients. You can also upload a photo for a full skin analysis."

// Responder turns a user message into a reply by keyword matching against
// a fixed skincare knowledge base, preferring the session's last assessment
// when the message refers to analysis results.
type Responder struct{}

// NewResponder creates a Responder.
func NewResponder() *Responder { return &Responder{} }

// Respond generates the assistant reply and pending suggestions for a user
// message. It also records skin types and concerns the user mentions onto
// the session's stated profile; a photo assessment, once present, shadows
// the stated profile everywhere it is read.
func (r *Responder) Respond(sess *Session, message string) (string, []string) {
	text := strings.ToLower(message)
	recordStatedProfile(sess, text)

	if containsAny(text, assessmentKeywords) {
		if sess.LastAssessment != nil {
			return describeAssessment(sess.LastAssessment)
		}
		if sess.StatedSkinType != "" || len(sess.StatedConcerns) > 0 {
			return describeStatedProfile(sess)
		}
	}

	for _, group := range [][]kbEntry{concernEntries, productEntries, skinTypeEntries} {
		for _, e := range group {
			if containsAny(text, e.keywords) {
				return e.response, e.suggestions
			}
		}
	}

	if sess.LastAssessment != nil {
		response, suggestions := describeAssessment(sess.LastAssessment)
		return "I'm not sure about that one, but here's what I know from your analysis. " + response, suggestions
	}

	return greeting, defaultSuggestions
}

// recordStatedProfile accumulates mentioned entities. Skin type mentions
// overwrite each other (last mention wins); concerns accumulate as a set.
func recordStatedProfile(sess *Session, text string) {
	for _, e := range skinTypeEntries {
		if e.entity != "" && containsAny(text, e.keywords) {
			sess.StatedSkinType = e.entity
		}
	}
	for _, e := range concernEntries {
		if e.entity == "" || !containsAny(text, e.keywords) {
			continue
		}
		seen := false
		for _, c := range sess.StatedConcerns {
			if c == e.entity {
				seen = true
				break
			}
		}
		if !seen {
			sess.StatedConcerns = append(sess.StatedConcerns, e.entity)
		}
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func describeStatedProfile(sess *Session) (string, []string) {
	names := make([]string, 0, len(sess.StatedConcerns))
	for _, c := range sess.StatedConcerns {
		names = append(names, strings.ReplaceAll(c, "_", " "))
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("I haven't analyzed a photo yet, but from what you've told me")
	if sess.StatedSkinType != "" {
		fmt.Fprintf(&b, " you have %s skin", sess.StatedSkinType)
		if len(names) > 0 {
			b.WriteString(" and")
		}
	}
	if len(names) > 0 {
		b.WriteString(" you're dealing with ")
		b.WriteString(strings.Join(names, ", "))
	}
	b.WriteString(". Upload a photo for a full analysis.")

	return b.String(), []string{"Analyze my skin from a photo", "Recommend products for me"}
}

func describeAssessment(a *model.SkinAssessment) (string, []string) {
	names := make([]string, 0, len(a.Concerns))
	for _, c := range a.Concerns {
		names = append(names, strings.ReplaceAll(c.Name, "_", " "))
	}
	sort.Strings(names)

	var response string
	if len(names) == 0 {
		response = fmt.Sprintf("Your last analysis found %s skin with no standout concerns. Keep up a gentle routine with daily SPF.", a.SkinType)
	} else {
		response = fmt.Sprintf("Your last analysis found %s skin, and your concerns were %s. Ask me about any of them for targeted advice.", a.SkinType, strings.Join(names, ", "))
	}

	suggestions := make([]string, 0, 3)
	for _, n := range names {
		suggestions = append(suggestions, "How do I treat "+n+"?")
		if len(suggestions) == 2 {
			break
		}
	}
	suggestions = append(suggestions, "Recommend products for me")
	return response, suggestions
}
