package analysis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vbonduro/eatinformed/internal/gateway"
)

// Assessor rates a product from its ingredient text.
type Assessor struct {
	gw     gateway.Gateway
	logger *slog.Logger
}

func NewAssessor(gw gateway.Gateway, logger *slog.Logger) *Assessor {
	return &Assessor{gw: gw, logger: logger}
}

// Assess never fails: when no real assessment is possible it returns the
// NotAssessed result with the reason as its only warning.
func (a *Assessor) Assess(ctx context.Context, ingredients string) AssessmentResult {
	client, ok := a.gw.Client()
	if !ok {
		return NotAssessed(OfflineMessage(a.gw.Reason()))
	}
	if strings.TrimSpace(ingredients) == "" {
		return NotAssessed(MsgUnableToEvaluate)
	}

	a.logger.Info("assessment started", "provider", client.Name(), "chars", len(ingredients))

	var out AssessmentResult
	if err := gateway.Invoke(ctx, client, assessPrompt, assessmentInput{Ingredients: ingredients}, nil, &out); err != nil {
		a.logger.Warn("assessment failed", "failure", gateway.Classify(err).String(), "error", err)
		return NotAssessed(FailureMessage(err))
	}

	result := normalizeAssessment(out, ingredients)
	a.logger.Info("assessment complete", "rating", result.Rating, "allergens", len(result.DietaryInfo.Allergens))
	return result
}

func normalizeAssessment(in AssessmentResult, ingredients string) AssessmentResult {
	out := AssessmentResult{
		Rating:   clampRating(in.Rating),
		Pros:     trimAll(in.Pros),
		Cons:     trimAll(in.Cons),
		Warnings: trimAll(in.Warnings),
		DietaryInfo: DietaryInfo{
			Allergens:    excludeDeclaredFree(trimAll(in.DietaryInfo.Allergens), ingredients),
			Suitability:  trimAll(in.DietaryInfo.Suitability),
			IsVegetarian: in.DietaryInfo.IsVegetarian,
			IsVegan:      in.DietaryInfo.IsVegan,
			IsGlutenFree: in.DietaryInfo.IsGlutenFree,
			Summary:      strings.TrimSpace(in.DietaryInfo.Summary),
		},
	}
	out.Cons = withoutRepeats(out.Cons, out.Pros)

	// Vegan implies vegetarian.
	if out.DietaryInfo.IsVegan {
		out.DietaryInfo.IsVegetarian = true
	}

	for _, note := range in.IngredientAnalysis {
		note.Ingredient = strings.TrimSpace(note.Ingredient)
		if note.Ingredient == "" {
			continue
		}
		note.Description = strings.TrimSpace(note.Description)
		note.Purpose = strings.TrimSpace(note.Purpose)
		out.IngredientAnalysis = append(out.IngredientAnalysis, note)
	}
	return out
}

// clampRating keeps genuine ratings inside [1,5]; 0 is reserved for
// NotAssessed.
func clampRating(r float64) float64 {
	switch {
	case r < 1:
		return 1
	case r > 5:
		return 5
	default:
		return r
	}
}

func withoutRepeats(list, other []string) []string {
	seen := make(map[string]bool, len(other))
	for _, s := range other {
		seen[strings.ToLower(s)] = true
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		if !seen[strings.ToLower(s)] {
			out = append(out, s)
		}
	}
	return out
}

// allergenAliases maps canonical allergen names to the words a label uses
// when declaring the product free of them.
var allergenAliases = map[string][]string{
	"milk":      {"milk", "dairy"},
	"dairy":     {"dairy", "milk"},
	"eggs":      {"egg"},
	"egg":       {"egg"},
	"peanuts":   {"peanut"},
	"peanut":    {"peanut"},
	"tree nuts": {"tree nut"},
	"nuts":      {"nut"},
	"soy":       {"soy", "soya"},
	"soya":      {"soy", "soya"},
	"wheat":     {"wheat"},
	"gluten":    {"gluten"},
	"fish":      {"fish"},
	"shellfish": {"shellfish", "crustacean"},
	"sesame":    {"sesame"},
	"mustard":   {"mustard"},
	"celery":    {"celery"},
	"sulphites": {"sulphite", "sulfite"},
	"sulfites":  {"sulfite", "sulphite"},
}

// excludeDeclaredFree drops allergens the ingredient text says the product is
// free of, e.g. "soy-free" or "free from milk".
func excludeDeclaredFree(allergens []string, ingredients string) []string {
	text := strings.ToLower(ingredients)
	out := make([]string, 0, len(allergens))
	for _, allergen := range allergens {
		if !declaredFree(text, strings.ToLower(allergen)) {
			out = append(out, allergen)
		}
	}
	return out
}

func declaredFree(text, allergen string) bool {
	words, ok := allergenAliases[allergen]
	if !ok {
		words = []string{allergen}
	}
	for _, w := range words {
		for _, form := range []string{w + "-free", w + " free", "free from " + w, "free of " + w} {
			if strings.Contains(text, form) {
				return true
			}
		}
	}
	return false
}
