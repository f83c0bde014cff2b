package analysis

import "strings"

// Status is the legibility verdict of an extraction.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusNoData     Status = "no_data"
	StatusUnreadable Status = "unreadable"
)

type Nutrient struct {
	Name       string `json:"name"`
	PerServing string `json:"perServing,omitempty"`
	Per100     string `json:"per100,omitempty"`
}

// Nutrition is the nutrition panel as printed on the label.
type Nutrition struct {
	RawText     string     `json:"rawText"`
	ServingSize string     `json:"servingSize,omitempty"`
	Nutrients   []Nutrient `json:"nutrients,omitempty"`
}

// Empty reports whether the panel carries no text and no rows.
func (n *Nutrition) Empty() bool {
	return n == nil || (strings.TrimSpace(n.RawText) == "" && len(n.Nutrients) == 0)
}

// Text is the panel's raw text, or its rows flattened one per line when the
// raw text is missing.
func (n *Nutrition) Text() string {
	if n == nil {
		return ""
	}
	if raw := strings.TrimSpace(n.RawText); raw != "" {
		return raw
	}
	lines := make([]string, 0, len(n.Nutrients))
	for _, row := range n.Nutrients {
		var values []string
		if row.PerServing != "" {
			values = append(values, row.PerServing+" per serving")
		}
		if row.Per100 != "" {
			values = append(values, row.Per100+" per 100")
		}
		lines = append(lines, row.Name+": "+strings.Join(values, ", "))
	}
	return strings.Join(lines, "\n")
}

type ExtractionResult struct {
	Ingredients []string   `json:"ingredients"`
	Nutrition   *Nutrition `json:"nutrition,omitempty"`
	Status      Status     `json:"status" validate:"oneof=success no_data unreadable"`
	Message     string     `json:"message,omitempty"`
}

// IngredientsText joins the ingredient list in label order.
func (r ExtractionResult) IngredientsText() string {
	return strings.Join(r.Ingredients, ", ")
}

type IngredientNote struct {
	Ingredient      string `json:"ingredient"`
	Description     string `json:"description"`
	Purpose         string `json:"purpose"`
	IsAllergen      bool   `json:"isAllergen"`
	IsControversial bool   `json:"isControversial"`
}

type DietaryInfo struct {
	Allergens    []string `json:"allergens"`
	Suitability  []string `json:"suitability"`
	IsVegetarian bool     `json:"isVegetarian"`
	IsVegan      bool     `json:"isVegan"`
	IsGlutenFree bool     `json:"isGlutenFree"`
	Summary      string   `json:"summary"`
}

// AssessmentResult is the health and dietary verdict for a product. A Rating
// of 0 means the product was not assessed.
type AssessmentResult struct {
	Rating             float64          `json:"rating"`
	Pros               []string         `json:"pros"`
	Cons               []string         `json:"cons"`
	Warnings           []string         `json:"warnings"`
	IngredientAnalysis []IngredientNote `json:"ingredientAnalysis,omitempty"`
	DietaryInfo        DietaryInfo      `json:"dietaryInfo"`
}

func (a AssessmentResult) Assessed() bool {
	return a.Rating > 0
}
