package analysis

import "github.com/vbonduro/eatinformed/internal/gateway"

const (
	extractPromptID = "extract-label"
	assessPromptID  = "assess-ingredients"
)

var nutrientSchema = gateway.Object("One row of the nutrition table.", map[string]*gateway.Schema{
	"name":       gateway.String("Nutrient name as printed, e.g. \"Total Fat\"."),
	"perServing": gateway.String("Amount per serving with unit, e.g. \"8 g\". Omit if the column is absent."),
	"per100":     gateway.String("Amount per 100 g or 100 ml with unit. Omit if the column is absent."),
}, "name")

var extractionSchema = gateway.Object("Text read from a packaged-food label.", map[string]*gateway.Schema{
	"ingredients": gateway.ArrayOf("Ingredients in the order printed on the label.", gateway.String("")),
	"nutrition": gateway.Object("The nutrition panel.", map[string]*gateway.Schema{
		"rawText":     gateway.String("The full nutrition panel text, keeping line breaks."),
		"servingSize": gateway.String("The serving size label, e.g. \"Per 1 cup (250 ml)\"."),
		"nutrients":   gateway.ArrayOf("The nutrition table, one entry per row.", nutrientSchema),
	}, "rawText"),
	"status": gateway.Enum("success if any label text was read, no_data if the image is legible but shows no ingredients or nutrition panel, unreadable if the image cannot be read.",
		string(StatusSuccess), string(StatusNoData), string(StatusUnreadable)),
}, "ingredients", "status")

var extractPrompt = gateway.NewPrompt(extractPromptID, `You read packaged-food labels.

From the attached photo:
1. List every ingredient exactly as printed, in label order. Split compound
   ingredients only where the label itself separates them with commas.
2. Transcribe the full nutrition facts panel into rawText, keeping line breaks.
   Put the serving size label in servingSize. Add one nutrients entry per
   table row with the nutrient name and each column's amount including its
   unit, as text. Leave a column out when the label has no such column.
3. Set status:
   - "success" when you read an ingredient list or a nutrition panel,
   - "no_data" when the photo is clear but shows neither,
   - "unreadable" when the photo is too blurry, dark or cropped to read.

Never invent text that is not on the label. When a section is missing, return
an empty list or empty string for it instead of describing what is missing.`, extractionSchema)

// assessmentInput is the data the assessment prompt is rendered with.
type assessmentInput struct {
	Ingredients string `validate:"required"`
}

var dietarySchema = gateway.Object("Dietary analysis of the ingredients.", map[string]*gateway.Schema{
	"allergens":    gateway.ArrayOf("Canonical allergen names present, e.g. Milk, Eggs, Peanuts, Tree Nuts, Soy, Wheat, Gluten, Fish, Shellfish, Sesame.", gateway.String("")),
	"suitability":  gateway.ArrayOf("Short reasons the product suits or does not suit specific diets.", gateway.String("")),
	"isVegetarian": gateway.Boolean("True when no ingredient comes from slaughtered animals."),
	"isVegan":      gateway.Boolean("True when no ingredient is of animal origin."),
	"isGlutenFree": gateway.Boolean("True when no ingredient contains gluten."),
	"summary":      gateway.String("One sentence summarising the dietary profile."),
}, "allergens", "suitability", "isVegetarian", "isVegan", "isGlutenFree", "summary")

var assessmentSchema = gateway.Object("Health and safety assessment of a food product.", map[string]*gateway.Schema{
	"rating":   gateway.Number("Overall rating from 1 (least healthy) to 5 (healthiest).", 1, 5),
	"pros":     gateway.ArrayOf("Two to four genuine benefits.", gateway.String("")),
	"cons":     gateway.ArrayOf("Two to four drawbacks, none restating a pro.", gateway.String("")),
	"warnings": gateway.ArrayOf("Only bans, major controversy or non-obvious risks.", gateway.String("")),
	"ingredientAnalysis": gateway.ArrayOf("Notes on notable ingredients.", gateway.Object("", map[string]*gateway.Schema{
		"ingredient":      gateway.String("Ingredient name."),
		"description":     gateway.String("What the ingredient is."),
		"purpose":         gateway.String("Why it is in the product."),
		"isAllergen":      gateway.Boolean("True for a common allergen."),
		"isControversial": gateway.Boolean("True when restricted or debated."),
	}, "ingredient")),
	"dietaryInfo": dietarySchema,
}, "rating", "pros", "cons", "warnings", "dietaryInfo")

var assessPrompt = gateway.NewPrompt(assessPromptID, `You assess the health and safety of packaged food from its ingredients.

Ingredients: {{.Ingredients}}

1. Rate the product from 1 to 5, where 5 is healthiest. Weigh how processed it
   is, how much of it is whole food, its additive load and its sugar and
   sodium content.
2. List two to four pros. Each must be a genuine positive of the product,
   such as whole grains or a high fibre content. The mere absence of a
   negative ("no artificial colours", "low fat") is not a pro.
3. List two to four cons. A con must not restate a pro in other words.
4. Add warnings only for ingredients that are banned or restricted in some
   countries, under major scientific controversy, or a risk a shopper would
   not expect. Name the countries for bans. Never warn about common
   allergens or general unhealthiness such as sugar, salt or fat; those
   belong in cons or allergens. Leave warnings empty otherwise.
5. Dietary analysis:
   - allergens: canonical names of the major allergens present. Leave out any
     allergen the label declares the product free of ("soy-free",
     "free from milk").
   - isVegetarian, isVegan, isGlutenFree: decide from what each ingredient is,
     not from marketing claims. Meat, poultry or fish means not vegetarian.
     Dairy, eggs or honey means not vegan. Wheat, barley or rye means not
     gluten-free. Vegan products are also vegetarian.
   - suitability: short reasons for or against common diets.
   - summary: one sentence.
6. Optionally add ingredientAnalysis entries for additives and notable
   ingredients.`, assessmentSchema)
