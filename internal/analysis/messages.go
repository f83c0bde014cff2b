package analysis

import (
	"fmt"

	"github.com/vbonduro/eatinformed/internal/gateway"
)

// User-facing explanations carried in non-success results.
const (
	MsgNoImage          = "No image was provided. Please upload or capture a photo of the product label."
	MsgUnreadable       = "The image was unreadable. Please upload or capture a clearer photo of the product label."
	MsgNoData           = "We couldn't find any ingredient or nutrition text on the label. Please try a different image."
	MsgOverloaded       = "The AI service is temporarily overloaded. Please try again in a few moments."
	MsgTimeout          = "The analysis took too long to complete. Please try again."
	MsgGeneric          = "An unexpected error occurred while analysing the label. Please try again."
	MsgUnableToEvaluate = "We were unable to evaluate this product because no ingredients could be read. Please upload a clear image of the ingredient list."
	MsgScanFailed       = "An unexpected error occurred during analysis. The AI service may be temporarily unavailable. Please try again."

	summaryNotAssessed = "No dietary analysis was possible for this product."
)

// OfflineMessage explains that AI features are disabled and why.
func OfflineMessage(reason string) string {
	return fmt.Sprintf("AI analysis is currently offline: %s. Please contact the site administrator.", reason)
}

// FailureMessage picks the explanation for a failed model call.
func FailureMessage(err error) string {
	switch gateway.Classify(err) {
	case gateway.FailureOverloaded:
		return MsgOverloaded
	case gateway.FailureTimeout:
		return MsgTimeout
	default:
		return MsgGeneric
	}
}

// NotAssessed is the zero-rating result returned whenever no real assessment
// was produced. warning tells the user why.
func NotAssessed(warning string) AssessmentResult {
	return AssessmentResult{
		Rating:   0,
		Pros:     []string{},
		Cons:     []string{},
		Warnings: []string{warning},
		DietaryInfo: DietaryInfo{
			Allergens:   []string{},
			Suitability: []string{},
			Summary:     summaryNotAssessed,
		},
	}
}

// unreadable is the extraction result for any failure; message is also
// placed in the nutrition text so clients that only render the panel still
// show it.
func unreadable(message string) ExtractionResult {
	return ExtractionResult{
		Ingredients: []string{},
		Nutrition:   &Nutrition{RawText: message},
		Status:      StatusUnreadable,
		Message:     message,
	}
}
