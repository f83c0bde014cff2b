package analysis

import "strings"

// FailurePhrases are lower-case fragments a model writes into a text field
// instead of leaving it empty when nothing could be read. Text containing
// any of them is treated as absent.
var FailurePhrases = []string{
	"no ingredients found",
	"no ingredients listed",
	"no ingredients visible",
	"ingredients not found",
	"ingredient list not visible",
	"ingredients not visible",
	"unable to extract ingredients",
	"unable to read",
	"could not read",
	"cannot read",
	"not legible",
	"illegible",
	"no nutrition information",
	"nutrition information not visible",
	"no nutrition facts",
	"no text found",
	"no text detected",
	"temporarily offline",
}

// IsUsable reports whether extracted text carries real label content.
func IsUsable(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	for _, phrase := range FailurePhrases {
		if strings.Contains(t, phrase) {
			return false
		}
	}
	return true
}
