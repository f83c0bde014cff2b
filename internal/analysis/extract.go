package analysis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vbonduro/eatinformed/internal/gateway"
)

// Extractor reads the ingredient list and nutrition panel from a label photo.
type Extractor struct {
	gw     gateway.Gateway
	logger *slog.Logger
}

func NewExtractor(gw gateway.Gateway, logger *slog.Logger) *Extractor {
	return &Extractor{gw: gw, logger: logger}
}

// Extract never fails: every problem is reported through the result's
// Status and Message.
func (e *Extractor) Extract(ctx context.Context, img *gateway.Image) ExtractionResult {
	client, ok := e.gw.Client()
	if !ok {
		return unreadable(OfflineMessage(e.gw.Reason()))
	}
	if img == nil || len(img.Data) == 0 {
		return unreadable(MsgNoImage)
	}

	e.logger.Info("extraction started", "provider", client.Name(), "mime_type", img.MIMEType, "bytes", len(img.Data))

	var out ExtractionResult
	if err := gateway.Invoke(ctx, client, extractPrompt, nil, img, &out); err != nil {
		e.logger.Warn("extraction failed", "failure", gateway.Classify(err).String(), "error", err)
		return unreadable(FailureMessage(err))
	}

	result := normalizeExtraction(out)
	e.logger.Info("extraction complete",
		"status", result.Status,
		"ingredients", len(result.Ingredients),
		"has_nutrition", result.Nutrition != nil,
	)
	return result
}

func normalizeExtraction(in ExtractionResult) ExtractionResult {
	out := ExtractionResult{
		Ingredients: trimAll(in.Ingredients),
		Status:      in.Status,
	}

	if in.Nutrition != nil {
		n := &Nutrition{
			RawText:     strings.TrimSpace(in.Nutrition.RawText),
			ServingSize: strings.TrimSpace(in.Nutrition.ServingSize),
		}
		for _, row := range in.Nutrition.Nutrients {
			row.Name = strings.TrimSpace(row.Name)
			if row.Name == "" {
				continue
			}
			row.PerServing = strings.TrimSpace(row.PerServing)
			row.Per100 = strings.TrimSpace(row.Per100)
			n.Nutrients = append(n.Nutrients, row)
		}
		if !n.Empty() {
			out.Nutrition = n
		}
	}

	if out.Status == StatusSuccess && len(out.Ingredients) == 0 && out.Nutrition == nil {
		out.Status = StatusNoData
	}

	switch out.Status {
	case StatusNoData:
		out.Message = MsgNoData
	case StatusUnreadable:
		out.Message = MsgUnreadable
	}
	return out
}

// trimAll trims every entry and drops blanks. It never returns nil.
func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
