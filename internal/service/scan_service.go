package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/eatinformed/internal/analysis"
	"github.com/vbonduro/eatinformed/internal/gateway"
)

// extractor is the subset of analysis.Extractor that ScanService requires.
type extractor interface {
	Extract(ctx context.Context, img *gateway.Image) analysis.ExtractionResult
}

// assessor is the subset of analysis.Assessor that ScanService requires.
type assessor interface {
	Assess(ctx context.Context, ingredients string) analysis.AssessmentResult
}

// State is the terminal state of a scan.
type State string

const (
	StateOffline      State = "offline"
	StateNoUsableData State = "no_usable_data"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Outcome is what a scan returns to the presentation layer. Assessment is
// always set; Extraction is nil when AI is offline, when no image was given
// and after an internal failure.
type Outcome struct {
	State      State                      `json:"state"`
	Extraction *analysis.ExtractionResult `json:"extraction"`
	Assessment analysis.AssessmentResult  `json:"assessment"`
	Error      string                     `json:"error,omitempty"`
}

// Stage names a step of a streamed scan.
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageExtracted  Stage = "extracted"
	StageAssessing  Stage = "assessing"
	StageComplete   Stage = "complete"
)

// ScanEvent reports progress of a streamed scan. Extraction is set on
// StageExtracted and Outcome on StageComplete.
type ScanEvent struct {
	Stage      Stage                      `json:"stage"`
	Extraction *analysis.ExtractionResult `json:"extraction,omitempty"`
	Outcome    *Outcome                   `json:"outcome,omitempty"`
}

// maxScanEvents is the number of events a scan can emit.
const maxScanEvents = 4

// nutritionPrefix labels panel text passed to the assessment when the label
// has no readable ingredient list.
const nutritionPrefix = "Nutrition facts only: "

type ScanService struct {
	gw        gateway.Gateway
	extractor extractor
	assessor  assessor
	logger    *slog.Logger
}

func NewScanService(gw gateway.Gateway, ex extractor, as assessor, logger *slog.Logger) *ScanService {
	return &ScanService{
		gw:        gw,
		extractor: ex,
		assessor:  as,
		logger:    logger,
	}
}

// AIAvailable reports whether scans can reach a model.
func (s *ScanService) AIAvailable() bool {
	_, ok := s.gw.Client()
	return ok
}

// Scan runs extraction and, when the label yielded usable text, assessment.
// It never fails; every problem is reported in the Outcome.
func (s *ScanService) Scan(ctx context.Context, img *gateway.Image) Outcome {
	return s.run(ctx, img, func(ScanEvent) {})
}

// ScanStream runs the same steps as Scan in a goroutine and reports each
// stage on the returned channel, ending with a StageComplete event that
// carries the Outcome. The channel is closed when the scan finishes.
func (s *ScanService) ScanStream(ctx context.Context, img *gateway.Image) <-chan ScanEvent {
	out := make(chan ScanEvent, maxScanEvents)
	go func() {
		defer close(out)
		s.run(ctx, img, func(ev ScanEvent) { out <- ev })
	}()
	return out
}

func (s *ScanService) run(ctx context.Context, img *gateway.Image, emit func(ScanEvent)) (outcome Outcome) {
	logger := s.logger.With("scan_id", uuid.NewString())
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("scan panicked", "panic", r)
			outcome = Outcome{
				State:      StateFailed,
				Assessment: analysis.NotAssessed(analysis.MsgScanFailed),
				Error:      analysis.MsgScanFailed,
			}
		}
		logger.Info("scan finished",
			"state", outcome.State,
			"rating", outcome.Assessment.Rating,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		emit(ScanEvent{Stage: StageComplete, Outcome: &outcome})
	}()

	if !s.AIAvailable() {
		logger.Info("scan skipped, AI offline", "reason", s.gw.Reason())
		return Outcome{
			State:      StateOffline,
			Assessment: analysis.NotAssessed(analysis.OfflineMessage(s.gw.Reason())),
		}
	}

	if img == nil || len(img.Data) == 0 {
		return Outcome{
			State:      StateNoUsableData,
			Assessment: analysis.NotAssessed(analysis.MsgNoImage),
		}
	}

	logger.Info("scan started", "mime_type", img.MIMEType, "bytes", len(img.Data))
	emit(ScanEvent{Stage: StageExtracting})
	extraction := s.extractor.Extract(ctx, img)
	emit(ScanEvent{Stage: StageExtracted, Extraction: &extraction})

	text, ok := assessmentText(extraction)
	if !ok {
		warning := analysis.MsgUnableToEvaluate
		if extraction.Status == analysis.StatusUnreadable && extraction.Message != "" {
			warning = extraction.Message
		}
		logger.Info("no usable label text", "extraction_status", extraction.Status)
		return Outcome{
			State:      StateNoUsableData,
			Extraction: &extraction,
			Assessment: analysis.NotAssessed(warning),
		}
	}

	emit(ScanEvent{Stage: StageAssessing})
	assessment := s.assessor.Assess(ctx, text)

	return Outcome{
		State:      StateDone,
		Extraction: &extraction,
		Assessment: assessment,
	}
}

// assessmentText picks the text to assess: the ingredient list when it is
// usable, otherwise the nutrition panel when that is usable.
func assessmentText(ex analysis.ExtractionResult) (string, bool) {
	if ex.Status != analysis.StatusSuccess {
		return "", false
	}
	if ingredients := ex.IngredientsText(); analysis.IsUsable(ingredients) {
		return ingredients, true
	}
	if panel := ex.Nutrition.Text(); analysis.IsUsable(panel) {
		return nutritionPrefix + panel, true
	}
	return "", false
}
