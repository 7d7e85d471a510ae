package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsight/backend/internal/domain"
)

// minReadableTextLength is the extracted-text length below which a capture
// is considered unusable
const minReadableTextLength = 20

// StepCallback observes pipeline stage transitions for progress reporting.
// It has no effect on control flow.
type StepCallback func(step domain.PipelineStep)

// PipelineService sequences extraction, parsing and classification for one
// receipt image. Extraction is the only unrecoverable stage: parsing and
// classification failures degrade to placeholders so a human can still
// review the result.
type PipelineService struct {
	extractor  domain.TextExtractor
	parser     *ReceiptParser
	classifier *CategoryClassifier
	onStep     StepCallback
}

// NewPipelineService creates the orchestrator. onStep may be nil.
func NewPipelineService(extractor domain.TextExtractor, parser *ReceiptParser, classifier *CategoryClassifier, onStep StepCallback) *PipelineService {
	return &PipelineService{
		extractor:  extractor,
		parser:     parser,
		classifier: classifier,
		onStep:     onStep,
	}
}

// ProcessReceipt runs the full Extracting -> Parsing -> Classifying ->
// Complete pipeline for one image. All failures are encoded in the
// returned WorkflowResult; it never returns an error or panics.
func (s *PipelineService) ProcessReceipt(ctx context.Context, imagePath string) *domain.WorkflowResult {
	start := time.Now()
	result := &domain.WorkflowResult{
		ID:        uuid.NewString(),
		ImagePath: imagePath,
	}

	s.step(domain.StepExtracting)
	raw := s.extract(ctx, imagePath)
	result.RawTextResult = raw

	if raw == nil || !raw.HasText() {
		result.Success = false
		result.ErrorMessage = extractionErrorMessage(raw, imagePath)
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
		s.step(domain.StepFailed)
		return result
	}

	s.step(domain.StepParsing)
	result.Receipt = s.safeParse(raw.Text)

	s.step(domain.StepClassifying)
	result.Classification = s.safeClassify(ctx, result.Receipt)

	result.Success = true
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	s.step(domain.StepComplete)
	return result
}

// ProcessBatch processes images independently; one item's failure is
// recorded in its own result without aborting the rest.
func (s *PipelineService) ProcessBatch(ctx context.Context, imagePaths []string) ([]*domain.WorkflowResult, *domain.BatchSummary) {
	start := time.Now()
	results := make([]*domain.WorkflowResult, 0, len(imagePaths))
	summary := &domain.BatchSummary{Total: len(imagePaths)}

	for _, path := range imagePaths {
		result := s.processIsolated(ctx, path)
		results = append(results, result)
		if result.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		if result.NeedsReview() {
			summary.NeedsReview++
		}
	}

	summary.ProcessingTime = time.Since(start)
	log.Printf("[PIPELINE] batch done: %d total, %d failed, %d need review in %s",
		summary.Total, summary.Failed, summary.NeedsReview, summary.ProcessingTime)
	return results, summary
}

// processIsolated shields the batch loop from panics in a single item
func (s *PipelineService) processIsolated(ctx context.Context, imagePath string) (result *domain.WorkflowResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PIPELINE] recovered processing %s: %v", imagePath, r)
			result = &domain.WorkflowResult{
				ID:           uuid.NewString(),
				ImagePath:    imagePath,
				Success:      false,
				ErrorMessage: fmt.Sprintf("internal error processing %s", imagePath),
			}
		}
	}()
	return s.ProcessReceipt(ctx, imagePath)
}

// GetPreview runs extraction only and applies lightweight heuristics (first
// substantial line as merchant, last amount-shaped token as total) for a
// near-instant readability signal before the full pipeline is committed.
func (s *PipelineService) GetPreview(ctx context.Context, imagePath string) *domain.ReceiptPreview {
	raw := s.extract(ctx, imagePath)
	preview := &domain.ReceiptPreview{}
	if raw == nil || !raw.HasText() {
		return preview
	}

	text := strings.TrimSpace(raw.Text)
	preview.TextLength = len(text)
	preview.Readable = len(text) >= minReadableTextLength

	for _, line := range nonEmptyLines(text) {
		if len(line) >= 3 {
			preview.MerchantGuess = line
			break
		}
	}

	if numbers := extractNumbers(text); len(numbers) > 0 {
		last := numbers[len(numbers)-1]
		preview.EstimatedTotal = &last
	}

	return preview
}

// ValidateImage runs extraction only and reports whether the capture is
// worth processing at all.
func (s *PipelineService) ValidateImage(ctx context.Context, imagePath string) *domain.ImageValidation {
	raw := s.extract(ctx, imagePath)
	validation := &domain.ImageValidation{}
	if raw == nil || !raw.HasText() {
		validation.Reason = "no text could be extracted"
		return validation
	}
	validation.TextLength = len(strings.TrimSpace(raw.Text))
	if validation.TextLength < minReadableTextLength {
		validation.Reason = fmt.Sprintf("only %d characters extracted, image likely unreadable", validation.TextLength)
		return validation
	}
	validation.Readable = true
	return validation
}

// extract invokes the extraction chain, converting any stray error into a
// failure result so nothing escapes the pipeline boundary.
func (s *PipelineService) extract(ctx context.Context, imagePath string) *domain.RawTextResult {
	raw, err := s.extractor.Extract(ctx, imagePath)
	if err != nil {
		log.Printf("[PIPELINE] extraction error for %s: %v", imagePath, err)
		return domain.FailedExtraction(domain.ExtractionErrEngineFailure)
	}
	return raw
}

// safeParse substitutes a placeholder receipt when parsing panics: a human
// can review and correct a placeholder but cannot recover an aborted run.
func (s *PipelineService) safeParse(rawText string) (receipt *domain.StructuredReceipt) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PIPELINE] parser panic, substituting placeholder: %v", r)
			receipt = placeholderReceipt(rawText, fmt.Sprintf("parser failure: %v", r))
		}
	}()
	return s.parser.Parse(rawText)
}

// placeholderReceipt is the minimal reviewable receipt used when parsing
// fails outright
func placeholderReceipt(rawText, warning string) *domain.StructuredReceipt {
	merchant := "Unknown Merchant"
	zero := decimal.Zero
	now := time.Now()
	return &domain.StructuredReceipt{
		MerchantName:     &merchant,
		TotalAmount:      &zero,
		Date:             &now,
		Currency:         "USD",
		FieldConfidences: map[string]float64{},
		RawText:          rawText,
		Warnings:         []string{warning},
	}
}

// safeClassify always produces a classification; failure or panic yields a
// low-confidence default category rather than failing the pipeline.
func (s *PipelineService) safeClassify(ctx context.Context, receipt *domain.StructuredReceipt) (result *domain.ClassificationResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PIPELINE] classifier panic, substituting default: %v", r)
			result = defaultClassification()
		}
	}()

	merchant := "Unknown Merchant"
	if receipt.MerchantName != nil {
		merchant = *receipt.MerchantName
	}

	var description string
	if len(receipt.Items) > 0 {
		names := make([]string, 0, len(receipt.Items))
		for _, it := range receipt.Items {
			names = append(names, it.Name)
		}
		description = strings.Join(names, ", ")
	}

	return s.classifier.Classify(ctx, merchant, description, receipt.TotalAmount)
}

func defaultClassification() *domain.ClassificationResult {
	return &domain.ClassificationResult{
		Category:   domain.CategoryOther,
		Confidence: 0.1,
		Method:     domain.MethodRule,
	}
}

func (s *PipelineService) step(step domain.PipelineStep) {
	if s.onStep != nil {
		s.onStep(step)
	}
}

// extractionErrorMessage renders a user-facing message for an unrecoverable
// extraction failure, always pointing at manual entry as the way forward.
func extractionErrorMessage(raw *domain.RawTextResult, imagePath string) string {
	kind := domain.ExtractionErrEngineFailure
	if raw != nil && raw.ErrorKind != domain.ExtractionErrNone {
		kind = raw.ErrorKind
	}
	switch kind {
	case domain.ExtractionErrNotFound:
		return fmt.Sprintf("image %s was not found; please retake the photo or enter the expense manually", imagePath)
	case domain.ExtractionErrTooLarge:
		return "the image is too large to process; please retake the photo or enter the expense manually"
	case domain.ExtractionErrTimeout:
		return "text extraction timed out; please retry or enter the expense manually"
	case domain.ExtractionErrNoTextFound:
		return "no readable text was found in the image; please retake the photo or enter the expense manually"
	default:
		return "text extraction failed; please retry or enter the expense manually"
	}
}
