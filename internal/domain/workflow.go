package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PipelineStep identifies a stage of the receipt processing pipeline.
// Steps are reported to an observational callback for UI progress; they
// have no effect on control flow.
type PipelineStep string

const (
	StepExtracting  PipelineStep = "Extracting"
	StepParsing     PipelineStep = "Parsing"
	StepClassifying PipelineStep = "Classifying"
	StepComplete    PipelineStep = "Complete"
	StepFailed      PipelineStep = "Failed"
)

// ReviewThreshold is the overall confidence below which a human should
// verify the result before it is persisted.
const ReviewThreshold = 0.7

// WorkflowResult is the orchestrator's final output for one image. It is
// handed to UI/persistence collaborators and never mutated afterwards.
type WorkflowResult struct {
	ID               string                `json:"id"`
	Success          bool                  `json:"success"`
	ImagePath        string                `json:"imagePath"`
	RawTextResult    *RawTextResult        `json:"rawTextResult,omitempty"`
	Receipt          *StructuredReceipt    `json:"structuredReceipt,omitempty"`
	Classification   *ClassificationResult `json:"classification,omitempty"`
	ErrorMessage     string                `json:"errorMessage,omitempty"`
	ProcessingTimeMs int64                 `json:"processingTimeMs"`
}

// OverallConfidence is the arithmetic mean of the available sub-confidences
// (extraction, parse, classification). Missing stages are skipped, not
// counted as zero.
func (w *WorkflowResult) OverallConfidence() float64 {
	var sum float64
	var n int
	if w.RawTextResult != nil && w.RawTextResult.Confidence != nil {
		sum += *w.RawTextResult.Confidence
		n++
	}
	if w.Receipt != nil {
		sum += w.Receipt.OverallConfidence
		n++
	}
	if w.Classification != nil {
		sum += w.Classification.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// NeedsReview reports whether a human should verify this result
func (w *WorkflowResult) NeedsReview() bool {
	return !w.Success || w.OverallConfidence() < ReviewThreshold
}

// ReceiptPreview is a near-instant readability signal produced from
// extraction alone, before committing to the full pipeline.
type ReceiptPreview struct {
	Readable       bool             `json:"readable"`
	MerchantGuess  string           `json:"merchantGuess,omitempty"`
	EstimatedTotal *decimal.Decimal `json:"estimatedTotal,omitempty"`
	TextLength     int              `json:"textLength"`
}

// ImageValidation reports whether a capture is usable at all
type ImageValidation struct {
	Readable   bool   `json:"readable"`
	TextLength int    `json:"textLength"`
	Reason     string `json:"reason,omitempty"`
}

// BatchSummary aggregates statistics for a batch run.
type BatchSummary struct {
	Total          int           `json:"total"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	NeedsReview    int           `json:"needsReview"`
	ProcessingTime time.Duration `json:"-"`
}

// ExpenseRecord is the persistence collaborator's input shape. The pipeline
// produces it from a WorkflowResult; storing it is outside this core.
type ExpenseRecord struct {
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant,omitempty"`
	NeedsReview bool            `json:"needsReview"`
}

// ToExpenseRecord maps a completed workflow result onto the expense record
// consumed downstream. Returns nil when no receipt was produced.
func (w *WorkflowResult) ToExpenseRecord() *ExpenseRecord {
	if w.Receipt == nil {
		return nil
	}
	rec := &ExpenseRecord{
		Date:        time.Now(),
		Category:    CategoryOther,
		NeedsReview: w.NeedsReview(),
	}
	if w.Receipt.TotalAmount != nil {
		rec.Amount = *w.Receipt.TotalAmount
	}
	if w.Receipt.Date != nil {
		rec.Date = *w.Receipt.Date
	}
	if w.Receipt.MerchantName != nil {
		rec.Merchant = *w.Receipt.MerchantName
	}
	if w.Classification != nil && w.Classification.Category != "" {
		rec.Category = w.Classification.Category
	}
	if len(w.Receipt.Items) > 0 {
		names := make([]string, 0, len(w.Receipt.Items))
		for _, it := range w.Receipt.Items {
			names = append(names, it.Name)
		}
		rec.Description = strings.Join(names, ", ")
	}
	return rec
}
