package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// TextExtractor converts an image file into raw text. Implementations are
// the individual OCR strategies and the composed fallback chain; strategy
// failures surface as errors, which the chain encodes into RawTextResult.
type TextExtractor interface {
	Name() string
	Extract(ctx context.Context, imagePath string) (*RawTextResult, error)
}

// RemoteClassifier is a network-backed category model invoked for
// merchants the rule tables cannot resolve confidently.
type RemoteClassifier interface {
	Classify(ctx context.Context, merchant, description string, amount *decimal.Decimal) (*RemoteClassification, error)
}

// ClassificationCache stores classification results keyed by normalized
// merchant name. Entries are immutable once written; re-writing a key with
// an equivalent result is harmless, so implementations only need simple
// mutual exclusion.
type ClassificationCache interface {
	Get(key string) (*ClassificationResult, bool)
	Set(key string, result *ClassificationResult)
	Clear()
	Size() int
}
