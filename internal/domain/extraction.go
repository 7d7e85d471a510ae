package domain

// ExtractionErrorKind categorizes why a text extraction attempt failed.
type ExtractionErrorKind string

const (
	ExtractionErrNone          ExtractionErrorKind = ""
	ExtractionErrNotFound      ExtractionErrorKind = "NOT_FOUND"
	ExtractionErrTooLarge      ExtractionErrorKind = "TOO_LARGE"
	ExtractionErrTimeout       ExtractionErrorKind = "TIMEOUT"
	ExtractionErrEngineFailure ExtractionErrorKind = "ENGINE_FAILURE"
	ExtractionErrNoTextFound   ExtractionErrorKind = "NO_TEXT_FOUND"
)

// BoundingBox represents pixel coordinates of a detected text region
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TextBlock is a contiguous region of recognized text. Blocks are optional
// detail; downstream parsing only requires the flattened text.
type TextBlock struct {
	Text        string       `json:"text"`
	Lines       []string     `json:"lines"`
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
	Confidence  *float64     `json:"confidence,omitempty"`
}

// RawTextResult is the outcome of one extraction request. Extraction never
// surfaces errors to callers directly; failures are encoded in ErrorKind.
type RawTextResult struct {
	Succeeded  bool                `json:"succeeded"`
	Text       string              `json:"text"`
	Blocks     []TextBlock         `json:"blocks,omitempty"`
	Confidence *float64            `json:"confidence,omitempty"`
	ErrorKind  ExtractionErrorKind `json:"errorKind,omitempty"`
	Strategy   string              `json:"strategy,omitempty"`
}

// FailedExtraction builds a failure result for the given kind
func FailedExtraction(kind ExtractionErrorKind) *RawTextResult {
	return &RawTextResult{Succeeded: false, ErrorKind: kind}
}

// HasText reports whether any non-whitespace text was recovered
func (r *RawTextResult) HasText() bool {
	if r == nil {
		return false
	}
	for _, c := range r.Text {
		if c != ' ' && c != '\n' && c != '\r' && c != '\t' {
			return true
		}
	}
	return false
}
