package ocr

// WorkerLine is one recognized text line with the engine's confidence for
// it, normalized to [0,1].
type WorkerLine struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// WorkerOutput is the JSON document the ocr-worker binary writes to stdout.
// The worker runs in its own process so a hung native OCR call can be
// killed past the deadline instead of blocking the service.
type WorkerOutput struct {
	Text  string       `json:"text"`
	Lines []WorkerLine `json:"lines,omitempty"`
}

// MeanConfidence is the arithmetic mean of per-line confidences, or ok
// false when the engine exposed no granular signal.
func (w *WorkerOutput) MeanConfidence() (float64, bool) {
	if len(w.Lines) == 0 {
		return 0, false
	}
	var sum float64
	for _, line := range w.Lines {
		sum += line.Confidence
	}
	return sum / float64(len(w.Lines)), true
}
