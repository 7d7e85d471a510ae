package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/finsight/backend/internal/domain"
)

// Absolute ceiling on raw file size; anything larger is rejected before
// decoding is even attempted.
const maxImageBytes = 20 << 20 // 20 MiB

// TesseractStrategy runs the ocr-worker binary in a separate process with
// a hard wall-clock deadline. The underlying tesseract call can hang on
// pathological images and does not respond to cooperative cancellation,
// so deadline expiry kills the process outright.
type TesseractStrategy struct {
	workerBin        string
	timeout          time.Duration
	passthroughBytes int64
	maxEdge          int
}

// TesseractConfig holds configuration for the on-device strategy
type TesseractConfig struct {
	WorkerBin        string
	Timeout          time.Duration
	PassthroughBytes int64
	MaxEdge          int
}

// NewTesseractStrategy creates the on-device OCR strategy
func NewTesseractStrategy(cfg TesseractConfig) *TesseractStrategy {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	passthrough := cfg.PassthroughBytes
	if passthrough <= 0 {
		passthrough = defaultPassthroughBytes
	}
	maxEdge := cfg.MaxEdge
	if maxEdge <= 0 {
		maxEdge = defaultMaxEdge
	}
	workerBin := cfg.WorkerBin
	if workerBin == "" {
		workerBin = "ocr-worker"
	}
	return &TesseractStrategy{
		workerBin:        workerBin,
		timeout:          timeout,
		passthroughBytes: passthrough,
		maxEdge:          maxEdge,
	}
}

// Name identifies this strategy in results and logs
func (t *TesseractStrategy) Name() string { return "tesseract" }

// Extract OCRs the image through the worker process. Timeout expiry kills
// the worker; the error is classified by the engine into an ErrorKind.
func (t *TesseractStrategy) Extract(ctx context.Context, imagePath string) (*domain.RawTextResult, error) {
	info, err := os.Stat(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrImageNotFound, imagePath)
	}
	if info.Size() > maxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes", domain.ErrImageTooLarge, info.Size())
	}

	prepared, cleanup, err := prepareFile(imagePath, t.passthroughBytes, t.maxEdge)
	if err != nil {
		return nil, fmt.Errorf("%w: preparing image: %v", domain.ErrEngineFailure, err)
	}
	defer cleanup()

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.workerBin, prepared)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		log.Printf("[OCR] worker killed after %s deadline for %s", t.timeout, imagePath)
		return nil, fmt.Errorf("%w: after %s", domain.ErrExtractionTimeout, t.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: worker: %v, stderr: %s", domain.ErrEngineFailure, err, stderr.String())
	}

	var output WorkerOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, fmt.Errorf("%w: decoding worker output: %v", domain.ErrEngineFailure, err)
	}

	result := workerOutputToResult(&output, t.Name())
	if !result.HasText() {
		return nil, domain.ErrNoTextFound
	}
	return result, nil
}

func workerOutputToResult(output *WorkerOutput, strategy string) *domain.RawTextResult {
	result := &domain.RawTextResult{
		Succeeded: true,
		Text:      output.Text,
		Strategy:  strategy,
	}

	if len(output.Lines) > 0 {
		block := domain.TextBlock{Text: output.Text}
		for _, line := range output.Lines {
			block.Lines = append(block.Lines, line.Text)
		}
		result.Blocks = []domain.TextBlock{block}
	}

	if mean, ok := output.MeanConfidence(); ok {
		result.Confidence = &mean
	}
	return result
}

// IsTimeout reports whether the strategy error was a deadline kill
func IsTimeout(err error) bool {
	return errors.Is(err, domain.ErrExtractionTimeout)
}
