package ocr

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/finsight/backend/internal/domain"
)

const (
	defaultRetryBackoff = 500 * time.Millisecond

	// Once the primary strategy has failed this many times in the current
	// process, the retry attempt is skipped to stop burning the deadline
	// budget on an engine that is clearly unhealthy.
	maxPrimaryFailures = 2
)

// Engine composes the ordered extraction strategy chain: primary on-device
// OCR, one backed-off retry, remote OCR fallback, then a terminal
// manual-entry result. Extract never returns an error; every failure mode
// is encoded in the RawTextResult.
type Engine struct {
	primary         domain.TextExtractor
	remote          domain.TextExtractor
	retryBackoff    time.Duration
	primaryFailures atomic.Int32
}

// NewEngine builds the extraction chain. remote may be nil when no cloud
// OCR endpoint is configured.
func NewEngine(primary, remote domain.TextExtractor, retryBackoff time.Duration) *Engine {
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	return &Engine{
		primary:      primary,
		remote:       remote,
		retryBackoff: retryBackoff,
	}
}

// Name identifies the composed chain
func (e *Engine) Name() string { return "chain" }

// Extract walks the strategy chain, first success wins. The returned error
// is always nil; callers inspect RawTextResult.ErrorKind.
func (e *Engine) Extract(ctx context.Context, imagePath string) (*domain.RawTextResult, error) {
	result, err := e.primary.Extract(ctx, imagePath)
	if err == nil {
		e.primaryFailures.Store(0)
		return result, nil
	}

	lastKind := errorKind(err)
	e.primaryFailures.Add(1)
	log.Printf("[OCR] primary strategy failed (%s): %v", lastKind, err)

	// A missing file will not appear for any other strategy either
	if errors.Is(err, domain.ErrImageNotFound) {
		return domain.FailedExtraction(domain.ExtractionErrNotFound), nil
	}

	if e.primaryFailures.Load() < maxPrimaryFailures {
		select {
		case <-time.After(e.retryBackoff):
		case <-ctx.Done():
			return domain.FailedExtraction(domain.ExtractionErrTimeout), nil
		}

		result, err = e.primary.Extract(ctx, imagePath)
		if err == nil {
			e.primaryFailures.Store(0)
			return result, nil
		}
		lastKind = errorKind(err)
		e.primaryFailures.Add(1)
		log.Printf("[OCR] primary retry failed (%s): %v", lastKind, err)
	} else {
		log.Printf("[OCR] skipping primary retry after %d failures", e.primaryFailures.Load())
	}

	if e.remote != nil {
		result, err = e.remote.Extract(ctx, imagePath)
		if err == nil {
			return result, nil
		}
		lastKind = errorKind(err)
		log.Printf("[OCR] remote fallback failed (%s): %v", lastKind, err)
	}

	// Terminal outcome: every strategy exhausted, manual entry required.
	// This is a normal result, not an exception.
	return domain.FailedExtraction(lastKind), nil
}

// PrimaryFailures exposes the process-lifetime failure counter
func (e *Engine) PrimaryFailures() int {
	return int(e.primaryFailures.Load())
}

// errorKind classifies a strategy error into the result taxonomy
func errorKind(err error) domain.ExtractionErrorKind {
	switch {
	case errors.Is(err, domain.ErrImageNotFound):
		return domain.ExtractionErrNotFound
	case errors.Is(err, domain.ErrImageTooLarge):
		return domain.ExtractionErrTooLarge
	case errors.Is(err, domain.ErrExtractionTimeout):
		return domain.ExtractionErrTimeout
	case errors.Is(err, domain.ErrNoTextFound):
		return domain.ExtractionErrNoTextFound
	default:
		return domain.ExtractionErrEngineFailure
	}
}
