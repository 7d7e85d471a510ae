package ocr

import (
	"context"
	"testing"
	"time"

	"github.com/finsight/backend/internal/domain"
)

// scriptedStrategy returns its outcomes in order, repeating the last one
type scriptedStrategy struct {
	name     string
	outcomes []scriptedOutcome
	calls    int
}

type scriptedOutcome struct {
	result *domain.RawTextResult
	err    error
}

func (s *scriptedStrategy) Name() string { return s.name }

func (s *scriptedStrategy) Extract(ctx context.Context, imagePath string) (*domain.RawTextResult, error) {
	i := s.calls
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	s.calls++
	out := s.outcomes[i]
	return out.result, out.err
}

func textResult(text, strategy string) *domain.RawTextResult {
	return &domain.RawTextResult{Succeeded: true, Text: text, Strategy: strategy}
}

func failing(err error) scriptedOutcome { return scriptedOutcome{err: err} }

func succeeding(text, strategy string) scriptedOutcome {
	return scriptedOutcome{result: textResult(text, strategy)}
}

func TestEngineExtractPrimarySuccess(t *testing.T) {
	primary := &scriptedStrategy{name: "primary", outcomes: []scriptedOutcome{
		succeeding("TOTAL 10.25", "primary"),
	}}
	remote := &scriptedStrategy{name: "remote", outcomes: []scriptedOutcome{
		succeeding("remote text", "remote"),
	}}
	engine := NewEngine(primary, remote, time.Millisecond)

	result, err := engine.Extract(context.Background(), "receipt.jpg")
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil", err)
	}
	if !result.Succeeded || result.Text != "TOTAL 10.25" {
		t.Errorf("result = %+v, want primary success", result)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1", primary.calls)
	}
	if remote.calls != 0 {
		t.Errorf("remote calls = %d, want 0", remote.calls)
	}
	if engine.PrimaryFailures() != 0 {
		t.Errorf("PrimaryFailures = %d, want 0", engine.PrimaryFailures())
	}
}

func TestEngineExtractRetrySucceeds(t *testing.T) {
	primary := &scriptedStrategy{name: "primary", outcomes: []scriptedOutcome{
		failing(domain.ErrEngineFailure),
		succeeding("second try", "primary"),
	}}
	engine := NewEngine(primary, nil, 5*time.Millisecond)

	start := time.Now()
	result, err := engine.Extract(context.Background(), "receipt.jpg")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Extract() error = %v, want nil", err)
	}
	if result.Text != "second try" {
		t.Errorf("Text = %q, want retry result", result.Text)
	}
	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want 2", primary.calls)
	}
	if elapsed < 5*time.Millisecond {
		t.Errorf("retry fired after %s, want backoff of at least 5ms", elapsed)
	}
	// Success resets the failure counter
	if engine.PrimaryFailures() != 0 {
		t.Errorf("PrimaryFailures = %d, want 0 after success", engine.PrimaryFailures())
	}
}

func TestEngineExtractFallsBackToRemote(t *testing.T) {
	primary := &scriptedStrategy{name: "primary", outcomes: []scriptedOutcome{
		failing(domain.ErrExtractionTimeout),
	}}
	remote := &scriptedStrategy{name: "remote", outcomes: []scriptedOutcome{
		succeeding("cloud text", "remote"),
	}}
	engine := NewEngine(primary, remote, time.Millisecond)

	result, err := engine.Extract(context.Background(), "receipt.jpg")
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil", err)
	}
	if result.Text != "cloud text" || result.Strategy != "remote" {
		t.Errorf("result = %+v, want remote fallback", result)
	}
	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want 2 (initial + retry)", primary.calls)
	}
	if remote.calls != 1 {
		t.Errorf("remote calls = %d, want 1", remote.calls)
	}
}

func TestEngineExtractNotFoundShortCircuits(t *testing.T) {
	primary := &scriptedStrategy{name: "primary", outcomes: []scriptedOutcome{
		failing(domain.ErrImageNotFound),
	}}
	remote := &scriptedStrategy{name: "remote", outcomes: []scriptedOutcome{
		succeeding("should not run", "remote"),
	}}
	engine := NewEngine(primary, remote, time.Millisecond)

	result, err := engine.Extract(context.Background(), "missing.jpg")
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil", err)
	}
	if result.Succeeded {
		t.Error("Succeeded = true, want false")
	}
	if result.ErrorKind != domain.ExtractionErrNotFound {
		t.Errorf("ErrorKind = %s, want NOT_FOUND", result.ErrorKind)
	}
	// A missing file cannot be found by any other strategy
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1 (no retry)", primary.calls)
	}
	if remote.calls != 0 {
		t.Errorf("remote calls = %d, want 0", remote.calls)
	}
}

func TestEngineExtractTerminalFailure(t *testing.T) {
	primary := &scriptedStrategy{name: "primary", outcomes: []scriptedOutcome{
		failing(domain.ErrEngineFailure),
	}}
	remote := &scriptedStrategy{name: "remote", outcomes: []scriptedOutcome{
		failing(domain.ErrExtractionTimeout),
	}}
	engine := NewEngine(primary, remote, time.Millisecond)

	result, err := engine.Extract(context.Background(), "receipt.jpg")
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil even on terminal failure", err)
	}
	if result.Succeeded {
		t.Error("Succeeded = true, want false")
	}
	// The last strategy's failure kind wins
	if result.ErrorKind != domain.ExtractionErrTimeout {
		t.Errorf("ErrorKind = %s, want TIMEOUT from remote", result.ErrorKind)
	}
}

func TestEngineSkipsRetryAfterRepeatedFailures(t *testing.T) {
	primary := &scriptedStrategy{name: "primary", outcomes: []scriptedOutcome{
		failing(domain.ErrEngineFailure),
	}}
	engine := NewEngine(primary, nil, time.Millisecond)

	// First request burns the initial attempt and the retry
	engine.Extract(context.Background(), "receipt.jpg")
	if primary.calls != 2 {
		t.Fatalf("primary calls = %d after first request, want 2", primary.calls)
	}
	if engine.PrimaryFailures() != 2 {
		t.Fatalf("PrimaryFailures = %d, want 2", engine.PrimaryFailures())
	}

	// With the counter at the cap, the retry is skipped
	engine.Extract(context.Background(), "receipt.jpg")
	if primary.calls != 3 {
		t.Errorf("primary calls = %d after second request, want 3 (retry skipped)", primary.calls)
	}
}

func TestEngineExtractNilRemote(t *testing.T) {
	primary := &scriptedStrategy{name: "primary", outcomes: []scriptedOutcome{
		failing(domain.ErrNoTextFound),
	}}
	engine := NewEngine(primary, nil, time.Millisecond)

	result, err := engine.Extract(context.Background(), "receipt.jpg")
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil", err)
	}
	if result.ErrorKind != domain.ExtractionErrNoTextFound {
		t.Errorf("ErrorKind = %s, want NO_TEXT_FOUND", result.ErrorKind)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected domain.ExtractionErrorKind
	}{
		{"not found", domain.ErrImageNotFound, domain.ExtractionErrNotFound},
		{"too large", domain.ErrImageTooLarge, domain.ExtractionErrTooLarge},
		{"timeout", domain.ErrExtractionTimeout, domain.ExtractionErrTimeout},
		{"no text", domain.ErrNoTextFound, domain.ExtractionErrNoTextFound},
		{"anything else", context.Canceled, domain.ExtractionErrEngineFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorKind(tt.err); got != tt.expected {
				t.Errorf("errorKind(%v) = %s, want %s", tt.err, got, tt.expected)
			}
		})
	}
}
