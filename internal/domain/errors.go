package domain

import "errors"

var (
	// ErrImageNotFound is returned when the receipt image file does not exist
	ErrImageNotFound = errors.New("receipt image not found")

	// ErrImageTooLarge is returned when the image exceeds the processable size limit
	ErrImageTooLarge = errors.New("receipt image too large")

	// ErrExtractionTimeout is returned when an OCR strategy exceeds its deadline
	ErrExtractionTimeout = errors.New("text extraction timed out")

	// ErrEngineFailure is returned when an OCR engine fails for any other reason
	ErrEngineFailure = errors.New("text extraction engine failure")

	// ErrNoTextFound is returned when OCR succeeds but produces no usable text
	ErrNoTextFound = errors.New("no text found in image")

	// ErrRemoteClassifier is returned when the remote classification API fails
	ErrRemoteClassifier = errors.New("remote classifier request failed")

	// ErrInvalidResponse is returned when a remote API response fails validation
	ErrInvalidResponse = errors.New("invalid remote API response")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidReceipt is returned when a parsed receipt fails validation
	ErrInvalidReceipt = errors.New("parsed receipt failed validation")

	// ErrCacheMiss is returned when a classification is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
