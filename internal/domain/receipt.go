package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptItem is a single purchased line item. Total should equal
// UnitPrice * Quantity within rounding tolerance.
type ReceiptItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// StructuredReceipt is the parser's typed view of raw OCR text. All fields
// except Currency, RawText and the confidence maps are optional; absent
// fields carry no confidence weight. Immutable after creation.
type StructuredReceipt struct {
	MerchantName      *string            `json:"merchantName,omitempty"`
	TotalAmount       *decimal.Decimal   `json:"totalAmount,omitempty"`
	Subtotal          *decimal.Decimal   `json:"subtotal,omitempty"`
	Tax               *decimal.Decimal   `json:"tax,omitempty"`
	Date              *time.Time         `json:"date,omitempty"`
	Time              *string            `json:"time,omitempty"`
	Items             []ReceiptItem      `json:"items,omitempty"`
	PaymentMethod     *string            `json:"paymentMethod,omitempty"`
	ReceiptNumber     *string            `json:"receiptNumber,omitempty"`
	Currency          string             `json:"currency"`
	OverallConfidence float64            `json:"overallConfidence"`
	FieldConfidences  map[string]float64 `json:"fieldConfidences"`
	RawText           string             `json:"rawText"`
	Warnings          []string           `json:"warnings,omitempty"`
}

// Validate checks the structural invariants of a parsed receipt:
// at least one of merchant/total must be present, tax must be strictly
// below the total, and the date must not be in the future.
func (r *StructuredReceipt) Validate() error {
	if r.MerchantName == nil && r.TotalAmount == nil {
		return ErrInvalidReceipt
	}
	if r.Tax != nil && r.TotalAmount != nil && r.Tax.GreaterThanOrEqual(*r.TotalAmount) {
		return ErrInvalidReceipt
	}
	if r.Date != nil && r.Date.After(time.Now()) {
		return ErrInvalidReceipt
	}
	return nil
}

// IsValid reports whether the receipt passes Validate
func (r *StructuredReceipt) IsValid() bool {
	return r.Validate() == nil
}
