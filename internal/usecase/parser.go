package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsight/backend/internal/domain"
)

// Confidence weights for the overall parse score. Absent fields contribute
// nothing, so adding a recognized field never lowers the overall score.
const (
	weightTotal    = 0.35
	weightMerchant = 0.30
	weightDate     = 0.15
	weightTax      = 0.10
	weightItems    = 0.10
)

const merchantScanLines = 5

var (
	isoDateRegex       = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthNameDateRegex = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	numericDateRegex   = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})\b`)

	time12Regex = regexp.MustCompile(`(?i)\b(1[0-2]|0?[1-9]):([0-5]\d)\s*([ap]m)\b`)
	time24Regex = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)

	quantityMarkerRegex = regexp.MustCompile(`(?i)\b(\d{1,2})\s*[x@]\s*`)
	receiptNumberRegex  = regexp.MustCompile(`(?i)\b(?:receipt|order|invoice|trans(?:action)?)\s*(?:no\.?|number)?\s*[#:]?\s*([A-Za-z0-9-]{3,})`)
	bareNumberTagRegex  = regexp.MustCompile(`#\s?(\d{3,})`)

	monthIndex = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March,
		"apr": time.April, "may": time.May, "jun": time.June,
		"jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	}
)

// paymentMethodTokens maps receipt text tokens to canonical payment methods,
// checked in order so specific names win over generic ones.
var paymentMethodTokens = []struct {
	token  string
	method string
}{
	{"apple pay", "Mobile Wallet"},
	{"google pay", "Mobile Wallet"},
	{"paypal", "Mobile Wallet"},
	{"venmo", "Mobile Wallet"},
	{"american express", "Credit Card"},
	{"mastercard", "Credit Card"},
	{"visa", "Credit Card"},
	{"amex", "Credit Card"},
	{"discover", "Credit Card"},
	{"debit", "Debit Card"},
	{"credit", "Credit Card"},
	{"cheque", "Check"},
	{"check", "Check"},
	{"cash", "Cash"},
}

// itemPenaltyKeywords disqualify summary and tender lines from being items
var itemPenaltyKeywords = []string{
	"total", "subtotal", "tax", "change", "cash", "balance", "due",
	"tender", "payment", "visa", "mastercard", "debit", "credit",
}

// ParserConfig holds configuration for the receipt parser
type ParserConfig struct {
	DefaultCurrency string
}

// ReceiptParser turns raw OCR text into a StructuredReceipt. Each field is
// extracted independently; one extractor coming up empty leaves that field
// absent instead of aborting the parse.
type ReceiptParser struct {
	defaultCurrency string
	now             func() time.Time
}

// NewReceiptParser creates a parser with the given configuration
func NewReceiptParser(cfg ParserConfig) *ReceiptParser {
	currency := cfg.DefaultCurrency
	if currency == "" {
		currency = "USD"
	}
	return &ReceiptParser{
		defaultCurrency: currency,
		now:             time.Now,
	}
}

// Parse extracts structured receipt fields from raw text. It never panics
// on malformed input; empty input yields an empty receipt with a warning.
func (p *ReceiptParser) Parse(rawText string) *domain.StructuredReceipt {
	receipt := &domain.StructuredReceipt{
		Currency:         p.defaultCurrency,
		RawText:          rawText,
		FieldConfidences: make(map[string]float64),
	}

	lines := nonEmptyLines(rawText)
	if len(lines) == 0 {
		receipt.Warnings = append(receipt.Warnings, "empty or whitespace-only input")
		return receipt
	}

	if name, conf, ok := p.extractMerchant(lines); ok {
		receipt.MerchantName = &name
		receipt.FieldConfidences["merchantName"] = conf
	}

	if total, conf, ok := p.extractTotal(lines); ok {
		receipt.TotalAmount = &total
		receipt.FieldConfidences["totalAmount"] = conf
	}

	if tax, conf, ok := p.extractTax(lines); ok {
		// A tax at or above the total is an OCR artifact, not a tax
		if receipt.TotalAmount != nil && tax.GreaterThanOrEqual(*receipt.TotalAmount) {
			receipt.Warnings = append(receipt.Warnings, fmt.Sprintf("discarded tax %s >= total %s", tax, receipt.TotalAmount))
		} else {
			receipt.Tax = &tax
			receipt.FieldConfidences["tax"] = conf
		}
	}

	if sub, conf, ok := p.extractSubtotal(lines, receipt.TotalAmount, receipt.Tax); ok {
		receipt.Subtotal = &sub
		receipt.FieldConfidences["subtotal"] = conf
	}

	if date, conf, warn, ok := p.extractDate(lines); ok {
		receipt.Date = &date
		receipt.FieldConfidences["date"] = conf
		if warn != "" {
			receipt.Warnings = append(receipt.Warnings, warn)
		}
	}

	if t, ok := p.extractTime(rawText); ok {
		receipt.Time = &t
		receipt.FieldConfidences["time"] = 0.8
	}

	receipt.Items = p.extractItems(lines)
	if len(receipt.Items) > 0 {
		receipt.FieldConfidences["items"] = 0.7
	}

	if method, ok := p.extractPaymentMethod(rawText); ok {
		receipt.PaymentMethod = &method
		receipt.FieldConfidences["paymentMethod"] = 0.8
	}

	if number, ok := p.extractReceiptNumber(lines); ok {
		receipt.ReceiptNumber = &number
		receipt.FieldConfidences["receiptNumber"] = 0.75
	}

	if code := detectCurrency(rawText); code != "" {
		receipt.Currency = code
	}

	receipt.OverallConfidence = overallConfidence(receipt)
	return receipt
}

// extractMerchant scans the first lines of the receipt for the most
// brand-like candidate, favoring earlier lines with a positional bonus.
func (p *ReceiptParser) extractMerchant(lines []string) (string, float64, bool) {
	limit := merchantScanLines
	if len(lines) < limit {
		limit = len(lines)
	}

	best := ""
	bestScore := 0.0
	for i := 0; i < limit; i++ {
		score := scoreMerchantCandidate(lines[i])
		if score <= 0 {
			continue
		}
		score += 0.1 * float64(merchantScanLines-i)
		if score > bestScore {
			bestScore = score
			best = strings.TrimSpace(lines[i])
		}
	}

	if bestScore <= 0.5 || best == "" {
		return "", 0, false
	}
	return best, clamp01(bestScore), true
}

type amountCandidate struct {
	value decimal.Decimal
	score float64
}

// extractTotal merges two candidate pools: explicitly labeled total lines
// (taking the last number, since subtotal and total often share a line) and
// positional candidates from the bottom half of the receipt. Labeled lines
// far outrank positional heuristics, which outrank the global-max fallback.
func (p *ReceiptParser) extractTotal(lines []string) (decimal.Decimal, float64, bool) {
	var candidates []amountCandidate
	minPositional := decimal.NewFromInt(5)

	for i, line := range lines {
		numbers := extractNumbers(line)
		if len(numbers) == 0 {
			continue
		}
		if isLikelyTotalLine(line) {
			candidates = append(candidates, amountCandidate{value: numbers[len(numbers)-1], score: 0.9})
			continue
		}
		if i >= len(lines)/2 {
			for _, n := range numbers {
				if n.GreaterThan(minPositional) {
					candidates = append(candidates, amountCandidate{
						value: n,
						score: 0.5 + 0.5*float64(i)/float64(len(lines)),
					})
				}
			}
		}
	}

	if len(candidates) > 0 {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.score > best.score {
				best = c
			}
		}
		return best.value, clamp01(best.score), true
	}

	// Last resort: the single largest number anywhere in the text
	all := extractNumbers(strings.Join(lines, "\n"))
	if len(all) == 0 {
		return decimal.Decimal{}, 0, false
	}
	largest := all[0]
	for _, n := range all[1:] {
		if n.GreaterThan(largest) {
			largest = n
		}
	}
	return largest, 0.4, true
}

// extractTax takes the last number on the first tax-labeled line
func (p *ReceiptParser) extractTax(lines []string) (decimal.Decimal, float64, bool) {
	for _, line := range lines {
		if !isLikelyTaxLine(line) {
			continue
		}
		numbers := extractNumbers(line)
		if len(numbers) == 0 {
			continue
		}
		return numbers[len(numbers)-1], 0.8, true
	}
	return decimal.Decimal{}, 0, false
}

// extractSubtotal prefers an explicitly labeled subtotal line; failing
// that it derives total minus tax when both are present.
func (p *ReceiptParser) extractSubtotal(lines []string, total, tax *decimal.Decimal) (decimal.Decimal, float64, bool) {
	for _, line := range lines {
		if !isLikelySubtotalLine(line) {
			continue
		}
		numbers := extractNumbers(line)
		if len(numbers) == 0 {
			continue
		}
		return numbers[len(numbers)-1], 0.85, true
	}
	if total != nil && tax != nil {
		return total.Sub(*tax), 0.8, true
	}
	return decimal.Decimal{}, 0, false
}

// extractDate tries ISO, month-name, then slash/dash numeric formats. For
// ambiguous numeric dates the month-first reading is tried before
// day-first; when both readings validate the ambiguity is surfaced as a
// warning rather than silently resolved.
func (p *ReceiptParser) extractDate(lines []string) (time.Time, float64, string, bool) {
	now := p.now()
	for _, line := range lines {
		date, warn, ok := parseDateFromLine(line, now)
		if !ok {
			continue
		}
		conf := 0.7
		if isLikelyDateLine(line) {
			conf = 0.9
		}
		return date, conf, warn, true
	}
	return time.Time{}, 0, "", false
}

func parseDateFromLine(line string, now time.Time) (time.Time, string, bool) {
	if m := isoDateRegex.FindStringSubmatch(line); m != nil {
		if d, ok := buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), now); ok {
			return d, "", true
		}
	}

	if m := monthNameDateRegex.FindStringSubmatch(line); m != nil {
		month := monthIndex[strings.ToLower(m[1])]
		if d, ok := buildDate(atoi(m[3]), int(month), atoi(m[2]), now); ok {
			return d, "", true
		}
	}

	if m := numericDateRegex.FindStringSubmatch(line); m != nil {
		first, second, year := atoi(m[1]), atoi(m[2]), expandYear(atoi(m[3]))

		monthFirst, mfOK := buildDate(year, first, second, now)
		dayFirst, dfOK := buildDate(year, second, first, now)

		switch {
		case mfOK && dfOK && first != second:
			return monthFirst, "date format ambiguous, assumed month-first", true
		case mfOK:
			return monthFirst, "", true
		case dfOK:
			return dayFirst, "", true
		}
	}

	return time.Time{}, "", false
}

// buildDate validates component ranges and rejects future dates
func buildDate(year, month, day int, now time.Time) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1900 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject those
	if d.Day() != day || d.Month() != time.Month(month) {
		return time.Time{}, false
	}
	if d.After(now) {
		return time.Time{}, false
	}
	return d, true
}

// expandYear expands 2-digit years with a 50-year pivot
func expandYear(y int) int {
	if y >= 100 {
		return y
	}
	if y < 50 {
		return 2000 + y
	}
	return 1900 + y
}

// extractTime matches 12-hour times first, then 24-hour times constrained
// to valid hours so ordinary numeric pairs are not mistaken for times.
func (p *ReceiptParser) extractTime(text string) (string, bool) {
	if m := time12Regex.FindString(text); m != "" {
		return strings.ToUpper(strings.TrimSpace(m)), true
	}
	if m := time24Regex.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// scoreItemLine scores how likely a line is a purchased line item. A
// 2-decimal price is required; quantity markers raise the score and
// summary/tender keywords sink it below the acceptance threshold.
func scoreItemLine(line string) float64 {
	if len(extractNumbers(line)) == 0 {
		return 0
	}
	score := 0.55
	if quantityMarkerRegex.MatchString(line) {
		score += 0.2
	}
	lower := strings.ToLower(line)
	for _, kw := range itemPenaltyKeywords {
		if strings.Contains(lower, kw) {
			score -= 0.4
			break
		}
	}
	return clamp01(score)
}

// extractItems parses lines scoring above the item threshold. The last
// price on the line is the line total; a detected quantity marker divides
// it into a unit price, and the text before the price becomes the name.
func (p *ReceiptParser) extractItems(lines []string) []domain.ReceiptItem {
	var items []domain.ReceiptItem
	for _, line := range lines {
		if scoreItemLine(line) <= 0.5 {
			continue
		}
		if item, ok := parseItemLine(line); ok {
			items = append(items, item)
		}
	}
	return items
}

func parseItemLine(line string) (domain.ReceiptItem, bool) {
	numbers := extractNumbers(line)
	if len(numbers) == 0 {
		return domain.ReceiptItem{}, false
	}
	total := numbers[len(numbers)-1]

	quantity := 1
	if m := quantityMarkerRegex.FindStringSubmatch(line); m != nil {
		if q := atoi(m[1]); q >= 1 {
			quantity = q
		}
	}

	unitPrice := total
	if quantity > 1 {
		unitPrice = total.Div(decimal.NewFromInt(int64(quantity))).Round(2)
	}

	// Name is whatever precedes the first price, with quantity markers stripped
	name := line
	if loc := amountRegex.FindStringIndex(line); loc != nil {
		name = line[:loc[0]]
	}
	name = quantityMarkerRegex.ReplaceAllString(name, "")
	name = strings.Trim(strings.TrimSpace(name), ".-:$ ")
	if name == "" {
		return domain.ReceiptItem{}, false
	}

	return domain.ReceiptItem{
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  quantity,
		Total:     total,
	}, true
}

func (p *ReceiptParser) extractPaymentMethod(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, pm := range paymentMethodTokens {
		if strings.Contains(lower, pm.token) {
			return pm.method, true
		}
	}
	return "", false
}

func (p *ReceiptParser) extractReceiptNumber(lines []string) (string, bool) {
	for _, line := range lines {
		if m := receiptNumberRegex.FindStringSubmatch(line); m != nil {
			// Avoid swallowing the label of an adjacent field ("Order Total")
			candidate := m[1]
			if !strings.EqualFold(candidate, "total") && !strings.EqualFold(candidate, "number") {
				return candidate, true
			}
		}
		if m := bareNumberTagRegex.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// overallConfidence is a weighted sum over field presence
func overallConfidence(r *domain.StructuredReceipt) float64 {
	var score float64
	if r.TotalAmount != nil {
		score += weightTotal
	}
	if r.MerchantName != nil {
		score += weightMerchant
	}
	if r.Date != nil {
		score += weightDate
	}
	if r.Tax != nil {
		score += weightTax
	}
	if len(r.Items) > 0 {
		score += weightItems
	}
	return score
}

// nonEmptyLines splits text into trimmed, non-empty lines
func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
