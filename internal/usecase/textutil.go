package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Package-level compiled regex patterns for performance
var (
	punctuationRegex    = regexp.MustCompile(`[^\w\s]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)

	// Matches currency-amount-shaped substrings: optional symbol, digits with
	// optional thousands separators, and at least two fractional digits.
	amountRegex = regexp.MustCompile(`[$€£¥₹]?\s?(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2,}`)

	taxWordRegex = regexp.MustCompile(`(?i)\b(tax|gst|hst|vat|levy)\b`)
)

// merchantTypeKeywords reward lines that look like a business name
var merchantTypeKeywords = map[string]bool{
	"restaurant": true, "cafe": true, "coffee": true, "bakery": true,
	"deli": true, "diner": true, "grill": true, "kitchen": true,
	"pizza": true, "bar": true, "pub": true, "bistro": true,
	"market": true, "supermarket": true, "mart": true, "store": true,
	"shop": true, "foods": true, "grocery": true, "pharmacy": true,
	"drug": true, "salon": true, "spa": true, "station": true,
	"fuel": true, "gas": true, "hotel": true, "inn": true,
	"hardware": true, "books": true, "cinema": true, "theater": true,
}

// receiptJargonKeywords penalize lines that belong to the receipt body
// rather than the header
var receiptJargonKeywords = map[string]bool{
	"total": true, "subtotal": true, "tax": true, "receipt": true,
	"invoice": true, "cashier": true, "change": true, "balance": true,
	"amount": true, "due": true, "thank": true, "thanks": true,
	"order": true, "transaction": true, "register": true, "terminal": true,
	"approval": true, "auth": true, "card": true, "visa": true,
	"mastercard": true, "debit": true, "credit": true, "cash": true,
	"item": true, "items": true, "qty": true, "welcome": true,
}

// currencySymbols maps known symbols to ISO-ish codes, checked in order
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"₹", "INR"},
	{"¥", "JPY"},
}

// stringSimilarity returns a normalized similarity in [0,1] based on edit
// distance. Equal strings score 1.0; if exactly one side is empty the score
// is 0.0.
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	dist := levenshteinDistance(a, b)
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Use two rows instead of full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// extractNumbers returns every currency-amount-shaped number in the text,
// in the order found. Symbols, spaces and thousands separators are stripped
// before parsing.
func extractNumbers(text string) []decimal.Decimal {
	matches := amountRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	numbers := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' {
				return r
			}
			return -1
		}, m)
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			continue
		}
		numbers = append(numbers, d)
	}
	return numbers
}

// scoreMerchantCandidate scores how plausible a line is as the merchant
// name. Additive: merchant-type keywords and brand-like mixed-case tokens
// raise the score, receipt jargon, embedded digits and extreme lengths
// lower it. Result is clamped to [0,1].
func scoreMerchantCandidate(line string) float64 {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 3 || len(trimmed) > 50 {
		return 0.0
	}

	score := 0.1 // base score for a reasonable-length line
	lower := strings.ToLower(trimmed)
	words := strings.Fields(lower)

	for _, w := range words {
		if merchantTypeKeywords[strings.Trim(w, ".,'")] {
			score += 0.3
			break
		}
	}

	for _, w := range strings.Fields(trimmed) {
		if isBrandLikeToken(w) {
			score += 0.25
			break
		}
	}

	for _, w := range words {
		if receiptJargonKeywords[strings.Trim(w, ".,:#")] {
			score -= 0.35
			break
		}
	}

	if strings.ContainsFunc(trimmed, unicode.IsDigit) {
		score -= 0.2
	}

	return clamp01(score)
}

// isBrandLikeToken reports whether a token looks like part of a brand name:
// capitalized or fully upper-case, at least three letters, no digits.
func isBrandLikeToken(token string) bool {
	runes := []rune(strings.Trim(token, ".,'&"))
	if len(runes) < 3 {
		return false
	}
	for _, r := range runes {
		if unicode.IsDigit(r) {
			return false
		}
	}
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	return true
}

// isLikelyTotalLine reports whether a line carries the receipt total label
func isLikelyTotalLine(line string) bool {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "subtotal") || strings.Contains(lower, "sub total") || strings.Contains(lower, "sub-total") {
		return false
	}
	for _, kw := range []string{"total", "amount due", "balance due", "amount paid", "grand total"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isLikelySubtotalLine reports whether a line carries a subtotal label
func isLikelySubtotalLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "subtotal") || strings.Contains(lower, "sub total") || strings.Contains(lower, "sub-total")
}

// isLikelyTaxLine reports whether a line carries a tax label
func isLikelyTaxLine(line string) bool {
	return taxWordRegex.MatchString(line)
}

// isLikelyDateLine reports whether a line carries a date label
func isLikelyDateLine(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range []string{"date", "issued", "purchased", "sold on"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// detectCurrency returns the ISO-ish code for the first known currency
// symbol present in the text, or "" when none is found (callers default
// to the configured currency).
func detectCurrency(text string) string {
	for _, cs := range currencySymbols {
		if strings.Contains(text, cs.symbol) {
			return cs.code
		}
	}
	return ""
}

// normalizeMerchantKey normalizes a merchant string for cache keys and rule
// matching: lowercase, punctuation stripped, whitespace collapsed.
func normalizeMerchantKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = punctuationRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
