package usecase

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsight/backend/internal/domain"
)

// Default tuning for the hybrid classification flow. Remote classification
// costs orders of magnitude more latency than rule matching, so unambiguous
// merchants are resolved locally and only genuinely ambiguous ones pay for
// a network round trip.
const (
	defaultAutoAcceptThreshold = 0.8
	defaultRemoteTimeout       = 2 * time.Second

	agreementBoost     = 1.2
	disagreementMargin = 0.2
	fallbackPenalty    = 0.9
)

// categoryKeywords maps each category to its keyword table. Keyword weight
// is proportional to length, so specific brand names outrank generic terms.
// Tables are kept compact; normalization divides by table size.
var categoryKeywords = map[string][]string{
	"Groceries": {
		"walmart", "kroger", "safeway", "aldi", "trader joes",
		"whole foods", "grocery", "supermarket", "food market", "costco",
	},
	"Dining": {
		"mcdonalds", "starbucks", "chipotle", "restaurant", "cafe",
		"coffee", "pizza", "burger", "diner", "taco",
	},
	"Transportation": {
		"uber", "lyft", "shell", "chevron", "exxon",
		"gas station", "parking", "transit", "metro", "fuel",
	},
	"Shopping": {
		"amazon", "target", "ebay", "mall", "outlet",
		"department store", "retail", "marketplace",
	},
	"Entertainment": {
		"cinema", "theater", "concert", "netflix", "spotify",
		"arcade", "bowling", "amusement", "tickets",
	},
	"Healthcare": {
		"cvs pharmacy", "walgreens", "pharmacy", "clinic", "hospital",
		"dental", "doctor", "medical", "prescription",
	},
	"Utilities": {
		"electric", "water utility", "internet", "comcast", "verizon",
		"utility", "power company", "sewer",
	},
	"Travel": {
		"airlines", "airport", "hotel", "airbnb", "expedia",
		"marriott", "hilton", "rental car", "booking",
	},
	"Education": {
		"university", "college", "tuition", "bookstore", "course",
		"school supplies", "academy", "training",
	},
	"Personal Care": {
		"salon", "barber", "spa", "nails", "haircut",
		"cosmetics", "sephora", "beauty supply",
	},
	"Home Improvement": {
		"home depot", "lowes", "hardware", "lumber", "garden center",
		"paint", "plumbing supply", "ikea",
	},
	"Insurance": {
		"insurance", "geico", "allstate", "state farm", "premium payment",
		"policy", "progressive",
	},
	"Fitness": {
		"gym", "fitness", "yoga", "crossfit", "planet fitness",
		"athletic club", "pilates", "martial arts",
	},
	"Electronics": {
		"best buy", "apple store", "microcenter", "electronics", "computer",
		"phone store", "gamestop", "newegg",
	},
	"Clothing": {
		"nordstrom", "old navy", "zara", "apparel", "clothing",
		"shoes", "fashion", "h&m", "gap",
	},
	"Subscriptions": {
		"subscription", "monthly plan", "membership", "renewal", "patreon",
		"prime membership", "annual fee",
	},
	"Other": {},
}

// contextNudges adjust category scores based on free-form description
// wording (meal times, locations, actions).
var contextNudges = []struct {
	keywords []string
	category string
	bonus    float64
}{
	{[]string{"breakfast", "lunch", "dinner", "brunch", "meal"}, "Dining", 0.15},
	{[]string{"airport", "hotel", "flight", "layover"}, "Travel", 0.15},
	{[]string{"fill up", "fuel", "gallon", "unleaded"}, "Transportation", 0.15},
	{[]string{"prescription", "refill", "copay"}, "Healthcare", 0.15},
	{[]string{"workout", "training session", "class pass"}, "Fitness", 0.15},
}

// ClassificationInput is one merchant/description/amount triple to classify
type ClassificationInput struct {
	Merchant    string
	Description string
	Amount      *decimal.Decimal
}

// ClassifierConfig holds configuration for the category classifier
type ClassifierConfig struct {
	AutoAcceptThreshold float64
	RemoteTimeout       time.Duration
}

// CategoryClassifier maps merchant strings onto the closed category set.
// Rules run first; a remote model is consulted only when rule confidence
// falls below the auto-accept threshold. Results are cached by normalized
// merchant name.
type CategoryClassifier struct {
	remote              domain.RemoteClassifier
	cache               domain.ClassificationCache
	autoAcceptThreshold float64
	remoteTimeout       time.Duration
}

// NewCategoryClassifier creates a classifier. remote may be nil, in which
// case every classification resolves through the rule path.
func NewCategoryClassifier(remote domain.RemoteClassifier, cache domain.ClassificationCache, cfg ClassifierConfig) *CategoryClassifier {
	threshold := cfg.AutoAcceptThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultAutoAcceptThreshold
	}
	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &CategoryClassifier{
		remote:              remote,
		cache:               cache,
		autoAcceptThreshold: threshold,
		remoteTimeout:       timeout,
	}
}

// ClassifyWithRules scores the normalized merchant+description text against
// every category keyword table. Keyword hits are weighted by length,
// normalized by table size, and boosted by the fraction of the table
// matched, so several corroborating hits beat a single weak one. Ties go
// to the earlier-enumerated category.
func (c *CategoryClassifier) ClassifyWithRules(merchant, description string) *domain.ClassificationResult {
	start := time.Now()
	normalized := normalizeMerchantKey(merchant + " " + description)

	scores := make(map[string]float64, len(domain.Categories))
	best := domain.CategoryOther
	bestScore := 0.0

	for _, category := range domain.Categories {
		table := categoryKeywords[category]
		if len(table) == 0 {
			continue
		}

		var weight float64
		matched := 0
		for _, kw := range table {
			if strings.Contains(normalized, kw) {
				weight += float64(len(kw))
				matched++
			}
		}
		if matched == 0 {
			continue
		}

		base := weight / float64(len(table))
		boost := 1.0 + 2.0*float64(matched)/float64(len(table))
		score := clamp01(base * boost)
		scores[category] = score
		if score > bestScore {
			bestScore = score
			best = category
		}
	}

	return &domain.ClassificationResult{
		Category:         best,
		Confidence:       bestScore,
		Method:           domain.MethodRule,
		RulePrediction:   best,
		RuleConfidence:   bestScore,
		CandidateScores:  scores,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
}

// applyAmountNudges layers amount-band adjustments onto rule scores:
// small amounts lean toward dining, mid-range toward shopping/travel/
// healthcare, large toward travel/insurance/home.
func applyAmountNudges(scores map[string]float64, amount *decimal.Decimal) {
	if amount == nil {
		return
	}
	v, _ := amount.Float64()
	switch {
	case v > 0 && v < 10:
		scores["Dining"] = clamp01(scores["Dining"] + 0.1)
	case v >= 150 && v < 500:
		scores["Shopping"] = clamp01(scores["Shopping"] + 0.1)
		scores["Travel"] = clamp01(scores["Travel"] + 0.1)
		scores["Healthcare"] = clamp01(scores["Healthcare"] + 0.1)
	case v >= 500:
		scores["Travel"] = clamp01(scores["Travel"] + 0.15)
		scores["Insurance"] = clamp01(scores["Insurance"] + 0.15)
		scores["Home Improvement"] = clamp01(scores["Home Improvement"] + 0.15)
	}
}

// applyContextNudges layers description-context adjustments onto rule scores
func applyContextNudges(scores map[string]float64, description string) {
	if description == "" {
		return
	}
	lower := strings.ToLower(description)
	for _, nudge := range contextNudges {
		for _, kw := range nudge.keywords {
			if strings.Contains(lower, kw) {
				scores[nudge.category] = clamp01(scores[nudge.category] + nudge.bonus)
				break
			}
		}
	}
}

// classifyEnhanced runs the rule path and layers amount and context nudges
// on top, re-picking the winner from the adjusted scores.
func (c *CategoryClassifier) classifyEnhanced(merchant, description string, amount *decimal.Decimal) *domain.ClassificationResult {
	result := c.ClassifyWithRules(merchant, description)

	applyAmountNudges(result.CandidateScores, amount)
	applyContextNudges(result.CandidateScores, description)

	best := result.Category
	bestScore := result.Confidence
	for _, category := range domain.Categories {
		if s, ok := result.CandidateScores[category]; ok && s > bestScore {
			best = category
			bestScore = s
		}
	}

	result.Category = best
	result.Confidence = bestScore
	result.RulePrediction = best
	result.RuleConfidence = bestScore
	return result
}

// Classify is the default hybrid flow: cache, then rules, then (only when
// rule confidence is below the auto-accept threshold) the remote model
// with a bounded timeout. Remote failure degrades to the rule result with
// a confidence penalty; it never fails the classification.
func (c *CategoryClassifier) Classify(ctx context.Context, merchant, description string, amount *decimal.Decimal) *domain.ClassificationResult {
	start := time.Now()
	key := normalizeMerchantKey(merchant)

	if c.cache != nil && key != "" {
		if cached, ok := c.cache.Get(key); ok {
			return cached
		}
	}

	result := c.classifyEnhanced(merchant, description, amount)

	if result.Confidence >= c.autoAcceptThreshold || c.remote == nil {
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
		c.store(key, result)
		return result
	}

	remoteCtx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	remote, err := c.remote.Classify(remoteCtx, merchant, description, amount)
	if err != nil || !validRemoteResult(remote) {
		if err != nil {
			log.Printf("[CLASSIFY] remote classification failed for %q, falling back to rules: %v", merchant, err)
		}
		result.Confidence = result.Confidence * fallbackPenalty
		result.Method = domain.MethodRule
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
		c.store(key, result)
		return result
	}

	final := combineSignals(result, remote)
	final.ProcessingTimeMs = time.Since(start).Milliseconds()
	c.store(key, final)
	return final
}

// combineSignals merges rule and remote predictions. Agreement boosts the
// averaged confidence; on disagreement the clearly stronger signal wins,
// with the remote model preferred when neither dominates since it sees
// more context than keyword tables do.
func combineSignals(rule *domain.ClassificationResult, remote *domain.RemoteClassification) *domain.ClassificationResult {
	final := &domain.ClassificationResult{
		Method:           domain.MethodHybrid,
		RulePrediction:   rule.RulePrediction,
		RuleConfidence:   rule.RuleConfidence,
		RemotePrediction: remote.Category,
		RemoteConfidence: remote.Confidence,
		Reasoning:        remote.Reasoning,
		CandidateScores:  rule.CandidateScores,
	}

	switch {
	case rule.Category == remote.Category:
		final.Category = rule.Category
		final.Confidence = clamp01((rule.Confidence + remote.Confidence) / 2 * agreementBoost)
	case remote.Confidence-rule.Confidence > disagreementMargin:
		final.Category = remote.Category
		final.Confidence = remote.Confidence
		final.Method = domain.MethodRemoteModel
	case rule.Confidence-remote.Confidence > disagreementMargin:
		final.Category = rule.Category
		final.Confidence = rule.Confidence
		final.Method = domain.MethodRule
	default:
		final.Category = remote.Category
		final.Confidence = remote.Confidence
		final.Method = domain.MethodRemoteModel
	}

	return final
}

// validRemoteResult is the single fail-closed conversion point for remote
// predictions: the category must be a member of the closed set and the
// confidence must be a sane number.
func validRemoteResult(r *domain.RemoteClassification) bool {
	if r == nil || !domain.IsValidCategory(r.Category) {
		return false
	}
	return r.Confidence == clamp01(r.Confidence)
}

// ClassifyBatch classifies items sequentially. The shared cache is the only
// cross-item state, so batch order cannot change individual results.
func (c *CategoryClassifier) ClassifyBatch(ctx context.Context, inputs []ClassificationInput) []*domain.ClassificationResult {
	results := make([]*domain.ClassificationResult, 0, len(inputs))
	for _, in := range inputs {
		results = append(results, c.Classify(ctx, in.Merchant, in.Description, in.Amount))
	}
	return results
}

// ClearCache drops all cached classifications
func (c *CategoryClassifier) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

func (c *CategoryClassifier) store(key string, result *domain.ClassificationResult) {
	if c.cache != nil && key != "" {
		c.cache.Set(key, result)
	}
}
