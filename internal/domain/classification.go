package domain

// ClassificationMethod indicates which signal produced the final category.
type ClassificationMethod string

const (
	MethodRule        ClassificationMethod = "rule"
	MethodRemoteModel ClassificationMethod = "remoteModel"
	MethodHybrid      ClassificationMethod = "hybrid"
)

// Categories is the closed set of expense categories. Order matters: rule
// scoring breaks ties in favor of the earlier-enumerated category.
var Categories = []string{
	"Groceries",
	"Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Healthcare",
	"Utilities",
	"Travel",
	"Education",
	"Personal Care",
	"Home Improvement",
	"Insurance",
	"Fitness",
	"Electronics",
	"Clothing",
	"Subscriptions",
	"Other",
}

// CategoryOther is the fallback category when nothing matches
const CategoryOther = "Other"

// IsValidCategory reports whether name is a member of the closed category set
func IsValidCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// RemoteClassification is the validated payload returned by a remote model.
type RemoteClassification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// ClassificationResult describes how a merchant was categorized and with
// what confidence. Immutable; cached by normalized merchant name.
type ClassificationResult struct {
	Category         string               `json:"category"`
	Confidence       float64              `json:"confidence"`
	Method           ClassificationMethod `json:"method"`
	RulePrediction   string               `json:"rulePrediction,omitempty"`
	RuleConfidence   float64              `json:"ruleConfidence,omitempty"`
	RemotePrediction string               `json:"remotePrediction,omitempty"`
	RemoteConfidence float64              `json:"remoteConfidence,omitempty"`
	Reasoning        string               `json:"reasoning,omitempty"`
	CandidateScores  map[string]float64   `json:"candidateScores,omitempty"`
	ProcessingTimeMs int64                `json:"processingTimeMs"`
}
