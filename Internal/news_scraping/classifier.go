package newsscraping

import "strings"

// high-impact economic news categories used by the admission blackout
const (
	CategoryRateDecision = "rate_decision"
	CategoryInflation    = "inflation"
	CategoryEmployment   = "employment"
	CategoryGeopolitics  = "geopolitics"
	CategoryEarnings     = "earnings"
)

type Classifier struct {
	categoryKeywords map[string][]string
}

func NewClassifier() *Classifier {
	return &Classifier{
		categoryKeywords: map[string][]string{
			CategoryRateDecision: {
				"fomc", "rate decision", "rate hike", "rate cut", "fed funds",
				"ecb decision", "boe decision", "boj decision", "powell", "lagarde",
			},
			CategoryInflation: {
				"cpi", "inflation", "consumer price", "pce", "ppi", "producer price",
			},
			CategoryEmployment: {
				"nonfarm", "non-farm", "payrolls", "nfp", "jobless claims",
				"unemployment rate", "jobs report",
			},
			CategoryGeopolitics: {
				"sanctions", "invasion", "missile", "ceasefire", "tariff",
				"trade war", "opec",
			},
			CategoryEarnings: {
				"earnings", "quarterly results", "guidance cut", "guidance raise",
			},
		},
	}
}

// Classify returns the categories a headline touches. A headline can
// hit several at once.
func (c *Classifier) Classify(headline string) []string {
	text := strings.ToLower(headline)

	var categories []string
	for category, keywords := range c.categoryKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				categories = append(categories, category)
				break
			}
		}
	}
	return categories
}
