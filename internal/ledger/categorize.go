// Package ledger holds the pure rules of the expense ledger: categorizing
// descriptions, normalizing caller input into entries, and deriving the
// dashboard aggregates from the raw entry lists.
package ledger

import (
	"strings"

	"github.com/boddenberg/finledger-go/internal/domain"
)

type categoryRule struct {
	category string
	keywords []string
}

// categoryRules is evaluated in order; the first rule with a matching
// keyword wins.
var categoryRules = []categoryRule{
	{category: "Food", keywords: []string{"zomato", "swiggy"}},
	{category: "Transport", keywords: []string{"uber", "ola"}},
	{category: "Shopping", keywords: []string{"amazon", "flipkart"}},
	{category: "Rent", keywords: []string{"rent"}},
}

// Categorize maps a free-text expense description to a category label.
// Matching is a case-insensitive substring search. Unknown or empty
// descriptions fall back to "Other".
func Categorize(description string) string {
	lowered := strings.ToLower(description)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.category
			}
		}
	}
	return domain.DefaultCategory
}
